// Package service contains the subscription lifecycle rules.
//
// The layering follows the rest of the app:
//
//	Handler (HTTP)     → parses forms, writes JSON
//	Service (this)     → normalizes, validates, mints tokens, maps store failures
//	Repository (store) → one upsert or one conditional update per operation
//
// SubscriptionService holds no mutable state of its own. Every call is a
// single store round trip, so concurrent requests need no locking here: the
// store's unique email key serializes racing subscribes (last write wins).
//
// TRUST MODEL:
// Unsubscribe takes nothing but the token. There is no login and no check
// that the token "belongs" to the caller: the token was only ever sent to the
// subscriber's inbox, and holding it is treated as consent to stop the
// emails. This is the capability-token pattern, not a missing auth check.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/menu-subscriptions/internal/apperror"
	"github.com/sakif/menu-subscriptions/internal/auth"
	"github.com/sakif/menu-subscriptions/internal/model"
	"github.com/sakif/menu-subscriptions/internal/repository"
)

const (
	DefaultActiveLimit = 500
	MaxActiveLimit     = 1000
)

type SubscriptionService struct {
	repo     repository.SubscriberRepository
	logger   *slog.Logger
	newToken func() (string, error)
}

// NewSubscriptionService wires the service to a store. The repository is the
// only dependency, so tests substitute an in-memory fake.
func NewSubscriptionService(repo repository.SubscriberRepository, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		logger:   logger,
		newToken: auth.NewUnsubscribeToken,
	}
}

// Subscribe normalizes and validates rawEmail, mints a fresh unsubscribe
// token, and upserts the subscriber as active.
//
// Repeating it for the same address is safe: the row is reactivated and the
// previous token stops matching. Validation failures return
// apperror.InvalidEmail before the store is touched; store failures return
// apperror.Unavailable and leave nothing half-written.
func (s *SubscriptionService) Subscribe(ctx context.Context, rawEmail string) (*model.Subscriber, error) {
	email := NormalizeEmail(rawEmail)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		s.logger.Error("failed to generate unsubscribe token", slog.String("error", err.Error()))
		return nil, err
	}

	sub := &model.Subscriber{
		Email:  email,
		Token:  token,
		Active: true,
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		s.logger.Error("failed to upsert subscriber",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unavailable("subscribe", err)
	}

	s.logger.Info("subscriber active",
		slog.String("id", sub.ID),
		slog.String("email", sub.Email),
	)
	return sub, nil
}

// Unsubscribe deactivates whichever subscriber holds token.
//
// It is idempotent and never reports an unknown token: an empty, malformed,
// stale or never-issued token is a successful no-op. Malformed tokens cannot
// match a stored one, so they return without a store call.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if !auth.IsWellFormedUnsubscribeToken(token) {
		s.logger.Debug("unsubscribe with malformed or empty token ignored")
		return nil
	}

	n, err := s.repo.DeactivateByToken(ctx, token)
	if err != nil {
		s.logger.Error("failed to deactivate subscriber", slog.String("error", err.Error()))
		return apperror.Unavailable("unsubscribe", err)
	}

	s.logger.Info("unsubscribe processed", slog.Int64("matched", n))
	return nil
}

// Pending describes an unsubscribe awaiting confirmation.
type Pending struct {
	Token       string
	Known       bool   // token matches a stored subscriber
	Active      bool   // that subscriber is still active
	MaskedEmail string // e.g. "a***@example.com", empty when unknown
}

// PendingUnsubscribe is the read-only first step of the two-step flow. It
// lets a confirmation page describe what POST /unsubscribe would do, so a mail
// client prefetching the link does not deactivate anything.
func (s *SubscriptionService) PendingUnsubscribe(ctx context.Context, token string) (*Pending, error) {
	token = strings.TrimSpace(token)
	p := &Pending{Token: token}
	if !auth.IsWellFormedUnsubscribeToken(token) {
		return p, nil
	}

	sub, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return p, nil
		}
		s.logger.Error("failed to look up unsubscribe token", slog.String("error", err.Error()))
		return nil, apperror.Unavailable("unsubscribe lookup", err)
	}

	p.Known = true
	p.Active = sub.Active
	p.MaskedEmail = MaskEmail(sub.Email)
	return p, nil
}

// ActiveSubscribers pages through the subscribers the next delivery run
// should reach. limit is clamped to [1, MaxActiveLimit].
func (s *SubscriptionService) ActiveSubscribers(ctx context.Context, limit, offset int) ([]model.Subscriber, error) {
	if limit <= 0 {
		limit = DefaultActiveLimit
	}
	if limit > MaxActiveLimit {
		limit = MaxActiveLimit
	}
	if offset < 0 {
		offset = 0
	}

	subs, err := s.repo.ListActive(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list active subscribers", slog.String("error", err.Error()))
		return nil, apperror.Unavailable("list active subscribers", err)
	}
	return subs, nil
}

// MaskEmail keeps the first character of the local part and the full domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(email)
	return email[:size] + "***" + email[at:]
}
