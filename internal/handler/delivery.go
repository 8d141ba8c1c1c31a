package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/sakif/menu-subscriptions/internal/apperror"
	"github.com/sakif/menu-subscriptions/internal/auth"
	"github.com/sakif/menu-subscriptions/internal/model"
)

// ActiveLister is the read side the outbound delivery job depends on.
type ActiveLister interface {
	ActiveSubscribers(ctx context.Context, limit, offset int) ([]model.Subscriber, error)
}

// DeliveryHandler exposes the recipient list to the job that sends the
// daily menu. It is mounted behind auth.RequireDeliveryToken, because every
// entry carries a live unsubscribe token.
type DeliveryHandler struct {
	subs    ActiveLister
	baseURL *url.URL
	logger  *slog.Logger
}

// NewDeliveryHandler parses baseURL, the public origin unsubscribe links
// point at (e.g. "https://menu.example.com").
func NewDeliveryHandler(subs ActiveLister, baseURL string, logger *slog.Logger) (*DeliveryHandler, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be an absolute http(s) URL", baseURL)
	}
	return &DeliveryHandler{subs: subs, baseURL: u, logger: logger}, nil
}

// Recipient is one entry of the delivery feed. ListUnsubscribe and
// ListUnsubscribePost are ready-made values for the RFC 8058 headers.
type Recipient struct {
	Email               string `json:"email"`
	UnsubscribeURL      string `json:"unsubscribeUrl"`
	ListUnsubscribe     string `json:"listUnsubscribe"`
	ListUnsubscribePost string `json:"listUnsubscribePost"`
}

type recipientsResponse struct {
	Subscribers []Recipient `json:"subscribers"`
	Count       int         `json:"count"`
	Limit       int         `json:"limit"`
	Offset      int         `json:"offset"`
}

// HandleListActive returns one page of active subscribers.
//
// HTTP: GET /api/delivery/subscribers?limit=500&offset=0
//
// The job pages until it receives fewer entries than it asked for.
func (h *DeliveryHandler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	subs, err := h.subs.ActiveSubscribers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	recipients := make([]Recipient, 0, len(subs))
	for _, s := range subs {
		link := h.UnsubscribeURL(s.Token)
		recipients = append(recipients, Recipient{
			Email:               s.Email,
			UnsubscribeURL:      link,
			ListUnsubscribe:     "<" + link + ">",
			ListUnsubscribePost: "List-Unsubscribe=One-Click",
		})
	}

	caller, _ := auth.CallerFromContext(r.Context())
	h.logger.Info("delivery list served",
		slog.String("caller", caller),
		slog.Int("count", len(recipients)),
		slog.Int("offset", offset),
	)

	writeJSON(w, http.StatusOK, recipientsResponse{
		Subscribers: recipients,
		Count:       len(recipients),
		Limit:       limit,
		Offset:      offset,
	})
}

// UnsubscribeURL builds the link embedded in an email for token.
func (h *DeliveryHandler) UnsubscribeURL(token string) string {
	u := *h.baseURL
	u.Path = path.Join("/", h.baseURL.Path, "unsubscribe")
	u.RawQuery = url.Values{"token": {token}}.Encode()
	u.Fragment = ""
	return u.String()
}

// queryInt reads an optional non-negative integer query parameter. Absent
// means zero, which the service turns into its default.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
