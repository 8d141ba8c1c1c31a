// Package auth holds the two credentials the service deals in.
//
// Unsubscribe tokens (token.go) are random capabilities stored next to each
// subscriber: possession is the whole authorization model, there is no
// account to check them against.
//
// Delivery tokens (this file) are HS256 JWTs presented by the external daily
// notification job when it pulls the active subscriber list. They carry no
// per-subscriber data; they only prove the caller knows the shared secret.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"iss":"menu-subscriptions","aud":["delivery"],"sub":"daily-job","exp":...}
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer           = "menu-subscriptions"
	deliveryAudience = "delivery"

	// DefaultDeliveryTTL is how long an issued delivery token stays valid.
	DefaultDeliveryTTL = 30 * 24 * time.Hour
)

// TokenService signs and verifies delivery JWTs with one HMAC secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService rejects secrets shorter than 16 characters.
// Example: DELIVERY_JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: delivery JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Generate issues a delivery token for subject valid for ttl.
// A non-positive ttl yields an already expired token.
func (s *TokenService) Generate(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: delivery token subject must not be empty")
	}
	now := s.now()

	c := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{deliveryAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing delivery token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, algorithm, issuer, audience and expiry, and
// returns the token's subject.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(deliveryAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: delivery token expired")
		}
		return "", fmt.Errorf("auth: invalid delivery token: %w", err)
	}

	c, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid delivery token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: delivery token has no subject")
	}
	return c.Subject, nil
}
