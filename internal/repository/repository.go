// Package repository declares the storage contract for subscribers.
//
// Implementations live in the sqlite, postgres and mongo sub-packages. Each
// must enforce email as a unique key, since that is the only thing keeping
// concurrent subscribes for one address from producing two rows.
package repository

import (
	"context"

	"github.com/sakif/menu-subscriptions/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type SubscriberRepository interface {
	// Upsert inserts or updates the row keyed by sub.Email, setting its token,
	// active=true and updated_at. An existing row keeps its ID and CreatedAt;
	// both are written back into sub.
	Upsert(ctx context.Context, sub *model.Subscriber) error

	// DeactivateByToken sets active=false on every row whose token equals
	// token and reports how many rows matched. Zero is not an error.
	DeactivateByToken(ctx context.Context, token string) (int64, error)

	GetByEmail(ctx context.Context, email string) (*model.Subscriber, error)
	GetByToken(ctx context.Context, token string) (*model.Subscriber, error)

	// ListActive pages through active subscribers ordered by email.
	ListActive(ctx context.Context, opts ListOptions) ([]model.Subscriber, error)

	Close() error
}
