package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/menu-subscriptions/internal/apperror"
	"github.com/sakif/menu-subscriptions/internal/model"
	"github.com/sakif/menu-subscriptions/internal/repository"
)

var _ repository.SubscriberRepository = (*DB)(nil)

const subscriberColumns = `id, email, token, active, created_at, updated_at`

// Upsert is a single INSERT ... ON CONFLICT(email) statement; RETURNING hands
// back the surviving row's id and created_at.
func (db *DB) Upsert(ctx context.Context, sub *model.Subscriber) error {
	now := time.Now().UTC()
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO subscribers (id, email, token, active, created_at, updated_at)
		 VALUES ($1, $2, $3, TRUE, $4, $4)
		 ON CONFLICT (email) DO UPDATE SET
			token      = EXCLUDED.token,
			active     = TRUE,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		xid.New().String(),
		sub.Email,
		sub.Token,
		now,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upserting subscriber %s: %w", sub.Email, err)
	}

	sub.Active = true
	sub.UpdatedAt = now
	return nil
}

func (db *DB) DeactivateByToken(ctx context.Context, token string) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE subscribers SET active = FALSE, updated_at = $1 WHERE token = $2`,
		time.Now().UTC(),
		token,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: deactivating by token: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	return n, nil
}

func (db *DB) GetByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	sub, err := scanSubscriber(db.conn.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1`, email,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("subscriber", email)
		}
		return nil, fmt.Errorf("postgres: getting subscriber %s: %w", email, err)
	}
	return sub, nil
}

func (db *DB) GetByToken(ctx context.Context, token string) (*model.Subscriber, error) {
	sub, err := scanSubscriber(db.conn.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE token = $1`, token,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("subscriber", "token")
		}
		return nil, fmt.Errorf("postgres: getting subscriber by token: %w", err)
	}
	return sub, nil
}

func (db *DB) ListActive(ctx context.Context, opts repository.ListOptions) ([]model.Subscriber, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+subscriberColumns+`
		 FROM subscribers
		 WHERE active
		 ORDER BY email
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing active subscribers: %w", err)
	}
	defer rows.Close()

	subs := make([]model.Subscriber, 0, limit)
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning subscriber row: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating subscribers: %w", err)
	}
	return subs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row scanner) (*model.Subscriber, error) {
	var s model.Subscriber
	if err := row.Scan(&s.ID, &s.Email, &s.Token, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
