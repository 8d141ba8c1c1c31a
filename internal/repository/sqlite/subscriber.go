package sqlite

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

// compile-time check that *DB implements repository.SubscriberRepository
var _ repository.SubscriberRepository = (*DB)(nil)

const subscriberColumns = `id, email, token, active, created_at, updated_at`

// Upsert inserts a subscriber or reactivates the existing row for the same email.
//
// ON CONFLICT(email) DO UPDATE keeps the row (and so its id and created_at)
// but overwrites token, active and updated_at. The freshly generated xid is
// only used when no row exists yet. The read-back runs in the same
// transaction so sub reflects exactly what was committed.
func (db *DB) Upsert(ctx context.Context, sub *model.Subscriber) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning upsert of %s: %w", sub.Email, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscribers (id, email, token, active, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
			token      = excluded.token,
			active     = 1,
			updated_at = excluded.updated_at`,
		xid.New().String(),
		sub.Email,
		sub.Token,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting subscriber %s: %w", sub.Email, err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM subscribers WHERE email = ?`, sub.Email,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: reading back subscriber %s: %w", sub.Email, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing upsert of %s: %w", sub.Email, err)
	}

	sub.Active = true
	sub.UpdatedAt = now
	return nil
}

// DeactivateByToken flips active to false for rows holding token.
// Rows already inactive still count as matched, so a repeat call reports the same result.
func (db *DB) DeactivateByToken(ctx context.Context, token string) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE subscribers SET active = 0, updated_at = ? WHERE token = ?`,
		time.Now().UTC(),
		token,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deactivating by token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// GetByEmail returns apperror.ErrNotFound if no row has that email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	sub, err := scanSubscriber(db.conn.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = ?`, email,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("subscriber", email)
		}
		return nil, fmt.Errorf("sqlite: getting subscriber %s: %w", email, err)
	}
	return sub, nil
}

// GetByToken returns apperror.ErrNotFound if no row holds token.
// The token itself is never put into error messages.
func (db *DB) GetByToken(ctx context.Context, token string) (*model.Subscriber, error) {
	sub, err := scanSubscriber(db.conn.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE token = ?`, token,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("subscriber", "token")
		}
		return nil, fmt.Errorf("sqlite: getting subscriber by token: %w", err)
	}
	return sub, nil
}

// ListActive pages through active subscribers ordered by email.
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
		 WHERE active = 1
		 ORDER BY email
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing active subscribers: %w", err)
	}
	defer rows.Close()

	subs := make([]model.Subscriber, 0, limit)
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning subscriber row: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating subscribers: %w", err)
	}

	return subs, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row scanner) (*model.Subscriber, error) {
	var s model.Subscriber
	if err := row.Scan(
		&s.ID,
		&s.Email,
		&s.Token,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
