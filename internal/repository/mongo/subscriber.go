package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/menu-subscriptions/internal/apperror"
	"github.com/sakif/menu-subscriptions/internal/model"
	"github.com/sakif/menu-subscriptions/internal/repository"
)

var _ repository.SubscriberRepository = (*Store)(nil)

// Upsert uses $set for the fields a re-subscribe overwrites and $setOnInsert
// for the ones only a first subscribe may write. FindOneAndUpdate returns the
// resulting document, so the caller sees the preserved id and created_at.
func (s *Store) Upsert(ctx context.Context, sub *model.Subscriber) error {
	now := time.Now().UTC().Truncate(time.Millisecond)

	filter := bson.M{"email": sub.Email}
	update := bson.M{
		"$set": bson.M{
			"token":      sub.Token,
			"active":     true,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"id":         xid.New().String(),
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored model.Subscriber
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return fmt.Errorf("mongo: upserting subscriber %s: %w", sub.Email, err)
	}

	sub.ID = stored.ID
	sub.CreatedAt = stored.CreatedAt
	sub.UpdatedAt = stored.UpdatedAt
	sub.Active = true
	return nil
}

func (s *Store) DeactivateByToken(ctx context.Context, token string) (int64, error) {
	res, err := s.collection.UpdateMany(ctx,
		bson.M{"token": token},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("mongo: deactivating by token: %w", err)
	}
	return res.MatchedCount, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("subscriber", email)
		}
		return nil, fmt.Errorf("mongo: getting subscriber %s: %w", email, err)
	}
	return &sub, nil
}

func (s *Store) GetByToken(ctx context.Context, token string) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.collection.FindOne(ctx, bson.M{"token": token}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("subscriber", "token")
		}
		return nil, fmt.Errorf("mongo: getting subscriber by token: %w", err)
	}
	return &sub, nil
}

func (s *Store) ListActive(ctx context.Context, opts repository.ListOptions) ([]model.Subscriber, error) {
	limit := int64(opts.Limit)
	if limit <= 0 {
		limit = 100
	}
	offset := int64(opts.Offset)
	if offset < 0 {
		offset = 0
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "email", Value: 1}}).
		SetSkip(offset).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, bson.M{"active": true}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing active subscribers: %w", err)
	}
	defer cursor.Close(ctx)

	subs := make([]model.Subscriber, 0, limit)
	for cursor.Next(ctx) {
		var sub model.Subscriber
		if err := cursor.Decode(&sub); err != nil {
			return nil, fmt.Errorf("mongo: decoding subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterating subscribers: %w", err)
	}
	return subs, nil
}
