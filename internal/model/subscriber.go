// Package model defines the data structures shared by every layer of the service.
package model

import "time"

// Subscriber is the persisted record for one opted-in or opted-out email address.
//
// Email is the natural key: every store enforces it as UNIQUE, so repeated
// subscribes for the same address update one row instead of adding another.
//
// Token is a capability. Whoever holds it may deactivate the subscription;
// there is no further identity check. It only ever leaves the service inside
// the delivery feed, which puts it in the subscriber's own inbox.
type Subscriber struct {
	ID        string    `json:"id"        bson:"id"         db:"id"`
	Email     string    `json:"email"     bson:"email"      db:"email"`
	Token     string    `json:"-"         bson:"token"      db:"token"`
	Active    bool      `json:"active"    bson:"active"     db:"active"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at" db:"updated_at"`
}
