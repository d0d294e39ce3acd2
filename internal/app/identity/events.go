package identity

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventKind names an account event.
type EventKind string

const EventAccountCreated EventKind = "account_created"

// Event describes a committed account change.
type Event struct {
	Kind       EventKind
	UserID     primitive.ObjectID
	Email      string
	FullName   string
	AuthMethod string
	At         time.Time
}

// EventSink consumes account events. Errors are logged, never returned to
// the caller.
type EventSink interface {
	HandleAccountEvent(ctx context.Context, ev Event) error
}
