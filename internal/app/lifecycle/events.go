package lifecycle

import (
	"context"
	"time"

	"github.com/dalemusser/referralhub/internal/domain/models"
)

// EventKind names a referral domain event.
type EventKind string

const (
	EventReferralSubmitted   EventKind = "referral_submitted"
	EventStudentDataAttached EventKind = "student_data_attached"
	EventStatusChanged       EventKind = "status_changed"
	EventPaymentRecorded     EventKind = "payment_recorded"
)

// Event describes a committed referral mutation. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind          EventKind
	ReferralID    string
	ReferrerEmail string
	StudentName   string
	From          models.ReferralStatus
	To            models.ReferralStatus
	PaymentStatus string
	Version       int64
	At            time.Time
}

// EventSink consumes referral events. Errors are logged by the service and
// never fail the operation that produced the event.
type EventSink interface {
	HandleReferralEvent(ctx context.Context, ev Event) error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) HandleReferralEvent(context.Context, Event) error { return nil }
