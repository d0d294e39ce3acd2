// Package notify stores user notifications and pushes them to open
// websocket connections. The Dispatcher also turns referral and account
// events into notifications.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/dalemusser/referralhub/internal/app/identity"
	"github.com/dalemusser/referralhub/internal/app/lifecycle"
	notificationstore "github.com/dalemusser/referralhub/internal/app/store/notifications"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/timeouts"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Pusher delivers a stored notification to live connections.
type Pusher interface {
	Publish(n models.Notification)
}

// Dispatcher owns the notification operations.
type Dispatcher struct {
	store  *notificationstore.Store
	pusher Pusher
	log    *zap.Logger
}

var (
	_ lifecycle.EventSink = (*Dispatcher)(nil)
	_ identity.EventSink  = (*Dispatcher)(nil)
)

// NewDispatcher builds a Dispatcher. pusher may be nil.
func NewDispatcher(store *notificationstore.Store, pusher Pusher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: store, pusher: pusher, log: logger}
}

// Notify stores a general notification for recipient and pushes it.
func (d *Dispatcher) Notify(ctx context.Context, recipient, title, message string) (models.Notification, error) {
	return d.send(ctx, models.Notification{
		RecipientEmail: recipient,
		Kind:           models.NotifyGeneral,
		Title:          title,
		Message:        message,
	})
}

func (d *Dispatcher) send(ctx context.Context, n models.Notification) (models.Notification, error) {
	n.RecipientEmail = strings.TrimSpace(n.RecipientEmail)
	if n.RecipientEmail == "" {
		return models.Notification{}, apperr.Validation("Recipient email is required.", nil)
	}
	if strings.TrimSpace(n.Title) == "" {
		return models.Notification{}, apperr.Validation("Title is required.", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	saved, err := d.store.Insert(ctx, n)
	if err != nil {
		return models.Notification{}, apperr.FromStore(err, "notification")
	}
	if d.pusher != nil {
		d.pusher.Publish(saved)
	}
	return saved, nil
}

// List returns recipient's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, recipient string) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	out, err := d.store.ListByRecipient(ctx, recipient, 0)
	if err != nil {
		return nil, apperr.FromStore(err, "notifications")
	}
	return out, nil
}

// MarkRead flags one of recipient's notifications as read. Another
// recipient's notification is reported as not found.
func (d *Dispatcher) MarkRead(ctx context.Context, id, recipient string) error {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return apperr.NotFound("notification not found")
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	return apperr.FromStore(d.store.MarkRead(ctx, oid, recipient), "notification")
}

// MarkAllRead flags every unread notification of recipient and returns the
// number updated.
func (d *Dispatcher) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	n, err := d.store.MarkAllRead(ctx, recipient)
	if err != nil {
		return 0, apperr.FromStore(err, "notifications")
	}
	return n, nil
}

// UnreadCount returns how many of recipient's notifications are unread.
func (d *Dispatcher) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	n, err := d.store.CountUnread(ctx, recipient)
	if err != nil {
		return 0, apperr.FromStore(err, "notifications")
	}
	return n, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Event handling                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleReferralEvent notifies the referrer about their referral.
func (d *Dispatcher) HandleReferralEvent(ctx context.Context, ev lifecycle.Event) error {
	n := models.Notification{RecipientEmail: ev.ReferrerEmail, ReferralID: ev.ReferralID}
	switch ev.Kind {
	case lifecycle.EventReferralSubmitted:
		n.Kind = models.NotifyReferralSubmitted
		n.Title = "Referral submitted"
		n.Message = fmt.Sprintf("Your referral of %s was received. Share the registration link with them to continue.", ev.StudentName)
	case lifecycle.EventStudentDataAttached:
		n.Kind = models.NotifyStudentRegistered
		n.Title = ev.StudentName + " completed registration"
		n.Message = fmt.Sprintf("%s submitted their registration details.", ev.StudentName)
	case lifecycle.EventStatusChanged:
		n.Kind = models.NotifyStatusChanged
		n.Title = "Referral status updated"
		n.Message = fmt.Sprintf("The referral of %s moved from %s to %s.", ev.StudentName, ev.From, ev.To)
	case lifecycle.EventPaymentRecorded:
		n.Kind = models.NotifyPaymentRecorded
		n.Title = "Payment recorded"
		n.Message = fmt.Sprintf("A payment with status %s was recorded for the referral of %s.", ev.PaymentStatus, ev.StudentName)
	default:
		return nil
	}

	if _, err := d.send(ctx, n); err != nil {
		return err
	}
	d.log.Debug("referral notification sent",
		zap.String("event", string(ev.Kind)),
		zap.String("referral_id", ev.ReferralID),
	)
	return nil
}

// HandleAccountEvent welcomes new accounts.
func (d *Dispatcher) HandleAccountEvent(ctx context.Context, ev identity.Event) error {
	if ev.Kind != identity.EventAccountCreated {
		return nil
	}
	_, err := d.send(ctx, models.Notification{
		RecipientEmail: ev.Email,
		Kind:           models.NotifyWelcome,
		Title:          "Welcome",
		Message:        fmt.Sprintf("Welcome to ReferralHub, %s.", ev.FullName),
	})
	return err
}
