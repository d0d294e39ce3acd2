// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification kinds.
const (
	NotifyWelcome           = "welcome"
	NotifyReferralSubmitted = "referral_submitted"
	NotifyStudentRegistered = "student_registered"
	NotifyStatusChanged     = "status_changed"
	NotifyPaymentRecorded   = "payment_recorded"
	NotifyGeneral           = "general"
)

// Notification is addressed to a recipient by email.
type Notification struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecipientEmail string             `bson:"recipient_email" json:"recipientEmail"`
	Kind           string             `bson:"kind" json:"kind"`
	Title          string             `bson:"title" json:"title"`
	Message        string             `bson:"message" json:"message"`
	ReferralID     string             `bson:"referral_id,omitempty" json:"referralId,omitempty"`
	IsRead         bool               `bson:"is_read" json:"isRead"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
}
