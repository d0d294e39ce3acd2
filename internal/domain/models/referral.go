// internal/domain/models/referral.go
package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferralStatus is the closed set of lifecycle states.
type ReferralStatus string

const (
	StatusPending    ReferralStatus = "pending"
	StatusInProgress ReferralStatus = "inProgress"
	StatusAdmitted   ReferralStatus = "admitted"
)

// ReferralStatuses lists the states in lifecycle order.
var ReferralStatuses = []ReferralStatus{StatusPending, StatusInProgress, StatusAdmitted}

// ParseReferralStatus maps the wire value to a status. Matching is exact.
func ParseReferralStatus(s string) (ReferralStatus, error) {
	for _, st := range ReferralStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown referral status %q", s)
}

// transitions holds the legal forward moves. admitted is terminal.
var transitions = map[ReferralStatus][]ReferralStatus{
	StatusPending:    {StatusInProgress, StatusAdmitted},
	StatusInProgress: {StatusAdmitted},
}

// CanTransition reports whether a referral in status from may move to to.
// A move to the same status is not a transition and returns false.
func CanTransition(from, to ReferralStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment statuses.
const (
	PaymentPaid   = "Paid"
	PaymentUnpaid = "Unpaid"
)

// Payment modes.
const (
	PaymentModeMobileMoney = "Mobile Money"
	PaymentModeCheque      = "Cheque"
	PaymentModeCash        = "Cash"
)

// PaymentStatuses and PaymentModes list the accepted values.
var (
	PaymentStatuses = []string{PaymentPaid, PaymentUnpaid}
	PaymentModes    = []string{PaymentModeMobileMoney, PaymentModeCheque, PaymentModeCash}
)

// Referral is a lead submitted by a referrer. ReferralID is the only
// identifier ever exposed; the storage _id stays internal.
type Referral struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ReferralID string             `bson:"referral_id" json:"referralId"`

	ReferrerName         string `bson:"referrer_name" json:"referrerName"`
	ReferrerEmail        string `bson:"referrer_email" json:"referrerEmail"`
	ReferrerPhone        string `bson:"referrer_phone" json:"referrerPhone"`
	ReferrerRelationship string `bson:"referrer_relationship" json:"referrerRelationship"`

	StudentName  string `bson:"student_name" json:"studentName"`
	StudentEmail string `bson:"student_email" json:"studentEmail"`
	StudentPhone string `bson:"student_phone" json:"studentPhone"`

	AdmissionDetails string         `bson:"admission_details" json:"admissionDetails"`
	ReferralDate     string         `bson:"referral_date" json:"referralDate"` // YYYY-MM-DD
	Status           ReferralStatus `bson:"referral_status" json:"referralStatus"`

	StudentData *StudentData `bson:"student_data,omitempty" json:"studentData,omitempty"`
	PaymentData *PaymentData `bson:"payment_data,omitempty" json:"paymentData,omitempty"`

	// Version increments by one on every successful mutation.
	Version int64 `bson:"version" json:"version"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// StudentData is the registration form completed by the referred student.
type StudentData struct {
	Title         string    `bson:"title,omitempty" json:"title"`
	FullName      string    `bson:"full_name" json:"fullName"`
	Address       string    `bson:"address" json:"address"`
	Contact       string    `bson:"contact" json:"contact"`
	Program       string    `bson:"program" json:"program"`
	Session       string    `bson:"session,omitempty" json:"session"`
	Mode          string    `bson:"mode,omitempty" json:"mode"`
	DOB           string    `bson:"dob,omitempty" json:"dob"`
	Gender        string    `bson:"gender,omitempty" json:"gender"`
	Nationality   string    `bson:"nationality,omitempty" json:"nationality"`
	MaritalStatus string    `bson:"marital_status,omitempty" json:"maritalStatus"`
	SubmittedAt   time.Time `bson:"submitted_at" json:"submittedAt"`
}

// SameAs reports whether d and o hold the same form answers. SubmittedAt is
// ignored.
func (d StudentData) SameAs(o StudentData) bool {
	d.SubmittedAt, o.SubmittedAt = time.Time{}, time.Time{}
	return d == o
}

// PaymentData is the finance record. PaymentKey is regenerated on every update.
type PaymentData struct {
	PaymentStatus      string    `bson:"payment_status" json:"paymentStatus"`
	PaymentDate        string    `bson:"payment_date" json:"paymentDate"`
	PaymentKey         string    `bson:"payment_key" json:"paymentKey"`
	PaymentMode        string    `bson:"payment_mode" json:"paymentMode"`
	TransactionDetails string    `bson:"transaction_details" json:"transactionDetails"`
	RecordedAt         time.Time `bson:"recorded_at" json:"recordedAt"`
}
