package lifecycle

import (
	"github.com/dalemusser/referralhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/referralhub/internal/app/system/normalize"
	"github.com/dalemusser/referralhub/internal/domain/models"
)

// SubmitInput is a new referral as entered by the referrer.
type SubmitInput struct {
	ReferrerName         string `json:"referrerName" validate:"required,max=200" label:"Referrer name"`
	ReferrerEmail        string `json:"referrerEmail" validate:"required,email,max=254" label:"Referrer email"`
	ReferrerPhone        string `json:"referrerPhone" validate:"required,max=50" label:"Referrer phone"`
	ReferrerRelationship string `json:"referrerRelationship" validate:"required,max=100" label:"Relationship"`
	StudentName          string `json:"studentName" validate:"required,max=200" label:"Student name"`
	StudentEmail         string `json:"studentEmail" validate:"required,email,max=254" label:"Student email"`
	StudentPhone         string `json:"studentPhone" validate:"required,max=50" label:"Student phone"`
	AdmissionDetails     string `json:"admissionDetails" validate:"required,max=2000" label:"Admission details"`
	ReferralDate         string `json:"referralDate" validate:"required,datetime=2006-01-02" label:"Referral date"`
	// ReferralStatus may be omitted; if present it must be "pending".
	ReferralStatus string `json:"referralStatus" label:"Referral status"`
}

func (in *SubmitInput) normalize() {
	in.ReferrerName = normalize.Name(htmlsanitize.PlainText(in.ReferrerName))
	in.ReferrerEmail = normalize.Email(in.ReferrerEmail)
	in.ReferrerPhone = normalize.Text(in.ReferrerPhone)
	in.ReferrerRelationship = normalize.Text(htmlsanitize.PlainText(in.ReferrerRelationship))
	in.StudentName = normalize.Name(htmlsanitize.PlainText(in.StudentName))
	in.StudentEmail = normalize.Email(in.StudentEmail)
	in.StudentPhone = normalize.Text(in.StudentPhone)
	in.AdmissionDetails = htmlsanitize.PlainText(in.AdmissionDetails)
	in.ReferralDate = normalize.Text(in.ReferralDate)
	in.ReferralStatus = normalize.Text(in.ReferralStatus)
}

// StudentDataInput is the registration form reached through the referral link.
type StudentDataInput struct {
	Title         string `json:"title" validate:"max=20" label:"Title"`
	FullName      string `json:"fullName" validate:"required,max=200" label:"Full name"`
	Address       string `json:"address" validate:"required,max=500" label:"Address"`
	Contact       string `json:"contact" validate:"required,max=100" label:"Contact"`
	Program       string `json:"program" validate:"required,max=200" label:"Program"`
	Session       string `json:"session" validate:"max=100" label:"Session"`
	Mode          string `json:"mode" validate:"max=100" label:"Mode"`
	DOB           string `json:"dob" validate:"omitempty,datetime=2006-01-02" label:"Date of birth"`
	Gender        string `json:"gender" validate:"max=50" label:"Gender"`
	Nationality   string `json:"nationality" validate:"max=100" label:"Nationality"`
	MaritalStatus string `json:"maritalStatus" validate:"max=50" label:"Marital status"`
}

func (in *StudentDataInput) normalize() {
	for _, f := range []*string{
		&in.Title, &in.Address, &in.Contact, &in.Program, &in.Session,
		&in.Mode, &in.DOB, &in.Gender, &in.Nationality, &in.MaritalStatus,
	} {
		*f = normalize.Text(htmlsanitize.PlainText(*f))
	}
	in.FullName = normalize.Name(htmlsanitize.PlainText(in.FullName))
}

func (in StudentDataInput) model() models.StudentData {
	return models.StudentData{
		Title:         in.Title,
		FullName:      in.FullName,
		Address:       in.Address,
		Contact:       in.Contact,
		Program:       in.Program,
		Session:       in.Session,
		Mode:          in.Mode,
		DOB:           in.DOB,
		Gender:        in.Gender,
		Nationality:   in.Nationality,
		MaritalStatus: in.MaritalStatus,
	}
}

// PaymentInput is a finance update for an admitted referral.
type PaymentInput struct {
	ReferralID         string `json:"referralId" validate:"required" label:"Referral ID"`
	PaymentStatus      string `json:"paymentStatus" validate:"required,paymentstatus" label:"Payment status"`
	PaymentDate        string `json:"paymentDate" validate:"required,datetime=2006-01-02" label:"Payment date"`
	PaymentMode        string `json:"paymentMode" validate:"required,paymentmode" label:"Payment mode"`
	TransactionDetails string `json:"transactionDetails" validate:"max=2000" label:"Transaction details"`
}

func (in *PaymentInput) normalize() {
	in.ReferralID = normalize.Text(in.ReferralID)
	in.PaymentStatus = normalize.Text(in.PaymentStatus)
	in.PaymentDate = normalize.Text(in.PaymentDate)
	in.PaymentMode = normalize.Text(in.PaymentMode)
	in.TransactionDetails = htmlsanitize.PlainText(in.TransactionDetails)
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Status        string
	ReferrerEmail string
}
