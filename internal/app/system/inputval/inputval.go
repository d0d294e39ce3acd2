// Package inputval validates request structs with go-playground/validator
// and turns failures into readable, per-field messages.
//
// Struct fields declare rules with the `validate` tag and a display name with
// the `label` tag. The field key reported back to clients is the json name.
package inputval

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return models.IsValidRole(fl.Field().String())
		})
		_ = v.RegisterValidation("referralstatus", func(fl validator.FieldLevel) bool {
			_, err := models.ParseReferralStatus(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("paymentstatus", func(fl validator.FieldLevel) bool {
			return oneOf(fl.Field().String(), models.PaymentStatuses)
		})
		_ = v.RegisterValidation("paymentmode", func(fl validator.FieldLevel) bool {
			return oneOf(fl.Field().String(), models.PaymentModes)
		})
		_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return IsStrongPassword(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string // json name
	Message string
}

// Result collects the failures from one Validate call.
type Result struct {
	Errors []FieldError
}

func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Fields returns messages keyed by field. The first failure per field wins.
func (r *Result) Fields() map[string]string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, seen := out[e.Field]; !seen {
			out[e.Field] = e.Message
		}
	}
	return out
}

// Validate runs the struct rules on v (a struct or pointer to struct).
func Validate(v any) *Result {
	res := &Result{}
	err := instance().Struct(v)
	if err == nil {
		return res
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Errors = append(res.Errors, FieldError{Message: err.Error()})
		return res
	}
	labels := labelsFor(v)
	for _, fe := range verrs {
		label := labels[fe.StructField()]
		if label == "" {
			label = fe.Field()
		}
		res.Errors = append(res.Errors, FieldError{
			Field:   fe.Field(),
			Message: message(fe, label, labels),
		})
	}
	return res
}

// IsStrongPassword requires at least 8 characters with an upper-case
// letter, a lower-case letter, a digit and a symbol.
func IsStrongPassword(p string) bool {
	if len(p) < 8 {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, c := range p {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		case unicode.IsPunct(c) || unicode.IsSymbol(c):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

func message(fe validator.FieldError, label string, labels map[string]string) string {
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "email":
		return "A valid email address is required."
	case "max":
		return label + " must be at most " + fe.Param() + " characters."
	case "min":
		return label + " must be at least " + fe.Param() + " characters."
	case "eqfield":
		other := labels[fe.Param()]
		if other == "" {
			other = fe.Param()
		}
		return label + " must match " + other + "."
	case "datetime":
		return label + " must be a date in YYYY-MM-DD format."
	case "oneof":
		return label + " must be one of: " + fe.Param() + "."
	case "role":
		return label + " must be one of: " + strings.Join(models.Roles, ", ") + "."
	case "referralstatus":
		return label + " must be one of: pending, inProgress, admitted."
	case "paymentstatus":
		return label + " must be one of: " + strings.Join(models.PaymentStatuses, ", ") + "."
	case "paymentmode":
		return label + " must be one of: " + strings.Join(models.PaymentModes, ", ") + "."
	case "strongpassword":
		return label + " must be at least 8 characters and include upper-case, lower-case, digit and symbol characters."
	default:
		return label + " is invalid."
	}
}

// labelsFor maps Go field names to their label tags for the top-level struct.
func labelsFor(v any) map[string]string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if l := f.Tag.Get("label"); l != "" {
			out[f.Name] = l
		}
	}
	return out
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}
