package auth_test

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/referralhub/internal/app/system/auth"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti, err := auth.NewTokenIssuer("secret", "referralhub", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	raw, exp, err := ti.Issue("user-1", "sess-1", "Admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v is not in the future", exp)
	}

	claims, err := ti.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.SessionID != "sess-1" || claims.Role != "Admin" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestTokenIssuer_RejectsWrongSecret(t *testing.T) {
	a, _ := auth.NewTokenIssuer("secret-a", "referralhub", time.Hour)
	b, _ := auth.NewTokenIssuer("secret-b", "referralhub", time.Hour)

	raw, _, err := a.Issue("u", "s", "Student")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Parse(raw); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuer_RejectsGarbage(t *testing.T) {
	ti, _ := auth.NewTokenIssuer("secret", "", time.Hour)
	if _, err := ti.Parse("not.a.token"); err == nil {
		t.Error("expected error")
	}
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	if _, err := auth.NewTokenIssuer("", "x", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := auth.NewTokenIssuer("s", "x", 0); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc.def", "abc.def"},
		{"bearer abc", "abc"},
		{"Basic Zm9v", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := auth.ExtractBearerToken(r); got != tt.want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
