package workflow

import (
	"errors"
	"testing"

	"github.com/abbakary/okpos/internal/apperr"
)

func TestParseAmountLenient(t *testing.T) {
	cases := []struct {
		raw     string
		want    float64
		coerced bool
	}{
		{"", 0, false},
		{"100000", 100000, false},
		{" 2500.50 ", 2500.5, false},
		{"-300", -300, false},
		{"1e3", 1000, false},
		{"12abc", 12, true},
		{"abc", 0, true},
		{"-", 0, true},
		{".5", 0.5, false},
		{"7.", 7, false},
		{"1,000", 1, true},
		{"NaN", 0, true},
	}
	for _, tt := range cases {
		got, coerced, err := parseAmount("total_amount", tt.raw, false)
		if err != nil {
			t.Fatalf("parseAmount(%q) returned error %v", tt.raw, err)
		}
		if got != tt.want || coerced != tt.coerced {
			t.Fatalf("parseAmount(%q)=%v,%v want %v,%v", tt.raw, got, coerced, tt.want, tt.coerced)
		}
	}
}

func TestParseAmountStrict(t *testing.T) {
	if v, _, err := parseAmount("tax_amount", "5000", true); err != nil || v != 5000 {
		t.Fatalf("expected 5000, got %v (%v)", v, err)
	}
	if v, _, err := parseAmount("tax_amount", "", true); err != nil || v != 0 {
		t.Fatalf("expected blank to be 0, got %v (%v)", v, err)
	}
	for _, raw := range []string{"12abc", "abc", "Inf", "NaN"} {
		_, _, err := parseAmount("tax_amount", raw, true)
		var verr *apperr.ValidationError
		if !errors.As(err, &verr) || verr.Field != "tax_amount" {
			t.Fatalf("parseAmount(%q): expected validation error, got %v", raw, err)
		}
	}
}
