package workflow

import (
	"math"
	"strconv"
	"strings"

	"github.com/abbakary/okpos/internal/apperr"
)

// parseAmount reads an operator-entered amount. In lenient mode it behaves
// like a form field: the longest numeric prefix is used and anything
// unparseable becomes 0, reported through coerced. Strict mode rejects
// input that is not a complete finite number. Blank input is 0 in both modes.
func parseAmount(field, raw string, strict bool) (value float64, coerced bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	if strict {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false, apperr.Validation(field, "must be a number")
		}
		return v, false, nil
	}

	prefix := numericPrefix(raw)
	if prefix == "" {
		return 0, true, nil
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, nil
	}
	return v, prefix != raw, nil
}

// numericPrefix returns the longest leading run of s that forms a decimal
// number: optional sign, digits, optional fraction and optional exponent.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			end = j
		}
	}
	return s[:end]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
