package domain

import (
	"fmt"
	"strings"
)

// Validate checks the client-supplied totals for structural sanity. Amounts
// are trusted as provided and never re-derived from line items; only negative
// values are rejected.
func (t OrderTotals) Validate() error {
	for _, check := range []struct {
		name  string
		value int64
	}{
		{"itemsPrice", t.ItemsPrice},
		{"shippingPrice", t.ShippingPrice},
		{"discountPrice", t.DiscountPrice},
		{"totalPrice", t.TotalPrice},
	} {
		if check.value < 0 {
			return fmt.Errorf("%s must not be negative", check.name)
		}
	}
	return nil
}

// phoneDigits strips every non-digit rune from a phone number.
func phoneDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneMatches compares a stored phone number against a caller-supplied one,
// tolerating country-code prefixes by comparing the trailing ten digits when
// both sides are long enough.
func PhoneMatches(stored, supplied string) bool {
	a := phoneDigits(stored)
	b := phoneDigits(supplied)
	if a == "" || b == "" {
		return false
	}
	if len(a) >= 10 && len(b) >= 10 {
		return a[len(a)-10:] == b[len(b)-10:]
	}
	return a == b
}

// MaskPhone hides all but the last two digits of a phone number for public
// tracking responses.
func MaskPhone(value string) string {
	digits := phoneDigits(value)
	if digits == "" {
		return ""
	}
	if len(digits) <= 2 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-2) + digits[len(digits)-2:]
}
