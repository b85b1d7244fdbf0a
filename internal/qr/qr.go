// Package qr builds the UPI intent payload encoded into the booking-fee QR
// code. Rendering the payload as an image is the storefront's concern.
package qr

import (
	"fmt"
	"net/url"
	"strings"
)

type Payment struct {
	PayeeVPA  string
	PayeeName string
	Amount    int64
	Currency  string
	Note      string
}

// Payload returns a upi://pay intent URI, or an empty string when no payee
// is configured.
func Payload(p Payment) string {
	vpa := strings.TrimSpace(p.PayeeVPA)
	if vpa == "" {
		return ""
	}

	q := url.Values{}
	q.Set("pa", vpa)
	if name := strings.TrimSpace(p.PayeeName); name != "" {
		q.Set("pn", name)
	}
	if p.Amount > 0 {
		q.Set("am", fmt.Sprintf("%d", p.Amount))
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "INR"
	}
	q.Set("cu", currency)
	if note := strings.TrimSpace(p.Note); note != "" {
		q.Set("tn", note)
	}

	return "upi://pay?" + q.Encode()
}
