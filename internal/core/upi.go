package core

import (
	"net/url"
	"strings"
)

// UPILink builds a upi://pay deep link requesting a payment to the given
// virtual payment address. The core's responsibility ends at producing the
// string; the host environment decides what to do with it. Returns
// ErrMissingVPA when the category has no address configured.
func UPILink(vpa, payee string, amount Money, note string) (string, error) {
	if strings.TrimSpace(vpa) == "" {
		return "", ErrMissingVPA
	}
	var b strings.Builder
	b.WriteString("upi://pay?pa=")
	b.WriteString(vpa)
	b.WriteString("&pn=")
	b.WriteString(url.QueryEscape(payee))
	b.WriteString("&am=")
	b.WriteString(amount.String())
	b.WriteString("&cu=INR&tn=")
	b.WriteString(url.QueryEscape(note))
	return b.String(), nil
}

// EntryPaymentLink is the per-entry settlement link for the amount still owed.
func EntryPaymentLink(cat CategoryInfo, e Entry) (string, error) {
	name := e.Name
	if name == "" {
		name = "Expense"
	}
	return UPILink(cat.VPA, cat.Name, e.Remaining(), "Payment for "+name)
}
