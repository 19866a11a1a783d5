package core

// DeriveStatus decides an entry's status from its amounts. It is the single
// source of truth: stored status is a cached copy of this result and every
// mutation path must recompute it here, never trust a caller-supplied value.
//
// A zero-amount entry derives PAID; creation boundaries reject zero amounts
// so the case only arises on already-persisted data.
func DeriveStatus(amount, paid Money) Status {
	switch {
	case paid.Cents >= amount.Cents:
		return StatusPaid
	case paid.Cents <= 0:
		return StatusUnpaid
	default:
		return StatusPartial
	}
}

// MarkFullyPaid settles the entry in one step. Calling it on an already paid
// entry is a no-op yielding the same value.
func MarkFullyPaid(e Entry) Entry {
	e.PaidAmount = e.Amount
	e.Status = StatusPaid
	return e
}

// ApplyPartialPayment records a payment against the entry and returns the new
// entry value. Overpayment is clamped to the total, never recorded as a
// credit: paidAmount can never exceed amount. A non-positive payment is
// rejected with ErrInvalidAmount and the entry is returned unchanged.
func ApplyPartialPayment(e Entry, payment Money) (Entry, error) {
	if payment.Cents <= 0 {
		return e, ErrInvalidAmount
	}
	newPaid := e.PaidAmount.Cents + payment.Cents
	if newPaid > e.Amount.Cents {
		newPaid = e.Amount.Cents
	}
	e.PaidAmount = Money{Cents: newPaid}
	e.Status = DeriveStatus(e.Amount, e.PaidAmount)
	return e, nil
}
