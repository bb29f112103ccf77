package invoice

import "factura.org/internal/fault"

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusVoid, StatusPaymentPending:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions. Paid additionally locks
// financial fields even though receipts may still be generated for it.
func terminal(s Status) bool {
	return s == StatusVoid
}

// allowedTransitions encodes the lifecycle: draft is only ever an initial
// state, void is terminal, paid is reached through payment confirmation.
var allowedTransitions = map[Status][]Status{
	StatusDraft:          {StatusSent, StatusPaymentPending, StatusVoid},
	StatusSent:           {StatusOverdue, StatusPaymentPending, StatusVoid},
	StatusOverdue:        {StatusPaymentPending, StatusVoid},
	StatusPaymentPending: {StatusPaid, StatusVoid},
	StatusPaid:           {},
	StatusVoid:           {},
}

// CheckTransition validates a requested status change. A same-state request
// is accepted as an idempotent no-op; the caller must not re-apply
// transition timestamps for it.
func CheckTransition(from, to Status) error {
	if !ValidStatus(to) {
		return fault.Newf(fault.InvalidArgument, "unknown status %q", to).WithFields(map[string]string{
			"status": "must be one of draft, sent, paid, overdue, void, payment_pending",
		})
	}
	if from == to {
		return nil
	}
	if to == StatusDraft {
		return fault.New(fault.FailedPrecondition, "draft is the initial state and cannot be re-entered")
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fault.Newf(fault.FailedPrecondition, "invoice cannot move from %s to %s", from, to)
}
