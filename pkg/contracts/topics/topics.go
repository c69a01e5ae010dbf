package topics

const (
	// Rounds
	RoundSettled = "round_settled"

	// Payouts
	PayoutDue       = "payout_due"
	PayoutConfirmed = "payout_confirmed"

	// DLQs
	PayoutDueDLQ = "payout_due_dlq"
)
