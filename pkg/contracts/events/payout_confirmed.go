package events

import "time"

// Evento emitido pelo payout-worker após confirmar a transferência on-chain.
type PayoutConfirmed struct {
	WagerID string    `json:"wagerId"`
	RoundID string    `json:"roundId"`
	Account string    `json:"account"`
	Amount  int64     `json:"amount"`
	Status  string    `json:"status"` // "PAID" | "FAILED"
	Proof   string    `json:"proof,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Ts      time.Time `json:"ts"`
}
