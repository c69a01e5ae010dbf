package events

// Evento por aposta vencedora, publicado pelo round-engine após o settlement.
// A chave de deduplicação do pagamento é o WagerID.
type PayoutDue struct {
	WagerID  string  `json:"wager_id"`
	RoundID  string  `json:"round_id"`
	Account  string  `json:"account"`
	Bin      string  `json:"bin"`
	Stake    int64   `json:"stake"`
	Amount   int64   `json:"amount"` // stake * multiplier, já em unidades base
	TsUnixMs int64   `json:"ts_unix_ms"`
	Mult     float64 `json:"multiplier"`
}
