package events

import "time"

// Evento publicado no tópico "round_settled" quando uma rodada encerra.
// Consumido por coletores de estatística; carrega o resultado completo.
type RoundSettled struct {
	RoundID     string    `json:"round_id"`
	Number      int64     `json:"number"`
	WinningBin  string    `json:"winning_bin"` // vazio quando a rodada foi forçada a encerrar sem vencedor
	Trashcan    int64     `json:"trashcan"`
	Trapcan     int64     `json:"trapcan"`
	Ratdumpster int64     `json:"ratdumpster"`
	TotalPot    int64     `json:"total_pot"`
	Multiplier  float64   `json:"multiplier"`
	Winners     int       `json:"winners"` // quantidade de apostas vencedoras
	EndedAt     time.Time `json:"ended_at"`
}
