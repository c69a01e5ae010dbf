package engine

import (
	"context"
	"time"
)

// Tipos dos eventos de broadcast entregues aos observadores conectados.
const (
	EventRoundStart    = "round_start"
	EventWagerAdmitted = "wager_admitted"
	EventRoundEnd      = "round_end"
)

// Broadcaster é o fan-out de eventos de rodada. A lógica de negócio só emite
// eventos de domínio; conexões individuais são problema do hub.
type Broadcaster interface {
	Broadcast(ctx context.Context, event any) error
}

type PerBinTotals struct {
	Trashcan    int64 `json:"trashcan"`
	Trapcan     int64 `json:"trapcan"`
	Ratdumpster int64 `json:"ratdumpster"`
}

type RoundStartEvent struct {
	Type         string       `json:"type"` // "round_start"
	RoundID      string       `json:"roundId"`
	Number       int64        `json:"number"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	PerBinTotals PerBinTotals `json:"perBinTotals"`
}

type WagerAdmittedEvent struct {
	Type    string `json:"type"` // "wager_admitted"
	WagerID string `json:"wagerId"`
	Bin     Bin    `json:"bin"`
	Amount  int64  `json:"amount"`
	Account string `json:"account"`
}

type RoundEndEvent struct {
	Type         string       `json:"type"` // "round_end"
	RoundID      string       `json:"roundId"`
	Number       int64        `json:"number"`
	WinningBin   Bin          `json:"winningBin"` // vazio quando encerrada sem vencedor
	PerBinTotals PerBinTotals `json:"perBinTotals"`
	TotalPot     int64        `json:"totalPot"`
	Multiplier   float64      `json:"multiplier"`
}

func totalsOf(r *Round) PerBinTotals {
	return PerBinTotals{
		Trashcan:    r.Totals[0],
		Trapcan:     r.Totals[1],
		Ratdumpster: r.Totals[2],
	}
}

// NewRoundStartEvent monta o payload de round_start; também é o formato do
// snapshot de replay entregue a observadores recém-conectados.
func NewRoundStartEvent(r *Round) RoundStartEvent {
	return RoundStartEvent{
		Type:         EventRoundStart,
		RoundID:      r.ID,
		Number:       r.Number,
		ExpiresAt:    r.ExpiresAt,
		PerBinTotals: totalsOf(r),
	}
}

func NewRoundEndEvent(r *Round, winning Bin, multiplier float64) RoundEndEvent {
	return RoundEndEvent{
		Type:         EventRoundEnd,
		RoundID:      r.ID,
		Number:       r.Number,
		WinningBin:   winning,
		PerBinTotals: totalsOf(r),
		TotalPot:     r.TotalPot,
		Multiplier:   multiplier,
	}
}
