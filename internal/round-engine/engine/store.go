package engine

import (
	"context"
	"time"
)

// Store é o ledger durável de rodadas, apostas, contas e movimentações.
// Implementado por repo.Postgres (produção) e repo.Memory (testes/local).
//
// Contrato de concorrência: AdmitWager e FreezeRound são mutuamente
// exclusivos sobre o status da rodada: uma admissão só comita se a rodada
// ainda estiver ACTIVE no instante do commit (incremento transacional
// condicionado ao status, nunca read-then-write separado).
type Store interface {
	// Rodadas
	CreateRound(ctx context.Context, r *Round) error
	CurrentRound(ctx context.Context) (*Round, error) // rodada ACTIVE mais recente
	LatestRound(ctx context.Context) (*Round, error)  // mais recente em qualquer status (snapshot de reconexão)
	RoundByID(ctx context.Context, id string) (*Round, error)
	LastRoundNumber(ctx context.Context) (int64, error)
	// CloseStragglers força ENDED em rodadas deixadas ACTIVE/SETTLING por um
	// processo anterior. Retorna quantas foram fechadas.
	CloseStragglers(ctx context.Context, endedAt time.Time) (int, error)
	// FreezeRound faz a transição ACTIVE -> SETTLING e retorna a rodada com
	// os totais congelados. ErrRoundNotActive se a transição não couber.
	FreezeRound(ctx context.Context, id string) (*Round, error)
	// EndRound grava o bin vencedor, marca a rodada ENDED e as apostas
	// perdedoras LOST. As vencedoras permanecem PENDING até o disbursement.
	EndRound(ctx context.Context, id string, winning Bin, endedAt time.Time) error
	// VoidRound encerra sem vencedor (fail-safe de settlement); apostas
	// PENDING viram VOID.
	VoidRound(ctx context.Context, id string, endedAt time.Time) error

	// Apostas
	// AdmitWager vincula a aposta à rodada ACTIVE corrente (preenche
	// w.RoundID), incrementa o total do bin e o pote, grava as entradas de
	// tesouraria e atualiza o resumo da conta, tudo na mesma transação.
	// ErrRoundNotActive quando não há rodada aberta ou ela já congelou;
	// ErrProofConsumed quando a prova de transferência já foi usada.
	AdmitWager(ctx context.Context, w *Wager, entries []TreasuryEntry) error
	WagerByID(ctx context.Context, id string) (*Wager, error)
	WagersByRound(ctx context.Context, roundID string) ([]Wager, error)

	// Disbursement
	// RecordPayoutSubmission vincula a prova da transferência de pagamento à
	// aposta antes do poll de confirmação. prev é a prova anterior quando a
	// transferência anterior falhou definitivamente ("" na primeira).
	// ErrNotPending quando a aposta já saiu de PENDING ou outra prova está
	// em voo.
	RecordPayoutSubmission(ctx context.Context, wagerID, proof, prev string) error
	// ConfirmPayout é o compare-and-set PENDING -> PAID; na mesma transação
	// grava a entrada OUT e incrementa o contador de vitórias da conta.
	// ErrNotPending em replays; nunca paga duas vezes.
	ConfirmPayout(ctx context.Context, wagerID, proof string, amount int64) error

	// Leitura
	AccountByID(ctx context.Context, id string) (*Account, error)
	TreasuryEntries(ctx context.Context, limit int) ([]TreasuryEntry, error)
}
