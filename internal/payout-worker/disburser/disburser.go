package disburser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/engine"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/gateway"
	"github.com/gorbagame/trash-rounds-poc/pkg/contracts/events"
)

// ErrRetriesExhausted sinaliza que o orçamento de confirmação acabou; a
// aposta segue PENDING e o evento vai pra DLQ pra re-drive.
var ErrRetriesExhausted = errors.New("payout retries exhausted")

// Gateway é o subconjunto do gateway de transferência usado no pagamento.
type Gateway interface {
	SubmitTransfer(ctx context.Context, account string, amount int64) (string, error)
	QueryStatus(ctx context.Context, proof string) (gateway.TransferStatus, error)
}

// Ledger é o subconjunto do store usado pelo disbursement.
type Ledger interface {
	WagerByID(ctx context.Context, id string) (*engine.Wager, error)
	RecordPayoutSubmission(ctx context.Context, wagerID, proof, prev string) error
	ConfirmPayout(ctx context.Context, wagerID, proof string, amount int64) error
}

// Disburser paga cada aposta vencedora exatamente uma vez, tolerando falha
// transiente do gateway. A prova de cada submissão fica vinculada à aposta
// antes do poll: um re-drive retoma a transferência em voo em vez de emitir
// outra, nunca uma transferência nova e solta enquanto a anterior pode ter
// passado.
type Disburser struct {
	Log         *zap.Logger
	Ledger      Ledger
	Gateway     Gateway
	MaxAttempts int
	BackoffBase time.Duration

	// Sleep injetável nos testes; nil usa time.Sleep respeitando o ctx.
	Sleep func(ctx context.Context, d time.Duration) error

	// Callbacks de métricas (podem ser nil)
	OnPaid   func()
	OnFailed func()
}

// Process executa o pagamento de um evento payout_due. Retorna a prova da
// transferência confirmada; prova vazia com erro nil significa que a aposta
// já tinha saído de PENDING (pagamento duplicado evitado).
func (d *Disburser) Process(ctx context.Context, due events.PayoutDue) (string, error) {
	w, err := d.Ledger.WagerByID(ctx, due.WagerID)
	if err != nil {
		return "", fmt.Errorf("load wager: %w", err)
	}
	if w.Status != engine.WagerPending {
		// re-entrega ou re-drive de algo já liquidado
		d.Log.Info("wager not pending, skipping payout",
			zap.String("wager_id", w.ID), zap.String("status", string(w.Status)))
		return "", nil
	}

	proof := w.PayoutProof
	prev := ""

	for attempt := 0; attempt < d.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, d.BackoffBase<<uint(attempt-1)); err != nil {
				return "", err
			}
		}

		if proof == "" {
			p, err := d.Gateway.SubmitTransfer(ctx, due.Account, due.Amount)
			if err != nil {
				// nada foi enviado; tentar de novo é seguro
				d.Log.Warn("submit transfer", zap.String("wager_id", w.ID), zap.Error(err))
				continue
			}
			if err := d.Ledger.RecordPayoutSubmission(ctx, w.ID, p, prev); err != nil {
				if errors.Is(err, engine.ErrNotPending) {
					// outro worker assumiu ou já pagou
					return "", nil
				}
				return "", fmt.Errorf("record submission: %w", err)
			}
			proof = p
		}

		st, err := d.Gateway.QueryStatus(ctx, proof)
		if err != nil {
			d.Log.Warn("query transfer status", zap.String("proof", proof), zap.Error(err))
			continue
		}

		switch st {
		case gateway.StatusConfirmed:
			if err := d.Ledger.ConfirmPayout(ctx, w.ID, proof, due.Amount); err != nil {
				if errors.Is(err, engine.ErrNotPending) {
					return "", nil
				}
				return "", fmt.Errorf("confirm payout: %w", err)
			}
			if d.OnPaid != nil {
				d.OnPaid()
			}
			d.Log.Info("payout confirmed",
				zap.String("wager_id", w.ID),
				zap.String("account", due.Account),
				zap.Int64("amount", due.Amount),
				zap.String("proof", proof),
			)
			return proof, nil

		case gateway.StatusFailed:
			// a rede rejeitou: a transferência comprovadamente não passou,
			// então uma nova submissão encadeada à anterior é permitida
			d.Log.Warn("transfer failed, will resubmit",
				zap.String("wager_id", w.ID), zap.String("proof", proof))
			prev = proof
			proof = ""

		case gateway.StatusPending:
			// segue o poll
		}
	}

	if d.OnFailed != nil {
		d.OnFailed()
	}
	return "", fmt.Errorf("wager %s: %w", due.WagerID, ErrRetriesExhausted)
}

func (d *Disburser) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(dur):
		return nil
	}
}
