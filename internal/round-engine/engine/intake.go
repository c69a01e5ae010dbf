package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxWagerAmount limita o stake pra que amount * FeeBps nunca estoure int64.
const maxWagerAmount = math.MaxInt64 / 10000

// PlaceWager valida e admite uma aposta na rodada aberta. A movimentação de
// fundos acontece antes: a prova de transferência precisa estar confirmada
// no gateway, cobrir o valor líquido pro pool custodial e não ter sido
// consumida por aposta anterior.
//
// Uma aposta que falha na verificação não altera total nenhum; uma aposta
// correndo contra o congelamento da rodada é rejeitada com ErrRoundNotActive
// pela própria transação de admissão.
func (e *Engine) PlaceWager(ctx context.Context, account string, bin Bin, amount int64, transferProof string) (*Wager, error) {
	if account == "" || transferProof == "" || !bin.Valid() || amount <= 0 || amount > maxWagerAmount {
		return nil, ErrInvalidWagerInput
	}

	// Checagem barata antes de bater no gateway; a garantia real é da
	// transação de admissão.
	if _, err := e.store.CurrentRound(ctx); err != nil {
		return nil, ErrRoundNotActive
	}

	fee := amount * e.opts.FeeBps / 10000
	net := amount - fee

	info, err := e.verifier.VerifyTransfer(ctx, transferProof)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferUnverified, err)
	}
	if !info.Confirmed || info.To != e.opts.TreasuryAccount || info.Amount < net {
		return nil, ErrTransferUnverified
	}

	now := e.clock()
	w := &Wager{
		ID:            uuid.NewString(),
		Account:       account,
		Bin:           bin,
		Amount:        amount,
		TransferProof: transferProof,
		Status:        WagerPending,
		AdmittedAt:    now,
	}

	entries := []TreasuryEntry{
		{ID: uuid.NewString(), Proof: transferProof, Amount: net, Direction: DirectionIn, Account: account, CreatedAt: now},
	}
	if fee > 0 {
		entries = append(entries, TreasuryEntry{
			ID: uuid.NewString(), Proof: transferProof, Amount: fee, Direction: DirectionFee, Account: account, CreatedAt: now,
		})
	}

	// commit e publicação sob o read lock compartilhado com o congelamento:
	// uma aposta que entrou no pote congelado publica antes do round_end.
	e.admitMu.RLock()
	err = e.store.AdmitWager(ctx, w, entries)
	if err == nil {
		if berr := e.bcast.Broadcast(ctx, WagerAdmittedEvent{
			Type:    EventWagerAdmitted,
			WagerID: w.ID,
			Bin:     w.Bin,
			Amount:  w.Amount,
			Account: w.Account,
		}); berr != nil {
			e.log.Warn("broadcast wager_admitted", zap.Error(berr))
		}
	}
	e.admitMu.RUnlock()
	if err != nil {
		return nil, err
	}

	if e.OnWagerAdmitted != nil {
		e.OnWagerAdmitted()
	}
	return w, nil
}
