package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gorbagame/trash-rounds-poc/pkg/contracts/events"
)

// TransferInfo é o resultado da verificação de uma prova de transferência
// contra o gateway externo.
type TransferInfo struct {
	Confirmed bool
	Amount    int64  // valor efetivamente movido pro destino
	To        string // conta de destino da transferência
}

// TransferVerifier consulta o gateway de transferência de valor.
type TransferVerifier interface {
	VerifyTransfer(ctx context.Context, proof string) (TransferInfo, error)
}

// EventPublisher publica os eventos de settlement no backbone (Kafka).
// PublishPayoutDueDLQ é o destino de reconciliação quando o tópico
// principal recusa o evento: a aposta segue PENDING no ledger e o pagamento
// fica visível pra re-drive.
type EventPublisher interface {
	PublishPayoutDue(ctx context.Context, e events.PayoutDue) error
	PublishPayoutDueDLQ(ctx context.Context, e events.PayoutDue) error
	PublishRoundSettled(ctx context.Context, e events.RoundSettled) error
}

// Options agrupa os parâmetros da rodada.
type Options struct {
	RoundDuration   time.Duration
	FeeBps          int64  // taxa do protocolo em basis points
	TreasuryAccount string // conta do pool custodial que recebe os stakes
}

// Engine é o dono do estado da rodada: abre, admite apostas, congela,
// liquida e dispara os pagamentos, emitindo cada transição no broadcast.
type Engine struct {
	log      *zap.Logger
	store    Store
	verifier TransferVerifier
	rule     OutcomeRule
	policy   PayoutPolicy
	bcast    Broadcaster
	publ     EventPublisher
	opts     Options

	// admitMu ordena as publicações de broadcast com os commits do ledger:
	// admissão publica sob o read lock, o congelamento toma o write lock.
	// Quando FreezeRound retorna, toda aposta comprometida já emitiu seu
	// wager_admitted, então o round_end nunca sai na frente.
	admitMu sync.RWMutex

	clock func() time.Time // injetável nos testes

	// Callbacks de métricas, ligados no main (podem ser nil)
	OnWagerAdmitted     func()
	OnRoundSettled      func()
	OnSettlementFailure func()
}

func New(log *zap.Logger, store Store, verifier TransferVerifier, rule OutcomeRule, policy PayoutPolicy, bcast Broadcaster, publ EventPublisher, opts Options) *Engine {
	if opts.RoundDuration <= 0 {
		opts.RoundDuration = 30 * time.Second
	}
	return &Engine{
		log:      log,
		store:    store,
		verifier: verifier,
		rule:     rule,
		policy:   policy,
		bcast:    bcast,
		publ:     publ,
		opts:     opts,
		clock:    time.Now,
	}
}

// Run dirige a cadência: abre a rodada, dorme até expirar, congela, liquida
// e abre a próxima. Falha de settlement nunca trava a agenda: a rodada é
// encerrada sem vencedor e a próxima abre em seguida.
func (e *Engine) Run(ctx context.Context) error {
	for {
		r, err := e.OpenRound(ctx)
		if err != nil {
			return fmt.Errorf("open round: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(r.ExpiresAt)):
		}

		if err := e.CloseRound(ctx, r.ID); err != nil {
			// alerta: rodada foi forçada a encerrar sem vencedor
			e.log.Error("settlement failed, round force-closed",
				zap.String("round_id", r.ID),
				zap.Int64("number", r.Number),
				zap.Error(err),
			)
		}
	}
}

// OpenRound força o fechamento de qualquer rodada deixada aberta (recuperação
// defensiva), aloca o próximo número e abre a rodada com expiração fixa.
func (e *Engine) OpenRound(ctx context.Context) (*Round, error) {
	now := e.clock()

	if n, err := e.store.CloseStragglers(ctx, now); err != nil {
		return nil, fmt.Errorf("close stragglers: %w", err)
	} else if n > 0 {
		e.log.Warn("stray open rounds force-closed", zap.Int("count", n))
	}

	last, err := e.store.LastRoundNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("last round number: %w", err)
	}

	r := &Round{
		ID:        uuid.NewString(),
		Number:    last + 1,
		Status:    RoundActive,
		OpenedAt:  now,
		ExpiresAt: now.Add(e.opts.RoundDuration),
	}
	if err := e.store.CreateRound(ctx, r); err != nil {
		return nil, fmt.Errorf("create round: %w", err)
	}

	if err := e.bcast.Broadcast(ctx, NewRoundStartEvent(r)); err != nil {
		e.log.Warn("broadcast round_start", zap.Error(err))
	}

	e.log.Info("round opened", zap.Int64("number", r.Number), zap.Time("expires_at", r.ExpiresAt))
	return r, nil
}

// CloseRound congela a admissão (barreira ACTIVE -> SETTLING) e liquida.
// Qualquer erro depois do congelamento cai no fail-safe: rodada encerrada
// sem vencedor, apostas pendentes anuladas.
func (e *Engine) CloseRound(ctx context.Context, roundID string) error {
	e.admitMu.Lock()
	frozen, err := e.store.FreezeRound(ctx, roundID)
	e.admitMu.Unlock()
	if err != nil {
		return fmt.Errorf("freeze round: %w", err)
	}

	if err := e.settle(ctx, frozen); err != nil {
		if e.OnSettlementFailure != nil {
			e.OnSettlementFailure()
		}
		if verr := e.store.VoidRound(ctx, roundID, e.clock()); verr != nil {
			e.log.Error("void round after settlement failure", zap.Error(verr))
		}
		if berr := e.bcast.Broadcast(ctx, NewRoundEndEvent(frozen, "", 0)); berr != nil {
			e.log.Warn("broadcast round_end", zap.Error(berr))
		}
		return fmt.Errorf("settle round %d: %w", frozen.Number, err)
	}
	return nil
}

// settle decide o resultado sobre os totais congelados e dispara um evento
// de pagamento por aposta vencedora. A gravação de ENDED + winning bin é o
// ponto a partir do qual a rodada é imutável pra fins de pagamento.
func (e *Engine) settle(ctx context.Context, r *Round) error {
	winning := e.rule.Pick(r.Totals)
	multiplier := e.policy.Multiplier(winning, r.Totals)

	wagers, err := e.store.WagersByRound(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("load wagers: %w", err)
	}

	endedAt := e.clock()
	if err := e.store.EndRound(ctx, r.ID, winning, endedAt); err != nil {
		return fmt.Errorf("end round: %w", err)
	}

	winners := 0
	for _, w := range wagers {
		if w.Bin != winning || w.Status != WagerPending {
			continue
		}
		winners++
		amount := int64(float64(w.Amount) * multiplier)
		if amount <= 0 {
			continue
		}
		due := events.PayoutDue{
			WagerID:  w.ID,
			RoundID:  r.ID,
			Account:  w.Account,
			Bin:      string(w.Bin),
			Stake:    w.Amount,
			Amount:   amount,
			Mult:     multiplier,
			TsUnixMs: endedAt.UnixMilli(),
		}
		if err := e.publ.PublishPayoutDue(ctx, due); err != nil {
			// aposta segue PENDING; o DLQ guarda o evento pra re-drive
			e.log.Error("publish payout_due", zap.String("wager_id", w.ID), zap.Error(err))
			if derr := e.publ.PublishPayoutDueDLQ(ctx, due); derr != nil {
				e.log.Error("publish payout_due dlq", zap.String("wager_id", w.ID), zap.Error(derr))
			}
		}
	}

	settled := events.RoundSettled{
		RoundID:     r.ID,
		Number:      r.Number,
		WinningBin:  string(winning),
		Trashcan:    r.Totals[0],
		Trapcan:     r.Totals[1],
		Ratdumpster: r.Totals[2],
		TotalPot:    r.TotalPot,
		Multiplier:  multiplier,
		Winners:     winners,
		EndedAt:     endedAt,
	}
	if err := e.publ.PublishRoundSettled(ctx, settled); err != nil {
		e.log.Warn("publish round_settled", zap.Error(err))
	}

	if err := e.bcast.Broadcast(ctx, NewRoundEndEvent(r, winning, multiplier)); err != nil {
		e.log.Warn("broadcast round_end", zap.Error(err))
	}

	if e.OnRoundSettled != nil {
		e.OnRoundSettled()
	}
	e.log.Info("round settled",
		zap.Int64("number", r.Number),
		zap.String("winning_bin", string(winning)),
		zap.Int64("total_pot", r.TotalPot),
		zap.Float64("multiplier", multiplier),
		zap.Int("winners", winners),
	)
	return nil
}
