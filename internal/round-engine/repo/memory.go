package repo

import (
	"context"
	"sync"
	"time"

	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/engine"
)

// Memory implementa engine.Store em memória, com um único mutex fazendo o
// papel da transação do Postgres. Usado nos testes e em execução local sem
// banco.
type Memory struct {
	mu       sync.Mutex
	rounds   map[string]*engine.Round
	wagers   map[string]*engine.Wager
	accounts map[string]*engine.Account
	treasury []engine.TreasuryEntry
	byProof  map[string]string // transfer_proof -> wagerID (idempotência)
	order    []string          // ids de rodada em ordem de criação
}

func NewMemory() *Memory {
	return &Memory{
		rounds:   make(map[string]*engine.Round),
		wagers:   make(map[string]*engine.Wager),
		accounts: make(map[string]*engine.Account),
		byProof:  make(map[string]string),
	}
}

func cloneRound(r *engine.Round) *engine.Round { c := *r; return &c }
func cloneWager(w *engine.Wager) *engine.Wager { c := *w; return &c }

func (m *Memory) CreateRound(ctx context.Context, r *engine.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[r.ID] = cloneRound(r)
	m.order = append(m.order, r.ID)
	return nil
}

func (m *Memory) CurrentRound(ctx context.Context) (*engine.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if r := m.rounds[m.order[i]]; r.Status == engine.RoundActive {
			return cloneRound(r), nil
		}
	}
	return nil, engine.ErrRoundNotFound
}

func (m *Memory) LatestRound(ctx context.Context) (*engine.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		return nil, engine.ErrRoundNotFound
	}
	return cloneRound(m.rounds[m.order[len(m.order)-1]]), nil
}

func (m *Memory) RoundByID(ctx context.Context, id string) (*engine.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return nil, engine.ErrRoundNotFound
	}
	return cloneRound(r), nil
}

func (m *Memory) LastRoundNumber(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, r := range m.rounds {
		if r.Number > max {
			max = r.Number
		}
	}
	return max, nil
}

func (m *Memory) CloseStragglers(ctx context.Context, endedAt time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rounds {
		if r.Status == engine.RoundEnded {
			continue
		}
		r.Status = engine.RoundEnded
		r.EndedAt = endedAt
		n++
		for _, w := range m.wagers {
			if w.RoundID == r.ID && w.Status == engine.WagerPending {
				w.Status = engine.WagerVoid
			}
		}
	}
	return n, nil
}

func (m *Memory) FreezeRound(ctx context.Context, id string) (*engine.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok || r.Status != engine.RoundActive {
		return nil, engine.ErrRoundNotActive
	}
	r.Status = engine.RoundSettling
	return cloneRound(r), nil
}

func (m *Memory) EndRound(ctx context.Context, id string, winning engine.Bin, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok || r.Status != engine.RoundSettling || r.WinningBin != "" {
		return engine.ErrRoundNotFound
	}
	r.Status = engine.RoundEnded
	r.WinningBin = winning
	r.EndedAt = endedAt
	for _, w := range m.wagers {
		if w.RoundID == id && w.Status == engine.WagerPending && w.Bin != winning {
			w.Status = engine.WagerLost
		}
	}
	return nil
}

func (m *Memory) VoidRound(ctx context.Context, id string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return engine.ErrRoundNotFound
	}
	if r.Status != engine.RoundEnded {
		r.Status = engine.RoundEnded
		r.EndedAt = endedAt
	}
	for _, w := range m.wagers {
		if w.RoundID == id && w.Status == engine.WagerPending {
			w.Status = engine.WagerVoid
		}
	}
	return nil
}

func (m *Memory) AdmitWager(ctx context.Context, w *engine.Wager, entries []engine.TreasuryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, used := m.byProof[w.TransferProof]; used {
		return engine.ErrProofConsumed
	}

	var current *engine.Round
	for i := len(m.order) - 1; i >= 0; i-- {
		if r := m.rounds[m.order[i]]; r.Status == engine.RoundActive {
			current = r
			break
		}
	}
	if current == nil {
		return engine.ErrRoundNotActive
	}

	current.Totals[w.Bin.Index()] += w.Amount
	current.TotalPot += w.Amount

	w.RoundID = current.ID
	m.wagers[w.ID] = cloneWager(w)
	m.byProof[w.TransferProof] = w.ID
	m.treasury = append(m.treasury, entries...)

	a, ok := m.accounts[w.Account]
	if !ok {
		a = &engine.Account{ID: w.Account}
		m.accounts[w.Account] = a
	}
	a.TotalWagers++
	a.FavoriteBin = w.Bin

	return nil
}

func (m *Memory) WagerByID(ctx context.Context, id string) (*engine.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return nil, engine.ErrWagerNotFound
	}
	return cloneWager(w), nil
}

func (m *Memory) WagersByRound(ctx context.Context, roundID string) ([]engine.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.Wager
	for _, w := range m.wagers {
		if w.RoundID == roundID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *Memory) RecordPayoutSubmission(ctx context.Context, wagerID, proof, prev string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[wagerID]
	if !ok || w.Status != engine.WagerPending || w.PayoutProof != prev {
		return engine.ErrNotPending
	}
	w.PayoutProof = proof
	return nil
}

func (m *Memory) ConfirmPayout(ctx context.Context, wagerID, proof string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[wagerID]
	if !ok {
		return engine.ErrWagerNotFound
	}
	if w.Status != engine.WagerPending {
		return engine.ErrNotPending
	}
	w.Status = engine.WagerPaid
	m.treasury = append(m.treasury, engine.TreasuryEntry{
		ID:        wagerID + ":out",
		Proof:     proof,
		Amount:    amount,
		Direction: engine.DirectionOut,
		Account:   w.Account,
		CreatedAt: time.Now(),
	})
	a, ok := m.accounts[w.Account]
	if !ok {
		a = &engine.Account{ID: w.Account}
		m.accounts[w.Account] = a
	}
	a.TotalWins++
	return nil
}

func (m *Memory) AccountByID(ctx context.Context, id string) (*engine.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, engine.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

func (m *Memory) TreasuryEntries(ctx context.Context, limit int) ([]engine.TreasuryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// mais recentes primeiro
	var out []engine.TreasuryEntry
	for i := len(m.treasury) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.treasury[i])
	}
	return out, nil
}
