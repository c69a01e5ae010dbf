package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/engine"
)

func activeRound(t *testing.T, m *Memory, id string, number int64) *engine.Round {
	t.Helper()
	r := &engine.Round{
		ID:        id,
		Number:    number,
		Status:    engine.RoundActive,
		OpenedAt:  time.Now(),
		ExpiresAt: time.Now().Add(30 * time.Second),
	}
	if err := m.CreateRound(context.Background(), r); err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	return r
}

func admit(t *testing.T, m *Memory, id, account string, bin engine.Bin, amount int64, proof string) *engine.Wager {
	t.Helper()
	w := &engine.Wager{
		ID:            id,
		Account:       account,
		Bin:           bin,
		Amount:        amount,
		TransferProof: proof,
		Status:        engine.WagerPending,
		AdmittedAt:    time.Now(),
	}
	if err := m.AdmitWager(context.Background(), w, []engine.TreasuryEntry{
		{ID: id + ":in", Proof: proof, Amount: amount, Direction: engine.DirectionIn, Account: account, CreatedAt: time.Now()},
	}); err != nil {
		t.Fatalf("AdmitWager(%s): %v", id, err)
	}
	return w
}

func TestMemoryAdmitBindsToActiveRound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	r := activeRound(t, m, "r1", 1)

	w := admit(t, m, "w1", "alice", engine.BinRatdumpster, 100, "p1")
	if w.RoundID != r.ID {
		t.Fatalf("RoundID = %q, want %q", w.RoundID, r.ID)
	}

	cur, err := m.CurrentRound(ctx)
	if err != nil {
		t.Fatalf("CurrentRound: %v", err)
	}
	if cur.Totals != [3]int64{0, 0, 100} || cur.TotalPot != 100 {
		t.Fatalf("totals = %v pot = %d", cur.Totals, cur.TotalPot)
	}

	a, err := m.AccountByID(ctx, "alice")
	if err != nil {
		t.Fatalf("AccountByID: %v", err)
	}
	if a.TotalWagers != 1 || a.FavoriteBin != engine.BinRatdumpster {
		t.Fatalf("account = %+v", a)
	}
}

func TestMemoryAdmitProofIdempotency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	activeRound(t, m, "r1", 1)
	admit(t, m, "w1", "alice", engine.BinTrashcan, 100, "p1")

	dup := &engine.Wager{ID: "w2", Account: "bob", Bin: engine.BinTrapcan, Amount: 50, TransferProof: "p1", Status: engine.WagerPending}
	if err := m.AdmitWager(ctx, dup, nil); !errors.Is(err, engine.ErrProofConsumed) {
		t.Fatalf("err = %v, want ErrProofConsumed", err)
	}
}

func TestMemoryAdmitRequiresActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	w := &engine.Wager{ID: "w1", Account: "alice", Bin: engine.BinTrashcan, Amount: 100, TransferProof: "p1", Status: engine.WagerPending}
	if err := m.AdmitWager(ctx, w, nil); !errors.Is(err, engine.ErrRoundNotActive) {
		t.Fatalf("no round: err = %v, want ErrRoundNotActive", err)
	}

	r := activeRound(t, m, "r1", 1)
	if _, err := m.FreezeRound(ctx, r.ID); err != nil {
		t.Fatalf("FreezeRound: %v", err)
	}
	if err := m.AdmitWager(ctx, w, nil); !errors.Is(err, engine.ErrRoundNotActive) {
		t.Fatalf("frozen round: err = %v, want ErrRoundNotActive", err)
	}
}

func TestMemoryFreezeTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	r := activeRound(t, m, "r1", 1)
	admit(t, m, "w1", "alice", engine.BinTrashcan, 100, "p1")

	frozen, err := m.FreezeRound(ctx, r.ID)
	if err != nil {
		t.Fatalf("FreezeRound: %v", err)
	}
	if frozen.Status != engine.RoundSettling || frozen.TotalPot != 100 {
		t.Fatalf("frozen = %+v", frozen)
	}

	// congelar duas vezes não pode
	if _, err := m.FreezeRound(ctx, r.ID); !errors.Is(err, engine.ErrRoundNotActive) {
		t.Fatalf("second freeze err = %v, want ErrRoundNotActive", err)
	}
}

func TestMemoryEndRoundMarksLosers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	r := activeRound(t, m, "r1", 1)
	win := admit(t, m, "w1", "alice", engine.BinTrapcan, 100, "p1")
	lose := admit(t, m, "w2", "bob", engine.BinTrashcan, 50, "p2")

	if _, err := m.FreezeRound(ctx, r.ID); err != nil {
		t.Fatalf("FreezeRound: %v", err)
	}
	if err := m.EndRound(ctx, r.ID, engine.BinTrapcan, time.Now()); err != nil {
		t.Fatalf("EndRound: %v", err)
	}

	if got, _ := m.WagerByID(ctx, win.ID); got.Status != engine.WagerPending {
		t.Fatalf("winner = %v, want PENDING", got.Status)
	}
	if got, _ := m.WagerByID(ctx, lose.ID); got.Status != engine.WagerLost {
		t.Fatalf("loser = %v, want LOST", got.Status)
	}

	// vencedor gravado é imutável
	if err := m.EndRound(ctx, r.ID, engine.BinTrashcan, time.Now()); err == nil {
		t.Fatal("second EndRound must not overwrite the winner")
	}
	ended, _ := m.RoundByID(ctx, r.ID)
	if ended.WinningBin != engine.BinTrapcan {
		t.Fatalf("winning bin = %v, want trapcan", ended.WinningBin)
	}
}

func TestMemoryCloseStragglersVoidsPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	activeRound(t, m, "r1", 1)
	w := admit(t, m, "w1", "alice", engine.BinTrashcan, 100, "p1")

	n, err := m.CloseStragglers(ctx, time.Now())
	if err != nil {
		t.Fatalf("CloseStragglers: %v", err)
	}
	if n != 1 {
		t.Fatalf("closed = %d, want 1", n)
	}
	if got, _ := m.WagerByID(ctx, w.ID); got.Status != engine.WagerVoid {
		t.Fatalf("wager = %v, want VOID", got.Status)
	}
}

func TestMemoryPayoutSubmissionChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	activeRound(t, m, "r1", 1)
	w := admit(t, m, "w1", "alice", engine.BinTrashcan, 100, "p1")

	if err := m.RecordPayoutSubmission(ctx, w.ID, "out1", ""); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	// nova submissão sem encadear na anterior é rejeitada
	if err := m.RecordPayoutSubmission(ctx, w.ID, "out2", ""); !errors.Is(err, engine.ErrNotPending) {
		t.Fatalf("unchained submission err = %v, want ErrNotPending", err)
	}
	// encadeada na prova anterior, passa
	if err := m.RecordPayoutSubmission(ctx, w.ID, "out2", "out1"); err != nil {
		t.Fatalf("chained submission: %v", err)
	}
}

func TestMemoryConfirmPayoutOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	activeRound(t, m, "r1", 1)
	w := admit(t, m, "w1", "alice", engine.BinTrashcan, 100, "p1")

	if err := m.ConfirmPayout(ctx, w.ID, "out1", 150); err != nil {
		t.Fatalf("ConfirmPayout: %v", err)
	}
	if err := m.ConfirmPayout(ctx, w.ID, "out1", 150); !errors.Is(err, engine.ErrNotPending) {
		t.Fatalf("replay err = %v, want ErrNotPending", err)
	}

	got, _ := m.WagerByID(ctx, w.ID)
	if got.Status != engine.WagerPaid {
		t.Fatalf("status = %v, want PAID", got.Status)
	}
	a, _ := m.AccountByID(ctx, "alice")
	if a.TotalWins != 1 {
		t.Fatalf("wins = %d, want 1", a.TotalWins)
	}

	// entrada OUT registrada na tesouraria
	entries, _ := m.TreasuryEntries(ctx, 10)
	var out bool
	for _, e := range entries {
		if e.Direction == engine.DirectionOut && e.Amount == 150 {
			out = true
		}
	}
	if !out {
		t.Fatal("missing OUT treasury entry")
	}
}

func TestMemoryTreasuryEntriesNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	activeRound(t, m, "r1", 1)
	admit(t, m, "w1", "alice", engine.BinTrashcan, 100, "p1")
	admit(t, m, "w2", "bob", engine.BinTrapcan, 200, "p2")

	entries, err := m.TreasuryEntries(ctx, 1)
	if err != nil {
		t.Fatalf("TreasuryEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (limit)", len(entries))
	}
	if entries[0].Proof != "p2" {
		t.Fatalf("newest entry proof = %q, want p2", entries[0].Proof)
	}
}
