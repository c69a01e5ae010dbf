package engine_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/engine"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/repo"
	"github.com/gorbagame/trash-rounds-poc/pkg/contracts/events"
)

// fakeVerifier devolve a resposta cadastrada por prova; prova desconhecida
// vem confirmada pro destino default.
type fakeVerifier struct {
	treasury string
	byProof  map[string]engine.TransferInfo
}

func (f *fakeVerifier) VerifyTransfer(ctx context.Context, proof string) (engine.TransferInfo, error) {
	if info, ok := f.byProof[proof]; ok {
		return info, nil
	}
	return engine.TransferInfo{Confirmed: true, Amount: 1 << 40, To: f.treasury}, nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []any
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeBroadcaster) all() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.events))
	copy(out, f.events)
	return out
}

type fakePublisher struct {
	mu      sync.Mutex
	failDue bool
	due     []events.PayoutDue
	dlq     []events.PayoutDue
	settled []events.RoundSettled
}

func (f *fakePublisher) PublishPayoutDue(ctx context.Context, e events.PayoutDue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDue {
		return errors.New("broker unavailable")
	}
	f.due = append(f.due, e)
	return nil
}

func (f *fakePublisher) PublishPayoutDueDLQ(ctx context.Context, e events.PayoutDue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dlq = append(f.dlq, e)
	return nil
}

func (f *fakePublisher) PublishRoundSettled(ctx context.Context, e events.RoundSettled) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled = append(f.settled, e)
	return nil
}

const treasury = "TREASURY_TEST"

func newTestEngine(t *testing.T, store engine.Store, rule engine.OutcomeRule, policy engine.PayoutPolicy) (*engine.Engine, *fakeBroadcaster, *fakePublisher) {
	t.Helper()
	bcast := &fakeBroadcaster{}
	publ := &fakePublisher{}
	verifier := &fakeVerifier{treasury: treasury, byProof: map[string]engine.TransferInfo{}}
	eng := engine.New(zap.NewNop(), store, verifier, rule, policy, bcast, publ, engine.Options{
		RoundDuration:   30 * time.Second,
		FeeBps:          1000,
		TreasuryAccount: treasury,
	})
	return eng, bcast, publ
}

func TestPlaceWagerAccumulatesTotals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	eng, bcast, _ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})

	r, err := eng.OpenRound(ctx)
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}

	stakes := []struct {
		account string
		bin     engine.Bin
		amount  int64
	}{
		{"alice", engine.BinTrashcan, 500},
		{"bob", engine.BinTrapcan, 300},
		{"carol", engine.BinRatdumpster, 200},
		{"dave", engine.BinTrashcan, 100},
	}
	for i, s := range stakes {
		w, err := eng.PlaceWager(ctx, s.account, s.bin, s.amount, fmt.Sprintf("proof-%d", i))
		if err != nil {
			t.Fatalf("PlaceWager(%s): %v", s.account, err)
		}
		if w.RoundID != r.ID {
			t.Fatalf("wager bound to round %q, want %q", w.RoundID, r.ID)
		}
		if w.Status != engine.WagerPending {
			t.Fatalf("wager status = %v, want PENDING", w.Status)
		}
	}

	got, err := store.CurrentRound(ctx)
	if err != nil {
		t.Fatalf("CurrentRound: %v", err)
	}
	if got.Totals != [3]int64{600, 300, 200} {
		t.Fatalf("totals = %v, want [600 300 200]", got.Totals)
	}
	if got.TotalPot != got.Totals[0]+got.Totals[1]+got.Totals[2] {
		t.Fatalf("pot %d != sum of totals %v", got.TotalPot, got.Totals)
	}

	// round_start + um wager_admitted por aposta
	if n := len(bcast.all()); n != 1+len(stakes) {
		t.Fatalf("broadcast events = %d, want %d", n, 1+len(stakes))
	}
}

func TestPlaceWagerValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	eng, _, _ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})
	if _, err := eng.OpenRound(ctx); err != nil {
		t.Fatalf("OpenRound: %v", err)
	}

	cases := []struct {
		name    string
		account string
		bin     engine.Bin
		amount  int64
		proof   string
	}{
		{"empty account", "", engine.BinTrashcan, 100, "p1"},
		{"unknown bin", "alice", engine.Bin("sewer"), 100, "p2"},
		{"zero amount", "alice", engine.BinTrashcan, 0, "p3"},
		{"negative amount", "alice", engine.BinTrashcan, -5, "p4"},
		{"empty proof", "alice", engine.BinTrashcan, 100, ""},
		{"amount beyond fee math range", "alice", engine.BinTrashcan, math.MaxInt64, "p6"},
	}
	for _, tc := range cases {
		if _, err := eng.PlaceWager(ctx, tc.account, tc.bin, tc.amount, tc.proof); !errors.Is(err, engine.ErrInvalidWagerInput) {
			t.Fatalf("%s: err = %v, want ErrInvalidWagerInput", tc.name, err)
		}
	}

	// nenhuma rejeição tocou os totais
	r, _ := store.CurrentRound(ctx)
	if r.TotalPot != 0 {
		t.Fatalf("pot = %d after rejected wagers, want 0", r.TotalPot)
	}
}

func TestPlaceWagerRequiresActiveRound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	eng, _, _ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})

	if _, err := eng.PlaceWager(ctx, "alice", engine.BinTrashcan, 100, "p1"); !errors.Is(err, engine.ErrRoundNotActive) {
		t.Fatalf("err = %v, want ErrRoundNotActive", err)
	}
}

func TestPlaceWagerRejectsUnverifiedTransfer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	bcast := &fakeBroadcaster{}
	publ := &fakePublisher{}
	verifier := &fakeVerifier{treasury: treasury, byProof: map[string]engine.TransferInfo{
		"unconfirmed": {Confirmed: false, Amount: 1000, To: treasury},
		"wrong-dest":  {Confirmed: true, Amount: 1000, To: "SOMEONE_ELSE"},
		"short":       {Confirmed: true, Amount: 50, To: treasury}, // líquido de 100 com 10% é 90
	}}
	eng := engine.New(zap.NewNop(), store, verifier, engine.FavoriteRule{}, engine.PotSharePolicy{}, bcast, publ, engine.Options{
		FeeBps:          1000,
		TreasuryAccount: treasury,
	})
	if _, err := eng.OpenRound(ctx); err != nil {
		t.Fatalf("OpenRound: %v", err)
	}

	for _, proof := range []string{"unconfirmed", "wrong-dest", "short"} {
		if _, err := eng.PlaceWager(ctx, "alice", engine.BinTrashcan, 100, proof); !errors.Is(err, engine.ErrTransferUnverified) {
			t.Fatalf("proof %q: err = %v, want ErrTransferUnverified", proof, err)
		}
	}

	r, _ := store.CurrentRound(ctx)
	if r.TotalPot != 0 {
		t.Fatalf("pot = %d after unverified wagers, want 0", r.TotalPot)
	}
}

func TestPlaceWagerProofReplayRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	eng, _, _ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})
	if _, err := eng.OpenRound(ctx); err != nil {
		t.Fatalf("OpenRound: %v", err)
	}

	if _, err := eng.PlaceWager(ctx, "alice", engine.BinTrashcan, 100, "same-proof"); err != nil {
		t.Fatalf("first wager: %v", err)
	}
	if _, err := eng.PlaceWager(ctx, "bob", engine.BinTrapcan, 100, "same-proof"); !errors.Is(err, engine.ErrProofConsumed) {
		t.Fatalf("replay err = %v, want ErrProofConsumed", err)
	}

	r, _ := store.CurrentRound(ctx)
	if r.TotalPot != 100 {
		t.Fatalf("pot = %d, want 100 (replay must not count)", r.TotalPot)
	}
}

func TestCloseRoundSettlesFavorite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	eng, bcast, publ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})

	r, err := eng.OpenRound(ctx)
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}
	mustPlace := func(account string, bin engine.Bin, amount int64, proof string) *engine.Wager {
		t.Helper()
		w, err := eng.PlaceWager(ctx, account, bin, amount, proof)
		if err != nil {
			t.Fatalf("PlaceWager(%s): %v", account, err)
		}
		return w
	}
	winner1 := mustPlace("alice", engine.BinTrapcan, 300, "p1")
	winner2 := mustPlace("bob", engine.BinTrapcan, 100, "p2")
	loser := mustPlace("carol", engine.BinTrashcan, 200, "p3")

	if err := eng.CloseRound(ctx, r.ID); err != nil {
		t.Fatalf("CloseRound: %v", err)
	}

	ended, err := store.RoundByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("RoundByID: %v", err)
	}
	if ended.Status != engine.RoundEnded {
		t.Fatalf("round status = %v, want ENDED", ended.Status)
	}
	if ended.WinningBin != engine.BinTrapcan {
		t.Fatalf("winning bin = %v, want trapcan", ended.WinningBin)
	}

	// perdedora marcada, vencedoras seguem pendentes até o pagamento
	if w, _ := store.WagerByID(ctx, loser.ID); w.Status != engine.WagerLost {
		t.Fatalf("loser status = %v, want LOST", w.Status)
	}
	for _, id := range []string{winner1.ID, winner2.ID} {
		if w, _ := store.WagerByID(ctx, id); w.Status != engine.WagerPending {
			t.Fatalf("winner status = %v, want PENDING", w.Status)
		}
	}

	// um payout_due por vencedora, com amount = stake * (pot / winTotal)
	publ.mu.Lock()
	due := append([]events.PayoutDue(nil), publ.due...)
	settled := append([]events.RoundSettled(nil), publ.settled...)
	publ.mu.Unlock()
	if len(due) != 2 {
		t.Fatalf("payout_due events = %d, want 2", len(due))
	}
	byWager := map[string]events.PayoutDue{}
	for _, d := range due {
		byWager[d.WagerID] = d
	}
	// pot 600, vencedor 400 => 1.5x
	if got := byWager[winner1.ID].Amount; got != 450 {
		t.Fatalf("winner1 amount = %d, want 450", got)
	}
	if got := byWager[winner2.ID].Amount; got != 150 {
		t.Fatalf("winner2 amount = %d, want 150", got)
	}

	if len(settled) != 1 {
		t.Fatalf("round_settled events = %d, want 1", len(settled))
	}
	if settled[0].Winners != 2 || settled[0].WinningBin != "trapcan" || settled[0].TotalPot != 600 {
		t.Fatalf("round_settled = %+v", settled[0])
	}

	// último broadcast é o round_end com vencedor
	evs := bcast.all()
	end, ok := evs[len(evs)-1].(engine.RoundEndEvent)
	if !ok {
		t.Fatalf("last broadcast = %T, want RoundEndEvent", evs[len(evs)-1])
	}
	if end.WinningBin != engine.BinTrapcan || end.TotalPot != 600 {
		t.Fatalf("round_end = %+v", end)
	}
}

func TestCloseRoundZeroWagers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	eng, bcast, publ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})

	r, err := eng.OpenRound(ctx)
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}
	if err := eng.CloseRound(ctx, r.ID); err != nil {
		t.Fatalf("CloseRound: %v", err)
	}

	ended, _ := store.RoundByID(ctx, r.ID)
	if ended.Status != engine.RoundEnded {
		t.Fatalf("round status = %v, want ENDED", ended.Status)
	}
	// rodada vazia ainda produz vencedor, mas nada a pagar
	if ended.WinningBin == "" {
		t.Fatal("empty round must still pick a winner")
	}
	publ.mu.Lock()
	nDue, nSettled := len(publ.due), len(publ.settled)
	publ.mu.Unlock()
	if nDue != 0 {
		t.Fatalf("payout_due events = %d, want 0", nDue)
	}
	if nSettled != 1 {
		t.Fatalf("round_settled events = %d, want 1", nSettled)
	}

	evs := bcast.all()
	end, ok := evs[len(evs)-1].(engine.RoundEndEvent)
	if !ok || end.Multiplier != 0 {
		t.Fatalf("round_end = %+v, want multiplier 0", evs[len(evs)-1])
	}
}

func TestCloseRoundFreezesAdmission(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	eng, _, _ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})

	r, err := eng.OpenRound(ctx)
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}
	if err := eng.CloseRound(ctx, r.ID); err != nil {
		t.Fatalf("CloseRound: %v", err)
	}

	if _, err := eng.PlaceWager(ctx, "late", engine.BinTrashcan, 100, "late-proof"); !errors.Is(err, engine.ErrRoundNotActive) {
		t.Fatalf("late wager err = %v, want ErrRoundNotActive", err)
	}
}

// Corrida admissão x congelamento: apostas disputando com o CloseRound ou
// entram na rodada e contam no pote congelado, ou são rejeitadas; nunca
// admitidas fora do total.
func TestAdmissionSettlementRace(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	eng, _, _ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})

	r, err := eng.OpenRound(ctx)
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}

	const players = 32
	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			w, err := eng.PlaceWager(ctx, fmt.Sprintf("p%d", i), engine.Bins[i%3], 10, fmt.Sprintf("race-proof-%d", i))
			if err != nil {
				if !errors.Is(err, engine.ErrRoundNotActive) {
					t.Errorf("unexpected wager error: %v", err)
				}
				return
			}
			mu.Lock()
			admitted += w.Amount
			mu.Unlock()
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		if err := eng.CloseRound(ctx, r.ID); err != nil {
			t.Errorf("CloseRound: %v", err)
		}
	}()

	close(start)
	wg.Wait()

	ended, err := store.RoundByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("RoundByID: %v", err)
	}
	if ended.TotalPot != admitted {
		t.Fatalf("pot = %d, admitted sum = %d", ended.TotalPot, admitted)
	}
	if ended.TotalPot != ended.Totals[0]+ended.Totals[1]+ended.Totals[2] {
		t.Fatalf("pot %d != sum of totals %v", ended.TotalPot, ended.Totals)
	}
}

// slowAdmitBroadcaster segura a entrega de wager_admitted pra alargar a
// janela entre o commit da admissão e a publicação.
type slowAdmitBroadcaster struct {
	fakeBroadcaster
	delay time.Duration
}

func (s *slowAdmitBroadcaster) Broadcast(ctx context.Context, event any) error {
	if _, ok := event.(engine.WagerAdmittedEvent); ok {
		time.Sleep(s.delay)
	}
	return s.fakeBroadcaster.Broadcast(ctx, event)
}

// Aposta que entrou no pote congelado tem seu wager_admitted publicado antes
// do round_end, mesmo com a publicação atrasada disputando com o CloseRound.
func TestWagerAdmittedPublishedBeforeRoundEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	bcast := &slowAdmitBroadcaster{delay: 50 * time.Millisecond}
	publ := &fakePublisher{}
	verifier := &fakeVerifier{treasury: treasury}
	eng := engine.New(zap.NewNop(), store, verifier, engine.FavoriteRule{}, engine.PotSharePolicy{}, bcast, publ, engine.Options{
		RoundDuration:   time.Second,
		FeeBps:          1000,
		TreasuryAccount: treasury,
	})

	r, err := eng.OpenRound(ctx)
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = eng.PlaceWager(ctx, "alice", engine.BinTrashcan, 100, "slow-proof")
	}()

	// deixa a admissão chegar na janela entre commit e publicação
	time.Sleep(10 * time.Millisecond)
	if err := eng.CloseRound(ctx, r.ID); err != nil {
		t.Fatalf("CloseRound: %v", err)
	}
	wg.Wait()

	admittedIdx, endIdx := -1, -1
	for i, e := range bcast.all() {
		switch e.(type) {
		case engine.WagerAdmittedEvent:
			admittedIdx = i
		case engine.RoundEndEvent:
			endIdx = i
		}
	}

	ended, err := store.RoundByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("RoundByID: %v", err)
	}
	if ended.TotalPot == 100 {
		if admittedIdx == -1 || endIdx == -1 || admittedIdx > endIdx {
			t.Fatalf("wager counted in pot but broadcast order is wager_admitted=%d round_end=%d", admittedIdx, endIdx)
		}
	} else if admittedIdx != -1 {
		t.Fatal("wager rejected by the freeze must not broadcast wager_admitted")
	}
}

// Falha do tópico principal não perde o pagamento: o payout_due cai no DLQ e
// a aposta segue PENDING no ledger.
func TestSettleRoutesFailedPayoutDueToDLQ(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	eng, _, publ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})

	r, err := eng.OpenRound(ctx)
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}
	w, err := eng.PlaceWager(ctx, "alice", engine.BinTrashcan, 100, "p1")
	if err != nil {
		t.Fatalf("PlaceWager: %v", err)
	}

	publ.mu.Lock()
	publ.failDue = true
	publ.mu.Unlock()

	if err := eng.CloseRound(ctx, r.ID); err != nil {
		t.Fatalf("CloseRound: %v", err)
	}

	publ.mu.Lock()
	nDue, dlq := len(publ.due), append([]events.PayoutDue(nil), publ.dlq...)
	publ.mu.Unlock()
	if nDue != 0 {
		t.Fatalf("payout_due events = %d, want 0", nDue)
	}
	if len(dlq) != 1 || dlq[0].WagerID != w.ID {
		t.Fatalf("dlq = %+v, want the winning wager's payout_due", dlq)
	}
	if got, _ := store.WagerByID(ctx, w.ID); got.Status != engine.WagerPending {
		t.Fatalf("wager status = %v, want PENDING for re-drive", got.Status)
	}
}

// endRoundFailStore injeta falha no EndRound pra exercitar o fail-safe.
type endRoundFailStore struct {
	engine.Store
}

func (s endRoundFailStore) EndRound(ctx context.Context, id string, winning engine.Bin, endedAt time.Time) error {
	return errors.New("ledger write failed")
}

func TestCloseRoundFailSafeVoidsWagers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := repo.NewMemory()
	store := endRoundFailStore{Store: mem}
	eng, bcast, publ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})

	r, err := eng.OpenRound(ctx)
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}
	w, err := eng.PlaceWager(ctx, "alice", engine.BinTrashcan, 100, "p1")
	if err != nil {
		t.Fatalf("PlaceWager: %v", err)
	}

	if err := eng.CloseRound(ctx, r.ID); err == nil {
		t.Fatal("CloseRound should surface the settlement failure")
	}

	ended, _ := mem.RoundByID(ctx, r.ID)
	if ended.Status != engine.RoundEnded || ended.WinningBin != "" {
		t.Fatalf("round = %v/%q, want ENDED without winner", ended.Status, ended.WinningBin)
	}
	if got, _ := mem.WagerByID(ctx, w.ID); got.Status != engine.WagerVoid {
		t.Fatalf("wager status = %v, want VOID", got.Status)
	}
	publ.mu.Lock()
	nDue := len(publ.due)
	publ.mu.Unlock()
	if nDue != 0 {
		t.Fatalf("payout_due after failed settlement = %d, want 0", nDue)
	}

	evs := bcast.all()
	end, ok := evs[len(evs)-1].(engine.RoundEndEvent)
	if !ok || end.WinningBin != "" || end.Multiplier != 0 {
		t.Fatalf("fail-safe round_end = %+v", evs[len(evs)-1])
	}
}

func TestRunOpensConsecutiveRounds(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := repo.NewMemory()
	bcast := &fakeBroadcaster{}
	publ := &fakePublisher{}
	verifier := &fakeVerifier{treasury: treasury}
	eng := engine.New(zap.NewNop(), store, verifier, engine.FavoriteRule{}, engine.PotSharePolicy{}, bcast, publ, engine.Options{
		RoundDuration:   20 * time.Millisecond,
		TreasuryAccount: treasury,
	})

	done := make(chan struct{})
	go func() {
		_ = eng.Run(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done

	last, err := store.LastRoundNumber(context.Background())
	if err != nil {
		t.Fatalf("LastRoundNumber: %v", err)
	}
	if last < 3 {
		t.Fatalf("rounds opened = %d, want at least 3", last)
	}

	// números de rodada são estritamente crescentes nos broadcasts
	var prev int64
	for _, e := range bcast.all() {
		s, ok := e.(engine.RoundStartEvent)
		if !ok {
			continue
		}
		if s.Number <= prev {
			t.Fatalf("round numbers not increasing: %d after %d", s.Number, prev)
		}
		prev = s.Number
	}
}

func TestOpenRoundClosesStragglers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemory()
	eng, _, _ := newTestEngine(t, store, engine.FavoriteRule{}, engine.PotSharePolicy{})

	// rodada deixada aberta por um processo anterior
	stray := &engine.Round{ID: "stray", Number: 7, Status: engine.RoundActive, OpenedAt: time.Now().Add(-time.Minute)}
	if err := store.CreateRound(ctx, stray); err != nil {
		t.Fatalf("CreateRound: %v", err)
	}

	r, err := eng.OpenRound(ctx)
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}
	if r.Number != 8 {
		t.Fatalf("new round number = %d, want 8", r.Number)
	}
	old, _ := store.RoundByID(ctx, "stray")
	if old.Status != engine.RoundEnded {
		t.Fatalf("stray round status = %v, want ENDED", old.Status)
	}
}
