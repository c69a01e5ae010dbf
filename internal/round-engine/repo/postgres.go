package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/engine"
)

// Postgres implementa engine.Store sobre o banco do ledger.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const roundCols = `id, number, status, trashcan_total, trapcan_total, ratdumpster_total, total_pot, winning_bin, opened_at, expires_at, ended_at`

// binColumn mapeia o bin pra coluna de total. Nunca interpola entrada do usuário.
func binColumn(b engine.Bin) string {
	switch b {
	case engine.BinTrapcan:
		return "trapcan_total"
	case engine.BinRatdumpster:
		return "ratdumpster_total"
	default:
		return "trashcan_total"
	}
}

func scanRound(row interface{ Scan(...any) error }) (*engine.Round, error) {
	var r engine.Round
	var winning sql.NullString
	var endedAt sql.NullTime
	err := row.Scan(&r.ID, &r.Number, &r.Status, &r.Totals[0], &r.Totals[1], &r.Totals[2],
		&r.TotalPot, &winning, &r.OpenedAt, &r.ExpiresAt, &endedAt)
	if err != nil {
		return nil, err
	}
	if winning.Valid {
		r.WinningBin = engine.Bin(winning.String)
	}
	if endedAt.Valid {
		r.EndedAt = endedAt.Time
	}
	return &r, nil
}

func (p *Postgres) CreateRound(ctx context.Context, r *engine.Round) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rounds (id, number, status, trashcan_total, trapcan_total, ratdumpster_total, total_pot, opened_at, expires_at)
		VALUES ($1,$2,$3,0,0,0,0,$4,$5)`,
		r.ID, r.Number, r.Status, r.OpenedAt, r.ExpiresAt,
	)
	return err
}

func (p *Postgres) CurrentRound(ctx context.Context) (*engine.Round, error) {
	r, err := scanRound(p.db.QueryRowContext(ctx,
		`SELECT `+roundCols+` FROM rounds WHERE status='ACTIVE' ORDER BY number DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, engine.ErrRoundNotFound
	}
	return r, err
}

func (p *Postgres) LatestRound(ctx context.Context) (*engine.Round, error) {
	r, err := scanRound(p.db.QueryRowContext(ctx,
		`SELECT `+roundCols+` FROM rounds ORDER BY number DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, engine.ErrRoundNotFound
	}
	return r, err
}

func (p *Postgres) RoundByID(ctx context.Context, id string) (*engine.Round, error) {
	r, err := scanRound(p.db.QueryRowContext(ctx,
		`SELECT `+roundCols+` FROM rounds WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, engine.ErrRoundNotFound
	}
	return r, err
}

func (p *Postgres) LastRoundNumber(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(number),0) FROM rounds`).Scan(&n)
	return n, err
}

// CloseStragglers fecha rodadas deixadas abertas por um processo anterior e
// anula as apostas pendentes delas.
func (p *Postgres) CloseStragglers(ctx context.Context, endedAt time.Time) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE rounds SET status='ENDED', ended_at=$1
		WHERE status IN ('ACTIVE','SETTLING')
		RETURNING id`, endedAt)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	if len(ids) > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE wagers SET status='VOID' WHERE round_id = ANY($1) AND status='PENDING'`,
			pq.Array(ids)); err != nil {
			return 0, err
		}
	}

	return len(ids), tx.Commit()
}

// FreezeRound é a barreira ACTIVE -> SETTLING. Depois dela nenhuma admissão
// ainda não comitada consegue comitar contra essa rodada.
func (p *Postgres) FreezeRound(ctx context.Context, id string) (*engine.Round, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE rounds SET status='SETTLING' WHERE id=$1 AND status='ACTIVE'`, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, engine.ErrRoundNotActive
	}
	return p.RoundByID(ctx, id)
}

func (p *Postgres) EndRound(ctx context.Context, id string, winning engine.Bin, endedAt time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// winning_bin IS NULL garante que o vencedor é gravado no máximo uma vez
	res, err := tx.ExecContext(ctx, `
		UPDATE rounds SET status='ENDED', winning_bin=$2, ended_at=$3
		WHERE id=$1 AND status='SETTLING' AND winning_bin IS NULL`,
		id, winning, endedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("round %s not settling", id)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE wagers SET status='LOST' WHERE round_id=$1 AND status='PENDING' AND bin <> $2`,
		id, winning); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *Postgres) VoidRound(ctx context.Context, id string, endedAt time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE rounds SET status='ENDED', ended_at=$2
		WHERE id=$1 AND status IN ('ACTIVE','SETTLING')`, id, endedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE wagers SET status='VOID' WHERE round_id=$1 AND status='PENDING'`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// AdmitWager admite a aposta na rodada ACTIVE corrente dentro de uma única
// transação: o incremento dos totais é condicionado ao status, então uma
// rodada já congelada rejeita a admissão em vez de perder a atualização.
// Idempotência por transfer_proof (unique).
func (p *Postgres) AdmitWager(ctx context.Context, w *engine.Wager, entries []engine.TreasuryEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var roundID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM rounds WHERE status='ACTIVE' ORDER BY number DESC LIMIT 1 FOR UPDATE`).Scan(&roundID)
	if err == sql.ErrNoRows {
		return engine.ErrRoundNotActive
	} else if err != nil {
		return err
	}

	col := binColumn(w.Bin)
	res, err := tx.ExecContext(ctx,
		`UPDATE rounds SET `+col+` = `+col+` + $1, total_pot = total_pot + $1 WHERE id=$2 AND status='ACTIVE'`,
		w.Amount, roundID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrRoundNotActive
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wagers (id, account, round_id, bin, amount, transfer_proof, status, admitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,'PENDING',$7)`,
		w.ID, w.Account, roundID, w.Bin, w.Amount, w.TransferProof, w.AdmittedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return engine.ErrProofConsumed
		}
		return err
	}

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO treasury_entries (id, proof, amount, direction, account, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			e.ID, e.Proof, e.Amount, e.Direction, e.Account, e.CreatedAt); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, total_wagers, total_wins, favorite_bin)
		VALUES ($1,1,0,$2)
		ON CONFLICT (id) DO UPDATE SET total_wagers = accounts.total_wagers + 1, favorite_bin = $2`,
		w.Account, w.Bin); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	w.RoundID = roundID
	return nil
}

func scanWager(row interface{ Scan(...any) error }) (*engine.Wager, error) {
	var w engine.Wager
	var payoutProof sql.NullString
	err := row.Scan(&w.ID, &w.Account, &w.RoundID, &w.Bin, &w.Amount, &w.TransferProof,
		&w.Status, &w.AdmittedAt, &payoutProof)
	if err != nil {
		return nil, err
	}
	if payoutProof.Valid {
		w.PayoutProof = payoutProof.String
	}
	return &w, nil
}

const wagerCols = `id, account, round_id, bin, amount, transfer_proof, status, admitted_at, payout_proof`

func (p *Postgres) WagerByID(ctx context.Context, id string) (*engine.Wager, error) {
	w, err := scanWager(p.db.QueryRowContext(ctx,
		`SELECT `+wagerCols+` FROM wagers WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, engine.ErrWagerNotFound
	}
	return w, err
}

func (p *Postgres) WagersByRound(ctx context.Context, roundID string) ([]engine.Wager, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+wagerCols+` FROM wagers WHERE round_id=$1 ORDER BY admitted_at`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// RecordPayoutSubmission vincula a prova do pagamento à aposta antes do poll
// de confirmação. prev encadeia a resubmissão quando a transferência anterior
// falhou definitivamente.
func (p *Postgres) RecordPayoutSubmission(ctx context.Context, wagerID, proof, prev string) error {
	var res sql.Result
	var err error
	if prev == "" {
		res, err = p.db.ExecContext(ctx,
			`UPDATE wagers SET payout_proof=$2 WHERE id=$1 AND status='PENDING' AND payout_proof IS NULL`,
			wagerID, proof)
	} else {
		res, err = p.db.ExecContext(ctx,
			`UPDATE wagers SET payout_proof=$2 WHERE id=$1 AND status='PENDING' AND payout_proof=$3`,
			wagerID, proof, prev)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrNotPending
	}
	return nil
}

// ConfirmPayout é o compare-and-set PENDING -> PAID. Na mesma transação grava
// a entrada OUT e incrementa o contador de vitórias, ou tudo ou nada.
func (p *Postgres) ConfirmPayout(ctx context.Context, wagerID, proof string, amount int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var account string
	err = tx.QueryRowContext(ctx,
		`SELECT account FROM wagers WHERE id=$1 FOR UPDATE`, wagerID).Scan(&account)
	if err == sql.ErrNoRows {
		return engine.ErrWagerNotFound
	} else if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE wagers SET status='PAID' WHERE id=$1 AND status='PENDING'`, wagerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrNotPending
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO treasury_entries (id, proof, amount, direction, account, created_at)
		VALUES (gen_random_uuid()::text, $1, $2, 'OUT', $3, NOW())`,
		proof, amount, account); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, total_wagers, total_wins)
		VALUES ($1,0,1)
		ON CONFLICT (id) DO UPDATE SET total_wins = accounts.total_wins + 1`,
		account); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *Postgres) AccountByID(ctx context.Context, id string) (*engine.Account, error) {
	var a engine.Account
	var fav sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT id, total_wagers, total_wins, favorite_bin FROM accounts WHERE id=$1`, id).
		Scan(&a.ID, &a.TotalWagers, &a.TotalWins, &fav)
	if err == sql.ErrNoRows {
		return nil, engine.ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}
	if fav.Valid {
		a.FavoriteBin = engine.Bin(fav.String)
	}
	return &a, nil
}

func (p *Postgres) TreasuryEntries(ctx context.Context, limit int) ([]engine.TreasuryEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, proof, amount, direction, account, created_at
		FROM treasury_entries ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.TreasuryEntry
	for rows.Next() {
		var e engine.TreasuryEntry
		if err := rows.Scan(&e.ID, &e.Proof, &e.Amount, &e.Direction, &e.Account, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
