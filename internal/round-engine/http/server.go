package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/dto"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/engine"
)

// Server expõe a API pública do round-engine: admissão de apostas e leitura
// de rodadas, apostas, contas e tesouraria. O endpoint /ws é plugado pelo
// main por cima deste router.
type Server struct {
	log    *zap.Logger
	engine *engine.Engine
	store  engine.Store
}

func NewServer(log *zap.Logger, eng *engine.Engine, store engine.Store) *Server {
	return &Server{log: log, engine: eng, store: store}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/wagers", s.placeWager)
	r.Get("/v1/wagers/{id}", s.getWager)
	r.Get("/v1/rounds/current", s.currentRound)
	r.Get("/v1/rounds/{id}", s.getRound)
	r.Get("/v1/rounds/{id}/wagers", s.roundWagers)
	r.Get("/v1/accounts/{id}", s.getAccount)
	r.Get("/v1/treasury/entries", s.treasuryEntries)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	wager, err := s.engine.PlaceWager(r.Context(), req.Account, engine.Bin(req.Bin), req.Amount, req.TransferProof)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidWagerInput):
			writeError(w, http.StatusBadRequest, "invalid wager input")
		case errors.Is(err, engine.ErrRoundNotActive):
			writeError(w, http.StatusConflict, "round not active")
		case errors.Is(err, engine.ErrProofConsumed):
			writeError(w, http.StatusConflict, "transfer proof already consumed")
		case errors.Is(err, engine.ErrTransferUnverified):
			writeError(w, http.StatusUnprocessableEntity, "transfer unverified")
		default:
			s.log.Error("place wager", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.PlaceWagerResponse{
		WagerID: wager.ID,
		RoundID: wager.RoundID,
		Status:  string(wager.Status),
	})
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wg, err := s.store.WagerByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "wager not found")
		return
	}
	writeJSON(w, http.StatusOK, wagerResponse(wg))
}

func (s *Server) currentRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.store.CurrentRound(r.Context())
	if err != nil {
		// entre rodadas, devolve a última conhecida
		round, err = s.store.LatestRound(r.Context())
		if err != nil {
			writeError(w, http.StatusNotFound, "no round")
			return
		}
	}
	writeJSON(w, http.StatusOK, roundResponse(round))
}

func (s *Server) getRound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	round, err := s.store.RoundByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "round not found")
		return
	}
	writeJSON(w, http.StatusOK, roundResponse(round))
}

func (s *Server) roundWagers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wagers, err := s.store.WagersByRound(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]dto.WagerResponse, 0, len(wagers))
	for i := range wagers {
		out = append(out, wagerResponse(&wagers[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.store.AccountByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, dto.AccountResponse{
		Account:     a.ID,
		TotalWagers: a.TotalWagers,
		TotalWins:   a.TotalWins,
		FavoriteBin: string(a.FavoriteBin),
	})
}

func (s *Server) treasuryEntries(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	entries, err := s.store.TreasuryEntries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]dto.TreasuryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.TreasuryEntryResponse{
			Proof:     e.Proof,
			Amount:    e.Amount,
			Direction: string(e.Direction),
			Account:   e.Account,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func wagerResponse(wg *engine.Wager) dto.WagerResponse {
	return dto.WagerResponse{
		WagerID:    wg.ID,
		Account:    wg.Account,
		RoundID:    wg.RoundID,
		Bin:        string(wg.Bin),
		Amount:     wg.Amount,
		Status:     string(wg.Status),
		AdmittedAt: wg.AdmittedAt,
	}
}

func roundResponse(r *engine.Round) dto.RoundResponse {
	out := dto.RoundResponse{
		RoundID:     r.ID,
		Number:      r.Number,
		Status:      string(r.Status),
		Trashcan:    r.Totals[0],
		Trapcan:     r.Totals[1],
		Ratdumpster: r.Totals[2],
		TotalPot:    r.TotalPot,
		WinningBin:  string(r.WinningBin),
		OpenedAt:    r.OpenedAt,
		ExpiresAt:   r.ExpiresAt,
	}
	if !r.EndedAt.IsZero() {
		t := r.EndedAt
		out.EndedAt = &t
	}
	return out
}
