package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gorbagame/trash-rounds-poc/internal/shared/config"
	"github.com/gorbagame/trash-rounds-poc/internal/shared/logger"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Métricas Prometheus do gateway simulado
	transfersSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chain_transfers_submitted_total",
		Help: "Transferências recebidas pelo simulador",
	})
	transfersConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chain_transfers_confirmed_total",
		Help: "Transferências liquidadas com sucesso",
	})
	transfersFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chain_transfers_failed_total",
		Help: "Transferências que falharam na liquidação simulada",
	})
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chain_ws_connections",
		Help: "Clientes WebSocket conectados ao feed de transferências",
	})
)

// Estados possíveis de uma transferência simulada
const (
	statusPending   = "pending"
	statusConfirmed = "confirmed"
	statusFailed    = "failed"
)

// transfer é o registro de uma transferência no "chain" simulado.
type transfer struct {
	Proof  string `json:"proof"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// ledger mantém o registro de transferências em memória e o feed WS.
// Liquidação assíncrona: cada transferência nasce pending e vira
// confirmed/failed depois de um atraso configurável.
type ledger struct {
	mu        sync.RWMutex
	transfers map[string]*transfer

	clients map[string]*websocket.Conn
	cmu     sync.RWMutex

	log         *zap.Logger
	settleDelay time.Duration
	failPct     int // percentual de transferências que falham
}

func newLedger(log *zap.Logger, settleDelay time.Duration, failPct int) *ledger {
	return &ledger{
		transfers:   make(map[string]*transfer),
		clients:     make(map[string]*websocket.Conn),
		log:         log,
		settleDelay: settleDelay,
		failPct:     failPct,
	}
}

// submit registra a transferência e agenda a liquidação assíncrona.
func (l *ledger) submit(from, to string, amount int64) *transfer {
	t := &transfer{
		Proof:  "CHAIN-" + uuid.NewString(),
		From:   from,
		To:     to,
		Amount: amount,
		Status: statusPending,
	}
	l.mu.Lock()
	l.transfers[t.Proof] = t
	l.mu.Unlock()
	transfersSubmitted.Inc()

	go func() {
		time.Sleep(l.settleDelay)
		final := statusConfirmed
		if rand.Intn(100) < l.failPct {
			final = statusFailed
		}
		l.mu.Lock()
		t.Status = final
		snapshot := *t
		l.mu.Unlock()
		if final == statusConfirmed {
			transfersConfirmed.Inc()
		} else {
			transfersFailed.Inc()
		}
		l.log.Info("transfer settled",
			zap.String("proof", t.Proof),
			zap.String("status", final),
			zap.Int64("amount", t.Amount),
		)
		l.broadcast(snapshot)
	}()
	return t
}

func (l *ledger) get(proof string) (*transfer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.transfers[proof]
	if !ok {
		return nil, false
	}
	c := *t
	return &c, true
}

// broadcast envia a liquidação pro feed WS de observadores.
func (l *ledger) broadcast(v any) {
	msg, _ := json.Marshal(v)
	l.cmu.RLock()
	defer l.cmu.RUnlock()
	for id, conn := range l.clients {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			l.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = conn.Close()
		}
	}
}

func (l *ledger) addClient(id string, conn *websocket.Conn) {
	l.cmu.Lock()
	defer l.cmu.Unlock()
	l.clients[id] = conn
	wsConnections.Inc()
}

func (l *ledger) removeClient(id string) {
	l.cmu.Lock()
	defer l.cmu.Unlock()
	if _, ok := l.clients[id]; ok {
		delete(l.clients, id)
		wsConnections.Dec()
	}
}

type submitReq struct {
	From    string `json:"from,omitempty"`
	Account string `json:"account,omitempty"` // destino (saída do pool)
	To      string `json:"to,omitempty"`      // destino explícito (depósito)
	Amount  int64  `json:"amount"`
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(transfersSubmitted, transfersConfirmed, transfersFailed, wsConnections)

	settleDelay := getDuration("CHAIN_SETTLE_DELAY", 300*time.Millisecond)
	failPct := getInt("CHAIN_FAIL_PCT", 10)
	l := newLedger(log, settleDelay, failPct)

	// ==== MUX PÚBLICO: submissão, status, verify e feed WS
	appMux := http.NewServeMux()

	// POST /transfers: saída do pool custodial ("account") ou depósito ("to")
	appMux.HandleFunc("/transfers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()
		var req submitReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		to := req.Account
		if to == "" {
			to = req.To
		}
		if to == "" || req.Amount <= 0 {
			http.Error(w, "destination and positive amount required", http.StatusBadRequest)
			return
		}
		t := l.submit(req.From, to, req.Amount)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"proof": t.Proof, "status": t.Status})
	})

	// GET /transfers/{proof} e GET /transfers/{proof}/verify
	appMux.HandleFunc("/transfers/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/transfers/")
		proof := rest
		verify := false
		if strings.HasSuffix(rest, "/verify") {
			proof = strings.TrimSuffix(rest, "/verify")
			verify = true
		}
		t, ok := l.get(proof)
		if !ok {
			http.Error(w, "transfer not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if verify {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"confirmed": t.Status == statusConfirmed,
				"amount":    t.Amount,
				"to":        t.To,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"proof": t.Proof, "status": t.Status})
	})

	// Feed WS das liquidações
	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		l.addClient(id, conn)

		go func() {
			defer func() {
				l.removeClient(id)
				_ = conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("chain simulator (metrics) running",
			zap.String("addr", metricsAddr),
			zap.String("paths", "/healthz,/metrics"),
		)
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("chain simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/transfers,/ws"),
		zap.Duration("settle_delay", settleDelay),
		zap.Int("fail_pct", failPct),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
