package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gorbagame/trash-rounds-poc/internal/payout-worker/disburser"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/gateway"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/repo"
	"github.com/gorbagame/trash-rounds-poc/internal/shared/config"
	"github.com/gorbagame/trash-rounds-poc/internal/shared/db"
	"github.com/gorbagame/trash-rounds-poc/internal/shared/kafka"
	"github.com/gorbagame/trash-rounds-poc/internal/shared/logger"
	ev "github.com/gorbagame/trash-rounds-poc/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres: registro de submissão do proof e CAS PENDING -> PAID
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: eventos payout_due emitidos pelo round-engine
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPayoutDue, "payout-worker")
	defer reader.Close()

	// Kafka producer: publica payout_confirmed e envia esgotados pra DLQ
	confirmedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutConfirmed)
	defer confirmedWriter.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicPayoutDueDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutDueDLQ)
		defer dlqWriter.Close()
	}

	paid := prometheus.NewCounter(prometheus.CounterOpts{Name: "payouts_paid_total", Help: "pagamentos confirmados"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "payouts_failed_total", Help: "pagamentos esgotados enviados pra DLQ"})
	prometheus.MustRegister(paid, failed)

	ledger := repo.NewPostgres(pg)
	disb := &disburser.Disburser{
		Log:         log,
		Ledger:      ledger,
		Gateway:     gateway.New(cfg.GatewayURL),
		MaxAttempts: cfg.PayoutMaxAttempts,
		BackoffBase: cfg.PayoutBackoffBase,
		OnPaid:      func() { paid.Inc() },
		OnFailed:    func() { failed.Inc() },
	}

	// Servidor HTTP para métricas Prometheus e healthcheck
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			if err := pg.PingContext(ctx); err != nil {
				http.Error(w, "pg", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("payout-worker started",
		zap.String("consume", cfg.TopicPayoutDue),
		zap.String("publish", cfg.TopicPayoutConfirmed),
		zap.Int("max_attempts", cfg.PayoutMaxAttempts),
	)

	// Loop principal: consome payout_due, tenta a transferência e publica o
	// resultado. O redrive da DLQ reusa este mesmo fluxo.
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var due ev.PayoutDue
		if jerr := json.Unmarshal(msg.Value, &due); jerr != nil {
			log.Error("unmarshal payout_due", zap.Error(jerr))
			continue
		}

		if err := processOne(ctx, log, disb, confirmedWriter, dlqWriter, due); err != nil {
			log.Error("process payout", zap.String("wagerId", due.WagerID), zap.Error(err))
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// processOne dirige um pagamento até o fim:
// 1. Disburser tenta submeter e confirmar a transferência (at-most-once)
// 2. Sucesso ou skip idempotente publicam payout_confirmed
// 3. Tentativas esgotadas vão pra DLQ com a aposta ainda PENDING
func processOne(
	ctx context.Context,
	log *zap.Logger,
	disb *disburser.Disburser,
	confirmedWriter *kafkago.Writer,
	dlqWriter *kafkago.Writer,
	due ev.PayoutDue,
) error {
	proof, err := disb.Process(ctx, due)
	if err != nil {
		if errors.Is(err, disburser.ErrRetriesExhausted) {
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, due.WagerID, mustJSON(due))
			}
			evc := ev.PayoutConfirmed{
				WagerID: due.WagerID,
				RoundID: due.RoundID,
				Account: due.Account,
				Amount:  due.Amount,
				Status:  "FAILED",
				Reason:  "retries exhausted",
				Ts:      time.Now(),
			}
			return kafka.WriteJSON(ctx, confirmedWriter, due.WagerID, mustJSON(evc))
		}
		return err
	}
	if proof == "" {
		// Aposta já saiu de PENDING por outro caminho; nada a publicar
		log.Info("payout skipped", zap.String("wagerId", due.WagerID))
		return nil
	}

	evc := ev.PayoutConfirmed{
		WagerID: due.WagerID,
		RoundID: due.RoundID,
		Account: due.Account,
		Amount:  due.Amount,
		Status:  "PAID",
		Proof:   proof,
		Ts:      time.Now(),
	}
	return kafka.WriteJSON(ctx, confirmedWriter, due.WagerID, mustJSON(evc))
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
