package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	enginecache "github.com/gorbagame/trash-rounds-poc/internal/round-engine/cache"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/engine"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/gateway"
	enginehttp "github.com/gorbagame/trash-rounds-poc/internal/round-engine/http"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/producer"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/pubsub"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/repo"
	"github.com/gorbagame/trash-rounds-poc/internal/round-engine/ws"
	sharedcache "github.com/gorbagame/trash-rounds-poc/internal/shared/cache"
	"github.com/gorbagame/trash-rounds-poc/internal/shared/config"
	"github.com/gorbagame/trash-rounds-poc/internal/shared/db"
	sharedkafka "github.com/gorbagame/trash-rounds-poc/internal/shared/kafka"
	"github.com/gorbagame/trash-rounds-poc/internal/shared/logger"
	"github.com/gorbagame/trash-rounds-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres: ledger de rodadas, apostas, contas e tesouraria
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: canal pub/sub do broadcast pros observadores WS
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers: payout_due, seu DLQ de reconciliação e round_settled
	payoutWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutDue)
	defer payoutWriter.Close()
	payoutDLQWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutDueDLQ)
	defer payoutDLQWriter.Close()
	settledWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundSettled)
	defer settledWriter.Close()

	store := repo.NewPostgres(pg)
	verifier := gateway.New(cfg.GatewayURL)
	bcast := pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)
	publ := producer.NewKafkaPublisher(payoutWriter, payoutDLQWriter, settledWriter)

	eng := engine.New(log, store, verifier,
		outcomeRule(cfg), payoutPolicy(cfg), bcast, publ,
		engine.Options{
			RoundDuration:   cfg.RoundDuration,
			FeeBps:          cfg.FeeBps,
			TreasuryAccount: cfg.TreasuryAccount,
		})

	// Métricas de domínio
	wagersAdmitted := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_wagers_admitted_total", Help: "apostas admitidas"})
	roundsSettled := prometheus.NewCounter(prometheus.CounterOpts{Name: "rounds_settled_total", Help: "rodadas liquidadas"})
	settlementFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_settlement_failures_total", Help: "rodadas encerradas sem vencedor por falha"})
	prometheus.MustRegister(wagersAdmitted, roundsSettled, settlementFailures, ws.Connections, ws.MessagesSent)
	eng.OnWagerAdmitted = func() { wagersAdmitted.Inc() }
	eng.OnRoundSettled = func() { roundsSettled.Inc() }
	eng.OnSettlementFailure = func() { settlementFailures.Inc() }

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Hub WS com replay de snapshot pra quem conecta no meio da rodada.
	// Cache curto no Redis amortece rajadas de reconexão.
	roundCache := enginecache.New(rdb, 2*time.Second)
	hub := ws.NewHub(log, func(r *http.Request) bool { return true }, func(c context.Context) ([]byte, error) {
		if cached, ok, err := roundCache.GetSnapshot(c); err == nil && ok {
			return cached, nil
		}
		round, err := store.LatestRound(c)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(engine.NewRoundStartEvent(round))
		if err != nil {
			return nil, err
		}
		if err := roundCache.SetSnapshot(c, payload); err != nil {
			log.Warn("snapshot cache set", zap.Error(err))
		}
		return payload, nil
	})
	ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)

	// API pública + WS no mesmo servidor
	api := enginehttp.NewServer(log, eng, store)
	root := chi.NewRouter()
	root.Mount("/", api.Router())
	root.Get("/ws", hub.HandleWS)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: root,
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(c context.Context) error {
		if err := pg.PingContext(c); err != nil {
			return err
		}
		return rdb.Ping(c).Err()
	})
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	// Scheduler da rodada em goroutine própria
	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatal("round scheduler stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		_ = apiSrv.Shutdown(context.Background())
		_ = metricsSrv.Shutdown(context.Background())
	}()

	log.Info("round-engine listening",
		zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)),
		zap.Duration("round_duration", cfg.RoundDuration),
		zap.String("outcome_rule", cfg.OutcomeRule),
		zap.String("payout_policy", cfg.PayoutPolicy),
	)
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}

// outcomeRule resolve a regra de resultado configurada.
func outcomeRule(cfg config.Config) engine.OutcomeRule {
	if cfg.OutcomeRule == "weighted" {
		return engine.WeightedRule{Weights: cfg.BinWeights}
	}
	return engine.FavoriteRule{}
}

// payoutPolicy resolve a política de pagamento configurada.
func payoutPolicy(cfg config.Config) engine.PayoutPolicy {
	if cfg.PayoutPolicy == "multiplier" {
		return engine.MultiplierPolicy{Table: cfg.BinMultipliers}
	}
	return engine.PotSharePolicy{}
}
