package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	betcache "github.com/radieske/risefall-round-service/internal/round-service/cache"
	"github.com/radieske/risefall-round-service/internal/round-service/engine"
	httpapi "github.com/radieske/risefall-round-service/internal/round-service/http"
	"github.com/radieske/risefall-round-service/internal/round-service/lease"
	"github.com/radieske/risefall-round-service/internal/round-service/ledger"
	"github.com/radieske/risefall-round-service/internal/round-service/producer"
	"github.com/radieske/risefall-round-service/internal/round-service/wallet"
	"github.com/radieske/risefall-round-service/internal/round-service/ws"
	"github.com/radieske/risefall-round-service/internal/shared/cache"
	"github.com/radieske/risefall-round-service/internal/shared/config"
	"github.com/radieske/risefall-round-service/internal/shared/db"
	"github.com/radieske/risefall-round-service/internal/shared/kafka"
	"github.com/radieske/risefall-round-service/internal/shared/logger"
	"github.com/radieske/risefall-round-service/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// conecta com db Postgres (carteiras e ledger de apostas)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected")

	// Redis Pub/Sub distribui broadcasts e avisos privados entre instâncias
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	// writers Kafka para eventos de domínio
	publisher := producer.NewKafkaPublisher(
		kafka.NewWriter(cfg.Brokers(), cfg.TopicBetPlaced),
		kafka.NewWriter(cfg.Brokers(), cfg.TopicRoundSettled),
	)
	defer publisher.Close()
	log.Info("kafka writers ready",
		zap.String("bet_placed", cfg.TopicBetPlaced),
		zap.String("round_settled", cfg.TopicRoundSettled))

	hub := ws.NewHub(log, allowOrigin(cfg.WSAllowedOrigin))
	relay := ws.NewRedisRelay(redisClient, cfg.RedisPubSubChannel, log)
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	bets := ledger.NewPostgres(pg)
	sched := engine.NewScheduler(log, engine.Deps{
		Wallets:   wallet.NewPostgres(pg),
		Ledger:    bets,
		Notifier:  relay,
		Publisher: publisher,
	}, engine.WithMinStake(cfg.MinStake))
	hub.SetGame(sched)

	// métricas e health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health server starting", zap.String("addr", metricsSrv.Addr))

	api := &httpapi.API{
		Log:      log,
		Game:     sched,
		Bets:     bets,
		Cache:    betcache.New(redisClient, 10*time.Minute),
		Notifier: relay,
		WS:       http.HandlerFunc(hub.HandleWS),
	}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// uma única instância é dona das rodadas; uma segunda não sobe em paralelo
	owner := lease.New(redisClient, lease.DefaultKey, lease.DefaultTTL, log)
	if err := owner.Acquire(ctx); err != nil {
		log.Fatal("round scheduler lease not acquired", zap.String("key", lease.DefaultKey), zap.Error(err))
	}
	log.Info("round scheduler lease acquired", zap.String("token", owner.Token()))
	go owner.Keep(ctx, stop)

	sched.Start(ctx)

	go func() {
		log.Info("http server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// para de abrir rodadas e espera a liquidação em andamento antes de fechar conexões
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := owner.Release(shutdownCtx); err != nil {
		log.Warn("round scheduler lease release failed", zap.Error(err))
	}
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("round-service stopped")
}

// allowOrigin aceita qualquer origem com "*" ou somente a origem configurada
func allowOrigin(origin string) func(r *http.Request) bool {
	if origin == "" || origin == "*" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
}
