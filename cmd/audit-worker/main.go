package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/radieske/risefall-round-service/internal/audit-worker/consumer"
	"github.com/radieske/risefall-round-service/internal/audit-worker/repository"
	"github.com/radieske/risefall-round-service/internal/round-service/engine"
	"github.com/radieske/risefall-round-service/internal/shared/config"
	"github.com/radieske/risefall-round-service/internal/shared/db"
	"github.com/radieske/risefall-round-service/internal/shared/kafka"
	"github.com/radieske/risefall-round-service/internal/shared/logger"
	"github.com/radieske/risefall-round-service/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Conexão com Postgres: round_results e reconciliação de apostas pendentes
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer (consumer group audit-worker) para round_settled
	reader := kafka.NewReader(cfg.Brokers(), cfg.TopicRoundSettled, cfg.AuditGroupID)
	defer reader.Close()

	var dlq consumer.DeadLetter
	if cfg.TopicRoundSettledDLQ != "" {
		w := kafka.NewWriter(cfg.Brokers(), cfg.TopicRoundSettledDLQ)
		defer w.Close()
		dlq = kafka.Sink{W: w}
	}

	// Métricas Prometheus para monitoramento do processamento
	consumed := promauto.NewCounter(prometheus.CounterOpts{Name: "risefall_audit_messages_consumed_total", Help: "mensagens consumidas"})
	persist := promauto.NewCounter(prometheus.CounterOpts{Name: "risefall_audit_round_results_total", Help: "rodadas gravadas em round_results"})
	reconciled := promauto.NewCounter(prometheus.CounterOpts{Name: "risefall_audit_bets_reconciled_total", Help: "apostas pendentes liquidadas pelo worker"})
	errorsBy := promauto.NewCounterVec(prometheus.CounterOpts{Name: "risefall_audit_errors_total", Help: "erros por estágio"}, []string{"stage"})

	proc := &consumer.Processor{
		Log:          log,
		Source:       kafka.Source{R: reader},
		Store:        repository.NewPostgresRepo(pg),
		DLQ:          dlq,
		Reconcile:    cfg.AuditReconcile,
		Multiplier:   engine.PayoutMultiplier.String(),
		Retries:      3,
		Backoff:      300 * time.Millisecond,
		OnConsumed:   func() { consumed.Inc() },
		OnPersist:    func() { persist.Inc() },
		OnReconciled: func(n int64) { reconciled.Add(float64(n)) },
		OnError:      func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("audit-worker started",
		zap.String("consume", cfg.TopicRoundSettled),
		zap.String("dlq", cfg.TopicRoundSettledDLQ))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	_ = metricsSrv.Close()
	log.Info("audit-worker stopped")
}
