package consumer

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/risefall-round-service/pkg/contracts/events"
)

// Source é a origem das mensagens (kafka.Reader em produção)
type Source interface {
	ReadNext(ctx context.Context) (key, value []byte, err error)
}

// Store é onde o resumo das rodadas é gravado
type Store interface {
	InsertRoundResult(ctx context.Context, e events.RoundSettled) error
	ReconcileBets(ctx context.Context, roundID, outcome, multiplier string) (int64, error)
	MarkLedgerSettled(ctx context.Context, roundID string) error
}

// DeadLetter recebe mensagens que não puderam ser gravadas após as tentativas
type DeadLetter interface {
	Send(ctx context.Context, key, value []byte) error
}

// Processor consome round_settled do Kafka e persiste em round_results.
// Rodadas com ledger_settled=false são sinalizadas; com Reconcile ligado,
// as apostas pendentes são liquidadas pelo worker.
type Processor struct {
	Log        *zap.Logger
	Source     Source
	Store      Store
	DLQ        DeadLetter // opcional
	Reconcile  bool
	Multiplier string // multiplicador de prêmio usado na reconciliação

	Retries int
	Backoff time.Duration

	OnConsumed   func()       // métricas (counter++)
	OnPersist    func()       // métricas
	OnReconciled func(int64)  // métricas: apostas reconciliadas
	OnError      func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		key, value, err := p.Source.ReadNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.onError("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.Handle(ctx, key, value)
	}
}

// Handle processa uma única mensagem; falhas persistentes vão para a DLQ
func (p *Processor) Handle(ctx context.Context, key, value []byte) {
	var ev events.RoundSettled
	if err := json.Unmarshal(value, &ev); err != nil || ev.RoundID == "" {
		p.Log.Warn("invalid message", zap.ByteString("key", key), zap.Error(err))
		p.onError("decode")
		p.deadLetter(ctx, key, value)
		return
	}
	log := p.Log.With(zap.String("round_id", ev.RoundID))

	if err := p.retry(ctx, func() error { return p.Store.InsertRoundResult(ctx, ev) }); err != nil {
		log.Error("round result insert failed", zap.Error(err))
		p.onError("db_insert")
		p.deadLetter(ctx, key, value)
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}

	if ev.LedgerSettled {
		return
	}
	if !p.Reconcile {
		log.Warn("round left pending bets; reconciliation disabled", zap.String("outcome", ev.Outcome))
		p.onError("unsettled")
		return
	}
	var n int64
	err := p.retry(ctx, func() error {
		var rerr error
		n, rerr = p.Store.ReconcileBets(ctx, ev.RoundID, ev.Outcome, p.Multiplier)
		return rerr
	})
	if err != nil {
		log.Error("bet reconciliation failed", zap.Error(err))
		p.onError("reconcile")
		return
	}
	if err := p.Store.MarkLedgerSettled(ctx, ev.RoundID); err != nil {
		log.Warn("mark ledger settled failed", zap.Error(err))
		p.onError("mark_settled")
	}
	if p.OnReconciled != nil {
		p.OnReconciled(n)
	}
	log.Info("pending bets reconciled", zap.Int64("bets", n))
}

// retry tenta fn até Retries vezes extras com backoff linear
func (p *Processor) retry(ctx context.Context, fn func() error) error {
	err := fn()
	for i := 0; err != nil && i < p.Retries; i++ {
		if !sleep(ctx, time.Duration(i+1)*p.Backoff) {
			return ctx.Err()
		}
		err = fn()
	}
	return err
}

func (p *Processor) deadLetter(ctx context.Context, key, value []byte) {
	if p.DLQ == nil {
		return
	}
	if err := p.DLQ.Send(ctx, key, value); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.onError("dlq")
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
