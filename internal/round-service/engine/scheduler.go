// Package engine implementa o ciclo de vida das rodadas up/down: abertura, apostas,
// resolução, liquidação e histórico.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/risefall-round-service/internal/round-service/ledger"
	"github.com/radieske/risefall-round-service/internal/shared/metrics"
	"github.com/radieske/risefall-round-service/pkg/contracts/events"
)

// RoundDuration é a duração fixa de cada rodada
const RoundDuration = 30 * time.Second

// PlacementTimeout limita o I/O de carteira e ledger feito com a rodada travada para leitura
const PlacementTimeout = 5 * time.Second

// payoutConcurrency limita créditos simultâneos na liquidação
const payoutConcurrency = 16

// Deps agrupa os colaboradores externos do Scheduler
type Deps struct {
	Wallets   WalletStore
	Ledger    BetLedger
	Notifier  Notifier
	Outcomes  OutcomeSource  // opcional; padrão 50/50 aleatório
	Publisher EventPublisher // opcional
}

type Option func(*Scheduler)

// WithMinStake define o valor mínimo aceito por aposta (zero = qualquer valor positivo)
func WithMinStake(min decimal.Decimal) Option {
	return func(s *Scheduler) { s.minStake = min }
}

// WithClock substitui o relógio usado para timestamps das rodadas
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func withRoundDuration(d time.Duration) Option {
	return func(s *Scheduler) { s.roundDuration = d }
}

func withPlacementTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.placementTimeout = d }
}

// Scheduler é o dono único da rodada corrente e do timer.
// Acesso externo só por Start/Stop/PlaceBet/Join/Snapshot.
type Scheduler struct {
	log        *zap.Logger
	ledger     BetLedger
	notifier   Notifier
	outcomes   OutcomeSource
	publisher  EventPublisher
	accountant *Accountant
	history    *History
	ids        roundIDs

	minStake         decimal.Decimal
	roundDuration    time.Duration
	placementTimeout time.Duration
	now              func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	current  *Round
	timer    *time.Timer
	stopped  bool
	inflight sync.WaitGroup
}

// NewScheduler cria o scheduler; a primeira rodada só abre em Start
func NewScheduler(log *zap.Logger, d Deps, opts ...Option) *Scheduler {
	s := &Scheduler{
		log:              log,
		ledger:           d.Ledger,
		notifier:         d.Notifier,
		outcomes:         d.Outcomes,
		publisher:        d.Publisher,
		accountant:       NewAccountant(d.Wallets),
		history:          NewHistory(HistoryCapacity),
		minStake:         decimal.Zero,
		roundDuration:    RoundDuration,
		placementTimeout: PlacementTimeout,
		now:              time.Now,
		ctx:              context.Background(),
		cancel:           func() {},
	}
	if s.outcomes == nil {
		s.outcomes = NewRandomOutcome()
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start abre a primeira rodada e arma o timer
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.log.Info("round scheduler started", zap.Duration("round_duration", s.roundDuration))
	s.openNewRound()
}

// Stop desarma o timer e espera uma resolução em andamento terminar
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	cancel := s.cancel
	s.mu.Unlock()

	s.inflight.Wait()
	cancel()
	s.log.Info("round scheduler stopped")
}

// openNewRound cria a rodada seguinte, substitui o timer e anuncia a rodada
func (s *Scheduler) openNewRound() {
	now := s.now()
	r := newRound(s.ids.next(now), now)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.current = r
	s.timer = time.AfterFunc(s.roundDuration, func() { s.onTimer(r) })
	s.mu.Unlock()

	s.log.Info("round opened", zap.String("round_id", r.ID), zap.Time("started_at", r.CreatedAt))

	s.notifier.Broadcast(EventRoundStarted, RoundStartedMsg{
		RoundID:    r.ID,
		StartedAt:  r.CreatedAt,
		ServerTime: s.now().UnixMilli(),
		History:    HistoryItems(s.history.Recent(BroadcastHistory)),
	})
}

func (s *Scheduler) onTimer(r *Round) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	if s.resolveRound(r) {
		s.openNewRound()
	}
}

type payoutResult struct {
	credited bool
	balance  BalanceMsg
}

// resolveRound sorteia o resultado, liquida apostas, credita vencedores, arquiva e notifica.
// Retorna false se a rodada já tinha sido resolvida.
func (s *Scheduler) resolveRound(r *Round) bool {
	started := time.Now()
	outcome := s.outcomes.Draw()
	if !r.close(outcome, s.now()) {
		s.log.Warn("round already resolving", zap.String("round_id", r.ID))
		return false
	}
	view := r.View()
	ctx := context.WithoutCancel(s.baseContext())
	log := s.log.With(zap.String("round_id", r.ID), zap.String("outcome", string(outcome)))

	// ledger e créditos são independentes: falha em um não bloqueia o outro
	var g errgroup.Group
	g.SetLimit(payoutConcurrency + 1)

	ledgerSettled := true
	g.Go(func() error {
		if err := s.settleLedger(ctx, r.ID, outcome); err != nil {
			ledgerSettled = false
			metrics.SettlementBatchFailed()
			log.Error("settlement batch failed; pending bets left unsettled", zap.Error(err))
		}
		return nil
	})

	payouts := make([]payoutResult, len(view.Participants))
	for i, p := range view.Participants {
		if p.Choice != outcome {
			continue
		}
		g.Go(func() error {
			after, err := s.accountant.CreditPayout(ctx, p.UserID, Payout(p.Amount), "payout:"+r.ID+":"+p.BetID)
			if err != nil {
				metrics.PayoutCreditFailed()
				log.Error("payout credit failed",
					zap.String("user_id", p.UserID),
					zap.String("bet_id", p.BetID),
					zap.String("payout", Payout(p.Amount).String()),
					zap.Error(err))
				return nil
			}
			payouts[i] = payoutResult{credited: true, balance: BalanceMsg{
				Balance:      after.Balance.InexactFloat64(),
				BonusBalance: after.BonusBalance.InexactFloat64(),
			}}
			return nil
		})
	}
	_ = g.Wait()

	if len(view.Participants) > 0 {
		s.history.Append(HistoryEntry{
			RoundID:    r.ID,
			Outcome:    outcome,
			Totals:     view.Totals,
			ResolvedAt: view.ResolvedAt,
		})
	}
	r.markSettled()

	s.notifier.Broadcast(EventRoundResult, RoundResultMsg{
		RoundID: r.ID,
		Outcome: string(outcome),
		Totals:  toTotalsItem(view.Totals),
		History: HistoryItems(s.history.Recent(BroadcastHistory)),
	})

	winners := 0
	totalPayout := decimal.Zero
	for _, p := range view.Participants {
		if p.Choice == outcome {
			winners++
			totalPayout = totalPayout.Add(Payout(p.Amount))
		}
	}

	// notificações privadas e evento externo não seguram a próxima rodada
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.notifyParticipants(view, outcome, payouts)
		if err := s.publisher.PublishRoundSettled(ctx, events.RoundSettled{
			RoundID:       r.ID,
			Outcome:       string(outcome),
			TotalUp:       view.Totals.Up.String(),
			TotalDown:     view.Totals.Down.String(),
			Participants:  len(view.Participants),
			Winners:       winners,
			TotalPayout:   totalPayout.String(),
			StartedAt:     view.CreatedAt,
			ResolvedAt:    view.ResolvedAt,
			LedgerSettled: ledgerSettled,
		}); err != nil {
			log.Warn("publish round_settled failed", zap.Error(err))
		}
	}()

	metrics.RecordSettlement(string(outcome), started)
	log.Info("round settled",
		zap.Int("participants", len(view.Participants)),
		zap.Int("winners", winners),
		zap.String("total_up", view.Totals.Up.String()),
		zap.String("total_down", view.Totals.Down.String()),
		zap.String("total_payout", totalPayout.String()),
		zap.Bool("ledger_settled", ledgerSettled),
		zap.Duration("duration", time.Since(started)))
	return true
}

// settleLedger marca cada aposta pendente da rodada como won/lost num único batch
func (s *Scheduler) settleLedger(ctx context.Context, roundID string, outcome Choice) error {
	pending, err := s.ledger.FindPendingByRound(ctx, roundID)
	if err != nil {
		return fmt.Errorf("%w: find pending: %v", ErrSettlementBatch, err)
	}
	if len(pending) == 0 {
		return nil
	}
	updates := make([]ledger.Settlement, 0, len(pending))
	for _, b := range pending {
		u := ledger.Settlement{BetID: b.ID, Status: ledger.StatusLost, Payout: decimal.Zero}
		if Choice(b.Choice) == outcome {
			u.Status = ledger.StatusWon
			u.Payout = Payout(b.Amount)
		}
		updates = append(updates, u)
	}
	if err := s.ledger.BulkSettle(ctx, updates); err != nil {
		return fmt.Errorf("%w: bulk settle %d bets: %v", ErrSettlementBatch, len(updates), err)
	}
	return nil
}

func (s *Scheduler) notifyParticipants(view RoundView, outcome Choice, payouts []payoutResult) {
	for i, p := range view.Participants {
		msg := RoundOutcomeMsg{
			RoundID:     view.ID,
			Result:      "lose",
			Choice:      string(p.Choice),
			WinningSide: string(outcome),
			Amount:      0,
			Message:     "You lost this round!",
		}
		if p.Choice == outcome {
			win := Payout(p.Amount)
			msg.Result = "win"
			msg.Amount = win.InexactFloat64()
			msg.Message = fmt.Sprintf("You won %s!", win.StringFixed(2))
		}
		s.notifier.SendToUser(p.UserID, EventRoundOutcome, msg)
		if payouts[i].credited {
			s.notifier.SendToUser(p.UserID, EventBalance, payouts[i].balance)
		}
	}
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) currentRound() *Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Join responde ao solicitante com o snapshot da rodada corrente e o histórico recente
func (s *Scheduler) Join(sess Session) {
	sess.Send(EventRoundState, s.Snapshot())
}

// Snapshot monta o estado atual para novos inscritos
func (s *Scheduler) Snapshot() RoundStateMsg {
	now := s.now()
	msg := RoundStateMsg{History: HistoryItems(s.history.Recent(BroadcastHistory))}
	if r := s.currentRound(); r != nil {
		left := s.roundDuration - now.Sub(r.CreatedAt)
		if left < 0 {
			left = 0
		}
		msg.CurrentRound = CurrentRoundItem{
			RoundID:    r.ID,
			StartedAt:  r.CreatedAt,
			TimeLeft:   left.Milliseconds(),
			ServerTime: now.UnixMilli(),
		}
	}
	return msg
}

// Current retorna uma cópia da rodada corrente
func (s *Scheduler) Current() (RoundView, bool) {
	r := s.currentRound()
	if r == nil {
		return RoundView{}, false
	}
	return r.View(), true
}

// History retorna as últimas n rodadas arquivadas
func (s *Scheduler) History(n int) []HistoryEntry {
	return s.history.Recent(n)
}

// Accountant expõe as operações de carteira usadas pelo scheduler
func (s *Scheduler) Accountant() *Accountant { return s.accountant }
