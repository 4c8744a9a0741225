package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/risefall-round-service/internal/round-service/ledger"
	"github.com/radieske/risefall-round-service/internal/round-service/wallet"
	"github.com/radieske/risefall-round-service/pkg/contracts/events"
)

type sentMsg struct {
	user    string
	event   string
	payload any
}

// recorder captura broadcasts e mensagens privadas
type recorder struct {
	mu         sync.Mutex
	broadcasts []sentMsg
	private    []sentMsg
}

func (r *recorder) Broadcast(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, sentMsg{event: event, payload: payload})
}

func (r *recorder) SendToUser(userID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.private = append(r.private, sentMsg{user: userID, event: event, payload: payload})
}

func (r *recorder) broadcastsOf(event string) []sentMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMsg
	for _, m := range r.broadcasts {
		if m.event == event {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) privateOf(user, event string) []sentMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMsg
	for _, m := range r.private {
		if m.user == user && m.event == event {
			out = append(out, m)
		}
	}
	return out
}

type fakeSession struct {
	mu     sync.Mutex
	joined []string
	sent   []sentMsg
}

func (s *fakeSession) JoinPrivate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, userID)
}

func (s *fakeSession) Send(event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMsg{event: event, payload: payload})
}

func (s *fakeSession) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.event)
	}
	return out
}

func (s *fakeSession) last(event string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].event == event {
			return s.sent[i].payload, true
		}
	}
	return nil, false
}

// capturePublisher guarda os eventos publicados
type capturePublisher struct {
	mu      sync.Mutex
	placed  []events.BetPlaced
	settled []events.RoundSettled
}

func (p *capturePublisher) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return nil
}

func (p *capturePublisher) PublishRoundSettled(_ context.Context, e events.RoundSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, e)
	return nil
}

func (p *capturePublisher) betsPlaced() []events.BetPlaced {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.BetPlaced(nil), p.placed...)
}

// ctxWallet falha em contexto cancelado, como faz database/sql
type ctxWallet struct {
	*wallet.Memory
}

func (w ctxWallet) ApplyDelta(ctx context.Context, userID string, d wallet.Delta) (wallet.Account, error) {
	if err := ctx.Err(); err != nil {
		return wallet.Account{}, err
	}
	return w.Memory.ApplyDelta(ctx, userID, d)
}

// hookLedger deixa o teste decidir o que acontece no InsertBet
type hookLedger struct {
	*ledger.Memory
	insert func(ctx context.Context) error
}

func (l hookLedger) InsertBet(ctx context.Context, b *ledger.Bet) (string, error) {
	if err := l.insert(ctx); err != nil {
		return "", err
	}
	return l.Memory.InsertBet(ctx, b)
}

type harness struct {
	s         *Scheduler
	wallets   *wallet.Memory
	ledger    *ledger.Memory
	notes     *recorder
	publisher *capturePublisher
}

func newHarness(t *testing.T, outcome Choice, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		wallets:   wallet.NewMemory(),
		ledger:    ledger.NewMemory(),
		notes:     &recorder{},
		publisher: &capturePublisher{},
	}
	opts = append([]Option{withRoundDuration(time.Hour)}, opts...)
	h.s = NewScheduler(zaptest.NewLogger(t), Deps{
		Wallets:   h.wallets,
		Ledger:    h.ledger,
		Notifier:  h.notes,
		Outcomes:  FixedOutcome(outcome),
		Publisher: h.publisher,
	}, opts...)
	t.Cleanup(h.s.Stop)
	return h
}

// resolve fecha a rodada corrente e espera as notificações assíncronas
func (h *harness) resolve(t *testing.T) *Round {
	t.Helper()
	r := h.s.currentRound()
	require.NotNil(t, r)
	require.True(t, h.s.resolveRound(r))
	h.s.inflight.Wait()
	return r
}

func (h *harness) account(t *testing.T, userID string) wallet.Account {
	t.Helper()
	a, err := h.wallets.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return a
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}
