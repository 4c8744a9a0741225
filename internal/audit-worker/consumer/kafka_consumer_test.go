package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/risefall-round-service/pkg/contracts/events"
)

type fakeStore struct {
	mu          sync.Mutex
	inserted    []events.RoundSettled
	reconciled  []string
	marked      []string
	insertFails int
}

func (s *fakeStore) InsertRoundResult(_ context.Context, e events.RoundSettled) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertFails > 0 {
		s.insertFails--
		return errors.New("db down")
	}
	s.inserted = append(s.inserted, e)
	return nil
}

func (s *fakeStore) ReconcileBets(_ context.Context, roundID, outcome, multiplier string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciled = append(s.reconciled, roundID+":"+outcome+":"+multiplier)
	return 3, nil
}

func (s *fakeStore) MarkLedgerSettled(_ context.Context, roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, roundID)
	return nil
}

type fakeDLQ struct{ keys []string }

func (d *fakeDLQ) Send(_ context.Context, key, _ []byte) error {
	d.keys = append(d.keys, string(key))
	return nil
}

type chanSource struct{ ch chan [2][]byte }

func (s chanSource) ReadNext(ctx context.Context) ([]byte, []byte, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case m := <-s.ch:
		return m[0], m[1], nil
	}
}

func settled(t *testing.T, id string, ledgerOK bool) []byte {
	t.Helper()
	b, err := json.Marshal(events.RoundSettled{
		RoundID:       id,
		Outcome:       "up",
		TotalUp:       "10",
		TotalDown:     "0",
		Participants:  1,
		Winners:       1,
		TotalPayout:   "19.5",
		StartedAt:     time.UnixMilli(1),
		ResolvedAt:    time.UnixMilli(30_001),
		LedgerSettled: ledgerOK,
	})
	require.NoError(t, err)
	return b
}

func newProcessor(t *testing.T, store *fakeStore, dlq *fakeDLQ) *Processor {
	p := &Processor{
		Log:        zaptest.NewLogger(t),
		Store:      store,
		Multiplier: "1.95",
		Retries:    2,
	}
	if dlq != nil {
		p.DLQ = dlq
	}
	return p
}

func TestHandle_PersistsSettledRound(t *testing.T) {
	store := &fakeStore{}
	p := newProcessor(t, store, &fakeDLQ{})

	p.Handle(context.Background(), []byte("100"), settled(t, "100", true))

	require.Len(t, store.inserted, 1)
	assert.Equal(t, "100", store.inserted[0].RoundID)
	assert.Equal(t, "19.5", store.inserted[0].TotalPayout)
	assert.Empty(t, store.reconciled)
}

func TestHandle_ReconcilesWhenLedgerBatchFailed(t *testing.T) {
	store := &fakeStore{}
	var reconciled int64
	p := newProcessor(t, store, &fakeDLQ{})
	p.Reconcile = true
	p.OnReconciled = func(n int64) { reconciled += n }

	p.Handle(context.Background(), []byte("200"), settled(t, "200", false))

	assert.Equal(t, []string{"200:up:1.95"}, store.reconciled)
	assert.Equal(t, []string{"200"}, store.marked)
	assert.Equal(t, int64(3), reconciled)
}

func TestHandle_FlagsUnsettledWhenReconcileDisabled(t *testing.T) {
	store := &fakeStore{}
	var stages []string
	p := newProcessor(t, store, &fakeDLQ{})
	p.OnError = func(s string) { stages = append(stages, s) }

	p.Handle(context.Background(), []byte("250"), settled(t, "250", false))

	require.Len(t, store.inserted, 1)
	assert.False(t, store.inserted[0].LedgerSettled)
	assert.Empty(t, store.reconciled)
	assert.Equal(t, []string{"unsettled"}, stages)
}

func TestHandle_RetriesThenDeadLetters(t *testing.T) {
	store := &fakeStore{insertFails: 2}
	dlq := &fakeDLQ{}
	p := newProcessor(t, store, dlq)

	p.Handle(context.Background(), []byte("300"), settled(t, "300", true))
	require.Len(t, store.inserted, 1)
	assert.Empty(t, dlq.keys)

	store.insertFails = 5
	var stages []string
	p.OnError = func(s string) { stages = append(stages, s) }
	p.Handle(context.Background(), []byte("301"), settled(t, "301", true))
	assert.Equal(t, []string{"301"}, dlq.keys)
	assert.Equal(t, []string{"db_insert"}, stages)
}

func TestHandle_InvalidPayloadGoesToDLQ(t *testing.T) {
	store := &fakeStore{}
	dlq := &fakeDLQ{}
	p := newProcessor(t, store, dlq)

	p.Handle(context.Background(), []byte("k"), []byte("{not json"))
	p.Handle(context.Background(), []byte("k2"), []byte(`{"outcome":"up"}`))

	assert.Empty(t, store.inserted)
	assert.Equal(t, []string{"k", "k2"}, dlq.keys)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	src := chanSource{ch: make(chan [2][]byte, 1)}
	p := newProcessor(t, store, nil)
	p.Source = src
	consumed := make(chan struct{}, 1)
	p.OnPersist = func() { consumed <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	src.ch <- [2][]byte{[]byte("400"), settled(t, "400", true)}
	<-consumed
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.inserted, 1)
}
