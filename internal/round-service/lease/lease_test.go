package lease

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeStore simula SET NX e os scripts de renovação e liberação
type fakeStore struct {
	mu     sync.Mutex
	owner  string
	setErr error
	evals  int
}

func (f *fakeStore) SetNX(_ context.Context, _ string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if f.owner != "" {
		return redis.NewBoolResult(false, nil)
	}
	f.owner = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Eval(_ context.Context, script string, _ []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.owner != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	if script == releaseScript {
		f.owner = ""
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeStore) steal(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owner = token
}

func (f *fakeStore) currentOwner() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owner
}

func TestAcquire_SecondInstanceIsRejected(t *testing.T) {
	store := &fakeStore{}
	log := zaptest.NewLogger(t)
	a := New(store, "", time.Second, log)
	b := New(store, "", time.Second, log)

	require.NoError(t, a.Acquire(context.Background()))
	require.ErrorIs(t, b.Acquire(context.Background()), ErrHeld)
	assert.Equal(t, a.Token(), store.currentOwner())
}

func TestAcquire_StoreError(t *testing.T) {
	store := &fakeStore{setErr: errors.New("conn refused")}
	l := New(store, "", time.Second, zaptest.NewLogger(t))
	err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrHeld)
}

func TestRelease_LetsAnotherInstanceAcquire(t *testing.T) {
	store := &fakeStore{}
	log := zaptest.NewLogger(t)
	a := New(store, "", time.Second, log)
	b := New(store, "", time.Second, log)

	require.NoError(t, a.Acquire(context.Background()))
	require.NoError(t, b.Release(context.Background()))
	assert.Equal(t, a.Token(), store.currentOwner(), "release by a non-owner must not free the key")

	require.NoError(t, a.Release(context.Background()))
	require.NoError(t, b.Acquire(context.Background()))
}

func TestKeep_RenewsWhileOwned(t *testing.T) {
	store := &fakeStore{}
	l := New(store, "", 30*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	lost := make(chan struct{})
	done := make(chan struct{})
	go func() {
		l.Keep(ctx, func() { close(lost) })
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.evals >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	select {
	case <-lost:
		t.Fatal("lease reported lost while owned")
	default:
	}
}

func TestKeep_ReportsLoss(t *testing.T) {
	store := &fakeStore{}
	l := New(store, "", 30*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, l.Acquire(context.Background()))
	store.steal("other-instance")

	lost := make(chan struct{})
	go l.Keep(context.Background(), func() { close(lost) })

	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatal("lease loss not reported")
	}
}
