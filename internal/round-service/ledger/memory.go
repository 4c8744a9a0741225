package ledger

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Memory guarda apostas em memória, na ordem de inserção
type Memory struct {
	mu    sync.Mutex
	bets  map[string]*Bet
	order []string

	// FailInsert e FailSettle permitem simular falhas do armazenamento
	FailInsert error
	FailSettle error
}

func NewMemory() *Memory {
	return &Memory{bets: make(map[string]*Bet)}
}

func (m *Memory) InsertBet(_ context.Context, b *Bet) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert != nil {
		return "", m.FailInsert
	}
	now := time.Now()
	cp := *b
	cp.ID = uuid.NewString()
	cp.Status = StatusPending
	cp.Payout = decimal.Zero
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.bets[cp.ID] = &cp
	m.order = append(m.order, cp.ID)
	b.ID = cp.ID
	b.Status = StatusPending
	return cp.ID, nil
}

func (m *Memory) FindPendingByRound(_ context.Context, roundID string) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bet
	for _, id := range m.order {
		b := m.bets[id]
		if b.RoundID == roundID && b.Status == StatusPending {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *Memory) BulkSettle(_ context.Context, updates []Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSettle != nil {
		return m.FailSettle
	}
	now := time.Now()
	for _, u := range updates {
		b, ok := m.bets[u.BetID]
		if !ok || b.Status != StatusPending {
			continue
		}
		b.Status = u.Status
		b.Payout = u.Payout
		b.UpdatedAt = now
	}
	return nil
}

func (m *Memory) GetBet(_ context.Context, betID string) (Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betID]
	if !ok {
		return Bet{}, sql.ErrNoRows
	}
	return *b, nil
}

// Bets retorna todas as apostas de uma rodada
func (m *Memory) Bets(roundID string) []Bet {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bet
	for _, id := range m.order {
		if b := m.bets[id]; b.RoundID == roundID {
			out = append(out, *b)
		}
	}
	return out
}
