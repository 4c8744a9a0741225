package wallet

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory é uma implementação em memória, usada em testes e no modo local
type Memory struct {
	mu       sync.Mutex
	accounts map[string]Account

	// FailApply, se definido, é consultado antes de cada ApplyDelta
	FailApply func(userID string, d Delta) error
}

func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]Account)}
}

// Seed cria ou substitui a carteira do usuário
func (m *Memory) Seed(userID string, balance, bonus decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[userID] = Account{
		UserID:        userID,
		Balance:       balance,
		BonusBalance:  bonus,
		BonusConsumed: decimal.Zero,
	}
}

func (m *Memory) GetWallet(_ context.Context, userID string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) ApplyDelta(_ context.Context, userID string, d Delta) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailApply != nil {
		if err := m.FailApply(userID, d); err != nil {
			return Account{}, err
		}
	}
	cur, ok := m.accounts[userID]
	if !ok {
		return Account{}, ErrNotFound
	}
	next, err := cur.apply(d)
	if err != nil {
		return Account{}, err
	}
	m.accounts[userID] = next
	return next, nil
}
