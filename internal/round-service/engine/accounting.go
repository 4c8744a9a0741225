package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/risefall-round-service/internal/round-service/wallet"
)

// PayoutMultiplier é o múltiplo pago ao vencedor sobre o valor apostado
var PayoutMultiplier = decimal.RequireFromString("1.95")

// Payout calcula o prêmio de uma aposta vencedora
func Payout(stake decimal.Decimal) decimal.Decimal {
	return stake.Mul(PayoutMultiplier)
}

// DebitForBet calcula o novo estado da carteira após uma aposta.
//
// O valor apostado sai inteiro do saldo. Se houver bônus, consome min(bônus, aposta)
// do saldo de bônus e soma esse valor em BonusConsumed; o saldo não é afetado de novo.
func DebitForBet(w wallet.Account, stake decimal.Decimal) wallet.Account {
	consumed := decimal.Zero
	if w.BonusBalance.IsPositive() {
		consumed = decimal.Min(w.BonusBalance, stake)
	}
	return wallet.Account{
		UserID:        w.UserID,
		Balance:       w.Balance.Sub(stake),
		BonusBalance:  w.BonusBalance.Sub(consumed),
		BonusConsumed: w.BonusConsumed.Add(consumed),
	}
}

// Accountant aplica débitos e créditos nas carteiras, um por vez por carteira
type Accountant struct {
	wallets WalletStore
	locks   *keyedMutex
}

func NewAccountant(w WalletStore) *Accountant {
	return &Accountant{wallets: w, locks: newKeyedMutex()}
}

// Wallet lê a carteira sem mutação
func (a *Accountant) Wallet(ctx context.Context, userID string) (wallet.Account, error) {
	acc, err := a.wallets.GetWallet(ctx, userID)
	if errors.Is(err, wallet.ErrNotFound) {
		return wallet.Account{}, ErrWalletNotFound
	}
	return acc, err
}

// Debit confere saldo e debita a aposta de forma serializada para a carteira.
// Retorna o delta aplicado (para eventual estorno) e o estado após a mutação.
func (a *Accountant) Debit(ctx context.Context, userID string, stake decimal.Decimal, ref string) (wallet.Delta, wallet.Account, error) {
	unlock := a.locks.Lock(userID)
	defer unlock()

	cur, err := a.wallets.GetWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return wallet.Delta{}, wallet.Account{}, ErrWalletNotFound
		}
		return wallet.Delta{}, wallet.Account{}, fmt.Errorf("get wallet: %w", err)
	}
	if cur.Balance.LessThan(stake) {
		return wallet.Delta{}, cur, ErrInsufficientFunds
	}

	next := DebitForBet(cur, stake)
	d := wallet.Delta{
		Operation:     wallet.OpBetDebit,
		Ref:           ref,
		Balance:       next.Balance.Sub(cur.Balance),
		BonusBalance:  next.BonusBalance.Sub(cur.BonusBalance),
		BonusConsumed: next.BonusConsumed.Sub(cur.BonusConsumed),
	}
	after, err := a.wallets.ApplyDelta(ctx, userID, d)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrNotFound):
			return wallet.Delta{}, wallet.Account{}, ErrWalletNotFound
		case errors.Is(err, wallet.ErrInsufficientFunds):
			return wallet.Delta{}, cur, ErrInsufficientFunds
		}
		return wallet.Delta{}, wallet.Account{}, fmt.Errorf("apply debit: %w", err)
	}
	return d, after, nil
}

// Refund desfaz um débito aplicado por Debit
func (a *Accountant) Refund(ctx context.Context, userID string, d wallet.Delta) (wallet.Account, error) {
	unlock := a.locks.Lock(userID)
	defer unlock()

	rev := d.Reverse()
	rev.Operation = wallet.OpBetRefund
	return a.wallets.ApplyDelta(ctx, userID, rev)
}

// CreditPayout credita o prêmio somente no saldo; bônus não participa
func (a *Accountant) CreditPayout(ctx context.Context, userID string, payout decimal.Decimal, ref string) (wallet.Account, error) {
	unlock := a.locks.Lock(userID)
	defer unlock()

	after, err := a.wallets.ApplyDelta(ctx, userID, wallet.Delta{
		Operation:     wallet.OpPayoutCredit,
		Ref:           ref,
		Balance:       payout,
		BonusBalance:  decimal.Zero,
		BonusConsumed: decimal.Zero,
	})
	if err != nil {
		return wallet.Account{}, fmt.Errorf("%w: %v", ErrPayoutCredit, err)
	}
	return after, nil
}
