package wallet

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

// Operation identifica o tipo de lançamento no wallet_ledger
type Operation string

const (
	OpBetDebit     Operation = "BET_DEBIT"
	OpPayoutCredit Operation = "PAYOUT_CREDIT"
	OpBetRefund    Operation = "BET_REFUND"
)

// Account é a carteira do participante: saldo, saldo de bônus e bônus já consumido
type Account struct {
	UserID        string
	Balance       decimal.Decimal
	BonusBalance  decimal.Decimal
	BonusConsumed decimal.Decimal
}

// Delta é uma variação relativa aplicada atomicamente nos três campos
type Delta struct {
	Operation     Operation
	Ref           string
	Balance       decimal.Decimal
	BonusBalance  decimal.Decimal
	BonusConsumed decimal.Decimal
}

// Reverse retorna o delta oposto
func (d Delta) Reverse() Delta {
	return Delta{
		Operation:     d.Operation,
		Ref:           d.Ref,
		Balance:       d.Balance.Neg(),
		BonusBalance:  d.BonusBalance.Neg(),
		BonusConsumed: d.BonusConsumed.Neg(),
	}
}

func (a Account) apply(d Delta) (Account, error) {
	next := Account{
		UserID:        a.UserID,
		Balance:       a.Balance.Add(d.Balance),
		BonusBalance:  a.BonusBalance.Add(d.BonusBalance),
		BonusConsumed: a.BonusConsumed.Add(d.BonusConsumed),
	}
	if next.Balance.IsNegative() || next.BonusBalance.IsNegative() {
		return a, ErrInsufficientFunds
	}
	return next, nil
}
