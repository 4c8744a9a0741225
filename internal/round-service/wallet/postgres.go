package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Postgres implementa o acesso às carteiras em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// GetWallet retorna saldo, bônus e bônus consumido do usuário
func (p *Postgres) GetWallet(ctx context.Context, userID string) (Account, error) {
	a := Account{UserID: userID}
	err := p.db.QueryRowContext(ctx,
		`SELECT balance, bonus_balance, bonus_consumed FROM wallets WHERE user_id=$1`, userID).
		Scan(&a.Balance, &a.BonusBalance, &a.BonusConsumed)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

// ApplyDelta aplica a variação e registra o lançamento no wallet_ledger.
// Lock pessimista na linha da carteira serializa mutações concorrentes.
func (p *Postgres) ApplyDelta(ctx context.Context, userID string, d Delta) (Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	var walletID string
	cur := Account{UserID: userID}
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance, bonus_balance, bonus_consumed FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).
		Scan(&walletID, &cur.Balance, &cur.BonusBalance, &cur.BonusConsumed)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}

	next, err := cur.apply(d)
	if err != nil {
		return Account{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance=$1, bonus_balance=$2, bonus_consumed=$3, version=version+1, updated_at=NOW()
		WHERE id=$4`,
		next.Balance, next.BonusBalance, next.BonusConsumed, walletID); err != nil {
		return Account{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger(id, wallet_id, operation_type, amount, bonus_amount, description)
		VALUES($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), walletID, string(d.Operation), d.Balance, d.BonusBalance, d.Ref); err != nil {
		return Account{}, err
	}

	if err = tx.Commit(); err != nil {
		return Account{}, err
	}
	return next, nil
}
