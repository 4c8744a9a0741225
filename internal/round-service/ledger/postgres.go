package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Postgres implementa a persistência de apostas em banco Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// InsertBet insere uma nova aposta com status pending e retorna o id gerado
func (p *Postgres) InsertBet(ctx context.Context, b *Bet) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets (id,user_id,round_id,choice,amount,status,payout)
		VALUES ($1,$2,$3,$4,$5,'pending',0)`,
		id, b.UserID, b.RoundID, b.Choice, b.Amount,
	)
	if err != nil {
		return "", err
	}
	b.ID = id
	b.Status = StatusPending
	return id, nil
}

// FindPendingByRound retorna as apostas ainda pendentes de uma rodada
func (p *Postgres) FindPendingByRound(ctx context.Context, roundID string) ([]Bet, error) {
	const q = `
		SELECT id, user_id, round_id, choice, amount, status, payout, created_at, updated_at
		FROM bets
		WHERE round_id = $1 AND status = 'pending'
		ORDER BY created_at;
	`
	rows, err := p.db.QueryContext(ctx, q, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bet
	for rows.Next() {
		var b Bet
		var st string
		if err := rows.Scan(&b.ID, &b.UserID, &b.RoundID, &b.Choice, &b.Amount, &st, &b.Payout, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Status = Status(st)
		out = append(out, b)
	}
	return out, rows.Err()
}

// BulkSettle aplica todas as liquidações numa única transação.
// O filtro status='pending' garante que uma aposta não é liquidada duas vezes.
func (p *Postgres) BulkSettle(ctx context.Context, updates []Settlement) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE bets SET status=$1, payout=$2, updated_at=NOW()
		WHERE id=$3 AND status='pending'`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, string(u.Status), u.Payout, u.BetID); err != nil {
			return fmt.Errorf("settle bet %s: %w", u.BetID, err)
		}
	}
	return tx.Commit()
}

// GetBet retorna uma aposta pelo id
func (p *Postgres) GetBet(ctx context.Context, betID string) (Bet, error) {
	var b Bet
	var st string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, round_id, choice, amount, status, payout, created_at, updated_at
		FROM bets WHERE id=$1`, betID).
		Scan(&b.ID, &b.UserID, &b.RoundID, &b.Choice, &b.Amount, &st, &b.Payout, &b.CreatedAt, &b.UpdatedAt)
	b.Status = Status(st)
	return b, err
}
