package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/risefall-round-service/pkg/contracts/events"
)

// PostgresRepo persiste o resumo das rodadas liquidadas
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// InsertRoundResult grava o resumo da rodada em round_results.
// ON CONFLICT torna a gravação idempotente para reentregas do Kafka.
func (r *PostgresRepo) InsertRoundResult(ctx context.Context, e events.RoundSettled) error {
	const q = `
		INSERT INTO round_results
		  (round_id, outcome, total_up, total_down, participants, winners, total_payout,
		   started_at, resolved_at, ledger_settled)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (round_id) DO UPDATE SET
		  ledger_settled = round_results.ledger_settled OR EXCLUDED.ledger_settled
	`
	_, err := r.DB.ExecContext(ctx, q,
		e.RoundID, e.Outcome, e.TotalUp, e.TotalDown, e.Participants, e.Winners, e.TotalPayout,
		e.StartedAt, e.ResolvedAt, e.LedgerSettled,
	)
	return err
}

// ReconcileBets liquida apostas que ficaram pending porque o batch da rodada falhou.
// Carteiras não são tocadas: os créditos dos vencedores já foram feitos pelo round-service.
func (r *PostgresRepo) ReconcileBets(ctx context.Context, roundID, outcome, multiplier string) (int64, error) {
	const q = `
		UPDATE bets SET
		  status     = CASE WHEN choice = $2 THEN 'won' ELSE 'lost' END,
		  payout     = CASE WHEN choice = $2 THEN amount * $3::numeric ELSE 0 END,
		  updated_at = NOW()
		WHERE round_id = $1 AND status = 'pending'
	`
	res, err := r.DB.ExecContext(ctx, q, roundID, outcome, multiplier)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkLedgerSettled registra que a rodada foi reconciliada
func (r *PostgresRepo) MarkLedgerSettled(ctx context.Context, roundID string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE round_results SET ledger_settled = TRUE WHERE round_id = $1`, roundID)
	return err
}
