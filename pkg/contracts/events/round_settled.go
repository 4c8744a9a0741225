package events

import "time"

// Evento publicado no tópico "round_settled" ao final de cada rodada
type RoundSettled struct {
	RoundID      string    `json:"round_id"`
	Outcome      string    `json:"outcome"`
	TotalUp      string    `json:"total_up"`
	TotalDown    string    `json:"total_down"`
	Participants int       `json:"participants"`
	Winners      int       `json:"winners"`
	TotalPayout  string    `json:"total_payout"`
	StartedAt    time.Time `json:"started_at"`
	ResolvedAt   time.Time `json:"resolved_at"`
	// LedgerSettled é false quando o batch de liquidação falhou e ficaram apostas pending
	LedgerSettled bool `json:"ledger_settled"`
}
