package events

// Evento publicado quando uma aposta é aceita na rodada aberta
type BetPlaced struct {
	BetID     string `json:"bet_id"`
	UserID    string `json:"user_id"`
	RoundID   string `json:"round_id"`
	Choice    string `json:"choice"` // "up" | "down"
	Amount    string `json:"amount"` // decimal em string para não perder precisão
	BonusUsed string `json:"bonus_used"`
	Balance   string `json:"balance"` // saldo após o débito, decimal em string
	TsUnixMs  int64  `json:"ts_unix_ms"`
}
