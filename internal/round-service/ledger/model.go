package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status de liquidação de uma aposta
type Status string

const (
	StatusPending Status = "pending"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// Bet é o registro persistido de uma aposta
type Bet struct {
	ID        string
	UserID    string
	RoundID   string
	Choice    string
	Amount    decimal.Decimal
	Status    Status
	Payout    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Settlement é a atualização aplicada a uma aposta pendente na liquidação
type Settlement struct {
	BetID  string
	Status Status
	Payout decimal.Decimal
}
