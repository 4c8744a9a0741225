package httpapi

import "time"

// WalletResponse é a carteira exposta em GET /v1/wallets/{userId}
type WalletResponse struct {
	UserID        string  `json:"userId"`
	Balance       float64 `json:"balance"`
	BonusBalance  float64 `json:"bonusBalance"`
	BonusConsumed float64 `json:"bonusConsumed"`
}

// PlaceBetResponse é a resposta de POST /v1/bets aceito
type PlaceBetResponse struct {
	BetID        string  `json:"betId"`
	RoundID      string  `json:"roundId"`
	Choice       string  `json:"choice"`
	Amount       float64 `json:"amount"`
	Balance      float64 `json:"balance"`
	BonusBalance float64 `json:"bonusBalance"`
}

// BetResponse é uma aposta do ledger em GET /v1/bets/{id}
type BetResponse struct {
	BetID     string    `json:"betId"`
	UserID    string    `json:"userId"`
	RoundID   string    `json:"roundId"`
	Choice    string    `json:"choice"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	Payout    float64   `json:"payout"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrorResponse segue o mesmo formato de bet:error do WebSocket
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
