package engine

import "time"

// Eventos enviados aos clientes
const (
	EventRoundStarted = "round:started"
	EventRoundState   = "round:state"
	EventRoundResult  = "round:result"
	EventRoundOutcome = "round:outcome"
	EventBetPlaced    = "bet:placed"
	EventBalance      = "balance:update"
	EventBetError     = "bet:error"
)

// HistoryItem é a forma serializada de HistoryEntry
type HistoryItem struct {
	RoundID string     `json:"roundId"`
	Outcome string     `json:"result"`
	Totals  TotalsItem `json:"totals"`
	EndedAt time.Time  `json:"endedAt"`
}

type TotalsItem struct {
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

type RoundStartedMsg struct {
	RoundID    string        `json:"roundId"`
	StartedAt  time.Time     `json:"startedAt"`
	ServerTime int64         `json:"serverTime"`
	History    []HistoryItem `json:"history"`
}

type CurrentRoundItem struct {
	RoundID    string    `json:"roundId"`
	StartedAt  time.Time `json:"startedAt"`
	TimeLeft   int64     `json:"timeLeft"`
	ServerTime int64     `json:"serverTime"`
}

type RoundStateMsg struct {
	CurrentRound CurrentRoundItem `json:"currentRound"`
	History      []HistoryItem    `json:"history"`
}

type RoundResultMsg struct {
	RoundID string        `json:"roundId"`
	Outcome string        `json:"result"`
	Totals  TotalsItem    `json:"totals"`
	History []HistoryItem `json:"history"`
}

type RoundOutcomeMsg struct {
	RoundID     string  `json:"roundId"`
	Result      string  `json:"result"` // win | lose
	Choice      string  `json:"choice"`
	WinningSide string  `json:"winningSide"`
	Amount      float64 `json:"amount"`
	Message     string  `json:"message"`
}

type BetPlacedMsg struct {
	BetID   string  `json:"betId"`
	RoundID string  `json:"roundId"`
	Choice  string  `json:"choice"`
	Amount  float64 `json:"amount"`
}

type BalanceMsg struct {
	Balance      float64 `json:"balance"`
	BonusBalance float64 `json:"bonusBalance"`
}

type BetErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toTotalsItem(t Totals) TotalsItem {
	return TotalsItem{Up: t.Up.InexactFloat64(), Down: t.Down.InexactFloat64()}
}

// HistoryItems converte entradas do histórico para o formato enviado aos clientes
func HistoryItems(entries []HistoryEntry) []HistoryItem {
	out := make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryItem{
			RoundID: e.RoundID,
			Outcome: string(e.Outcome),
			Totals:  toTotalsItem(e.Totals),
			EndedAt: e.ResolvedAt,
		})
	}
	return out
}
