package topics

const (
	// Bets
	BetPlaced = "bet_placed"

	// Rounds
	RoundSettled = "round_settled"

	// DLQs
	RoundSettledDLQ = "round_settled_dlq"
)
