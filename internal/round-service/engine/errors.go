package engine

import "errors"

var (
	ErrInvalidChoice     = errors.New("invalid choice")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRoundClosed       = errors.New("round closed")
	ErrPlacementFailed   = errors.New("bet placement failed")

	// ErrSettlementBatch e ErrPayoutCredit não chegam ao participante; só são logados
	ErrSettlementBatch = errors.New("settlement batch failed")
	ErrPayoutCredit    = errors.New("payout credit failed")
)

// Kind classifica rejeições entregues ao solicitante
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindRoundClosed       Kind = "ROUND_CLOSED"
	KindInternal          Kind = "INTERNAL"
)

// RejectionError é a rejeição tipada de uma aposta
type RejectionError struct {
	Kind    Kind
	Message string
	err     error
}

func (e *RejectionError) Error() string { return e.Message }

func (e *RejectionError) Unwrap() error { return e.err }

func reject(kind Kind, err error, msg string) *RejectionError {
	return &RejectionError{Kind: kind, Message: msg, err: err}
}

// KindOf retorna a classificação de err, ou KindInternal se não for uma rejeição
func KindOf(err error) Kind {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}
