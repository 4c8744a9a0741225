package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/risefall-round-service/internal/round-service/ledger"
	"github.com/radieske/risefall-round-service/internal/round-service/wallet"
	"github.com/radieske/risefall-round-service/internal/shared/metrics"
	"github.com/radieske/risefall-round-service/pkg/contracts/events"
)

// BetRequest é o pedido de aposta recebido do participante
type BetRequest struct {
	UserID string  `json:"userId"`
	Choice string  `json:"choice"`
	Amount float64 `json:"amount"`
}

// Receipt descreve uma aposta aceita
type Receipt struct {
	BetID     string
	RoundID   string
	Choice    Choice
	Amount    decimal.Decimal
	BonusUsed decimal.Decimal
	Wallet    wallet.Account
}

// PlaceBet valida e registra a aposta na rodada aberta.
// Confirmação, saldo atualizado e rejeições são enviados somente para sess.
func (s *Scheduler) PlaceBet(ctx context.Context, sess Session, req BetRequest) (Receipt, error) {
	started := time.Now()
	rc, err := s.placeBet(ctx, sess, req)
	if err != nil {
		kind := KindOf(err)
		metrics.RecordBet(string(kind), started)
		s.log.Debug("bet rejected",
			zap.String("user_id", req.UserID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		sess.Send(EventBetError, BetErrorMsg{Code: string(kind), Message: err.Error()})
		return Receipt{}, err
	}
	metrics.RecordBet("success", started)

	sess.Send(EventBetPlaced, BetPlacedMsg{
		BetID:   rc.BetID,
		RoundID: rc.RoundID,
		Choice:  string(rc.Choice),
		Amount:  rc.Amount.InexactFloat64(),
	})
	sess.Send(EventBalance, BalanceMsg{
		Balance:      rc.Wallet.Balance.InexactFloat64(),
		BonusBalance: rc.Wallet.BonusBalance.InexactFloat64(),
	})

	if err := s.publisher.PublishBetPlaced(ctx, events.BetPlaced{
		BetID:     rc.BetID,
		UserID:    req.UserID,
		RoundID:   rc.RoundID,
		Choice:    string(rc.Choice),
		Amount:    rc.Amount.String(),
		BonusUsed: rc.BonusUsed.String(),
		Balance:   rc.Wallet.Balance.String(),
	}); err != nil {
		s.log.Warn("publish bet_placed failed", zap.String("bet_id", rc.BetID), zap.Error(err))
	}
	return rc, nil
}

func (s *Scheduler) placeBet(ctx context.Context, sess Session, req BetRequest) (Receipt, error) {
	choice, ok := ParseChoice(req.Choice)
	if !ok {
		return Receipt{}, reject(KindValidation, ErrInvalidChoice, "Invalid choice")
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return Receipt{}, reject(KindValidation, ErrInvalidAmount, "Invalid amount")
	}
	amount := decimal.NewFromFloat(req.Amount)
	if amount.LessThan(s.minStake) {
		return Receipt{}, reject(KindValidation, ErrInvalidAmount, "Invalid amount")
	}

	r := s.currentRound()
	if r == nil || !r.acquire() {
		return Receipt{}, reject(KindRoundClosed, ErrRoundClosed, "Round has ended")
	}
	defer r.release()

	sess.JoinPrivate(req.UserID)

	// débito, insert e estorno não seguem o cancelamento do chamador:
	// uma vez debitado, o estorno precisa rodar mesmo que o cliente tenha saído
	ioCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.placementTimeout)
	defer cancel()

	// saldo é conferido antes de persistir a aposta e antes de qualquer mutação
	delta, after, err := s.accountant.Debit(ioCtx, req.UserID, amount, "bet:"+r.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrWalletNotFound):
			return Receipt{}, reject(KindNotFound, ErrWalletNotFound, "User not found")
		case errors.Is(err, ErrInsufficientFunds):
			return Receipt{}, reject(KindInsufficientFunds, ErrInsufficientFunds, "Insufficient balance")
		}
		s.log.Error("wallet debit failed", zap.String("user_id", req.UserID), zap.Error(err))
		return Receipt{}, reject(KindInternal, ErrPlacementFailed, "Failed to place bet")
	}

	bet := &ledger.Bet{
		UserID:  req.UserID,
		RoundID: r.ID,
		Choice:  string(choice),
		Amount:  amount,
	}
	betID, err := s.ledger.InsertBet(ioCtx, bet)
	if err != nil {
		s.log.Error("insert bet failed; reverting debit",
			zap.String("user_id", req.UserID),
			zap.String("round_id", r.ID),
			zap.Error(err))
		// prazo novo: o insert pode ter falhado justamente por estourar ioCtx
		refundCtx, refundCancel := context.WithTimeout(context.WithoutCancel(ctx), s.placementTimeout)
		_, rerr := s.accountant.Refund(refundCtx, req.UserID, delta)
		refundCancel()
		if rerr != nil {
			s.log.Error("debit refund failed",
				zap.String("user_id", req.UserID),
				zap.String("amount", amount.String()),
				zap.Error(rerr))
		}
		return Receipt{}, reject(KindInternal, ErrPlacementFailed, "Failed to place bet")
	}

	r.record(Participant{UserID: req.UserID, BetID: betID, Choice: choice, Amount: amount})

	return Receipt{
		BetID:     betID,
		RoundID:   r.ID,
		Choice:    choice,
		Amount:    amount,
		BonusUsed: delta.BonusBalance.Neg(),
		Wallet:    after,
	}, nil
}
