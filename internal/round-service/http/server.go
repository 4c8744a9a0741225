package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/risefall-round-service/internal/round-service/engine"
	"github.com/radieske/risefall-round-service/internal/round-service/ledger"
)

// Game é o subconjunto do motor usado pela API REST
type Game interface {
	Snapshot() engine.RoundStateMsg
	History(n int) []engine.HistoryEntry
	Accountant() *engine.Accountant
	PlaceBet(ctx context.Context, sess engine.Session, req engine.BetRequest) (engine.Receipt, error)
}

// BetReader consulta apostas no ledger
type BetReader interface {
	GetBet(ctx context.Context, betID string) (ledger.Bet, error)
}

// BetCache guarda respostas de apostas já liquidadas
type BetCache interface {
	GetBet(ctx context.Context, betID string, dst any) (bool, error)
	SetBet(ctx context.Context, betID string, v any) error
}

// Notifier repassa às conexões WebSocket do usuário o saldo após uma aposta feita via REST
type Notifier interface {
	SendToUser(userID string, event string, payload any)
}

// API expõe os endpoints REST do round-service
type API struct {
	Log      *zap.Logger
	Game     Game
	Bets     BetReader
	Cache    BetCache     // opcional
	Notifier Notifier     // opcional
	WS       http.Handler // opcional: upgrade WebSocket em /ws
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/rounds/current", a.currentRound) // Estado da rodada aberta + histórico recente
	r.Get("/v1/rounds/history", a.roundHistory) // Últimas rodadas (?limit=n, máx 10)
	r.Get("/v1/wallets/{userId}", a.getWallet)  // Saldo e bônus
	r.Post("/v1/bets", a.placeBet)              // Aposta na rodada aberta
	r.Get("/v1/bets/{id}", a.getBet)            // Aposta registrada no ledger
	if a.WS != nil {
		r.Get("/ws", a.WS.ServeHTTP)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code engine.Kind, msg string) {
	writeJSON(w, status, ErrorResponse{Code: string(code), Message: msg})
}

func (a *API) currentRound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Game.Snapshot())
}

func (a *API) roundHistory(w http.ResponseWriter, r *http.Request) {
	limit := engine.HistoryCapacity
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, engine.KindValidation, "Invalid limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, engine.HistoryItems(a.Game.History(limit)))
}

func (a *API) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	acc, err := a.Game.Accountant().Wallet(r.Context(), userID)
	if err != nil {
		if errors.Is(err, engine.ErrWalletNotFound) {
			writeError(w, http.StatusNotFound, engine.KindNotFound, "User not found")
			return
		}
		a.Log.Error("get wallet failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, engine.KindInternal, "Failed to load wallet")
		return
	}
	writeJSON(w, http.StatusOK, WalletResponse{
		UserID:        userID,
		Balance:       acc.Balance.InexactFloat64(),
		BonusBalance:  acc.BonusBalance.InexactFloat64(),
		BonusConsumed: acc.BonusConsumed.InexactFloat64(),
	})
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req engine.BetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, engine.KindValidation, "Invalid request")
		return
	}

	sess := &httpSession{}
	rc, err := a.Game.PlaceBet(r.Context(), sess, req)
	if err != nil {
		writeError(w, statusFor(engine.KindOf(err)), engine.KindOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, PlaceBetResponse{
		BetID:        rc.BetID,
		RoundID:      rc.RoundID,
		Choice:       string(rc.Choice),
		Amount:       rc.Amount.InexactFloat64(),
		Balance:      rc.Wallet.Balance.InexactFloat64(),
		BonusBalance: rc.Wallet.BonusBalance.InexactFloat64(),
	})

	// conexões WebSocket do usuário também recebem o saldo atualizado
	if a.Notifier != nil {
		a.Notifier.SendToUser(req.UserID, engine.EventBalance, engine.BalanceMsg{
			Balance:      rc.Wallet.Balance.InexactFloat64(),
			BonusBalance: rc.Wallet.BonusBalance.InexactFloat64(),
		})
	}
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if a.Cache != nil {
		var cached BetResponse
		if ok, err := a.Cache.GetBet(r.Context(), id, &cached); ok && err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	b, err := a.Bets.GetBet(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, engine.KindNotFound, "Bet not found")
			return
		}
		a.Log.Error("get bet failed", zap.String("bet_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, engine.KindInternal, "Failed to load bet")
		return
	}
	resp := BetResponse{
		BetID:     b.ID,
		UserID:    b.UserID,
		RoundID:   b.RoundID,
		Choice:    b.Choice,
		Amount:    b.Amount.InexactFloat64(),
		Status:    string(b.Status),
		Payout:    b.Payout.InexactFloat64(),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	// pending ainda vai mudar; só won/lost entram no cache
	if a.Cache != nil && b.Status != ledger.StatusPending {
		if err := a.Cache.SetBet(r.Context(), id, resp); err != nil {
			a.Log.Warn("bet cache set failed", zap.String("bet_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(k engine.Kind) int {
	switch k {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case engine.KindRoundClosed:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// httpSession atende engine.Session numa requisição REST: a resposta já é o corpo HTTP,
// então as mensagens diretas são descartadas e não há sala privada para entrar
type httpSession struct{}

func (*httpSession) JoinPrivate(string) {}
func (*httpSession) Send(string, any)   {}
