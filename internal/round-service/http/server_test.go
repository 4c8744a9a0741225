package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/risefall-round-service/internal/round-service/engine"
	"github.com/radieske/risefall-round-service/internal/round-service/ledger"
	"github.com/radieske/risefall-round-service/internal/round-service/wallet"
)

type userNotes struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (n *userNotes) Broadcast(string, any) {}

func (n *userNotes) SendToUser(userID, event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[string][]string)
	}
	n.sent[userID] = append(n.sent[userID], event)
}

func newAPI(t *testing.T) (*API, *engine.Scheduler, *userNotes) {
	t.Helper()
	wallets := wallet.NewMemory()
	wallets.Seed("alice", decimal.NewFromInt(100), decimal.NewFromInt(30))
	bets := ledger.NewMemory()
	notes := &userNotes{}

	s := engine.NewScheduler(zap.NewNop(), engine.Deps{
		Wallets:  wallets,
		Ledger:   bets,
		Notifier: notes,
		Outcomes: engine.FixedOutcome(engine.ChoiceUp),
	})
	s.Start(context.Background())
	t.Cleanup(s.Stop)

	return &API{Log: zap.NewNop(), Game: s, Bets: bets, Notifier: notes}, s, notes
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlaceBet_Created(t *testing.T) {
	api, s, notes := newAPI(t)
	h := api.Router()

	rec := do(t, h, http.MethodPost, "/v1/bets", engine.BetRequest{UserID: "alice", Choice: "down", Amount: 50})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp PlaceBetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BetID)
	assert.Equal(t, "down", resp.Choice)
	assert.Equal(t, 50.0, resp.Balance)
	assert.Equal(t, 0.0, resp.BonusBalance)

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, cur.ID, resp.RoundID)
	assert.Equal(t, []string{engine.EventBalance}, notes.sent["alice"])

	rec = do(t, h, http.MethodGet, "/v1/bets/"+resp.BetID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bet BetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bet))
	assert.Equal(t, "pending", bet.Status)
	assert.Equal(t, 50.0, bet.Amount)
}

func TestPlaceBet_ErrorStatus(t *testing.T) {
	api, _, _ := newAPI(t)
	h := api.Router()

	cases := []struct {
		req    engine.BetRequest
		status int
		code   string
	}{
		{engine.BetRequest{UserID: "alice", Choice: "left", Amount: 1}, http.StatusBadRequest, "VALIDATION"},
		{engine.BetRequest{UserID: "alice", Choice: "up", Amount: -5}, http.StatusBadRequest, "VALIDATION"},
		{engine.BetRequest{UserID: "nobody", Choice: "up", Amount: 1}, http.StatusNotFound, "NOT_FOUND"},
		{engine.BetRequest{UserID: "alice", Choice: "up", Amount: 1000}, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
	}
	for _, tc := range cases {
		rec := do(t, h, http.MethodPost, "/v1/bets", tc.req)
		assert.Equal(t, tc.status, rec.Code)
		var e ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
		assert.Equal(t, tc.code, e.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/bets", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetWallet(t *testing.T) {
	api, _, _ := newAPI(t)
	h := api.Router()

	rec := do(t, h, http.MethodGet, "/v1/wallets/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"alice","balance":100,"bonusBalance":30,"bonusConsumed":0}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/wallets/bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRounds(t *testing.T) {
	api, s, _ := newAPI(t)
	h := api.Router()

	rec := do(t, h, http.MethodGet, "/v1/rounds/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st engine.RoundStateMsg
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	cur, _ := s.Current()
	assert.Equal(t, cur.ID, st.CurrentRound.RoundID)
	assert.Positive(t, st.CurrentRound.TimeLeft)

	rec = do(t, h, http.MethodGet, "/v1/rounds/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/rounds/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBet_NotFound(t *testing.T) {
	api, _, _ := newAPI(t)
	rec := do(t, api.Router(), http.MethodGet, "/v1/bets/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type mapCache struct {
	data map[string][]byte
	hits int
}

func (c *mapCache) GetBet(_ context.Context, id string, dst any) (bool, error) {
	b, ok := c.data[id]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *mapCache) SetBet(_ context.Context, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[id] = b
	return nil
}

type countingBets struct {
	bet   ledger.Bet
	calls int
}

func (b *countingBets) GetBet(context.Context, string) (ledger.Bet, error) {
	b.calls++
	return b.bet, nil
}

func TestGetBet_CachesOnlySettled(t *testing.T) {
	api, _, _ := newAPI(t)
	c := &mapCache{data: map[string][]byte{}}
	src := &countingBets{bet: ledger.Bet{
		ID:      "b1",
		UserID:  "alice",
		RoundID: "1",
		Choice:  "up",
		Amount:  decimal.NewFromInt(10),
		Status:  ledger.StatusPending,
		Payout:  decimal.Zero,
	}}
	api.Bets = src
	api.Cache = c
	h := api.Router()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/bets/b1", nil).Code)
	assert.Empty(t, c.data)

	src.bet.Status = ledger.StatusWon
	src.bet.Payout = decimal.RequireFromString("19.5")
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/bets/b1", nil).Code)
	require.Contains(t, c.data, "b1")

	rec := do(t, h, http.MethodGet, "/v1/bets/b1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bet BetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bet))
	assert.Equal(t, "won", bet.Status)
	assert.Equal(t, 19.5, bet.Payout)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 1, c.hits)
}
