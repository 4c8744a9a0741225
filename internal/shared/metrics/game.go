package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risefall_bet_requests_total",
			Help: "Total bet placements by result",
		},
		[]string{"result"},
	)

	betDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risefall_bet_request_duration_ms",
			Help:    "Bet placement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"result"},
	)

	roundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risefall_rounds_settled_total",
			Help: "Settled rounds by outcome",
		},
		[]string{"outcome"},
	)

	settleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "risefall_settlement_duration_ms",
			Help:    "Round settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	settleBatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risefall_settlement_batch_failures_total",
			Help: "Ledger bulk settlement failures",
		},
	)

	payoutFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risefall_payout_credit_failures_total",
			Help: "Per-winner wallet credit failures",
		},
	)

	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "risefall_ws_connections",
			Help: "Open websocket connections",
		},
	)
)

// RecordBet registra o resultado de uma tentativa de aposta.
// result é "success" ou o código da rejeição (ex: "validation", "round_closed").
func RecordBet(result string, started time.Time) {
	res := strings.ToLower(result)
	betTotal.WithLabelValues(res).Inc()
	betDuration.WithLabelValues(res).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordSettlement registra uma rodada liquidada
func RecordSettlement(outcome string, started time.Time) {
	roundTotal.WithLabelValues(outcome).Inc()
	settleDuration.Observe(float64(time.Since(started).Milliseconds()))
}

func SettlementBatchFailed() { settleBatchFailures.Inc() }

func PayoutCreditFailed() { payoutFailures.Inc() }

func ConnectionOpened() { wsConnections.Inc() }

func ConnectionClosed() { wsConnections.Dec() }
