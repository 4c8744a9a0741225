package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "round-service")
	cfg := Load()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "9095", cfg.MetricsPort)
	assert.Equal(t, "bet_placed", cfg.TopicBetPlaced)
	assert.Equal(t, "round_settled", cfg.TopicRoundSettled)
	assert.True(t, cfg.MinStake.IsZero())
}

func TestLoad_AuditWorkerPorts(t *testing.T) {
	t.Setenv("SERVICE_NAME", "audit-worker")
	t.Setenv("METRICS_PORT_AUDIT", "9200")
	cfg := Load()

	assert.Empty(t, cfg.HTTPPort)
	assert.Equal(t, "9200", cfg.MetricsPort)
	assert.Equal(t, "audit-worker", cfg.AuditGroupID)
}

func TestLoad_MinStake(t *testing.T) {
	t.Setenv("MIN_STAKE", "1.5")
	assert.Equal(t, "1.5", Load().MinStake.String())

	t.Setenv("MIN_STAKE", "-3")
	assert.True(t, Load().MinStake.IsZero())

	t.Setenv("MIN_STAKE", "abc")
	assert.True(t, Load().MinStake.IsZero())
}

func TestBrokers(t *testing.T) {
	cfg := Config{KafkaBrokers: "a:9092, b:9092,,"}
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers())
}
