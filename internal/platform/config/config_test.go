package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ZIMMET_ENV", "development")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Ledger.OverdueThreshold)
	assert.Equal(t, 5*time.Second, cfg.Ledger.TxTimeout)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ZIMMET_ADDR", ":9090")
	t.Setenv("ZIMMET_LEDGER_OVERDUE_THRESHOLD", "30m")
	t.Setenv("ZIMMET_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ZIMMET_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Ledger.OverdueThreshold)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.BrokerList())
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestFromEnvRejectsDevKeyInProduction(t *testing.T) {
	t.Setenv("ZIMMET_ENV", "production")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIGNING_KEY")
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("ZIMMET_LEDGER_OVERDUE_THRESHOLD", "soon")

	_, err := FromEnv()
	require.Error(t, err)
}
