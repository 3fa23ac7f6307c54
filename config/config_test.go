package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./tracker.db", cfg.DatabasePath)
	assert.Equal(t, 180*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 30*time.Minute, cfg.PremiumCheckInterval)
	assert.Equal(t, 5, cfg.MaxConcurrentChecks)
	assert.Equal(t, 2, cfg.MiningConcurrency)
	assert.True(t, cfg.Headless)
	assert.Zero(t, cfg.AlertMinDrop)
	assert.Equal(t, "https://fcm.googleapis.com/fcm/send", cfg.FCMEndpoint)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHECK_INTERVAL_MINUTES", "60")
	t.Setenv("MAX_CONCURRENT_CHECKS", "3")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("ALERT_MIN_DROP", "50")
	t.Setenv("PROXY_LIST", "http://p1:8080, http://p2:8080 ,")
	t.Setenv("TELEGRAM_CHAT_ID", "123456")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.CheckInterval)
	assert.Equal(t, 3, cfg.MaxConcurrentChecks)
	assert.False(t, cfg.Headless)
	assert.InDelta(t, 50, cfg.AlertMinDrop, 0.001)
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080"}, cfg.Proxies)
	assert.Equal(t, int64(123456), cfg.TelegramChatID)
}

func TestLoadClampsConcurrency(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_CHECKS", "0")
	t.Setenv("MINING_CONCURRENCY", "-2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxConcurrentChecks) // 0 inválido cai no padrão
	assert.Equal(t, 2, cfg.MiningConcurrency)
}
