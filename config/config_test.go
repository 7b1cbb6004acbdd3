package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresEncryptionKey(t *testing.T) {
	t.Setenv("CROSSLIST_ENCRYPTION_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CROSSLIST_ENCRYPTION_KEY")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CROSSLIST_ENCRYPTION_KEY", "passphrase")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "crosslist.db", cfg.DBPath)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 0.85, cfg.TitleThreshold)
	assert.Equal(t, 6, cfg.HammingMax)
	assert.Equal(t, 500*time.Millisecond, cfg.ScrollInterval)
	assert.Equal(t, 10, cfg.ScrollStableRounds)
	assert.Equal(t, 10*time.Second, cfg.DOMWait)
	assert.Equal(t, 5, cfg.CategoryAttempts)
	assert.False(t, cfg.Debug)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CROSSLIST_ENCRYPTION_KEY", "passphrase")
	t.Setenv("CROSSLIST_HEADLESS", "false")
	t.Setenv("CROSSLIST_TITLE_THRESHOLD", "0.9")
	t.Setenv("CROSSLIST_HAMMING_MAX", "10")
	t.Setenv("CROSSLIST_SCROLL_INTERVAL", "250ms")
	t.Setenv("CROSSLIST_DB_PATH", "/tmp/alt.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Headless)
	assert.Equal(t, 0.9, cfg.TitleThreshold)
	assert.Equal(t, 10, cfg.HammingMax)
	assert.Equal(t, 250*time.Millisecond, cfg.ScrollInterval)
	assert.Equal(t, "/tmp/alt.db", cfg.DBPath)
}

func TestLoadRejectsOutOfRangeThreshold(t *testing.T) {
	t.Setenv("CROSSLIST_ENCRYPTION_KEY", "passphrase")
	t.Setenv("CROSSLIST_TITLE_THRESHOLD", "1.5")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CROSSLIST_ENCRYPTION_KEY", "passphrase")
	t.Setenv("CROSSLIST_HAMMING_MAX", "not-a-number")
	t.Setenv("CROSSLIST_HEADLESS", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.HammingMax)
	assert.True(t, cfg.Headless)
}
