// Package config loads runtime configuration from the environment, with an
// optional config.env file in the user's config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "crosslist"
	EnvFileName = "config.env"
)

// Config holds every runtime knob. All values come from CROSSLIST_* env vars
// and fall back to the defaults in Load.
type Config struct {
	// EncryptionKey is the passphrase protecting stored session cookies.
	// It is the only required setting.
	EncryptionKey string

	// DBPath is the SQLite file holding encrypted sessions.
	DBPath string
	// CacheDir is where downloaded listing images are staged.
	CacheDir string
	// MarketplacesFile optionally overrides built-in adapter selectors.
	MarketplacesFile string

	Headless bool

	// TitleThreshold is the minimum title similarity for a duplicate verdict.
	TitleThreshold float64
	// HammingMax is the largest perceptual hash distance still treated as
	// the same image.
	HammingMax int

	ScrollInterval     time.Duration
	ScrollStableRounds int
	DOMWait            time.Duration
	CategoryAttempts   int

	LogFile string
	Debug   bool
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Load reads the configuration from the environment. LoadEnvFile should be
// called first so a config.env file can supply the values.
func Load() (*Config, error) {
	cfg := &Config{
		EncryptionKey:      os.Getenv("CROSSLIST_ENCRYPTION_KEY"),
		DBPath:             envStr("CROSSLIST_DB_PATH", "crosslist.db"),
		CacheDir:           envStr("CROSSLIST_CACHE_DIR", filepath.Join(os.TempDir(), "crosslist-images")),
		MarketplacesFile:   os.Getenv("CROSSLIST_MARKETPLACES_FILE"),
		Headless:           envBool("CROSSLIST_HEADLESS", true),
		TitleThreshold:     envFloat("CROSSLIST_TITLE_THRESHOLD", 0.85),
		HammingMax:         envInt("CROSSLIST_HAMMING_MAX", 6),
		ScrollInterval:     envDuration("CROSSLIST_SCROLL_INTERVAL", 500*time.Millisecond),
		ScrollStableRounds: envInt("CROSSLIST_SCROLL_STABLE_ROUNDS", 10),
		DOMWait:            envDuration("CROSSLIST_DOM_WAIT", 10*time.Second),
		CategoryAttempts:   envInt("CROSSLIST_CATEGORY_ATTEMPTS", 5),
		LogFile:            os.Getenv("CROSSLIST_LOG_FILE"),
		Debug:              envBool("CROSSLIST_DEBUG", false),
	}

	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("CROSSLIST_ENCRYPTION_KEY is required")
	}
	if cfg.TitleThreshold < 0 || cfg.TitleThreshold > 1 {
		return nil, fmt.Errorf("CROSSLIST_TITLE_THRESHOLD must be in [0, 1], got %v", cfg.TitleThreshold)
	}
	if cfg.HammingMax < 0 || cfg.HammingMax > 64 {
		return nil, fmt.Errorf("CROSSLIST_HAMMING_MAX must be in [0, 64], got %d", cfg.HammingMax)
	}

	return cfg, nil
}

func envStr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
