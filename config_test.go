package assistant

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "GEMINI_API_KEY", "GEMINI_MODEL",
	"SEMANTIC_SCHOLAR_API_KEY", "THESIS_TOPIC", "PAPER_KEYWORDS", "TIMEZONE",
	"PAPER_SCAN_TIME", "MORNING_DIGEST_TIME", "MAX_PAPERS_PER_DAY", "SCORE_THRESHOLD",
	"DATA_DIR", "DB_PATH", "DB_DRIVER", "WEB_ADDR", "LOG_LEVEL", "REQUEST_TIMEOUT",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnv {
		t.Setenv(name, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, "Europe/Istanbul", cfg.Timezone)
	assert.Equal(t, 30, cfg.MaxPapersPerDay)
	assert.Equal(t, 50.0, cfg.ScoreThreshold)
	assert.Equal(t, filepath.Join("data", "assistant.db"), cfg.DBPath)
	assert.Equal(t, DriverModernc, cfg.DBDriver)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "assistant.yaml")
	yaml := `
thesis_topic: Graph neural networks for drug discovery
paper_keywords: [graph neural network, drug discovery]
timezone: UTC
morning_digest_time: "07:00"
max_papers_per_day: 10
data_dir: /var/lib/assistant
request_timeout: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("MORNING_DIGEST_TIME", "08:45")
	t.Setenv("PAPER_KEYWORDS", "GNN, molecules")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("SCORE_THRESHOLD", "70")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Graph neural networks for drug discovery", cfg.ThesisTopic)
	assert.Equal(t, []string{"GNN", "molecules"}, cfg.PaperKeywords)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "08:45", cfg.DigestTime)
	assert.Equal(t, "07:30", cfg.PaperScanTime)
	assert.Equal(t, 10, cfg.MaxPapersPerDay)
	assert.Equal(t, 70.0, cfg.ScoreThreshold)
	assert.EqualValues(t, 12345, cfg.TelegramChatID)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, filepath.Join("/var/lib/assistant", "assistant.db"), cfg.DBPath)

	st := cfg.Settings()
	assert.Equal(t, cfg.PaperKeywords, st.Keywords)
	assert.Equal(t, "08:45", st.DigestTime)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		path  string
		field string
	}{
		{name: "missing file", path: "does-not-exist.yaml", field: "config"},
		{name: "chat id", env: map[string]string{"TELEGRAM_CHAT_ID": "me"}, field: "TELEGRAM_CHAT_ID"},
		{name: "max papers", env: map[string]string{"MAX_PAPERS_PER_DAY": "many"}, field: "MAX_PAPERS_PER_DAY"},
		{name: "threshold", env: map[string]string{"SCORE_THRESHOLD": "high"}, field: "SCORE_THRESHOLD"},
		{name: "timeout", env: map[string]string{"REQUEST_TIMEOUT": "soon"}, field: "REQUEST_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := tt.path
			if path != "" {
				path = filepath.Join(t.TempDir(), path)
			}
			_, err := LoadConfig(path)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{name: "threshold above range", edit: func(c *Config) { c.ScoreThreshold = 150 }, field: "SCORE_THRESHOLD"},
		{name: "no budget", edit: func(c *Config) { c.MaxPapersPerDay = 0 }, field: "MAX_PAPERS_PER_DAY"},
		{name: "driver", edit: func(c *Config) { c.DBDriver = "mysql" }, field: "DB_DRIVER"},
		{name: "timezone", edit: func(c *Config) { c.Timezone = "Nowhere/City" }, field: "timezone"},
		{name: "clock", edit: func(c *Config) { c.PaperScanTime = "7.30" }, field: "paper_scan_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(cfg)
			var cerr *ConfigError
			require.ErrorAs(t, cfg.Validate(), &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestConfigValidateBot(t *testing.T) {
	cfg := DefaultConfig()
	var cerr *ConfigError
	require.ErrorAs(t, cfg.ValidateBot(), &cerr)
	assert.Equal(t, "TELEGRAM_BOT_TOKEN", cerr.Field)

	cfg.TelegramToken = "123:abc"
	require.ErrorAs(t, cfg.ValidateBot(), &cerr)
	assert.Equal(t, "GEMINI_API_KEY", cerr.Field)

	cfg.GeminiAPIKey = "key"
	assert.NoError(t, cfg.ValidateBot())
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = NewLogger("loud")
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "LOG_LEVEL", cerr.Field)
}
