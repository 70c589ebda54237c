package assistant

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process configuration. Values come from an optional YAML
// file and are overridden by environment variables.
type Config struct {
	TelegramToken  string `yaml:"telegram_bot_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	SemanticScholarAPIKey string `yaml:"semantic_scholar_api_key"`

	ThesisTopic   string   `yaml:"thesis_topic"`
	PaperKeywords []string `yaml:"paper_keywords"`
	Timezone      string   `yaml:"timezone"`
	PaperScanTime string   `yaml:"paper_scan_time"`
	DigestTime    string   `yaml:"morning_digest_time"`

	MaxPapersPerDay int     `yaml:"max_papers_per_day"`
	ScoreThreshold  float64 `yaml:"score_threshold"`

	DataDir  string `yaml:"data_dir"`
	DBPath   string `yaml:"db_path"`
	DBDriver string `yaml:"db_driver"`

	WebAddr        string        `yaml:"web_addr"`
	LogLevel       string        `yaml:"log_level"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		GeminiModel:     "gemini-2.0-flash",
		ThesisTopic:     "SAR despeckling and vision-language models for remote sensing.",
		PaperKeywords:   []string{"SAR", "synthetic aperture radar", "despeckling", "vision-language model", "remote sensing"},
		Timezone:        "Europe/Istanbul",
		PaperScanTime:   "07:30",
		DigestTime:      "08:30",
		MaxPapersPerDay: 30,
		ScoreThreshold:  50,
		DataDir:         "data",
		DBDriver:        DriverModernc,
		WebAddr:         ":8080",
		LogLevel:        "info",
		RequestTimeout:  30 * time.Second,
	}
}

// LoadConfig loads configuration from a YAML file, if path is non-empty,
// and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Field: "config", Reason: err.Error()}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Field: "config", Reason: fmt.Sprintf("parse %s: %v", path, err)}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "assistant.db")
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	str("TELEGRAM_BOT_TOKEN", &c.TelegramToken)
	str("GEMINI_API_KEY", &c.GeminiAPIKey)
	str("GEMINI_MODEL", &c.GeminiModel)
	str("SEMANTIC_SCHOLAR_API_KEY", &c.SemanticScholarAPIKey)
	str("THESIS_TOPIC", &c.ThesisTopic)
	str("TIMEZONE", &c.Timezone)
	str("PAPER_SCAN_TIME", &c.PaperScanTime)
	str("MORNING_DIGEST_TIME", &c.DigestTime)
	str("DATA_DIR", &c.DataDir)
	str("DB_PATH", &c.DBPath)
	str("DB_DRIVER", &c.DBDriver)
	str("WEB_ADDR", &c.WebAddr)
	str("LOG_LEVEL", &c.LogLevel)

	if v := os.Getenv("PAPER_KEYWORDS"); strings.TrimSpace(v) != "" {
		c.PaperKeywords = SplitKeywords(v)
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &ConfigError{Field: "TELEGRAM_CHAT_ID", Reason: "must be an integer"}
		}
		c.TelegramChatID = id
	}
	if v := strings.TrimSpace(os.Getenv("MAX_PAPERS_PER_DAY")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "MAX_PAPERS_PER_DAY", Reason: "must be an integer"}
		}
		c.MaxPapersPerDay = n
	}
	if v := strings.TrimSpace(os.Getenv("SCORE_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &ConfigError{Field: "SCORE_THRESHOLD", Reason: "must be a number"}
		}
		c.ScoreThreshold = f
	}
	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ConfigError{Field: "REQUEST_TIMEOUT", Reason: err.Error()}
		}
		c.RequestTimeout = d
	}
	return nil
}

// Validate checks the settings shared by every entry point.
func (c *Config) Validate() error {
	if err := c.Settings().Validate(); err != nil {
		return err
	}
	if c.MaxPapersPerDay <= 0 {
		return &ConfigError{Field: "MAX_PAPERS_PER_DAY", Reason: "must be positive"}
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 100 {
		return &ConfigError{Field: "SCORE_THRESHOLD", Reason: "must be within 0..100"}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigError{Field: "REQUEST_TIMEOUT", Reason: "must be positive"}
	}
	if c.DBDriver != DriverModernc && c.DBDriver != DriverCgo {
		return &ConfigError{Field: "DB_DRIVER", Reason: fmt.Sprintf("unknown driver %q", c.DBDriver)}
	}
	return nil
}

// ValidateBot additionally requires the credentials the bot runner needs.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.TelegramToken == "" {
		return &ConfigError{Field: "TELEGRAM_BOT_TOKEN", Reason: "is required"}
	}
	return c.ValidateScan()
}

// ValidateScan requires the scoring credential.
func (c *Config) ValidateScan() error {
	if c.GeminiAPIKey == "" {
		return &ConfigError{Field: "GEMINI_API_KEY", Reason: "is required"}
	}
	return nil
}

// Settings returns the settings record seeded from this configuration.
func (c *Config) Settings() Settings {
	return Settings{
		ThesisTopic:   c.ThesisTopic,
		Keywords:      c.PaperKeywords,
		PaperScanTime: c.PaperScanTime,
		DigestTime:    c.DigestTime,
		Timezone:      c.Timezone,
	}
}
