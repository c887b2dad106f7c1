// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ReplyMode   string `env:"REPLY_MODE" envDefault:"direct"`
	HistoryCap  int    `env:"HISTORY_CAP" envDefault:"10"`
	Port        int    `env:"PORT" envDefault:"3000"`
	ParamPrefix string `env:"PARAM_PREFIX"`

	FFmpegPath        string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	TranscodeStrategy string        `env:"TRANSCODE_STRATEGY" envDefault:"pipe"`
	TranscodeTimeout  time.Duration `env:"TRANSCODE_TIMEOUT" envDefault:"30s"`
	ExtractTimeout    time.Duration `env:"EXTRACT_TIMEOUT" envDefault:"10s"`
	SpoolDir          string        `env:"SPOOL_DIR"`

	// DedupTTL zero keeps each ledger's own default.
	DedupTable string        `env:"DEDUP_TABLE"`
	DedupTTL   time.Duration `env:"DEDUP_TTL"`

	AssemblyAIAPIKey       string        `env:"ASSEMBLYAI_API_KEY"`
	TranscribeTimeout      time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"8s"`
	TranscribePollInterval time.Duration `env:"TRANSCRIBE_POLL_INTERVAL" envDefault:"500ms"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	LLMBaseURL   string `env:"LLM_BASE_URL"`
	LLMModel     string `env:"LLM_MODEL"`

	TalkJSAppID     string `env:"TALKJS_APP_ID"`
	TalkJSSecretKey string `env:"TALKJS_SECRET_KEY"`
	TalkJSBotID     string `env:"TALKJS_BOT_ID" envDefault:"chatbotExampleBot"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.ReplyMode = strings.ToLower(strings.TrimSpace(cfg.ReplyMode))
	cfg.TranscodeStrategy = strings.ToLower(strings.TrimSpace(cfg.TranscodeStrategy))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from files (".env" when none are given) without
// overriding ones already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("no env file found, continuing with environment variables", "file", f)
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.ReplyMode {
	case "direct", "relay":
	default:
		return fmt.Errorf("config: REPLY_MODE must be direct or relay, got %q", c.ReplyMode)
	}
	switch c.TranscodeStrategy {
	case "pipe", "tempfile":
	default:
		return fmt.Errorf("config: TRANSCODE_STRATEGY must be pipe or tempfile, got %q", c.TranscodeStrategy)
	}
	if c.HistoryCap != 0 && c.HistoryCap < 2 {
		return fmt.Errorf("config: HISTORY_CAP must be at least 2, got %d", c.HistoryCap)
	}
	if c.ReplyMode == "relay" && strings.TrimSpace(c.TalkJSAppID) == "" {
		return errors.New("config: TALKJS_APP_ID is required when REPLY_MODE is relay")
	}
	return nil
}
