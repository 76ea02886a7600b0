package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	OutputDir  string `envconfig:"OUTPUT_DIR" default:"media/downloads"`
	ToolsDir   string `envconfig:"TOOLS_DIR" default:"bin"`
	CookieFile string `envconfig:"COOKIES_FILE" default:"cookies.txt"`
	YtdlpPath  string `envconfig:"YTDLP_PATH"`

	DBPath       string  `envconfig:"DB_PATH" default:"mediafetch.db"`
	Workers      int     `envconfig:"WORKERS" default:"4"`
	QueueSize    int     `envconfig:"QUEUE_SIZE" default:"64"`
	ProgressStep float64 `envconfig:"PROGRESS_STEP" default:"1"`

	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`
	StaleJobTimeout   time.Duration `envconfig:"STALE_JOB_TIMEOUT" default:"5m"`

	RetentionWindow time.Duration `envconfig:"RETENTION_WINDOW" default:"1h"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
	SweepLockPath   string        `envconfig:"SWEEP_LOCK_PATH" default:"mediafetch-sweep.lock"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:5000"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"true"`
		ServiceName  string `split_words:"true" default:"mediafetch"`
		OTLPEndpoint string `envconfig:"TELEMETRY_OTLP_ENDPOINT"`
	}
}

// LoadConfig loads envFile into the environment when it exists, then reads
// environment variables into a Config. Variables already set in the
// environment win over the file.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers)
	case c.QueueSize < 0:
		return fmt.Errorf("QUEUE_SIZE must not be negative, got %d", c.QueueSize)
	case c.ProgressStep < 0:
		return fmt.Errorf("PROGRESS_STEP must not be negative, got %v", c.ProgressStep)
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive, got %s", c.HeartbeatInterval)
	case c.StaleJobTimeout <= c.HeartbeatInterval:
		return fmt.Errorf("STALE_JOB_TIMEOUT must exceed HEARTBEAT_INTERVAL, got %s", c.StaleJobTimeout)
	case c.RetentionWindow <= 0:
		return fmt.Errorf("RETENTION_WINDOW must be positive, got %s", c.RetentionWindow)
	case c.CleanupInterval <= 0:
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.CleanupInterval)
	case c.OutputDir == "":
		return errors.New("OUTPUT_DIR must not be empty")
	}

	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
