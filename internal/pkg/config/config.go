package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr string `env:"SERVER_ADDR" envDefault:":3010"`
	AdminAddr  string `env:"ADMIN_ADDR" envDefault:":9091"`

	LogDir                 string        `env:"LOG_DIR" envDefault:"./logs"`
	MaxFileSize            int64         `env:"MAX_FILE_SIZE_BYTES" envDefault:"10485760"` // 10MB
	RetentionDays          int           `env:"RETENTION_DAYS" envDefault:"14"`
	RetentionSweepInterval time.Duration `env:"RETENTION_SWEEP_INTERVAL" envDefault:"1h"`

	MaxEventSize int64   `env:"MAX_EVENT_SIZE_BYTES" envDefault:"1048576"` // 1MB
	IngestRPS    float64 `env:"INGEST_RPS" envDefault:"0"`                 // 0 = unlimited

	AlertErrorThreshold int           `env:"ALERT_ERROR_THRESHOLD" envDefault:"5"`
	AlertWarnThreshold  int           `env:"ALERT_WARN_THRESHOLD" envDefault:"10"`
	AlertWindow         time.Duration `env:"ALERT_WINDOW" envDefault:"5m"`

	DefaultSource  string        `env:"DEFAULT_SOURCE" envDefault:"default"`
	BufferCapacity int           `env:"BUFFER_CAPACITY" envDefault:"1000"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"5s"`
	FlushInterval  time.Duration `env:"FLUSH_INTERVAL" envDefault:"2s"`
	SpoolDir       string        `env:"SPOOL_DIR" envDefault:""` // empty disables disk spooling
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
