package cfg

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/vrischmann/envconfig"

	"github.com/Heidric/digest.git/pkg/log"
)

type Config struct {
	Logger          *log.Config
	ServerAddress   string        `envconfig:"ADDRESS"`
	DatabaseDSN     string        `envconfig:"DATABASE_DSN,optional"`
	CacheSize       int           `envconfig:"CACHE_SIZE"`
	RateLimit       float64       `envconfig:"RATE_LIMIT"`
	RateBurst       int           `envconfig:"RATE_BURST"`
	MaxBodySize     int64         `envconfig:"MAX_BODY_SIZE"`
	SignResponses   bool          `envconfig:"SIGN_RESPONSES"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]string{
	"ADDRESS":          "localhost:8080",
	"CACHE_SIZE":       "256",
	"RATE_LIMIT":       "0",
	"RATE_BURST":       "10",
	"MAX_BODY_SIZE":    strconv.Itoa(64 << 20),
	"SIGN_RESPONSES":   "false",
	"SHUTDOWN_TIMEOUT": "10s",
}

// NewConfig reads .env when present, fills unset keys with defaults and
// decodes the environment.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Logger: &log.Config{},
	}

	for key, value := range defaults {
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	// Bare integers are seconds.
	secondsToDuration("SHUTDOWN_TIMEOUT")

	if err := envconfig.Init(config); err != nil {
		return nil, errors.Wrap(err, "decode environment")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	config.Logger.SetDefault()

	return config, nil
}

func secondsToDuration(key string) {
	if val := os.Getenv(key); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			os.Setenv(key, strconv.Itoa(sec)+"s")
		}
	}
}

func (c *Config) validate() error {
	switch {
	case c.CacheSize < 0:
		return errors.Errorf("CACHE_SIZE must not be negative, got %d", c.CacheSize)
	case c.RateLimit < 0:
		return errors.Errorf("RATE_LIMIT must not be negative, got %v", c.RateLimit)
	case c.RateLimit > 0 && c.RateBurst < 1:
		return errors.Errorf("RATE_BURST must be positive when RATE_LIMIT is set, got %d", c.RateBurst)
	case c.MaxBodySize <= 0:
		return errors.Errorf("MAX_BODY_SIZE must be positive, got %d", c.MaxBodySize)
	case c.ShutdownTimeout <= 0:
		return errors.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", c.ShutdownTimeout)
	}
	return nil
}
