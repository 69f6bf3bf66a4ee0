package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration, read from the
// environment. Exactly one store backend is active at a time.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR"         env-default:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`

	// StoreBackend selects the backing table: "mysql" (row-conditional
	// writes) or "sheet" (full-table CSV over HTTP).
	StoreBackend string `env:"STORE_BACKEND" env-default:"mysql"`
	MySQLDSN     string `env:"MYSQL_DSN"     env-default:"root:root@tcp(localhost:3306)/inventory?parseTime=true"`
	SheetURL     string `env:"SHEET_URL"`

	// RedisAddr enables the snapshot cache; empty disables caching.
	RedisAddr string        `env:"REDIS_ADDR"`
	CacheTTL  time.Duration `env:"CACHE_TTL" env-default:"10m"`

	LowStockThreshold int `env:"LOW_STOCK_THRESHOLD" env-default:"1"`
}

// Load reads configuration from the environment and validates the
// backend selection.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	switch cfg.StoreBackend {
	case "mysql":
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("config: MYSQL_DSN is required for the mysql backend")
		}
	case "sheet":
		if cfg.SheetURL == "" {
			return nil, fmt.Errorf("config: SHEET_URL is required for the sheet backend")
		}
	default:
		return nil, fmt.Errorf("config: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return &cfg, nil
}
