package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppEnv        string `envconfig:"APP_ENV" default:"production"`
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"true"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	DraftTTL      time.Duration `envconfig:"DRAFT_TTL" default:"168h"`

	AuthSecret     string        `envconfig:"AUTH_SECRET"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`
	LoginRateLimit int           `envconfig:"LOGIN_RATE_LIMIT" default:"5"`

	// Initial account passwords, used only when the user table is empty.
	SeedOwnerPassword      string `envconfig:"SEED_OWNER_PASSWORD"`
	SeedAccountantPassword string `envconfig:"SEED_ACCOUNTANT_PASSWORD"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	VoucherValidityDays int    `envconfig:"VOUCHER_VALIDITY_DAYS" default:"90"`
	LayawayValidityDays int    `envconfig:"LAYAWAY_VALIDITY_DAYS" default:"90"`
	VoucherSweepCron    string `envconfig:"VOUCHER_SWEEP_CRON" default:"@hourly"`
}

// Load reads a local .env file when present and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	if cfg.AccessTokenTTL < time.Minute {
		cfg.AccessTokenTTL = 8 * time.Hour
	}
	if cfg.VoucherValidityDays < 1 {
		return Config{}, fmt.Errorf("VOUCHER_VALIDITY_DAYS must be positive, got %d", cfg.VoucherValidityDays)
	}
	if cfg.LayawayValidityDays < 1 {
		return Config{}, fmt.Errorf("LAYAWAY_VALIDITY_DAYS must be positive, got %d", cfg.LayawayValidityDays)
	}
	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) VoucherValidity() time.Duration {
	return time.Duration(c.VoucherValidityDays) * 24 * time.Hour
}

func (c Config) LayawayValidity() time.Duration {
	return time.Duration(c.LayawayValidityDays) * 24 * time.Hour
}
