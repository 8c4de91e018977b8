package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mind-engage/mindengage-ead/internal/validate"
)

type Config struct {
	HTTPAddr string `validate:"required"`

	// DBDriver is sqlite, postgres or memory.
	DBDriver string `validate:"oneof=sqlite postgres memory"`
	DBDSN    string

	AuthHMACSecret string `validate:"required"`
	CORSOrigins    []string

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	Policies Policies

	AutoSubmitOnTimeout bool
	SessionRetention    time.Duration `validate:"gt=0"`
	JanitorSchedule     string        `validate:"required"`
}

// FromEnv reads the configuration from the environment, loading .env first
// when present. EAD_POLICY_FILE, if set, adds per-installation overrides.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	def, err := defaultPolicy()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		HTTPAddr:            envOr("HTTP_ADDR", ":8080"),
		DBDriver:            strings.ToLower(envOr("DB_DRIVER", "sqlite")),
		DBDSN:               envOr("DB_DSN", ""),
		AuthHMACSecret:      envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		CORSOrigins:         csvOr("CORS_ORIGINS", "http://localhost:3000"),
		LogLevel:            strings.ToLower(envOr("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(envOr("LOG_FORMAT", "text")),
		Policies:            Policies{Default: def},
		AutoSubmitOnTimeout: envBool("EAD_AUTO_SUBMIT_ON_TIMEOUT", false),
		JanitorSchedule:     envOr("EAD_JANITOR_SCHEDULE", "@every 1m"),
	}
	if cfg.SessionRetention, err = envDuration("EAD_SESSION_RETENTION", 2*time.Hour); err != nil {
		return Config{}, err
	}
	if path := os.Getenv("EAD_POLICY_FILE"); path != "" {
		if cfg.Policies, err = LoadPolicies(path, def); err != nil {
			return Config{}, err
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultPolicy() (PolicyConfig, error) {
	maxRep, err := envInt("EAD_MAX_REPROBATIONS", 3)
	if err != nil {
		return PolicyConfig{}, err
	}
	hours, err := envInt("EAD_BLOCK_HOURS_ON_FAIL", 24)
	if err != nil {
		return PolicyConfig{}, err
	}
	p := PolicyConfig{MaxReprobations: maxRep, BlockHoursOnFail: hours}
	return p, validate.Struct(p)
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
