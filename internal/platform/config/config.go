package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gatehouse/pkg/secrets"
)

// Environment selects development or production behaviour. Production
// turns on Secure cookies and rejects requests with no Origin or Referer.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Server captures the whole process configuration.
type Server struct {
	Addr            string
	Environment     Environment
	LogLevel        string
	AppURL          string
	AuthURL         string
	RedisURL        string
	DatabaseURL     string
	SeedDemoUsers   bool
	ShutdownTimeout time.Duration

	Auth      Auth
	CSRF      CSRF
	RateLimit RateLimit
	OAuth     OAuth
}

type Auth struct {
	TokenSigningKey string
	// SigningKeyGenerated is set when no key was configured and a random
	// one was created; tokens will not survive a restart.
	SigningKeyGenerated bool
	LegacyTokenTTL      time.Duration
	SessionTTL          time.Duration
	SessionSweep        time.Duration
}

type CSRF struct {
	TokenTTL        time.Duration
	CleanupInterval time.Duration
}

type RateLimit struct {
	PolicyFile      string
	CleanupInterval time.Duration
	GlobalRPS       float64
	GlobalBurst     int
}

type OAuthProvider struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether both halves of the credential pair are present.
func (p OAuthProvider) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type OAuth struct {
	Google OAuthProvider
	GitHub OAuthProvider
}

var ErrMissingSigningKey = errors.New("TOKEN_SIGNING_KEY is required in production")

func (s Server) IsProduction() bool {
	return s.Environment == Production
}

// FromEnv builds the configuration from environment variables, applying
// defaults for anything unset.
func FromEnv() (Server, error) {
	env := Development
	if strings.EqualFold(os.Getenv("ENVIRONMENT"), string(Production)) {
		env = Production
	}

	cfg := Server{
		Addr:            getenv("ADDR", ":8080"),
		Environment:     env,
		LogLevel:        getenv("LOG_LEVEL", "info"),
		AppURL:          strings.TrimRight(os.Getenv("APP_URL"), "/"),
		AuthURL:         strings.TrimRight(os.Getenv("AUTH_URL"), "/"),
		RedisURL:        os.Getenv("REDIS_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SeedDemoUsers:   getbool("SEED_DEMO_USERS", env == Development),
		ShutdownTimeout: getduration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Auth: Auth{
			TokenSigningKey: os.Getenv("TOKEN_SIGNING_KEY"),
			LegacyTokenTTL:  getduration("LEGACY_TOKEN_TTL", 24*time.Hour),
			SessionTTL:      getduration("SESSION_TTL", 30*24*time.Hour),
			SessionSweep:    getduration("SESSION_CLEANUP_INTERVAL", 10*time.Minute),
		},
		CSRF: CSRF{
			TokenTTL:        getduration("CSRF_TOKEN_TTL", time.Hour),
			CleanupInterval: getduration("CSRF_CLEANUP_INTERVAL", 10*time.Minute),
		},
		RateLimit: RateLimit{
			PolicyFile:      os.Getenv("RATELIMIT_POLICY_FILE"),
			CleanupInterval: getduration("RATELIMIT_CLEANUP_INTERVAL", 5*time.Minute),
			GlobalRPS:       getfloat("GLOBAL_RPS", 200),
			GlobalBurst:     getint("GLOBAL_BURST", 400),
		},
		OAuth: OAuth{
			Google: OAuthProvider{
				ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
				ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			},
			GitHub: OAuthProvider{
				ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
				ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			},
		},
	}

	if cfg.Auth.TokenSigningKey == "" {
		if cfg.IsProduction() {
			return Server{}, ErrMissingSigningKey
		}
		key, err := secrets.TokenHex(32)
		if err != nil {
			return Server{}, fmt.Errorf("generate signing key: %w", err)
		}
		cfg.Auth.TokenSigningKey = key
		cfg.Auth.SigningKeyGenerated = true
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func getint(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getfloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}
