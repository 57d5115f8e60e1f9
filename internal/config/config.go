package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the server configuration read from the environment.
type Config struct {
	Port         string
	DatabasePath string
	BaseURL      string // Absolute URL used in emailed links
	JWTSecret    string
	BcryptCost   int
	CookieSecure bool

	// Optional integrations. Each is disabled when its key is empty.
	SendGridAPIKey     string
	MailFromName       string
	MailFromEmail      string
	GoogleClientID     string
	GoogleClientSecret string
	MapsAPIKey         string

	CORSAllowedOrigins []string

	// Rate limit for sign-in, sign-up, password reset and contact requests.
	RateLimitPerMinute float64
	RateLimitBurst     float64
}

// GoogleSignIn reports whether Google sign-in is configured.
func (c *Config) GoogleSignIn() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads optional .env files into the process environment, without
// overriding variables that are already set, and parses the result. With no
// files it reads ./.env when present.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv parses and validates the configuration using getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:               env("PORT", "8080"),
		DatabasePath:       env("DATABASE_PATH", "realty.db"),
		JWTSecret:          getenv("JWT_SECRET"),
		CookieSecure:       env("COOKIE_SECURE", "true") != "false", // Disable only for local development.
		SendGridAPIKey:     getenv("SENDGRID_API_KEY"),
		MailFromName:       env("MAIL_FROM_NAME", "Realty"),
		MailFromEmail:      env("MAIL_FROM_EMAIL", "no-reply@realty.local"),
		GoogleClientID:     getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: getenv("GOOGLE_CLIENT_SECRET"),
		MapsAPIKey:         getenv("GOOGLE_MAPS_API_KEY"),
	}
	cfg.BaseURL = strings.TrimRight(env("BASE_URL", "http://localhost:"+cfg.Port), "/")

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}

	cost, err := strconv.Atoi(env("BCRYPT_COST", "12"))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	if cost < 4 || cost > 14 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", cost)
	}
	cfg.BcryptCost = cost

	if cfg.RateLimitPerMinute, err = strconv.ParseFloat(env("RATE_LIMIT_PER_MINUTE", "10"), 64); err != nil || cfg.RateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE %q", getenv("RATE_LIMIT_PER_MINUTE"))
	}
	if cfg.RateLimitBurst, err = strconv.ParseFloat(env("RATE_LIMIT_BURST", "5"), 64); err != nil || cfg.RateLimitBurst < 1 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST %q", getenv("RATE_LIMIT_BURST"))
	}

	for _, origin := range strings.Split(getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{cfg.BaseURL}
	}

	return cfg, nil
}
