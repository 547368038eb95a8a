// Package config loads server settings from flags, environment variables, an
// optional YAML file, and defaults, in that order of precedence.
//
// Every key has the same name everywhere:
//
//	flag   --session-secret
//	env    SESSION_SECRET
//	file   session-secret: ...
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds everything cmd/server needs to build the server.
type Config struct {
	Port          int
	DBPath        string
	BaseURL       string
	SessionSecret string
	SessionTTL    time.Duration
	SweepInterval time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	CookieSecure bool

	// MessageRate is sends per minute per user; MessageBurst is the bucket size.
	MessageRate  float64
	MessageBurst int

	LogLevel  string
	LogFormat string
}

// Load parses args (without the program name) and resolves every key.
// It returns pflag.ErrHelp when --help was requested.
func Load(args []string) (*Config, error) {
	v := viper.New()

	fs := pflag.NewFlagSet("trading-post", pflag.ContinueOnError)
	fs.String("config", "", "optional YAML config file")
	fs.Int("port", 8000, "HTTP listen port")
	fs.String("db-path", "data/tradingpost.db", "SQLite database file")
	fs.String("base-url", "", "public URL of the site (default http://localhost:<port>)")
	fs.String("session-secret", "", "HMAC key for session cookies, at least 16 characters")
	fs.Duration("session-ttl", 24*time.Hour, "session lifetime")
	fs.Duration("session-sweep", time.Hour, "how often expired sessions are deleted")
	fs.String("google-client-id", "", "Google OAuth client ID")
	fs.String("google-client-secret", "", "Google OAuth client secret")
	fs.String("google-redirect-url", "", "OAuth redirect URL (default <base-url>/oauth/callback)")
	fs.Bool("cookie-secure", false, "mark cookies Secure (enable behind HTTPS)")
	fs.Float64("message-rate", 10, "messages each user may send per minute")
	fs.Int("message-burst", 5, "messages a user may send in a burst")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "text", "text or json")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: binding flags: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:               v.GetInt("port"),
		DBPath:             v.GetString("db-path"),
		BaseURL:            strings.TrimRight(v.GetString("base-url"), "/"),
		SessionSecret:      v.GetString("session-secret"),
		SessionTTL:         v.GetDuration("session-ttl"),
		SweepInterval:      v.GetDuration("session-sweep"),
		GoogleClientID:     v.GetString("google-client-id"),
		GoogleClientSecret: v.GetString("google-client-secret"),
		GoogleRedirectURL:  v.GetString("google-redirect-url"),
		CookieSecure:       v.GetBool("cookie-secure"),
		MessageRate:        v.GetFloat64("message-rate"),
		MessageBurst:       v.GetInt("message-burst"),
		LogLevel:           v.GetString("log-level"),
		LogFormat:          v.GetString("log-format"),
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = cfg.BaseURL + "/oauth/callback"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("session-secret is required and must be at least 16 characters"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session-ttl must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("session-sweep must be positive"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db-path is required"))
	}
	if c.MessageRate <= 0 || c.MessageBurst < 1 {
		errs = append(errs, errors.New("message-rate and message-burst must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
