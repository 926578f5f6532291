// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"pesapal-proxy/internal/pesapal"
)

const (
	minGatewayTimeout = 10 * time.Second
	maxGatewayTimeout = 30 * time.Second
)

// Config is loaded once at startup and passed by value; nothing mutates it afterwards.
type Config struct {
	Port               string
	Environment        string
	Pesapal            Pesapal
	ProxyBaseURL       string
	AppReturnURL       string
	DatabaseURL        string
	RedisURL           string
	RateLimitPerMinute int
}

type Pesapal struct {
	ConsumerKey     string
	ConsumerSecret  string
	Env             pesapal.Environment
	BaseURL         string
	Timeout         time.Duration
	NotificationID  string
	AutoRegisterIPN bool
}

// Credentials returns the consumer key pair
func (p Pesapal) Credentials() pesapal.Credentials {
	return pesapal.Credentials{ConsumerKey: p.ConsumerKey, ConsumerSecret: p.ConsumerSecret}
}

// Endpoints resolves the gateway URLs for the configured environment
func (p Pesapal) Endpoints() pesapal.Endpoints {
	if p.BaseURL != "" {
		return pesapal.EndpointsFor(p.BaseURL)
	}
	return p.Env.Endpoints()
}

// IPNURL is the externally reachable address the gateway posts notifications to
func (c Config) IPNURL() string {
	return c.ProxyBaseURL + "/api/pesapal/ipn"
}

// CallbackURL is the user-facing return address on this proxy
func (c Config) CallbackURL() string {
	return c.ProxyBaseURL + "/api/pesapal/callback"
}

// WithNotificationID returns a copy carrying the given IPN registration id
func (c Config) WithNotificationID(id string) Config {
	c.Pesapal.NotificationID = id
	return c
}

// Load reads configuration from the environment
func Load() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "3001"),
		Environment:  getEnv("ENVIRONMENT", "production"),
		ProxyBaseURL: strings.TrimRight(getEnv("PROXY_BASE_URL", getEnv("REACT_APP_PROXY_URL", "")), "/"),
		AppReturnURL: getEnv("APP_RETURN_URL", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		Pesapal: Pesapal{
			ConsumerKey:    getEnv("PESAPAL_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("PESAPAL_CONSUMER_SECRET", ""),
			Env:            pesapal.Environment(strings.ToLower(getEnv("PESAPAL_ENV", string(pesapal.Sandbox)))),
			BaseURL:        strings.TrimRight(getEnv("PESAPAL_BASE_URL", ""), "/"),
			NotificationID: getEnv("PESAPAL_NOTIFICATION_ID", getEnv("PESAPAL_IPN_ID", "")),
		},
	}

	var errs []error

	if cfg.Pesapal.ConsumerKey == "" || cfg.Pesapal.ConsumerSecret == "" {
		errs = append(errs, errors.New("PESAPAL_CONSUMER_KEY and PESAPAL_CONSUMER_SECRET are required"))
	}
	if !cfg.Pesapal.Env.Valid() {
		errs = append(errs, fmt.Errorf("PESAPAL_ENV must be %q or %q, got %q", pesapal.Sandbox, pesapal.Live, cfg.Pesapal.Env))
	}

	timeout, err := time.ParseDuration(getEnv("PESAPAL_TIMEOUT", "30s"))
	if err != nil {
		errs = append(errs, fmt.Errorf("PESAPAL_TIMEOUT: %w", err))
	}
	cfg.Pesapal.Timeout = clampTimeout(timeout)

	if cfg.Pesapal.AutoRegisterIPN, err = strconv.ParseBool(getEnv("PESAPAL_AUTO_REGISTER_IPN", "false")); err != nil {
		errs = append(errs, fmt.Errorf("PESAPAL_AUTO_REGISTER_IPN: %w", err))
	}
	if cfg.RateLimitPerMinute, err = strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "120")); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err))
	}

	for name, raw := range map[string]string{
		"PROXY_BASE_URL":   cfg.ProxyBaseURL,
		"APP_RETURN_URL":   cfg.AppReturnURL,
		"PESAPAL_BASE_URL": cfg.Pesapal.BaseURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	if cfg.Pesapal.AutoRegisterIPN && cfg.ProxyBaseURL == "" {
		errs = append(errs, errors.New("PESAPAL_AUTO_REGISTER_IPN needs PROXY_BASE_URL"))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func clampTimeout(d time.Duration) time.Duration {
	switch {
	case d < minGatewayTimeout:
		return minGatewayTimeout
	case d > maxGatewayTimeout:
		return maxGatewayTimeout
	}
	return d
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
