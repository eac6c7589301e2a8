package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/go-core-fx/config"
)

// ReadPolicy decides what a loader does with a failed read.
type ReadPolicy string

const (
	// ReadPolicySurface returns the error alongside the last known data.
	ReadPolicySurface ReadPolicy = "surface"
	// ReadPolicyLog logs the error and keeps showing the last known data.
	ReadPolicyLog ReadPolicy = "log"
)

// Surface reports whether a failed read is returned to the caller.
func (p ReadPolicy) Surface() bool {
	return p != ReadPolicyLog
}

// ExpiryPolicy decides what the push channel does once the session token is gone or expired.
type ExpiryPolicy string

const (
	ExpiryDisconnect ExpiryPolicy = "disconnect"
	ExpiryReconnect  ExpiryPolicy = "reconnect"
)

type Config struct {
	APIBaseURL        string        `koanf:"api_base_url"`
	PushURL           string        `koanf:"push_url"`
	Timeout           time.Duration `koanf:"timeout"`
	LogFile           string        `koanf:"log_file"`
	Debug             bool          `koanf:"debug"`
	StoragePath       string        `koanf:"storage_path"`
	ReadFailurePolicy string        `koanf:"read_failure_policy"`
	ReconnectDelay    time.Duration `koanf:"reconnect_delay"`
	HeartBeat         time.Duration `koanf:"heartbeat"`
	TokenExpiryPolicy string        `koanf:"token_expiry_policy"`
}

func Default() Config {
	return Config{
		APIBaseURL:        "http://localhost:8080",
		Timeout:           20 * time.Second,
		LogFile:           "./pos-console.log",
		StoragePath:       "./pos-console.db",
		ReadFailurePolicy: string(ReadPolicySurface),
		ReconnectDelay:    5 * time.Second,
		HeartBeat:         4 * time.Second,
		TokenExpiryPolicy: string(ExpiryDisconnect),
	}
}

func New() (Config, error) {
	cfg := Default()

	if err := coreconfig.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if _, err := url.Parse(c.APIBaseURL); err != nil {
		return fmt.Errorf("invalid api_base_url: %w", err)
	}
	switch ReadPolicy(c.ReadFailurePolicy) {
	case ReadPolicySurface, ReadPolicyLog:
	default:
		return fmt.Errorf("unknown read_failure_policy %q", c.ReadFailurePolicy)
	}
	switch ExpiryPolicy(c.TokenExpiryPolicy) {
	case ExpiryDisconnect, ExpiryReconnect:
	default:
		return fmt.Errorf("unknown token_expiry_policy %q", c.TokenExpiryPolicy)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive")
	}
	return nil
}

func (c Config) ReadPolicy() ReadPolicy {
	return ReadPolicy(c.ReadFailurePolicy)
}

func (c Config) ExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy(c.TokenExpiryPolicy)
}

// WebSocketURL is the raw websocket transport of the backend's SockJS endpoint
// unless push_url overrides it.
func (c Config) WebSocketURL() (string, error) {
	if strings.TrimSpace(c.PushURL) != "" {
		return strings.TrimSpace(c.PushURL), nil
	}
	u, err := url.Parse(strings.TrimRight(c.APIBaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid api_base_url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/websocket"
	return u.String(), nil
}
