package server

import (
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server configuration.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `env:"PASSKEY_PLAYGROUND_LISTEN_ADDR" envDefault:":8080"`
	// DBPath is the sqlite database file; parent directories are created.
	DBPath string `env:"PASSKEY_PLAYGROUND_DB_PATH" envDefault:"data/auth.db"`
	// SessionSecret signs session cookies, at least 32 bytes. When unset a
	// random per-process secret is generated, so sessions do not survive a
	// restart.
	SessionSecret string `env:"PASSKEY_PLAYGROUND_SESSION_SECRET"`
	// SessionTTL is the browser session lifetime.
	SessionTTL time.Duration `env:"PASSKEY_PLAYGROUND_SESSION_TTL" envDefault:"24h"`
	// SecureCookies marks session cookies HTTPS-only.
	SecureCookies bool `env:"PASSKEY_PLAYGROUND_SECURE_COOKIES"`
}

// LoadConfigFromEnv reads server configuration from the environment.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse server env: %w", err)
	}
	if cfg.SessionSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return Config{}, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.SessionSecret = fmt.Sprintf("%x", secret)
		log.Printf("PASSKEY_PLAYGROUND_SESSION_SECRET is not set, sessions will not survive restarts")
	}
	return cfg, nil
}
