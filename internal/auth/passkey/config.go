package passkey

import (
	"github.com/caarlos0/env/v11"
)

// DefaultRPDisplayName is used when no display name is configured.
const DefaultRPDisplayName = "Passkey Playground"

// Config controls WebAuthn relying party settings.
type Config struct {
	RPDisplayName string   `env:"PASSKEY_PLAYGROUND_RP_DISPLAY_NAME"`
	RPID          string   `env:"PASSKEY_PLAYGROUND_RP_ID"      envDefault:"localhost"`
	RPOrigins     []string `env:"PASSKEY_PLAYGROUND_RP_ORIGINS" envSeparator:","`
}

// LoadConfigFromEnv returns relying party configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{
			RPDisplayName: DefaultRPDisplayName,
			RPID:          "localhost",
			RPOrigins:     []string{"http://localhost:5173"},
		}
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = DefaultRPDisplayName
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:5173"}
	}
	return cfg
}
