package passkey

import (
	"testing"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg := LoadConfigFromEnv()
	if cfg.RPID != "localhost" {
		t.Fatalf("RPID = %q, want %q", cfg.RPID, "localhost")
	}
	if cfg.RPDisplayName != DefaultRPDisplayName {
		t.Fatalf("RPDisplayName = %q, want %q", cfg.RPDisplayName, DefaultRPDisplayName)
	}
	if len(cfg.RPOrigins) != 1 || cfg.RPOrigins[0] != "http://localhost:5173" {
		t.Fatalf("RPOrigins = %v, want [%q]", cfg.RPOrigins, "http://localhost:5173")
	}
}

func TestLoadConfigFromEnvCustomRPID(t *testing.T) {
	t.Setenv("PASSKEY_PLAYGROUND_RP_ID", "example.com")
	cfg := LoadConfigFromEnv()
	if cfg.RPID != "example.com" {
		t.Fatalf("RPID = %q, want %q", cfg.RPID, "example.com")
	}
}

func TestLoadConfigFromEnvCustomRPName(t *testing.T) {
	t.Setenv("PASSKEY_PLAYGROUND_RP_DISPLAY_NAME", "My App")
	cfg := LoadConfigFromEnv()
	if cfg.RPDisplayName != "My App" {
		t.Fatalf("RPDisplayName = %q, want %q", cfg.RPDisplayName, "My App")
	}
}

func TestLoadConfigFromEnvCustomOrigins(t *testing.T) {
	t.Setenv("PASSKEY_PLAYGROUND_RP_ORIGINS", "https://a.com,https://b.com")
	cfg := LoadConfigFromEnv()
	if len(cfg.RPOrigins) != 2 {
		t.Fatalf("RPOrigins len = %d, want 2", len(cfg.RPOrigins))
	}
	if cfg.RPOrigins[0] != "https://a.com" || cfg.RPOrigins[1] != "https://b.com" {
		t.Fatalf("RPOrigins = %v", cfg.RPOrigins)
	}
}
