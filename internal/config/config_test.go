package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Errorf("expected resolved path %s, got %s", path, resolved)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Addr)
	}
	if cfg.PriceSats != 1000 {
		t.Errorf("expected default price 1000, got %d", cfg.PriceSats)
	}

	// The default file should have been written back.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected default config file to exist: %v", err)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":9999\"\nprice_sats: 500\nrelay_timeout: 10s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("expected addr :9999, got %s", cfg.Addr)
	}
	if cfg.PriceSats != 500 {
		t.Errorf("expected price 500, got %d", cfg.PriceSats)
	}
	if cfg.RelayTimeout != 10*time.Second {
		t.Errorf("expected relay timeout 10s, got %s", cfg.RelayTimeout)
	}
	// untouched keys keep their defaults
	if cfg.Network != "testnet" {
		t.Errorf("expected default network testnet, got %s", cfg.Network)
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7777", PriceSats: 250})

	if cfg.Addr != ":7777" {
		t.Errorf("expected addr :7777, got %s", cfg.Addr)
	}
	if cfg.PriceSats != 250 {
		t.Errorf("expected price 250, got %d", cfg.PriceSats)
	}
	if cfg.Network != "testnet" {
		t.Errorf("zero-value override must not clobber network, got %s", cfg.Network)
	}
}
