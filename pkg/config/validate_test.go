package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if errs := DefaultConfig().Validate(); len(errs) != 0 {
		t.Fatalf("expected default config to be valid, got %v", errs)
	}
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Contracts.DefaultGas != 800000 {
		t.Errorf("expected default gas 800000, got %d", cfg.Contracts.DefaultGas)
	}
	if cfg.Contracts.Confirmation.PollInterval != time.Second {
		t.Errorf("expected 1s poll interval, got %s", cfg.Contracts.Confirmation.PollInterval)
	}
	if cfg.Contracts.Confirmation.MaxAttempts != 0 {
		t.Errorf("expected unbounded polling by default, got %d", cfg.Contracts.Confirmation.MaxAttempts)
	}
	if cfg.Storage.Server != "localhost" || cfg.Storage.Port != 5001 {
		t.Errorf("expected localhost:5001, got %s:%d", cfg.Storage.Server, cfg.Storage.Port)
	}
}

func TestValidateRPC(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		shouldError bool
	}{
		{"http", "http://localhost:8545", false},
		{"websocket", "ws://127.0.0.1:8546", false},
		{"no host", "localhost", true},
		{"bad scheme", "ftp://localhost:8545", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RPC.URL = tt.url
			errs := cfg.validateRPC()
			if tt.shouldError && len(errs) == 0 {
				t.Errorf("expected error for %q", tt.url)
			}
			if !tt.shouldError && len(errs) > 0 {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestValidateStorage(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*StorageConfig)
		shouldError bool
	}{
		{"uppercase provider", func(s *StorageConfig) { s.Provider = "IPFS" }, false},
		{"unknown provider", func(s *StorageConfig) { s.Provider = "dropbox" }, true},
		{"port out of range", func(s *StorageConfig) { s.Port = 70000 }, true},
		{"empty server", func(s *StorageConfig) { s.Server = "" }, true},
		{"protocol without separator", func(s *StorageConfig) { s.Protocol = "http" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Storage)
			errs := cfg.validateStorage()
			if tt.shouldError && len(errs) == 0 {
				t.Error("expected error")
			}
			if !tt.shouldError && len(errs) > 0 {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestValidateOrbitAddresses(t *testing.T) {
	validPeer := "/ip4/127.0.0.1/tcp/4001/p2p/12D3KooWHbcFcrGPXKUrHcxvd8MXEeUzRYyvY8fQcpEBxncSUwhj"
	tests := []struct {
		name        string
		peers       []string
		listen      []string
		shouldError bool
	}{
		{"valid", []string{validPeer}, []string{"/ip4/0.0.0.0/tcp/4001"}, false},
		{"peer without id", []string{"/ip4/127.0.0.1/tcp/4001"}, nil, true},
		{"garbage peer", []string{"not-a-multiaddr"}, nil, true},
		{"garbage listen", nil, []string{"0.0.0.0:4001"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Messages.Orbit.BootstrapPeers = tt.peers
			cfg.Messages.Orbit.ListenAddresses = tt.listen
			errs := cfg.validateMessages()
			if tt.shouldError && len(errs) == 0 {
				t.Error("expected error")
			}
			if !tt.shouldError && len(errs) > 0 {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Contracts.DefaultGas = 0
	cfg.Contracts.Confirmation.PollInterval = 0
	cfg.Logging.Level = "loud"

	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Error(), "contracts.default_gas") {
		t.Errorf("unexpected first error: %v", errs[0])
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("overrides defaults", func(t *testing.T) {
		path := filepath.Join(dir, "embark.yaml")
		body := "storage:\n  server: ipfs.local\n  port: 5002\ncontracts:\n  confirmation:\n    poll_interval: 250ms\n"
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Storage.Server != "ipfs.local" || cfg.Storage.Port != 5002 {
			t.Errorf("expected ipfs.local:5002, got %s:%d", cfg.Storage.Server, cfg.Storage.Port)
		}
		if cfg.Contracts.Confirmation.PollInterval != 250*time.Millisecond {
			t.Errorf("expected 250ms, got %s", cfg.Contracts.Confirmation.PollInterval)
		}
		if cfg.Contracts.DefaultGas != 800000 {
			t.Errorf("expected untouched default gas, got %d", cfg.Contracts.DefaultGas)
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("storage:\n  bucket: x\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("expected error for unknown key")
		}
	})

	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.RPC.URL != "http://localhost:8545" {
			t.Errorf("unexpected rpc url %q", cfg.RPC.URL)
		}
	})
}

func TestDefaultPathExplicit(t *testing.T) {
	got, err := DefaultPath("/etc/embark.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/etc/embark.yaml" {
		t.Errorf("expected explicit path back, got %q", got)
	}
}
