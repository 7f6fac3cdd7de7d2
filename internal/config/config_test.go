package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.ImageHost.Provider != "none" {
		t.Errorf("unexpected backends %q / %q", cfg.Storage.Backend, cfg.ImageHost.Provider)
	}
	if cfg.Fetch.Retries != 2 || cfg.Fetch.Backoff != 500*time.Millisecond {
		t.Errorf("unexpected fetch defaults %+v", cfg.Fetch)
	}
	if cfg.Extraction.MaxDimension != 512 {
		t.Errorf("expected max dimension 512, got %d", cfg.Extraction.MaxDimension)
	}
	if len(cfg.Services.Templates) != 3 {
		t.Errorf("expected 3 service templates, got %v", cfg.Services.Templates)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("unexpected address %s", cfg.Server.Address())
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
fetch:
  read_timeout: 3s
scraper:
  blocklist:
    - "*.example.net"
cache:
  backend: disk
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOGO_SERVER_PORT", "9100")
	t.Setenv("LOGO_EXTRACTION_TIMEOUT", "5s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected env to override the file, got port %d", cfg.Server.Port)
	}
	if cfg.Fetch.ReadTimeout != 3*time.Second {
		t.Errorf("expected read timeout from file, got %v", cfg.Fetch.ReadTimeout)
	}
	if cfg.Extraction.Timeout != 5*time.Second {
		t.Errorf("expected extraction timeout from env, got %v", cfg.Extraction.Timeout)
	}
	if len(cfg.Scraper.Blocklist) != 1 || cfg.Cache.Backend != "disk" {
		t.Errorf("unexpected scraper/cache config %+v %+v", cfg.Scraper, cfg.Cache)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, true},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "mongo" }, true},
		{"imgbb without key", func(c *Config) { c.ImageHost.Provider = "imgbb" }, true},
		{"minio configured", func(c *Config) {
			c.ImageHost.Provider = "minio"
			c.ImageHost.MinIO.Endpoint = "localhost:9000"
		}, false},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
