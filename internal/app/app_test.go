package app

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	dir := t.TempDir()
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "logos.db")
	cfg.Cache.Disk.Dir = filepath.Join(dir, "cache")
	return cfg
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"sqlite inline", func(*config.Config) {}, false},
		{"disk cache and imgbb", func(c *config.Config) {
			c.Cache.Backend = "disk"
			c.ImageHost.Provider = "imgbb"
			c.ImageHost.ImgBB.APIKey = "key"
		}, false},
		{"llm providers without keys", func(c *config.Config) {
			c.LLM.ProviderOrder = []string{"anthropic", "openai", "other"}
		}, false},
		{"unknown cache", func(c *config.Config) { c.Cache.Backend = "memcached" }, true},
		{"unknown host", func(c *config.Config) { c.ImageHost.Provider = "ftp" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			a, err := New(context.Background(), cfg, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if a.Service == nil {
				t.Fatal("expected a service")
			}
			if err := a.Service.Ping(context.Background()); err != nil {
				t.Errorf("ping failed: %v", err)
			}
			if err := a.Close(context.Background()); err != nil {
				t.Errorf("close failed: %v", err)
			}
		})
	}
}

func TestLLMClients(t *testing.T) {
	cfg := config.LLMConfig{
		ProviderOrder: []string{"openai", "anthropic"},
		OpenAI:        config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o"},
	}
	clients := llmClients(cfg, zap.NewNop())
	if len(clients) != 1 || clients[0].ProviderName() != "openai" {
		t.Errorf("expected only the keyed openai client, got %d clients", len(clients))
	}
}
