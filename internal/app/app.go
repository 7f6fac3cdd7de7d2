// Package app builds every long-lived dependency once from configuration and
// hands out the assembled service. Both the HTTP server and the CLI start
// from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/cache"
	"github.com/fleveque/domain-logo-service/internal/config"
	"github.com/fleveque/domain-logo-service/internal/fetch"
	"github.com/fleveque/domain-logo-service/internal/imagehost"
	"github.com/fleveque/domain-logo-service/internal/imaging"
	"github.com/fleveque/domain-logo-service/internal/llm"
	"github.com/fleveque/domain-logo-service/internal/provider"
	"github.com/fleveque/domain-logo-service/internal/service"
	"github.com/fleveque/domain-logo-service/internal/storage"
	"github.com/fleveque/domain-logo-service/internal/telemetry"
)

// App holds the assembled service and the resources it owns.
type App struct {
	Service *service.LogoService

	closers []func() error
	tracing telemetry.ShutdownFunc
	logger  *zap.Logger
}

// New wires the pipeline described by cfg. On error, anything already opened
// is closed again.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	shutdown, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.tracing = shutdown

	svc, err := a.build(ctx, cfg)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	a.Service = svc
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) (*service.LogoService, error) {
	repo, err := openRepository(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, repo.Close)

	byteCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	if byteCache != nil {
		a.closers = append(a.closers, byteCache.Close)
	}

	host, err := openImageHost(ctx, cfg.ImageHost)
	if err != nil {
		return nil, err
	}

	normalizer := imaging.NewNormalizer(cfg.Extraction.MaxDimension)
	backend := imagehost.NewBackend(host, normalizer, byteCache, cfg.Cache.TTL, a.logger)

	fetcher := fetch.New(fetch.Config{
		ConnectTimeout: cfg.Fetch.ConnectTimeout,
		ReadTimeout:    cfg.Fetch.ReadTimeout,
		MaxBytes:       cfg.Fetch.MaxBytes,
		Retries:        cfg.Fetch.Retries,
		Backoff:        cfg.Fetch.Backoff,
		MinBytes:       cfg.Fetch.MinBytes,
		MinDimension:   cfg.Fetch.MinDimension,
	}, a.logger)

	selector := a.buildSelector(cfg)

	a.logger.Info("pipeline configured",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("image_host", backend.HostName()),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("engine", normalizer.Engine()),
	)

	return service.NewLogoService(repo, selector, fetcher, normalizer, backend,
		service.Options{ExtractionTimeout: cfg.Extraction.Timeout}, a.logger), nil
}

func (a *App) buildSelector(cfg *config.Config) *provider.Selector {
	var finder provider.URLFinder
	if clients := llmClients(cfg.LLM, a.logger); len(clients) > 0 {
		finder = provider.NewLLMLookup(clients, cfg.LLM.RatePerMinute, a.logger)
	}

	pageClient := fetch.NewHTTPClient(cfg.Fetch.ConnectTimeout, cfg.Fetch.ReadTimeout, cfg.Scraper.MaxRedirects)

	return provider.NewDefaultSelector(
		provider.NewServicesStrategy(cfg.Services.Templates, finder, a.logger),
		provider.NewFaviconStrategy(provider.DefaultSiteTemplate),
		provider.NewScraperStrategy(pageClient, provider.DefaultSiteTemplate, a.logger),
		provider.NewCommonPathsStrategy(provider.DefaultSiteTemplate),
		provider.NewBlocklist(cfg.Scraper.Blocklist),
	)
}

// Close releases everything New opened, in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.tracing != nil {
		errs = append(errs, a.tracing(ctx))
	}
	return errors.Join(errs...)
}

func openRepository(ctx context.Context, cfg config.StorageConfig) (storage.LogoRepository, error) {
	switch cfg.Backend {
	case "postgres":
		return storage.NewPostgresRepository(ctx, storage.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		db, err := storage.NewDatabase(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return storage.NewSQLiteRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// openCache returns nil when caching is disabled.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "disk":
		c, err := cache.NewDiskCache(cfg.Disk.Dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// openImageHost returns nil when logos are stored inline only.
func openImageHost(ctx context.Context, cfg config.ImageHostConfig) (imagehost.Host, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "imgbb":
		client := &http.Client{Timeout: cfg.ImgBB.Timeout}
		return imagehost.NewImgBB(client, cfg.ImgBB.Endpoint, cfg.ImgBB.APIKey), nil
	case "minio":
		m, err := imagehost.NewMinIO(imagehost.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
			PublicURL: cfg.MinIO.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown image host %q", cfg.Provider)
	}
}

// llmClients builds the configured LLM clients in provider order, skipping
// providers without an API key.
func llmClients(cfg config.LLMConfig, logger *zap.Logger) []llm.Client {
	var clients []llm.Client
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "anthropic":
			if cfg.Anthropic.APIKey == "" {
				logger.Warn("anthropic listed in llm.provider_order without an API key")
				continue
			}
			clients = append(clients, llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
		case "openai":
			if cfg.OpenAI.APIKey == "" {
				logger.Warn("openai listed in llm.provider_order without an API key")
				continue
			}
			clients = append(clients, llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL))
		default:
			logger.Warn("unknown LLM provider", zap.String("provider", name))
		}
	}
	return clients
}
