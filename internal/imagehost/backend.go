package imagehost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/cache"
	"github.com/fleveque/domain-logo-service/internal/model"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logo_image_uploads_total",
		Help: "Remote image uploads by host and outcome (uploaded, fallback).",
	}, []string{"host", "outcome"})
	retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logo_image_retrievals_total",
		Help: "Image retrievals by source (inline, cache, remote).",
	}, []string{"source"})
)

// Canonicalizer converts an artifact into a format every host accepts.
type Canonicalizer interface {
	ToCanonical(data []byte) (model.Artifact, error)
}

// Backend decides where a logo's bytes live and serves them back.
type Backend struct {
	host     Host // nil means inline only
	conv     Canonicalizer
	cache    cache.Cache // nil disables caching
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewBackend creates a storage backend. host and c may be nil.
func NewBackend(host Host, conv Canonicalizer, c cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *Backend {
	return &Backend{host: host, conv: conv, cache: c, cacheTTL: cacheTTL, logger: logger}
}

// HostName names the configured remote host, or "inline".
func (b *Backend) HostName() string {
	if b.host == nil {
		return "inline"
	}
	return b.host.Name()
}

// Store places art on the remote host when possible and returns the image
// fields to persist. It never fails: any conversion or upload problem falls
// back to keeping the artifact inline.
func (b *Backend) Store(ctx context.Context, domain string, art model.Artifact, sourceURL string, extractedAt time.Time) model.ImageFields {
	fields := model.ImageFields{
		OriginalSourceURL: sourceURL,
		InlineBinary:      art.Data,
		Format:            art.Format,
		ByteSize:          art.ByteSize(),
		Width:             art.Width,
		Height:            art.Height,
		ExtractedAt:       extractedAt,
	}
	if b.host == nil {
		return fields
	}

	upload := art
	if !b.host.Accepts(art.Format) {
		converted, err := b.conv.ToCanonical(art.Data)
		if err != nil {
			b.fallback(domain, fmt.Errorf("%w: converting %s: %w", ErrUploadFailed, art.Format, err))
			return fields
		}
		upload = converted
	}

	ref, err := b.host.Upload(ctx, upload.Data, domain+"."+upload.Format.Extension(), upload.Format)
	if err != nil {
		b.fallback(domain, err)
		return fields
	}

	uploadsTotal.WithLabelValues(b.host.Name(), "uploaded").Inc()
	return model.ImageFields{
		OriginalSourceURL: sourceURL,
		Remote:            ref,
		Format:            upload.Format,
		ByteSize:          upload.ByteSize(),
		Width:             upload.Width,
		Height:            upload.Height,
		ExtractedAt:       extractedAt,
	}
}

func (b *Backend) fallback(domain string, err error) {
	uploadsTotal.WithLabelValues(b.host.Name(), "fallback").Inc()
	b.logger.Warn("remote upload failed, storing logo inline",
		zap.String("domain", domain),
		zap.String("host", b.host.Name()),
		zap.Error(err),
	)
}

// Retrieve returns the image bytes and content type of whichever storage
// mode is authoritative for logo.
func (b *Backend) Retrieve(ctx context.Context, logo *model.Logo) ([]byte, string, error) {
	contentType := logo.Format.ContentType()

	ref := logo.Remote()
	if ref == nil {
		if len(logo.InlineBinary) == 0 {
			return nil, "", ErrNoImage
		}
		retrievalsTotal.WithLabelValues("inline").Inc()
		return logo.InlineBinary, contentType, nil
	}

	if b.host == nil {
		return nil, "", fmt.Errorf("logo %s is stored remotely but no image host is configured", logo.ID)
	}

	key := cacheKey(ref)
	if b.cache != nil {
		data, err := b.cache.Get(ctx, key)
		if err == nil {
			retrievalsTotal.WithLabelValues("cache").Inc()
			return data, contentType, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			b.logger.Warn("image cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	data, err := b.host.Fetch(ctx, *ref)
	if err != nil {
		return nil, "", fmt.Errorf("retrieving remote image: %w", err)
	}
	retrievalsTotal.WithLabelValues("remote").Inc()

	if b.cache != nil {
		if err := b.cache.Set(ctx, key, data, b.cacheTTL); err != nil {
			b.logger.Warn("image cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return data, contentType, nil
}

// Revoke deletes the remote image of logo, if any.
func (b *Backend) Revoke(ctx context.Context, logo *model.Logo) error {
	return b.RevokeRef(ctx, logo.Remote())
}

// RevokeRef deletes a remote image and evicts it from the cache. A nil ref
// is a no-op.
func (b *Backend) RevokeRef(ctx context.Context, ref *model.RemoteRef) error {
	if ref == nil || b.host == nil {
		return nil
	}
	if b.cache != nil {
		if err := b.cache.Delete(ctx, cacheKey(ref)); err != nil {
			b.logger.Warn("image cache eviction failed", zap.String("id", ref.ID), zap.Error(err))
		}
	}
	return b.host.Revoke(ctx, *ref)
}

func cacheKey(ref *model.RemoteRef) string {
	return "image:" + ref.ID
}
