// Package service contains the core business logic for the logo pipeline.
// LogoService resolves a domain to a stored logo:
//
//	Cache check: an existing entity for the domain is returned as is
//	Acquisition: strategies propose candidate URLs, downloaded in order
//	Normalization: the first valid image is fitted and re-encoded
//	Storage: remote image host when possible, inline bytes otherwise
//
// Every download tried along the way is recorded as an attempt.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/domain"
	"github.com/fleveque/domain-logo-service/internal/fetch"
	"github.com/fleveque/domain-logo-service/internal/imagehost"
	"github.com/fleveque/domain-logo-service/internal/imaging"
	"github.com/fleveque/domain-logo-service/internal/model"
	"github.com/fleveque/domain-logo-service/internal/provider"
	"github.com/fleveque/domain-logo-service/internal/storage"
)

var (
	// ErrNoLogoFound means every strategy was exhausted without a valid image.
	ErrNoLogoFound = errors.New("no logo found")
	// ErrBackgroundUnsupported is returned when a background is requested
	// for a vector logo.
	ErrBackgroundUnsupported = errors.New("background not supported for format")
)

// List bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Options tunes the pipeline.
type Options struct {
	// ExtractionTimeout bounds acquisition and upload. Zero means no limit
	// beyond the caller's context.
	ExtractionTimeout time.Duration
}

// LogoService is the main entry point for logo extraction and retrieval.
type LogoService struct {
	repo       storage.LogoRepository
	selector   *provider.Selector
	fetcher    *fetch.Fetcher
	normalizer *imaging.Normalizer
	images     *imagehost.Backend
	opts       Options
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// NewLogoService creates a service with all pipeline stages wired up.
func NewLogoService(
	repo storage.LogoRepository,
	selector *provider.Selector,
	fetcher *fetch.Fetcher,
	normalizer *imaging.Normalizer,
	images *imagehost.Backend,
	opts Options,
	logger *zap.Logger,
) *LogoService {
	return &LogoService{
		repo:       repo,
		selector:   selector,
		fetcher:    fetcher,
		normalizer: normalizer,
		images:     images,
		opts:       opts,
		tracer:     otel.Tracer("domain-logo-service/service"),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Extract returns the logo for rawDomain, acquiring it when no entity exists
// yet or when force is set. name labels a new entity and defaults to the
// domain. A failed forced run leaves the stored entity untouched.
func (s *LogoService) Extract(ctx context.Context, rawDomain, name string, force bool) (*model.Logo, error) {
	d, err := domain.Normalize(rawDomain)
	if err != nil {
		extractionsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "logo.extract", trace.WithAttributes(
		attribute.String("logo.domain", d),
		attribute.Bool("logo.force", force),
	))
	defer span.End()

	existing, err := s.repo.FindByDomain(ctx, d)
	switch {
	case err == nil && !force:
		extractionsTotal.WithLabelValues(outcomeCached).Inc()
		span.SetAttributes(attribute.String("logo.outcome", outcomeCached))
		return existing, nil
	case errors.Is(err, storage.ErrNotFound):
		existing = nil
	case err != nil:
		extractionsTotal.WithLabelValues(outcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("looking up %s: %w", d, err)
	}

	target := provider.Target{Domain: d, Name: name}
	if target.Name == "" {
		target.Name = d
		if existing != nil && existing.Name != "" {
			target.Name = existing.Name
		}
	}

	s.logger.Info("extracting logo",
		zap.String("domain", d),
		zap.Bool("force", force),
	)

	logo, outcome, err := s.run(ctx, target, existing)
	extractionsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("logo.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetStatus(codes.Ok, outcome)
	return logo, nil
}

// run executes one extraction: acquire, normalize, store and persist. The
// attempt log is written once the owning entity is known.
func (s *LogoService) run(ctx context.Context, t provider.Target, existing *model.Logo) (*model.Logo, string, error) {
	runCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var attempts attemptLog
	var owner *string
	if existing != nil {
		owner = &existing.ID
	}

	start := time.Now()
	data, sourceURL, ok := s.acquire(runCtx, t, &attempts)
	if !ok {
		extractionDuration.Observe(time.Since(start).Seconds())
		s.logger.Info("no logo found",
			zap.String("domain", t.Domain),
			zap.Int("attempts", attempts.len()),
		)
		attempts.flush(context.WithoutCancel(ctx), s.repo, owner, s.logger)
		return nil, outcomeNotFound, fmt.Errorf("%w: %s", ErrNoLogoFound, t.Domain)
	}

	art, err := s.normalizer.Normalize(data, sourceURL)
	if err != nil {
		normalizationDegradedTotal.Inc()
		s.logger.Warn("storing unnormalized logo",
			zap.String("domain", t.Domain),
			zap.String("url", sourceURL),
			zap.String("format", string(art.Format)),
			zap.Error(err),
		)
	}

	fields := s.images.Store(runCtx, t.Domain, art, sourceURL, s.now())
	extractionDuration.Observe(time.Since(start).Seconds())

	logo, outcome, err := s.persist(ctx, t, existing, fields)
	if logo != nil {
		owner = &logo.ID
	}
	attempts.flush(context.WithoutCancel(ctx), s.repo, owner, s.logger)
	if err != nil {
		s.logger.Error("persisting logo",
			zap.String("domain", t.Domain),
			zap.Error(err),
		)
		return nil, outcome, err
	}

	s.logger.Info("logo stored",
		zap.String("domain", t.Domain),
		zap.String("id", logo.ID),
		zap.String("source", sourceURL),
		zap.String("format", string(logo.Format)),
		zap.String("storage", logo.StorageMode()),
		zap.String("outcome", outcome),
	)
	return logo, outcome, nil
}

func (s *LogoService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.ExtractionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.ExtractionTimeout)
}

// acquire walks the selected strategies in order and returns the first
// candidate that downloads successfully.
func (s *LogoService) acquire(ctx context.Context, t provider.Target, attempts *attemptLog) ([]byte, string, bool) {
	seen := make(map[string]bool)
	for _, strategy := range s.selector.Select(t.Domain) {
		if ctx.Err() != nil {
			s.logger.Debug("extraction deadline reached",
				zap.String("domain", t.Domain),
				zap.Error(ctx.Err()),
			)
			return nil, "", false
		}

		data, url, ok := s.tryStrategy(ctx, strategy, t, attempts, seen)
		if ok {
			strategyHitsTotal.WithLabelValues(strategy.Name()).Inc()
			return data, url, true
		}
		s.logger.Debug("strategy miss",
			zap.String("domain", t.Domain),
			zap.String("strategy", strategy.Name()),
		)
	}
	return nil, "", false
}

func (s *LogoService) tryStrategy(ctx context.Context, strategy provider.Strategy, t provider.Target, attempts *attemptLog, seen map[string]bool) ([]byte, string, bool) {
	ctx, span := s.tracer.Start(ctx, "strategy."+strategy.Name())
	defer span.End()

	name := strategy.Name()
	for c := range strategy.Candidates(ctx, t) {
		if ctx.Err() != nil {
			break
		}
		if c.Err != nil {
			attempts.add(c.URL, c.Err, s.now())
			attemptsTotal.WithLabelValues(name, "error").Inc()
			s.logger.Debug("strategy source failed",
				zap.String("strategy", name),
				zap.String("url", c.URL),
				zap.Error(c.Err),
			)
			continue
		}
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true

		tried := s.now()
		data, err := s.fetcher.Fetch(ctx, c.URL)
		attempts.add(c.URL, err, tried)
		if err != nil {
			attemptsTotal.WithLabelValues(name, "failed").Inc()
			s.logger.Debug("candidate failed",
				zap.String("strategy", name),
				zap.String("url", c.URL),
				zap.Error(err),
			)
			continue
		}

		attemptsTotal.WithLabelValues(name, "success").Inc()
		span.SetAttributes(attribute.String("logo.source_url", c.URL))
		return data, c.URL, true
	}
	return nil, "", false
}

// persist writes the new image fields. A forced run updates the existing
// entity in place; otherwise a new entity is created. Losing a concurrent
// create returns the winner and revokes this run's upload.
func (s *LogoService) persist(ctx context.Context, t provider.Target, existing *model.Logo, fields model.ImageFields) (*model.Logo, string, error) {
	// Orphaned uploads are revoked even when the request is gone.
	detached := context.WithoutCancel(ctx)

	if existing != nil {
		upd := model.LogoUpdate{Image: &fields}
		if t.Name != existing.Name {
			upd.Name = &t.Name
		}
		updated, err := s.repo.Update(ctx, existing.ID, upd)
		if err == nil {
			if old := existing.Remote(); old != nil && (fields.Remote == nil || old.ID != fields.Remote.ID) {
				s.revoke(detached, old)
			}
			return updated, outcomeReplaced, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.revoke(detached, fields.Remote)
			return nil, outcomeError, fmt.Errorf("updating logo for %s: %w", t.Domain, err)
		}
		// Deleted while extracting.
	}

	logo := &model.Logo{Name: t.Name, Domain: t.Domain}
	logo.ApplyImage(fields)
	err := s.repo.Create(ctx, logo)
	if err == nil {
		return logo, outcomeCreated, nil
	}

	s.revoke(detached, fields.Remote)
	if !errors.Is(err, storage.ErrConflict) {
		return nil, outcomeError, fmt.Errorf("creating logo for %s: %w", t.Domain, err)
	}

	winner, err := s.repo.FindByDomain(ctx, t.Domain)
	if err != nil {
		return nil, outcomeError, fmt.Errorf("reading concurrent logo for %s: %w", t.Domain, err)
	}
	s.logger.Info("concurrent extraction won by another request",
		zap.String("domain", t.Domain),
		zap.String("id", winner.ID),
	)
	return winner, outcomeConflict, nil
}

// revoke deletes a remote image, logging failures.
func (s *LogoService) revoke(ctx context.Context, ref *model.RemoteRef) {
	if ref == nil {
		return
	}
	if err := s.images.RevokeRef(ctx, ref); err != nil {
		s.logger.Warn("revoking remote image",
			zap.String("id", ref.ID),
			zap.Error(err),
		)
	}
}

// Get returns the logo with the given id.
func (s *LogoService) Get(ctx context.Context, id string) (*model.Logo, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByDomain normalizes rawDomain and returns its logo.
func (s *LogoService) GetByDomain(ctx context.Context, rawDomain string) (*model.Logo, error) {
	d, err := domain.Normalize(rawDomain)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByDomain(ctx, d)
}

// List returns a page of logos, most recently updated first, and the total
// count. limit is clamped to [1, MaxListLimit].
func (s *LogoService) List(ctx context.Context, limit, offset int) ([]model.Logo, int64, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset = max(offset, 0)

	logos, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return logos, total, nil
}

// Delete removes a logo and its attempts, revoking any remote image. It
// reports false when no such logo exists.
func (s *LogoService) Delete(ctx context.Context, id string) (bool, error) {
	logo, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.images.Revoke(ctx, logo); err != nil {
		s.logger.Warn("revoking remote image",
			zap.String("id", id),
			zap.Error(err),
		)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("deleting logo %s: %w", id, err)
	}
	s.logger.Info("logo deleted",
		zap.String("id", id),
		zap.String("domain", logo.Domain),
	)
	return true, nil
}

// RetrieveImage returns the bytes and content type of logo. A non-empty
// background flattens raster images onto that hex color, producing PNG.
func (s *LogoService) RetrieveImage(ctx context.Context, logo *model.Logo, background string) ([]byte, string, error) {
	data, contentType, err := s.images.Retrieve(ctx, logo)
	if err != nil || background == "" {
		return data, contentType, err
	}

	if logo.Format.IsVector() {
		return nil, "", fmt.Errorf("%w: %s", ErrBackgroundUnsupported, logo.Format)
	}
	if logo.Format == model.FormatICO {
		art, err := s.normalizer.ToCanonical(data)
		if err != nil {
			return nil, "", err
		}
		data = art.Data
	}

	out, err := s.normalizer.ApplyBackground(data, background)
	if err != nil {
		return nil, "", err
	}
	return out, model.CanonicalFormat.ContentType(), nil
}

// ListAttempts returns the attempt history of a logo, oldest first.
func (s *LogoService) ListAttempts(ctx context.Context, id string) ([]model.Attempt, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListAttempts(ctx, id)
}

// Stats describes stored data and the active pipeline configuration.
type Stats struct {
	storage.Stats
	ImageHost        string `json:"image_host"`
	ConversionEngine string `json:"conversion_engine"`
}

// Stats returns storage counters plus backend names.
func (s *LogoService) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Stats:            st,
		ImageHost:        s.images.HostName(),
		ConversionEngine: s.normalizer.Engine(),
	}, nil
}

// Ping checks the persistence backend.
func (s *LogoService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
