package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/imaging"
)

// ErrDownloadFailed is returned when a candidate URL could not produce a
// usable image after all retries.
var ErrDownloadFailed = errors.New("download failed")

var (
	errTooLarge = errors.New("payload exceeds size limit")
	errTooSmall = errors.New("payload too small to be an image")
	errTinyIcon = errors.New("image dimensions below minimum")
)

// Config controls download limits and retry behavior.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxBytes       int64
	Retries        int
	Backoff        time.Duration
	// MinBytes is the smallest payload accepted as an image.
	MinBytes int
	// MinDimension rejects images whose known width or height is smaller.
	MinDimension int
}

// DefaultConfig returns the production download limits.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    10 * time.Second,
		MaxBytes:       5 << 20,
		Retries:        2,
		Backoff:        500 * time.Millisecond,
		MinBytes:       100,
		MinDimension:   16,
	}
}

// Fetcher downloads a single candidate image.
type Fetcher struct {
	client *http.Client
	cfg    Config
	retry  retryPolicy
	logger *zap.Logger
}

// New creates a Fetcher with its own HTTP client built from cfg.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	return NewWithClient(NewHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout, -1), cfg, logger)
}

// NewWithClient creates a Fetcher that uses the given HTTP client.
func NewWithClient(client *http.Client, cfg Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		retry:  retryPolicy{maxRetries: cfg.Retries, base: cfg.Backoff},
		logger: logger,
	}
}

// Fetch downloads url and returns the raw bytes. Network errors, non-200
// responses and suspiciously small payloads are retried; oversize payloads
// and images with tiny known dimensions are not. All failures wrap
// ErrDownloadFailed.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := f.retry.wait(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}

		data, err := f.download(ctx, url)
		if err == nil {
			if err = f.checkDimensions(data); err == nil {
				return data, nil
			}
			lastErr = err
			break
		}

		lastErr = err
		if !f.retry.shouldRetry(ctx, err, attempt) {
			break
		}
		f.logger.Debug("retrying download",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, url, lastErr)
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("creating request: %w", err))
	}
	SetBrowserHeaders(req, ImageAccept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if f.cfg.MaxBytes > 0 && resp.ContentLength > f.cfg.MaxBytes {
		return nil, permanent(fmt.Errorf("%w: content length %d", errTooLarge, resp.ContentLength))
	}

	// Read one byte past the limit so an oversized body is detectable.
	body := io.Reader(resp.Body)
	if f.cfg.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if f.cfg.MaxBytes > 0 && int64(len(data)) > f.cfg.MaxBytes {
		return nil, permanent(fmt.Errorf("%w: more than %d bytes", errTooLarge, f.cfg.MaxBytes))
	}
	if len(data) < f.cfg.MinBytes {
		return nil, fmt.Errorf("%w: %d bytes", errTooSmall, len(data))
	}

	return data, nil
}

// checkDimensions rejects images that are known to be tiny. Images whose
// dimensions cannot be probed are accepted and left to the normalizer.
func (f *Fetcher) checkDimensions(data []byte) error {
	info, err := imaging.Probe(data)
	if err != nil || !info.HasDimensions() {
		return nil
	}
	if info.Width < f.cfg.MinDimension || info.Height < f.cfg.MinDimension {
		return fmt.Errorf("%w: %dx%d", errTinyIcon, info.Width, info.Height)
	}
	return nil
}
