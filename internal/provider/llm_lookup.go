package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/domain-logo-service/internal/llm"
)

// LLMLookup asks LLM clients, in configured order, for a logo URL. Calls are
// rate limited to keep API costs bounded.
type LLMLookup struct {
	clients []llm.Client // first is primary, the rest are fallbacks
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewLLMLookup creates a lookup allowing ratePerMinute calls per minute.
func NewLLMLookup(clients []llm.Client, ratePerMinute int, logger *zap.Logger) *LLMLookup {
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	return &LLMLookup{
		clients: clients,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), 1),
		logger:  logger,
	}
}

// FindLogoURL returns the first URL any client proposes.
func (l *LLMLookup) FindLogoURL(ctx context.Context, domain, name string) (string, error) {
	if len(l.clients) == 0 {
		return "", errors.New("no LLM providers configured")
	}

	var lastErr error
	for i, client := range l.clients {
		// Blocks until a token is available; fails fast if the wait would
		// outlive ctx.
		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		start := time.Now()
		result, err := client.FindLogoURL(ctx, domain, name)
		fields := []zap.Field{
			zap.String("domain", domain),
			zap.String("provider", client.ProviderName()),
			zap.String("model", client.ModelName()),
			zap.Duration("duration", time.Since(start)),
		}
		if err == nil {
			l.logger.Info("LLM proposed logo url", append(fields,
				zap.String("url", result.LogoURL),
				zap.String("confidence", result.Confidence),
			)...)
			return result.LogoURL, nil
		}

		lastErr = err
		if i < len(l.clients)-1 {
			l.logger.Warn("LLM provider failed, trying next", append(fields, zap.Error(err))...)
		}
	}

	return "", fmt.Errorf("all LLM providers failed for %s: %w", domain, lastErr)
}
