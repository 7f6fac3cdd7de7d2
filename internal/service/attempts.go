package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/storage"
)

type attempt struct {
	url string
	err error
	at  time.Time
}

// attemptLog buffers the downloads tried during one extraction run. The
// owning entity is only known once the run has an outcome, so records are
// written afterwards in a single pass.
type attemptLog struct {
	entries []attempt
}

// add records a finished try; at is when the download started.
func (l *attemptLog) add(url string, err error, at time.Time) {
	l.entries = append(l.entries, attempt{url: url, err: err, at: at})
}

func (l *attemptLog) len() int { return len(l.entries) }

// flush writes every buffered attempt, owned by logoID (nil for none).
// Write failures are logged and do not affect the extraction result.
func (l *attemptLog) flush(ctx context.Context, repo storage.LogoRepository, logoID *string, logger *zap.Logger) {
	for _, a := range l.entries {
		var msg string
		if a.err != nil {
			msg = a.err.Error()
		}
		if _, err := repo.RecordAttempt(ctx, logoID, a.url, a.err == nil, msg, a.at); err != nil {
			logger.Error("recording extraction attempt",
				zap.String("url", a.url),
				zap.Error(err),
			)
		}
	}
	l.entries = nil
}
