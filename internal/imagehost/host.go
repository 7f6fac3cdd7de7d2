// Package imagehost stores normalized logos on a remote image host and falls
// back to inline storage in the database whenever that is not possible.
package imagehost

import (
	"context"
	"errors"

	"github.com/fleveque/domain-logo-service/internal/model"
)

// ErrUploadFailed wraps every failure to place an image on the remote host.
var ErrUploadFailed = errors.New("image upload failed")

// ErrNoImage is returned when a logo has neither a remote nor an inline image.
var ErrNoImage = errors.New("logo has no stored image")

// Host is a remote image host.
type Host interface {
	Name() string
	// Accepts reports whether the host takes uploads in format f as-is.
	Accepts(f model.Format) bool
	Upload(ctx context.Context, data []byte, filename string, f model.Format) (*model.RemoteRef, error)
	Fetch(ctx context.Context, ref model.RemoteRef) ([]byte, error)
	Revoke(ctx context.Context, ref model.RemoteRef) error
}
