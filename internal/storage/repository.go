// Package storage persists logo entities and extraction attempts. Two
// interchangeable backends exist: an embedded SQLite file and a networked
// Postgres database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleveque/domain-logo-service/internal/model"
)

// Sentinel errors. Callers check with errors.Is.
var (
	ErrNotFound = errors.New("logo not found")
	ErrConflict = errors.New("logo already exists for domain")
)

// LogoRepository is the persistence gateway used by the service.
type LogoRepository interface {
	// Create inserts logo, assigning ID and timestamps when unset. A second
	// logo for the same domain fails with ErrConflict.
	Create(ctx context.Context, logo *model.Logo) error
	FindByDomain(ctx context.Context, domain string) (*model.Logo, error)
	FindByID(ctx context.Context, id string) (*model.Logo, error)
	// Update applies upd in a single statement, bumping updated_at, and
	// returns the stored row.
	Update(ctx context.Context, id string, upd model.LogoUpdate) (*model.Logo, error)
	// List returns logos ordered by most recently updated first.
	List(ctx context.Context, limit, offset int) ([]model.Logo, error)
	// Delete removes a logo and, by cascade, its attempts.
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	// RecordAttempt stores one download try made at attemptedAt; a zero time
	// means now.
	RecordAttempt(ctx context.Context, logoID *string, url string, success bool, errMsg string, attemptedAt time.Time) (*model.Attempt, error)
	ListAttempts(ctx context.Context, logoID string) ([]model.Attempt, error)
	Ping(ctx context.Context) error
	Close() error
}

// Stats summarizes stored data for the admin endpoint.
type Stats struct {
	Logos              int64 `db:"logos" json:"logos"`
	RemoteLogos        int64 `db:"remote_logos" json:"remote_logos"`
	Attempts           int64 `db:"attempts" json:"attempts"`
	SuccessfulAttempts int64 `db:"successful_attempts" json:"successful_attempts"`
}

const logoColumns = `id, name, domain, original_source_url,
	remote_ref_id, remote_ref_url, remote_revoke_token, inline_binary,
	format, byte_size, width, height, extracted_at, created_at, updated_at`

const attemptColumns = `id, logo_id, attempted_url, success, error_message, attempted_at`

const statsQuery = `SELECT
	(SELECT COUNT(*) FROM logos) AS logos,
	(SELECT COUNT(*) FROM logos WHERE remote_ref_id IS NOT NULL) AS remote_logos,
	(SELECT COUNT(*) FROM extraction_attempts) AS attempts,
	(SELECT COUNT(*) FROM extraction_attempts WHERE success) AS successful_attempts`

// newID returns a time-ordered identifier, so attempt rows sort in the order
// they were made even when timestamps tie.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// prepareNew fills identity and timestamps of a logo about to be inserted.
func prepareNew(logo *model.Logo, now time.Time) {
	if logo.ID == "" {
		logo.ID = newID()
	}
	if logo.CreatedAt.IsZero() {
		logo.CreatedAt = now
	}
	if logo.UpdatedAt.IsZero() {
		logo.UpdatedAt = logo.CreatedAt
	}
	if logo.ExtractedAt.IsZero() {
		logo.ExtractedAt = logo.CreatedAt
	}
}

// insertArgs lists logo values in logoColumns order.
func insertArgs(l *model.Logo) []any {
	return []any{
		l.ID, l.Name, l.Domain, l.OriginalSourceURL,
		l.RemoteRefID, l.RemoteRefURL, l.RemoteRevokeToken, l.InlineBinary,
		string(l.Format), l.ByteSize, l.Width, l.Height,
		l.ExtractedAt, l.CreatedAt, l.UpdatedAt,
	}
}

// updateAssignments builds the SET clause for upd. placeholder renders the
// n-th (1-based) bind parameter in the backend's syntax.
func updateAssignments(upd model.LogoUpdate, now time.Time, placeholder func(n int) string) (string, []any) {
	var cols []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		cols = append(cols, col+" = "+placeholder(len(args)))
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Image != nil {
		// Image columns are always replaced together.
		var img model.Logo
		img.ApplyImage(*upd.Image)
		set("original_source_url", img.OriginalSourceURL)
		set("remote_ref_id", img.RemoteRefID)
		set("remote_ref_url", img.RemoteRefURL)
		set("remote_revoke_token", img.RemoteRevokeToken)
		set("inline_binary", img.InlineBinary)
		set("format", string(img.Format))
		set("byte_size", img.ByteSize)
		set("width", img.Width)
		set("height", img.Height)
		set("extracted_at", img.ExtractedAt)
	}
	set("updated_at", now)

	return strings.Join(cols, ", "), args
}

func nullableMessage(msg string) *string {
	if msg == "" {
		return nil
	}
	return &msg
}

func validateLogo(l *model.Logo) error {
	if l.Domain == "" {
		return fmt.Errorf("logo domain is required")
	}
	if !l.Format.Valid() {
		return fmt.Errorf("unsupported logo format %q", l.Format)
	}
	if (l.Width == nil) != (l.Height == nil) {
		return fmt.Errorf("width and height must both be set or both be empty")
	}
	return nil
}
