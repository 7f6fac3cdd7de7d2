// Package model defines the core data types for the logo service.
// Struct tags map fields to database columns (`db:"..."`, used by sqlx) and to
// API responses (`json:"..."`).
package model

import "time"

// Logo is the persisted logo record for one canonical domain.
//
// Exactly one storage mode is authoritative: when the remote reference is set
// the image lives on the image host and InlineBinary is empty; otherwise the
// normalized bytes are kept inline.
type Logo struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Domain            string    `db:"domain" json:"domain"`
	OriginalSourceURL string    `db:"original_source_url" json:"original_source_url"`
	RemoteRefID       *string   `db:"remote_ref_id" json:"remote_ref_id,omitempty"`
	RemoteRefURL      *string   `db:"remote_ref_url" json:"-"`
	RemoteRevokeToken *string   `db:"remote_revoke_token" json:"-"`
	InlineBinary      []byte    `db:"inline_binary" json:"-"`
	Format            Format    `db:"format" json:"format"`
	ByteSize          int64     `db:"byte_size" json:"byte_size"`
	Width             *int      `db:"width" json:"width,omitempty"`
	Height            *int      `db:"height" json:"height,omitempty"`
	ExtractedAt       time.Time `db:"extracted_at" json:"extracted_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// StorageMode values describe where a logo's bytes live.
const (
	StorageRemote = "remote"
	StorageInline = "inline"
	StorageNone   = "none"
)

// Remote returns the remote reference, or nil when the logo is stored inline.
func (l *Logo) Remote() *RemoteRef {
	if l.RemoteRefID == nil || l.RemoteRefURL == nil {
		return nil
	}
	ref := &RemoteRef{ID: *l.RemoteRefID, URL: *l.RemoteRefURL}
	if l.RemoteRevokeToken != nil {
		ref.RevokeToken = *l.RemoteRevokeToken
	}
	return ref
}

// StorageMode reports which storage mode is authoritative.
func (l *Logo) StorageMode() string {
	switch {
	case l.Remote() != nil:
		return StorageRemote
	case len(l.InlineBinary) > 0:
		return StorageInline
	default:
		return StorageNone
	}
}

// ApplyImage overwrites every image-derived field with f. Identifier, name,
// domain and timestamps other than ExtractedAt are left alone.
func (l *Logo) ApplyImage(f ImageFields) {
	l.OriginalSourceURL = f.OriginalSourceURL
	l.RemoteRefID, l.RemoteRefURL, l.RemoteRevokeToken = nil, nil, nil
	l.InlineBinary = nil
	if f.Remote != nil {
		id, u, tok := f.Remote.ID, f.Remote.URL, f.Remote.RevokeToken
		l.RemoteRefID, l.RemoteRefURL, l.RemoteRevokeToken = &id, &u, &tok
	} else {
		l.InlineBinary = f.InlineBinary
	}
	l.Format = f.Format
	l.ByteSize = f.ByteSize
	l.Width, l.Height = f.Width, f.Height
	l.ExtractedAt = f.ExtractedAt
}

// RemoteRef is an externally addressable image on the image host.
type RemoteRef struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	RevokeToken string `json:"-"`
}

// ImageFields groups everything derived from one downloaded image. These
// fields are always replaced together.
type ImageFields struct {
	OriginalSourceURL string
	Remote            *RemoteRef
	InlineBinary      []byte
	Format            Format
	ByteSize          int64
	Width             *int
	Height            *int
	ExtractedAt       time.Time
}

// LogoUpdate is a partial update. Nil fields are left untouched.
type LogoUpdate struct {
	Name  *string
	Image *ImageFields
}

// Attempt records one candidate download made during an extraction run.
// LogoID is nil when the run did not produce (or find) an entity.
type Attempt struct {
	ID           string    `db:"id" json:"id"`
	LogoID       *string   `db:"logo_id" json:"logo_id,omitempty"`
	AttemptedURL string    `db:"attempted_url" json:"attempted_url"`
	Success      bool      `db:"success" json:"success"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	AttemptedAt  time.Time `db:"attempted_at" json:"attempted_at"`
}
