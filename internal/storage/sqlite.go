package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/fleveque/domain-logo-service/internal/model"
)

// sqliteLogoRepository is the embedded SQLite implementation.
type sqliteLogoRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteRepository wraps an open database (see NewDatabase).
func NewSQLiteRepository(db *sqlx.DB) LogoRepository {
	return &sqliteLogoRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func sqlitePlaceholder(int) string { return "?" }

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (r *sqliteLogoRepository) Create(ctx context.Context, logo *model.Logo) error {
	if err := validateLogo(logo); err != nil {
		return err
	}
	prepareNew(logo, r.now())

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO logos (`+logoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		insertArgs(logo)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrConflict, logo.Domain)
	}
	if err != nil {
		return fmt.Errorf("creating logo for %s: %w", logo.Domain, err)
	}
	return nil
}

func (r *sqliteLogoRepository) findOne(ctx context.Context, where string, arg any) (*model.Logo, error) {
	var logo model.Logo
	err := r.db.GetContext(ctx, &logo, `SELECT `+logoColumns+` FROM logos WHERE `+where+` = ?`, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting logo by %s %v: %w", where, arg, err)
	}
	return &logo, nil
}

func (r *sqliteLogoRepository) FindByDomain(ctx context.Context, domain string) (*model.Logo, error) {
	return r.findOne(ctx, "domain", domain)
}

func (r *sqliteLogoRepository) FindByID(ctx context.Context, id string) (*model.Logo, error) {
	return r.findOne(ctx, "id", id)
}

func (r *sqliteLogoRepository) Update(ctx context.Context, id string, upd model.LogoUpdate) (*model.Logo, error) {
	assignments, args := updateAssignments(upd, r.now(), sqlitePlaceholder)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, `UPDATE logos SET `+assignments+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("updating logo %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *sqliteLogoRepository) List(ctx context.Context, limit, offset int) ([]model.Logo, error) {
	logos := []model.Logo{}
	err := r.db.SelectContext(ctx, &logos,
		`SELECT `+logoColumns+` FROM logos ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing logos: %w", err)
	}
	return logos, nil
}

func (r *sqliteLogoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM logos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting logo %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteLogoRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM logos`); err != nil {
		return 0, fmt.Errorf("counting logos: %w", err)
	}
	return count, nil
}

func (r *sqliteLogoRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := r.db.GetContext(ctx, &s, statsQuery); err != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	return s, nil
}

func (r *sqliteLogoRepository) RecordAttempt(ctx context.Context, logoID *string, url string, success bool, errMsg string, attemptedAt time.Time) (*model.Attempt, error) {
	if attemptedAt.IsZero() {
		attemptedAt = r.now()
	}
	a := &model.Attempt{
		ID:           newID(),
		LogoID:       logoID,
		AttemptedURL: url,
		Success:      success,
		ErrorMessage: nullableMessage(errMsg),
		AttemptedAt:  attemptedAt.UTC(),
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO extraction_attempts (`+attemptColumns+`)
		VALUES (:id, :logo_id, :attempted_url, :success, :error_message, :attempted_at)
	`, a)
	if err != nil {
		return nil, fmt.Errorf("recording attempt for %s: %w", url, err)
	}
	return a, nil
}

func (r *sqliteLogoRepository) ListAttempts(ctx context.Context, logoID string) ([]model.Attempt, error) {
	attempts := []model.Attempt{}
	err := r.db.SelectContext(ctx, &attempts,
		`SELECT `+attemptColumns+` FROM extraction_attempts WHERE logo_id = ? ORDER BY attempted_at, id`, logoID)
	if err != nil {
		return nil, fmt.Errorf("listing attempts for %s: %w", logoID, err)
	}
	return attempts, nil
}

func (r *sqliteLogoRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sqliteLogoRepository) Close() error {
	return r.db.Close()
}
