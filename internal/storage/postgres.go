package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleveque/domain-logo-service/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS logos (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL DEFAULT '',
    domain              TEXT NOT NULL UNIQUE,
    original_source_url TEXT NOT NULL DEFAULT '',
    remote_ref_id       TEXT,
    remote_ref_url      TEXT,
    remote_revoke_token TEXT,
    inline_binary       BYTEA,
    format              TEXT NOT NULL,
    byte_size           BIGINT NOT NULL DEFAULT 0,
    width               INTEGER,
    height              INTEGER,
    extracted_at        TIMESTAMPTZ NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL,
    CHECK ((width IS NULL) = (height IS NULL))
);

CREATE TABLE IF NOT EXISTS extraction_attempts (
    id            TEXT PRIMARY KEY,
    logo_id       TEXT REFERENCES logos(id) ON DELETE CASCADE,
    attempted_url TEXT NOT NULL,
    success       BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT,
    attempted_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_logos_updated_at ON logos(updated_at);
CREATE INDEX IF NOT EXISTS idx_attempts_logo_id ON extraction_attempts(logo_id);
`

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresConfig controls the connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool is the subset of *pgxpool.Pool the repository uses, so tests can
// substitute pgxmock.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type postgresLogoRepository struct {
	pool pgxPool
	now  func() time.Time
}

// NewPostgresRepository connects to Postgres and applies the schema.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (LogoRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return newPostgresRepositoryWithPool(pool), nil
}

func newPostgresRepositoryWithPool(pool pgxPool) *postgresLogoRepository {
	return &postgresLogoRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func postgresPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// scanLogo reads one row selected with logoColumns.
func scanLogo(row pgx.Row) (*model.Logo, error) {
	var l model.Logo
	var format string
	err := row.Scan(
		&l.ID, &l.Name, &l.Domain, &l.OriginalSourceURL,
		&l.RemoteRefID, &l.RemoteRefURL, &l.RemoteRevokeToken, &l.InlineBinary,
		&format, &l.ByteSize, &l.Width, &l.Height,
		&l.ExtractedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Format = model.Format(format)
	return &l, nil
}

func scanAttempt(row pgx.Row) (model.Attempt, error) {
	var a model.Attempt
	err := row.Scan(&a.ID, &a.LogoID, &a.AttemptedURL, &a.Success, &a.ErrorMessage, &a.AttemptedAt)
	return a, err
}

func (r *postgresLogoRepository) Create(ctx context.Context, logo *model.Logo) error {
	if err := validateLogo(logo); err != nil {
		return err
	}
	prepareNew(logo, r.now())

	_, err := r.pool.Exec(ctx,
		`INSERT INTO logos (`+logoColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		insertArgs(logo)...)
	if isPgUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrConflict, logo.Domain)
	}
	if err != nil {
		return fmt.Errorf("creating logo for %s: %w", logo.Domain, err)
	}
	return nil
}

func (r *postgresLogoRepository) findOne(ctx context.Context, where string, arg any) (*model.Logo, error) {
	logo, err := scanLogo(r.pool.QueryRow(ctx, `SELECT `+logoColumns+` FROM logos WHERE `+where+` = $1`, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting logo by %s %v: %w", where, arg, err)
	}
	return logo, nil
}

func (r *postgresLogoRepository) FindByDomain(ctx context.Context, domain string) (*model.Logo, error) {
	return r.findOne(ctx, "domain", domain)
}

func (r *postgresLogoRepository) FindByID(ctx context.Context, id string) (*model.Logo, error) {
	return r.findOne(ctx, "id", id)
}

func (r *postgresLogoRepository) Update(ctx context.Context, id string, upd model.LogoUpdate) (*model.Logo, error) {
	assignments, args := updateAssignments(upd, r.now(), postgresPlaceholder)
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE logos SET %s WHERE id = $%d RETURNING %s`, assignments, len(args), logoColumns)
	logo, err := scanLogo(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating logo %s: %w", id, err)
	}
	return logo, nil
}

func (r *postgresLogoRepository) List(ctx context.Context, limit, offset int) ([]model.Logo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+logoColumns+` FROM logos ORDER BY updated_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing logos: %w", err)
	}
	defer rows.Close()

	logos := []model.Logo{}
	for rows.Next() {
		l, err := scanLogo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning logo: %w", err)
		}
		logos = append(logos, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing logos: %w", err)
	}
	return logos, nil
}

func (r *postgresLogoRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM logos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting logo %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresLogoRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM logos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting logos: %w", err)
	}
	return count, nil
}

func (r *postgresLogoRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, statsQuery).Scan(&s.Logos, &s.RemoteLogos, &s.Attempts, &s.SuccessfulAttempts)
	if err != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	return s, nil
}

func (r *postgresLogoRepository) RecordAttempt(ctx context.Context, logoID *string, url string, success bool, errMsg string, attemptedAt time.Time) (*model.Attempt, error) {
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
	_, err := r.pool.Exec(ctx,
		`INSERT INTO extraction_attempts (`+attemptColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.LogoID, a.AttemptedURL, a.Success, a.ErrorMessage, a.AttemptedAt)
	if err != nil {
		return nil, fmt.Errorf("recording attempt for %s: %w", url, err)
	}
	return a, nil
}

func (r *postgresLogoRepository) ListAttempts(ctx context.Context, logoID string) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM extraction_attempts WHERE logo_id = $1 ORDER BY attempted_at, id`, logoID)
	if err != nil {
		return nil, fmt.Errorf("listing attempts for %s: %w", logoID, err)
	}
	defer rows.Close()

	attempts := []model.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing attempts for %s: %w", logoID, err)
	}
	return attempts, nil
}

func (r *postgresLogoRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresLogoRepository) Close() error {
	r.pool.Close()
	return nil
}
