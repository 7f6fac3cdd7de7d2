package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleveque/domain-logo-service/internal/model"
)

// setupTestDB creates a temporary SQLite database for testing.
func setupTestDB(t *testing.T) LogoRepository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewSQLiteRepository(db)
}

func newInlineLogo(domain string) *model.Logo {
	w, h := model.Dimensions(64, 64)
	return &model.Logo{
		Name:              domain,
		Domain:            domain,
		OriginalSourceURL: "https://" + domain + "/logo.png",
		InlineBinary:      []byte("\x89PNG inline bytes"),
		Format:            model.FormatPNG,
		ByteSize:          17,
		Width:             w,
		Height:            h,
	}
}

func TestSQLiteRepository(t *testing.T) {
	runRepositoryContract(t, setupTestDB)
}

func TestPostgresRepository_Integration(t *testing.T) {
	dsn := os.Getenv("LOGO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LOGO_TEST_POSTGRES_DSN not set")
	}
	runRepositoryContract(t, func(t *testing.T) LogoRepository {
		t.Helper()
		repo, err := NewPostgresRepository(context.Background(), PostgresConfig{DSN: dsn})
		if err != nil {
			t.Fatalf("connecting: %v", err)
		}
		pg := repo.(*postgresLogoRepository)
		pg.pool.Exec(context.Background(), `TRUNCATE logos, extraction_attempts`)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

// runRepositoryContract exercises behavior every backend must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) LogoRepository) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		repo := newRepo(t)
		logo := newInlineLogo("example.com")
		if err := repo.Create(ctx, logo); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if logo.ID == "" || logo.CreatedAt.IsZero() {
			t.Fatal("expected id and timestamps to be assigned")
		}

		byDomain, err := repo.FindByDomain(ctx, "example.com")
		if err != nil {
			t.Fatalf("FindByDomain failed: %v", err)
		}
		byID, err := repo.FindByID(ctx, logo.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		for _, got := range []*model.Logo{byDomain, byID} {
			if got.ID != logo.ID || got.Format != model.FormatPNG || string(got.InlineBinary) != string(logo.InlineBinary) {
				t.Errorf("unexpected logo %+v", got)
			}
			if got.Width == nil || *got.Width != 64 || got.Remote() != nil {
				t.Errorf("unexpected image fields %+v", got)
			}
		}

		if _, err := repo.FindByDomain(ctx, "missing.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate domain conflicts", func(t *testing.T) {
		repo := newRepo(t)
		if err := repo.Create(ctx, newInlineLogo("example.com")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		err := repo.Create(ctx, newInlineLogo("example.com"))
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("update replaces image fields", func(t *testing.T) {
		repo := newRepo(t)
		logo := newInlineLogo("example.com")
		if err := repo.Create(ctx, logo); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		extracted := time.Now().UTC().Add(time.Minute)
		updated, err := repo.Update(ctx, logo.ID, model.LogoUpdate{Image: &model.ImageFields{
			OriginalSourceURL: "https://cdn.example.com/logo.svg",
			Remote:            &model.RemoteRef{ID: "r1", URL: "https://img.test/r1.svg", RevokeToken: "tok"},
			Format:            model.FormatSVG,
			ByteSize:          99,
			ExtractedAt:       extracted,
		}})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		if updated.ID != logo.ID || !updated.CreatedAt.Equal(logo.CreatedAt) {
			t.Error("id and created_at must be preserved")
		}
		if updated.Format != model.FormatSVG || updated.ByteSize != 99 {
			t.Errorf("expected svg/99, got %s/%d", updated.Format, updated.ByteSize)
		}
		if updated.Width != nil || updated.Height != nil {
			t.Error("dimensions must be cleared")
		}
		if updated.InlineBinary != nil || updated.Remote() == nil || updated.Remote().RevokeToken != "tok" {
			t.Error("storage mode must switch to remote")
		}
		if updated.UpdatedAt.Before(logo.UpdatedAt) {
			t.Error("updated_at must not go backwards")
		}
		if updated.Name != "example.com" {
			t.Errorf("name must be untouched, got %q", updated.Name)
		}

		if _, err := repo.Update(ctx, "missing", model.LogoUpdate{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list orders by most recent update", func(t *testing.T) {
		repo := newRepo(t)
		var ids []string
		for _, d := range []string{"a.com", "b.com", "c.com"} {
			l := newInlineLogo(d)
			if err := repo.Create(ctx, l); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			ids = append(ids, l.ID)
			time.Sleep(2 * time.Millisecond)
		}
		name := "A"
		if _, err := repo.Update(ctx, ids[0], model.LogoUpdate{Name: &name}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		logos, err := repo.List(ctx, 2, 0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(logos) != 2 || logos[0].Domain != "a.com" || logos[1].Domain != "c.com" {
			t.Errorf("unexpected order %v", domains(logos))
		}

		rest, err := repo.List(ctx, 10, 2)
		if err != nil || len(rest) != 1 || rest[0].Domain != "b.com" {
			t.Errorf("unexpected second page %v (%v)", domains(rest), err)
		}

		count, err := repo.Count(ctx)
		if err != nil || count != 3 {
			t.Errorf("expected 3 logos, got %d (%v)", count, err)
		}
	})

	t.Run("attempts and cascade", func(t *testing.T) {
		repo := newRepo(t)
		logo := newInlineLogo("example.com")
		if err := repo.Create(ctx, logo); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		second := first.Add(400 * time.Millisecond)
		if _, err := repo.RecordAttempt(ctx, &logo.ID, "https://example.com/logo.png", true, "", second); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
		if _, err := repo.RecordAttempt(ctx, &logo.ID, "https://example.com/favicon.ico", false, "HTTP 404", first); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
		if _, err := repo.RecordAttempt(ctx, nil, "https://other.com/logo.png", false, "timeout", time.Time{}); err != nil {
			t.Fatalf("RecordAttempt without logo failed: %v", err)
		}

		attempts, err := repo.ListAttempts(ctx, logo.ID)
		if err != nil {
			t.Fatalf("ListAttempts failed: %v", err)
		}
		if len(attempts) != 2 {
			t.Fatalf("expected 2 attempts, got %d", len(attempts))
		}
		if attempts[0].Success || attempts[0].ErrorMessage == nil || *attempts[0].ErrorMessage != "HTTP 404" {
			t.Errorf("unexpected first attempt %+v", attempts[0])
		}
		if !attempts[1].Success || attempts[1].ErrorMessage != nil {
			t.Errorf("unexpected second attempt %+v", attempts[1])
		}
		if !attempts[0].AttemptedAt.Equal(first) || !attempts[1].AttemptedAt.Equal(second) {
			t.Errorf("expected try times to be kept, got %v and %v", attempts[0].AttemptedAt, attempts[1].AttemptedAt)
		}

		stats, err := repo.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Logos != 1 || stats.Attempts != 3 || stats.SuccessfulAttempts != 1 || stats.RemoteLogos != 0 {
			t.Errorf("unexpected stats %+v", stats)
		}

		if err := repo.Delete(ctx, logo.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		attempts, err = repo.ListAttempts(ctx, logo.ID)
		if err != nil || len(attempts) != 0 {
			t.Errorf("expected attempts to cascade, got %d (%v)", len(attempts), err)
		}
		if err := repo.Delete(ctx, logo.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("rejects invalid logos", func(t *testing.T) {
		repo := newRepo(t)
		bad := newInlineLogo("example.com")
		bad.Height = nil
		if err := repo.Create(ctx, bad); err == nil {
			t.Error("expected error for width without height")
		}
		bad = newInlineLogo("example.com")
		bad.Format = "tiff"
		if err := repo.Create(ctx, bad); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}

func domains(logos []model.Logo) []string {
	out := make([]string, len(logos))
	for i, l := range logos {
		out[i] = l.Domain
	}
	return out
}
