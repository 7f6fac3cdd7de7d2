package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/domain"
	"github.com/fleveque/domain-logo-service/internal/imaging"
	"github.com/fleveque/domain-logo-service/internal/model"
	"github.com/fleveque/domain-logo-service/internal/service"
	"github.com/fleveque/domain-logo-service/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeService serves logos from memory.
type fakeService struct {
	logos      map[string]*model.Logo
	extractErr error
	lastForce  bool
	lastBG     string
	attempts   []model.Attempt
	statsErr   error
	pingErr    error
}

func newFakeService() *fakeService {
	id := "logo-1"
	ref, refURL := "r1", "https://img.test/r1.png"
	return &fakeService{logos: map[string]*model.Logo{
		id: {
			ID:           id,
			Name:         "Example",
			Domain:       "example.com",
			RemoteRefID:  &ref,
			RemoteRefURL: &refURL,
			Format:       model.FormatPNG,
			ByteSize:     1234,
			UpdatedAt:    time.Unix(1700000000, 0).UTC(),
		},
	}}
}

func (f *fakeService) Extract(_ context.Context, raw, _ string, force bool) (*model.Logo, error) {
	f.lastForce = force
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	if _, err := domain.Normalize(raw); err != nil {
		return nil, err
	}
	return f.logos["logo-1"], nil
}

func (f *fakeService) Get(_ context.Context, id string) (*model.Logo, error) {
	if l, ok := f.logos[id]; ok {
		return l, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeService) GetByDomain(_ context.Context, raw string) (*model.Logo, error) {
	d, err := domain.Normalize(raw)
	if err != nil {
		return nil, err
	}
	for _, l := range f.logos {
		if l.Domain == d {
			return l, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeService) List(_ context.Context, limit, offset int) ([]model.Logo, int64, error) {
	var out []model.Logo
	for _, l := range f.logos {
		out = append(out, *l)
	}
	return out, int64(len(out)), nil
}

func (f *fakeService) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := f.logos[id]; !ok {
		return false, nil
	}
	delete(f.logos, id)
	return true, nil
}

func (f *fakeService) RetrieveImage(_ context.Context, _ *model.Logo, bg string) ([]byte, string, error) {
	f.lastBG = bg
	if bg != "" {
		if _, _, _, err := imaging.ParseHexColor(bg); err != nil {
			return nil, "", err
		}
	}
	return []byte("\x89PNG fake"), "image/png", nil
}

func (f *fakeService) ListAttempts(ctx context.Context, id string) ([]model.Attempt, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	return f.attempts, nil
}

func (f *fakeService) Stats(context.Context) (*service.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &service.Stats{Stats: storage.Stats{Logos: int64(len(f.logos))}, ImageHost: "imgbb", ConversionEngine: "go"}, nil
}

func (f *fakeService) Ping(context.Context) error { return f.pingErr }

func newTestRouter(svc LogoService) *gin.Engine {
	r := gin.New()
	logos := NewLogoHandler(svc, zap.NewNop())
	admin := NewAdminHandler(svc, zap.NewNop())
	r.GET("/healthz", NewHealthHandler(svc).Healthz)
	r.POST("/logos", logos.Extract)
	r.GET("/logos", logos.List)
	r.GET("/logos/:id", logos.Get)
	r.GET("/logos/:id/image", logos.Image)
	r.GET("/logos/:id/attempts", logos.Attempts)
	r.GET("/domains/:domain", logos.GetByDomain)
	r.GET("/admin/stats", admin.Stats)
	r.DELETE("/admin/logos/:id", admin.Delete)
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		extractErr error
		wantCode   int
	}{
		{"success", `{"domain":"https://www.example.com/","force":true}`, nil, http.StatusOK},
		{"missing domain", `{"name":"Example"}`, nil, http.StatusBadRequest},
		{"malformed json", `{"domain":`, nil, http.StatusBadRequest},
		{"invalid domain", `{"domain":"not a domain"}`, nil, http.StatusBadRequest},
		{"nothing found", `{"domain":"example.com"}`, fmt.Errorf("%w: example.com", service.ErrNoLogoFound), http.StatusNotFound},
		{"conflict", `{"domain":"example.com"}`, storage.ErrConflict, http.StatusConflict},
		{"database down", `{"domain":"example.com"}`, errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.extractErr = tt.extractErr
			w := serve(newTestRouter(svc), http.MethodPost, "/logos", tt.body)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantCode == http.StatusInternalServerError && strings.Contains(w.Body.String(), "connection refused") {
				t.Error("internal error details should not leak")
			}
		})
	}
}

func TestExtract_ResponseShape(t *testing.T) {
	svc := newFakeService()
	w := serve(newTestRouter(svc), http.MethodPost, "/logos", `{"domain":"example.com","force":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !svc.lastForce {
		t.Error("expected force to be passed through")
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["id"] != "logo-1" || body["domain"] != "example.com" {
		t.Errorf("unexpected identity fields: %v", body)
	}
	if body["storage_mode"] != model.StorageRemote || body["remote_url"] != "https://img.test/r1.png" {
		t.Errorf("unexpected storage fields: %v", body)
	}
	if body["image_url"] != "/api/v1/logos/logo-1/image" {
		t.Errorf("unexpected image url %v", body["image_url"])
	}
	if _, ok := body["inline_binary"]; ok {
		t.Error("inline bytes must not be serialized")
	}
}

func TestList(t *testing.T) {
	r := newTestRouter(newFakeService())

	if w := serve(r, http.MethodGet, "/logos?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/logos?offset=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative offset, got %d", w.Code)
	}

	w := serve(r, http.MethodGet, "/logos?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Logos []map[string]any `json:"logos"`
		Total int              `json:"total"`
		Limit int              `json:"limit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Total != 1 || len(body.Logos) != 1 || body.Limit != 10 {
		t.Errorf("unexpected page %+v", body)
	}
}

func TestGetEndpoints(t *testing.T) {
	r := newTestRouter(newFakeService())

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/logos/logo-1", http.StatusOK},
		{"/logos/missing", http.StatusNotFound},
		{"/domains/www.example.com", http.StatusOK},
		{"/domains/other.com", http.StatusNotFound},
		{"/domains/bad_domain", http.StatusBadRequest},
		{"/logos/logo-1/attempts", http.StatusOK},
		{"/logos/missing/attempts", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if w := serve(r, http.MethodGet, tt.path, ""); w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestImage(t *testing.T) {
	svc := newFakeService()
	r := newTestRouter(svc)

	w := serve(r, http.MethodGet, "/logos/logo-1/image?bg=ffffff", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "image/png" {
		t.Errorf("unexpected content type %s", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("Cache-Control") == "" || w.Header().Get("ETag") == "" {
		t.Error("expected caching headers")
	}
	if svc.lastBG != "ffffff" {
		t.Errorf("expected background to be passed through, got %q", svc.lastBG)
	}

	if w := serve(r, http.MethodGet, "/logos/logo-1/image?bg=nothex", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad color, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/logos/missing/image", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing logo, got %d", w.Code)
	}
}

func TestAdmin(t *testing.T) {
	svc := newFakeService()
	r := newTestRouter(svc)

	w := serve(r, http.MethodGet, "/admin/stats", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"image_host":"imgbb"`) {
		t.Errorf("unexpected stats response %d %s", w.Code, w.Body.String())
	}

	if w := serve(r, http.MethodDelete, "/admin/logos/logo-1", ""); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w := serve(r, http.MethodDelete, "/admin/logos/logo-1", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}

	svc.statsErr = errors.New("db gone")
	if w := serve(r, http.MethodGet, "/admin/stats", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	svc := newFakeService()
	r := newTestRouter(svc)

	if w := serve(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	svc.pingErr = errors.New("database is locked")
	if w := serve(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
