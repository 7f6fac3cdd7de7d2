package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fleveque/domain-logo-service/internal/model"
)

// DefaultImgBBEndpoint is the public ImgBB upload API.
const DefaultImgBBEndpoint = "https://api.imgbb.com/1/upload"

const maxFetchBytes = 10 << 20

// ImgBB uploads through an ImgBB-compatible HTTP API.
type ImgBB struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewImgBB creates the host. An empty endpoint uses the public API.
func NewImgBB(client *http.Client, endpoint, apiKey string) *ImgBB {
	if endpoint == "" {
		endpoint = DefaultImgBBEndpoint
	}
	return &ImgBB{client: client, endpoint: endpoint, apiKey: apiKey}
}

func (h *ImgBB) Name() string { return "imgbb" }

// Accepts excludes SVG and ICO, which ImgBB rejects.
func (h *ImgBB) Accepts(f model.Format) bool {
	switch f {
	case model.FormatPNG, model.FormatJPEG, model.FormatGIF, model.FormatWebP, model.FormatBMP:
		return true
	}
	return false
}

// flexInt decodes numbers the API sometimes sends as strings.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing number %q: %w", s, err)
	}
	*n = flexInt(v)
	return nil
}

type imgbbResponse struct {
	Data struct {
		ID        string  `json:"id"`
		URL       string  `json:"url"`
		DeleteURL string  `json:"delete_url"`
		Width     flexInt `json:"width"`
		Height    flexInt `json:"height"`
		Size      flexInt `json:"size"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (h *ImgBB) Upload(ctx context.Context, data []byte, filename string, f model.Format) (*model.RemoteRef, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("name", strings.TrimSuffix(filename, "."+f.Extension())); err != nil {
		return nil, fmt.Errorf("%w: writing form: %v", ErrUploadFailed, err)
	}
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: writing form: %v", ErrUploadFailed, err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("%w: writing form: %v", ErrUploadFailed, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: writing form: %v", ErrUploadFailed, err)
	}

	endpoint, err := url.Parse(h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: bad endpoint: %v", ErrUploadFailed, err)
	}
	q := endpoint.Query()
	q.Set("key", h.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), &body)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	var out imgbbResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: HTTP %d: decoding response: %v", ErrUploadFailed, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUploadFailed, resp.StatusCode, out.Error.Message)
	}
	if out.Data.ID == "" || out.Data.URL == "" {
		return nil, fmt.Errorf("%w: response missing id or url", ErrUploadFailed)
	}

	return &model.RemoteRef{
		ID:          out.Data.ID,
		URL:         out.Data.URL,
		RevokeToken: out.Data.DeleteURL,
	}, nil
}

func (h *ImgBB) Fetch(ctx context.Context, ref model.RemoteRef) ([]byte, error) {
	resp, err := h.get(ctx, ref.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", ref.ID, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref.ID, err)
	}
	return data, nil
}

// Revoke requests the deletion URL handed out at upload time.
func (h *ImgBB) Revoke(ctx context.Context, ref model.RemoteRef) error {
	if ref.RevokeToken == "" {
		return fmt.Errorf("revoking %s: no deletion url", ref.ID)
	}
	resp, err := h.get(ctx, ref.RevokeToken)
	if err != nil {
		return fmt.Errorf("revoking %s: %w", ref.ID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("revoking %s: HTTP %d", ref.ID, resp.StatusCode)
	}
	return nil
}

func (h *ImgBB) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return h.client.Do(req)
}
