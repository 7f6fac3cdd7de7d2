package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fleveque/domain-logo-service/internal/model"
)

// MinIOConfig holds S3-compatible connection settings. PublicURL is the base
// clients use to reach objects; it defaults to the endpoint itself.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// MinIO stores logos as objects in an S3-compatible bucket. The object key
// serves as both id and revocation token.
type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIO creates the host. It does not contact the server; call
// EnsureBucket for that.
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	return &MinIO{client: mc, bucket: cfg.Bucket, publicURL: strings.TrimSuffix(public, "/")}, nil
}

func (m *MinIO) Name() string { return "minio" }

// Accepts every supported format except ICO, which is stored converted.
func (m *MinIO) Accepts(f model.Format) bool {
	return f.Valid() && f != model.FormatICO
}

// EnsureBucket creates the bucket if it does not exist yet.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		// Another instance may have won the race.
		if exists, checkErr := m.client.BucketExists(ctx, m.bucket); checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	return nil
}

func objectKey(f model.Format) string {
	return "logos/" + uuid.NewString() + "." + f.Extension()
}

func (m *MinIO) objectURL(key string) string {
	return m.publicURL + "/" + m.bucket + "/" + key
}

func (m *MinIO) Upload(ctx context.Context, data []byte, _ string, f model.Format) (*model.RemoteRef, error) {
	key := objectKey(f)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: f.ContentType()})
	if err != nil {
		return nil, fmt.Errorf("%w: put object %s: %v", ErrUploadFailed, key, err)
	}
	return &model.RemoteRef{ID: key, URL: m.objectURL(key), RevokeToken: key}, nil
}

func (m *MinIO) Fetch(ctx context.Context, ref model.RemoteRef) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, ref.ID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", ref.ID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", ref.ID, err)
	}
	return data, nil
}

func (m *MinIO) Revoke(ctx context.Context, ref model.RemoteRef) error {
	key := ref.RevokeToken
	if key == "" {
		key = ref.ID
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
