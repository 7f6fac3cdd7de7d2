package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DiskCache stores entries as files below a base directory. Each file starts
// with an 8-byte big-endian expiry (Unix nanoseconds, 0 for none).
type DiskCache struct {
	baseDir string
	now     func() time.Time
}

// NewDiskCache creates the cache, ensuring the base directory exists.
func NewDiskCache(baseDir string) (*DiskCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &DiskCache{baseDir: baseDir, now: time.Now}, nil
}

// path spreads entries over 256 subdirectories keyed by a hash of the key,
// which also keeps arbitrary keys filesystem-safe.
func (c *DiskCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.baseDir, name[:2], name)
}

func (c *DiskCache) Get(_ context.Context, key string) ([]byte, error) {
	raw, err := os.ReadFile(c.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	if len(raw) < 8 {
		return nil, ErrMiss
	}
	if exp := int64(binary.BigEndian.Uint64(raw[:8])); exp != 0 && c.now().UnixNano() >= exp {
		os.Remove(c.path(key))
		return nil, ErrMiss
	}
	return raw[8:], nil
}

func (c *DiskCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	var exp int64
	if ttl > 0 {
		exp = c.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(exp))
	buf = append(buf, data...)

	// Each writer gets its own temp file; the rename makes the entry visible
	// whole.
	tmp, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

func (c *DiskCache) Delete(_ context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting cache file: %w", err)
	}
	return nil
}

func (c *DiskCache) Close() error { return nil }
