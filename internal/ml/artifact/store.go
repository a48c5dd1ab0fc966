// Package artifact stores trained model files. Backends mirror the upload
// providers of the platform: local disk, MinIO and Aliyun OSS.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dropout_risk_backend/internal/config"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store is a flat key/value blob store for model artifacts.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Location describes where key lives, for the model registry.
	Location(key string) string
}

// NewStore picks the backend configured in cfg.Type. Unknown types fall
// back to local storage, like the upload service.
func NewStore(cfg *config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "minio":
		return NewMinioStore(cfg)
	case "oss":
		return NewOSSStore(cfg)
	default:
		return NewLocalStore(cfg.ModelDir())
	}
}

// LocalStore keeps artifacts as files under Dir.
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	return &LocalStore{Dir: dir}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") || clean == "/" {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return filepath.Join(s.Dir, clean), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	// 先写临时文件再改名，避免读到半个文件
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	src, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) Location(key string) string {
	return filepath.Join(s.Dir, key)
}
