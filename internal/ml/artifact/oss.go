package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"dropout_risk_backend/internal/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSStore keeps artifacts in an Aliyun OSS bucket. The SDK takes no
// context, so ctx is only checked before each call.
type OSSStore struct {
	Bucket   *oss.Bucket
	Endpoint string
	Prefix   string
}

func NewOSSStore(cfg *config.StorageConfig) (*OSSStore, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, fmt.Errorf("create oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, fmt.Errorf("open oss bucket: %w", err)
	}
	return &OSSStore{Bucket: bucket, Endpoint: cfg.OSSEndpoint, Prefix: cfg.ModelPrefix}, nil
}

func (s *OSSStore) object(key string) string {
	return s.Prefix + key
}

func (s *OSSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Bucket.PutObject(s.object(key), bytes.NewReader(data), oss.ContentType(contentType(key)))
}

func (s *OSSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := s.Bucket.GetObject(s.object(key))
	if err != nil {
		var se oss.ServiceError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (s *OSSStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Bucket.DeleteObject(s.object(key))
}

func (s *OSSStore) Location(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", s.Bucket.BucketName, s.Endpoint, s.object(key))
}
