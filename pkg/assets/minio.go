package assets

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore stores assets in a single S3-compatible bucket.
type MinioStore struct {
	mc      *minio.Client
	bucket  string
	baseURL string
	logger  *slog.Logger

	bucketMu sync.Mutex
	bucketOK bool
}

// NewMinioStore creates a MinioStore. No network call is made until the
// first operation.
func NewMinioStore(cfg *Config, logger *slog.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("assets endpoint is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioStore{
		mc:      mc,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.publicBaseURL(), "/"),
		logger:  logger,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist (idempotent).
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketOK {
		return nil
	}

	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("created asset bucket", "bucket", s.bucket)
	}
	s.bucketOK = true
	return nil
}

func (s *MinioStore) Put(ctx context.Context, namespace string, data []byte, contentType string) (Ref, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return "", err
	}
	key := objectKey(namespace, contentType)
	_, err := s.mc.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	return Ref(key), nil
}

func (s *MinioStore) Delete(ctx context.Context, ref Ref) error {
	if !validRef(ref) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if err := s.mc.RemoveObject(ctx, s.bucket, string(ref), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting %s: %w", ref, err)
	}
	return nil
}

func (s *MinioStore) Exists(ctx context.Context, ref Ref) (bool, error) {
	if !validRef(ref) {
		return false, nil
	}
	_, err := s.mc.StatObject(ctx, s.bucket, string(ref), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", ref, err)
	}
	return true, nil
}

func (s *MinioStore) URL(ref Ref) string {
	return s.baseURL + "/" + string(ref)
}

func (s *MinioStore) RefFromURL(u string) (Ref, bool) {
	return refFromURL(s.baseURL, u)
}
