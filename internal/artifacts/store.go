// Package artifacts publishes run outputs to a local directory or an
// S3-compatible bucket.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JS12540/evaluating-embedding-models/internal/config"
)

// PutOptions describes an object being stored.
type PutOptions struct {
	MimeType string
	Metadata map[string]string
}

// Store persists artifact bytes under a key and returns a URI for them.
type Store interface {
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (string, error)
	Close() error
}

// New opens the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.ArtifactConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocalStore(cfg.LocalPath, cfg.Prefix)
	case "s3", "minio":
		return NewS3Store(ctx, &S3StoreConfig{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			Prefix:          cfg.Prefix,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UsePathStyle:    cfg.UsePathStyle || strings.EqualFold(cfg.Backend, "minio"),
		})
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}
