package storage

import (
	"context"
	"errors"
	"time"
)

var ErrObjectNotFound = errors.New("object not found in storage")

// ObjectStore is the interface to the bucket holding dataset archives, model
// artifacts, and training logs. Clients never stream objects through the
// platform; uploads and downloads go directly against presigned URLs.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)

	PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error)

	Exists(ctx context.Context, key string) (bool, error)

	Delete(ctx context.Context, key string) error
}
