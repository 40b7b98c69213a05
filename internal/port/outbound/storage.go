package outbound

import (
	"context"
	"io"
	"time"
)

// AssetStoragePort stores generated binary assets.
type AssetStoragePort interface {
	// Put uploads an object.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// PresignGet returns a temporary download URL for an object.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
