package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when a key has no backing object.
	ErrNotFound = errors.New("object not found")
	// ErrUnavailable is returned for transport, auth and quota failures.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrWriteFailed is returned when the backend rejects a write.
	ErrWriteFailed = errors.New("storage write failed")
)

// BlobStore abstracts the blob medium. One implementation is chosen at
// startup from configuration; callers never switch backends per call.
type BlobStore interface {
	// EnsureBucket creates the storage namespace if it does not exist.
	// Called once at startup; any error is fatal to the service.
	EnsureBucket(ctx context.Context) error

	// Put streams r under key. size is the declared content length; pass -1
	// when the length is unknown ahead of transfer. The MinIO backend
	// forwards the declared size to the server, the local backend counts
	// bytes as they are copied and ignores the hint.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the object for streaming. Caller must close the ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key has a backing object. A missing object is
	// (false, nil); only genuine transport failures return an error.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PresignedGetURL returns a URL granting time-boxed unauthenticated read
	// access to the object, with the expiry embedded in the URL.
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
