// Package storage defines the common interface for artifact storage
// backends. Aggregation artifacts (summary archives, parquet exports) are
// written through it, so local file system and cloud object storage are
// interchangeable.
package storage

import (
	"context"
	"io"
)

// ObjectStore abstracts object storage operations over a backend.
type ObjectStore interface {
	// Upload writes the data stream to the given bucket and object name.
	// contentType is the MIME type of the data.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens the named object for reading. The returned ReadCloser
	// must be closed by the caller.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object under the given prefix. Returning
	// an error from fn stops the walk.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes the named object. Deleting a missing object is not
	// an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
	// Close releases backend resources.
	Close() error
	// Type returns the backend type identifier (e.g. "local", "gcs").
	Type() string
	// Name returns the configured connection name.
	Name() string
}
