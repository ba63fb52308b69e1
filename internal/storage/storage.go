// Package storage provides object storage for exported benchmark artifacts.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts object storage operations on small payloads.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Put writes data under key, replacing any existing object.
	// Returns the ETag of the stored object.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Get reads the object stored under key.
	// Returns ErrObjectNotFound if it does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Location describes where objects are written, for logs and API responses.
	Location() string
}
