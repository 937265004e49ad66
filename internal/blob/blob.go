// Package blob stores attachment bytes under opaque keys.
package blob

import (
	"context"
	"errors"
	"io"
	"path/filepath"
)

var (
	// ErrNotFound is returned when no object exists under the key.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that are empty or contain a path.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Object describes a stored blob.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is implemented by every blob backend.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// ValidKey reports whether key is a single path element.
func ValidKey(key string) bool {
	return key != "" && key != "." && key != ".." && filepath.Base(key) == key
}
