package outbound

import (
	"context"
	"errors"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore persists intermediate and output artifacts by key.
type BlobStore interface {
	// Put writes data under key, replacing any previous object
	Put(ctx context.Context, key string, data []byte) error

	// Get reads the object stored under key; returns ErrBlobNotFound when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns the keys starting with prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)
}
