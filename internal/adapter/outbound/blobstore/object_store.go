// Package blobstore stores pipeline artifacts in a NATS JetStream object store bucket.
package blobstore

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nats-io/nats.go"
)

// ObjectBucket is the subset of nats.ObjectStore used for artifacts.
type ObjectBucket interface {
	PutBytes(name string, data []byte, opts ...nats.ObjectOpt) (*nats.ObjectInfo, error)
	GetBytes(name string, opts ...nats.GetObjectOpt) ([]byte, error)
	List(opts ...nats.ListObjectsOpt) ([]*nats.ObjectInfo, error)
}

// ObjectStoreManager opens or creates object store buckets.
type ObjectStoreManager interface {
	ObjectStore(bucket string) (nats.ObjectStore, error)
	CreateObjectStore(cfg *nats.ObjectStoreConfig) (nats.ObjectStore, error)
}

// ObjectStore implements outbound.BlobStore on a JetStream object store.
type ObjectStore struct {
	bucket ObjectBucket
}

var _ outbound.BlobStore = (*ObjectStore)(nil)

// NewObjectStore wraps an opened bucket.
func NewObjectStore(bucket ObjectBucket) (*ObjectStore, error) {
	if bucket == nil {
		return nil, errors.New("object bucket cannot be nil")
	}
	return &ObjectStore{bucket: bucket}, nil
}

// OpenBucket returns the named bucket, creating it on first use.
func OpenBucket(js ObjectStoreManager, bucket string) (nats.ObjectStore, error) {
	if bucket == "" {
		return nil, errors.New("bucket name cannot be empty")
	}

	store, err := js.ObjectStore(bucket)
	if err == nil {
		return store, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) && !errors.Is(err, nats.ErrStreamNotFound) {
		return nil, fmt.Errorf("failed to open object store %s: %w", bucket, err)
	}

	store, err = js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "arxivshorts pipeline artifacts",
		Storage:     nats.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store %s: %w", bucket, err)
	}
	slogger.InfoNoCtx("Created artifact bucket", slogger.Field("bucket", bucket))
	return store, nil
}

// Put writes data under key, replacing any previous object.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.bucket.PutBytes(key, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Get reads the object stored under key.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.GetBytes(key, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", outbound.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

// List returns the live keys starting with prefix in lexical order.
func (s *ObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := s.bucket.List(nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.Deleted {
			continue
		}
		if strings.HasPrefix(info.Name, prefix) {
			keys = append(keys, info.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
