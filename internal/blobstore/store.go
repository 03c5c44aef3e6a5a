// Package blobstore provides durable storage for downloaded image bytes. A
// disk-backed implementation persists blobs under versioned keys; a null
// implementation stands in when no backend is configured, letting the
// pipeline degrade to proxy mode without branching in business logic.
package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jtoivane/retkikartta/internal/errors"
)

// Metadata carries the headers attached to a stored blob.
type Metadata struct {
	ContentType  string `json:"contentType"`
	CacheControl string `json:"cacheControl"`
}

// Store is the capability interface for a durable blob backend.
type Store interface {
	Put(ctx context.Context, key string, data []byte, meta Metadata) error
	Get(ctx context.Context, key string) ([]byte, Metadata, error)
	Available() bool
}

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.Newf("blob not found").
	Category(errors.CategoryNotFound).
	Component("blobstore").
	Build()

// DiskStore stores blobs as files under a root directory with JSON metadata
// sidecars.
type DiskStore struct {
	root string
}

// NewDiskStore creates a disk-backed store rooted at the given directory,
// creating it if necessary.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Component("blobstore").
			Context("root", root).
			Build()
	}
	return &DiskStore{root: root}, nil
}

// Available reports that the disk store can persist blobs.
func (s *DiskStore) Available() bool { return true }

// validateKey rejects keys that would escape the store root.
func (s *DiskStore) validateKey(key string) (string, error) {
	if key == "" {
		return "", errors.Newf("blob key cannot be empty").
			Category(errors.CategoryValidation).
			Component("blobstore").
			Build()
	}
	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", errors.Newf("invalid blob key: %s", key).
			Category(errors.CategoryValidation).
			Component("blobstore").
			Build()
	}
	return filepath.Join(s.root, cleaned), nil
}

// Put writes the blob and its metadata sidecar.
func (s *DiskStore) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.validateKey(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Component("blobstore").
			Context("key", key).
			Build()
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Component("blobstore").
			Context("key", key).
			Build()
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling blob metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta.json", metaBytes, 0o644); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Component("blobstore").
			Context("key", key).
			Context("operation", "write_metadata").
			Build()
	}

	return nil
}

// Get reads a blob and its metadata by key.
func (s *DiskStore) Get(ctx context.Context, key string) ([]byte, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, err
	}

	path, err := s.validateKey(key)
	if err != nil {
		return nil, Metadata{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Metadata{}, ErrNotFound
		}
		return nil, Metadata{}, errors.New(err).
			Category(errors.CategoryFileIO).
			Component("blobstore").
			Context("key", key).
			Build()
	}

	var meta Metadata
	if metaBytes, metaErr := os.ReadFile(path + ".meta.json"); metaErr == nil {
		if unmarshalErr := json.Unmarshal(metaBytes, &meta); unmarshalErr != nil {
			meta = Metadata{}
		}
	}

	return data, meta, nil
}

// NullStore is the no-op backend used when durable storage is not configured.
type NullStore struct{}

// NewNullStore returns a store that persists nothing.
func NewNullStore() *NullStore { return &NullStore{} }

// Available reports that no durable backend is configured.
func (s *NullStore) Available() bool { return false }

// Put discards the blob.
func (s *NullStore) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
	return nil
}

// Get always reports a missing blob.
func (s *NullStore) Get(ctx context.Context, key string) ([]byte, Metadata, error) {
	return nil, Metadata{}, ErrNotFound
}
