// Package core defines the storage abstraction through which data sources,
// state estimates, traces and covariance files are read.
package core

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// Driver names a Store backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // directory tree, the default
	DriverS3         Driver = "s3"     // S3 or MinIO bucket
	DriverMemory     Driver = "memory" // process memory, for tests
)

// PutOptions controls a write.
type PutOptions struct {
	// ContentType defaults to the type implied by the key extension.
	ContentType string
	Metadata    map[string]string
	// Overwrite replaces an existing file. Without it Put fails on a
	// present key.
	Overwrite bool
}

// Info describes a stored file. ETag is only populated where the backend
// provides one.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	Metadata     map[string]string
	LastModified time.Time
}

// Store provides existence checks and read streams keyed by root-relative
// paths, plus writes for exported documents.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrNotExist is wrapped by Get and Head when the key is absent.
var ErrNotExist = errors.New("file does not exist")

// Exists reports whether key is present in the store.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	switch _, err := s.Head(ctx, key); {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

var contentTypes = map[string]string{
	".csv":  "text/csv",
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
}

// ContentType returns the MIME type for the extension of key, or "" for
// extensions the engine does not read or write.
func ContentType(key string) string {
	return contentTypes[strings.ToLower(path.Ext(key))]
}
