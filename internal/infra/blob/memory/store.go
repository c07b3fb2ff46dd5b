// Package memory holds files in process memory. Tests use it to serve
// fixtures to the data-source loader without touching disk.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"thetacore/internal/blob/core"
)

type object struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

func (o object) info(key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         int64(len(o.data)),
		ContentType:  o.contentType,
		Metadata:     maps.Clone(o.metadata),
		LastModified: o.modified,
	}
}

// Store implements core.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New returns an empty store.
func New() *Store { return &Store{objects: make(map[string]object)} }

func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores the content of r under key. An existing key is an error unless
// opts.Overwrite is set.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, fmt.Errorf("read %s: %w", key, err)
	}
	obj := object{data: data, contentType: opts.ContentType, metadata: maps.Clone(opts.Metadata), modified: time.Now().UTC()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok && !opts.Overwrite {
		return core.Info{}, fmt.Errorf("%s already exists", key)
	}
	s.objects[key] = obj
	return obj.info(key), nil
}

// PutString stores content under key, replacing any previous value.
func (s *Store) PutString(key, content string) {
	_, _ = s.Put(context.Background(), key, strings.NewReader(content), core.PutOptions{Overwrite: true})
}

func (s *Store) lookup(key string) (object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return object{}, fmt.Errorf("%s: %w", key, core.ErrNotExist)
	}
	return obj, nil
}

// Get returns a reader over the stored bytes. Put replaces the slice rather
// than writing into it, so readers never observe a later write.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	return obj.info(key), io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return core.Info{}, err
	}
	return obj.info(key), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	delete(s.objects, key)
	return ok, nil
}

// List returns the objects under prefix sorted by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Info
	for _, key := range slices.Sorted(maps.Keys(s.objects)) {
		if strings.HasPrefix(key, prefix) {
			out = append(out, s.objects[key].info(key))
		}
	}
	return out, nil
}
