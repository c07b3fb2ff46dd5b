// Package fs serves documents, data sources and estimate files from a
// directory tree. Keys are slash-separated paths relative to the root;
// absolute paths are accepted when they point inside it.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"thetacore/internal/blob/core"
)

// Store implements core.Store over a root directory. Content types are
// derived from the file extension; user metadata is not persisted.
type Store struct {
	root string
}

// New returns a store rooted at root ("." when empty), creating the
// directory when it does not exist.
func New(root string) (*Store, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("open root %s: %w", root, err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func (s *Store) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty key")
	}
	p := key
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, filepath.FromSlash(key))
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %s is outside root %s", key, s.root)
	}
	return p, nil
}

func infoOf(key string, st fs.FileInfo) core.Info {
	return core.Info{Key: key, Size: st.Size(), ContentType: core.ContentType(key), LastModified: st.ModTime().UTC()}
}

// Put writes r to key through a temporary file renamed into place. The
// returned ETag is the SHA-256 of the content.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	dst, err := s.resolve(key)
	if err != nil {
		return core.Info{}, err
	}
	if _, err := os.Stat(dst); err == nil && !opts.Overwrite {
		return core.Info{}, fmt.Errorf("%s already exists", key)
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.Info{}, err
	}
	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return core.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	sum := sha256.New()
	_, err = io.Copy(io.MultiWriter(tmp, sum), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return core.Info{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return core.Info{}, fmt.Errorf("write %s: %w", key, err)
	}
	st, err := os.Stat(dst)
	if err != nil {
		return core.Info{}, err
	}
	info := infoOf(key, st)
	info.ETag = hex.EncodeToString(sum.Sum(nil))
	if opts.ContentType != "" {
		info.ContentType = opts.ContentType
	}
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, nil, err
	}
	p, err := s.resolve(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return core.Info{}, nil, notExist(key, err)
	}
	st, err := f.Stat()
	if err == nil && st.IsDir() {
		err = fmt.Errorf("%s is a directory: %w", key, core.ErrNotExist)
	}
	if err != nil {
		_ = f.Close()
		return core.Info{}, nil, err
	}
	return infoOf(key, st), f, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	p, err := s.resolve(key)
	if err != nil {
		return core.Info{}, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return core.Info{}, notExist(key, err)
	}
	if st.IsDir() {
		return core.Info{}, fmt.Errorf("%s is a directory: %w", key, core.ErrNotExist)
	}
	return infoOf(key, st), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	p, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List walks the root and returns the files whose key starts with prefix,
// sorted by key. In-flight temporary files are skipped.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, infoOf(key, st))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(infos, func(a, b core.Info) int { return strings.Compare(a.Key, b.Key) })
	return infos, nil
}

func notExist(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, core.ErrNotExist)
	}
	return err
}
