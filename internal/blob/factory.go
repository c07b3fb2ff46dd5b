// Package blob opens the configured storage backend for data sources and
// estimate files.
package blob

import (
	"context"
	"fmt"

	"thetacore/internal/blob/core"
	fsstore "thetacore/internal/infra/blob/fs"
	memstore "thetacore/internal/infra/blob/memory"
	s3store "thetacore/internal/infra/blob/s3"
)

// Config selects and configures a backend.
type Config struct {
	Driver core.Driver
	// Root is the filesystem root for the fs driver.
	Root string
	S3   s3store.Config
}

// Open returns the store named by cfg.Driver (fs when empty).
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	switch cfg.Driver {
	case "", core.DriverFilesystem:
		return fsstore.New(cfg.Root)
	case core.DriverS3:
		return s3store.New(ctx, cfg.S3)
	case core.DriverMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
