package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thetacore/internal/blob/core"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root: /data/run
blob:
  driver: s3
  s3:
    bucket: estimates
    path_style: true
store:
  driver: sqlite
  path: /tmp/snapshots.db
log:
  level: debug
mutate:
  unstick: 0.2
`), 0o644))
	t.Setenv("THETA_LOG_FORMAT", "json")
	t.Setenv("THETA_BLOB_S3_PREFIX", "runs/7")
	t.Setenv("THETA_MUTATE_UNSTICK", "0.05")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/run", cfg.Root)
	assert.Equal(t, "estimates", cfg.Blob.S3.Bucket)
	assert.Equal(t, "runs/7", cfg.Blob.S3.Prefix)
	assert.Equal(t, "us-east-1", cfg.Blob.S3.Region)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.InDelta(t, 0.05, cfg.Mutate.Unstick, 1e-12)

	bc := cfg.BlobConfig()
	assert.Equal(t, core.DriverS3, bc.Driver)
	assert.True(t, bc.S3.PathStyle)
	assert.Equal(t, "/data/run", bc.Root)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Blob.Driver = "s3"
	cfg.Store.Driver = "mongo"
	cfg.Log.Level = "loud"
	cfg.Metrics.Driver = "statsd"
	cfg.Mutate.Unstick = 2
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"blob.s3.bucket", "store.driver", "log.level", "metrics.driver", "mutate.unstick"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
