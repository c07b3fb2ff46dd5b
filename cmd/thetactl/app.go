package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"thetacore/internal/blob"
	blobcore "thetacore/internal/blob/core"
	"thetacore/internal/config"
	"thetacore/internal/core"
	"thetacore/internal/datasource"
	"thetacore/internal/infra/persistence/memory"
	"thetacore/internal/infra/persistence/postgres"
	"thetacore/internal/infra/persistence/sqlite"
	"thetacore/pkg/domain"
)

type docPaths struct {
	context, process, link, theta string
}

// app carries the state shared by every subcommand: configuration, the
// blob store documents are read from and the service.
type app struct {
	stdout, stderr io.Writer

	configPath string
	rootDir    string
	paths      docPaths
	out        string
	spans      bool

	cfg      config.Config
	logger   *slog.Logger
	store    blobcore.Store
	loader   *datasource.Loader
	svc      *core.Service
	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder

	snapshots domain.SnapshotStore
	closers   []func() error
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.rootDir != "" {
		cfg.Root = a.rootDir
		cfg.Blob.S3.Prefix = a.rootDir
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Log, a.stderr)

	a.store, err = blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Blob.Driver, err)
	}
	a.loader = datasource.New(a.store)

	opts := []core.Option{core.WithLoader(a.loader), core.WithLogger(a.logger)}
	switch cfg.Metrics.Driver {
	case config.MetricsPrometheus:
		a.registry = prometheus.NewRegistry()
		rec, err := core.NewPrometheusRecorder(a.registry, cfg.Metrics.Namespace)
		if err != nil {
			return err
		}
		opts = append(opts, core.WithMetrics(rec))
	case config.MetricsExpvar:
		a.expvar = core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetrics(a.expvar))
	}
	if a.spans {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(a.stderr)))
	}
	a.svc = core.NewService(lazySnapshots{a}, opts...)
	a.logger.Debug("configured", "root", cfg.Root, "blob", cfg.Blob.Driver, "store", cfg.Store.Driver)
	return nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openSnapshots opens the configured snapshot store on first use so that
// commands without snapshots never touch the database.
func (a *app) openSnapshots(ctx context.Context) (domain.SnapshotStore, error) {
	if a.snapshots != nil {
		return a.snapshots, nil
	}
	switch a.cfg.Store.Driver {
	case config.StoreSQLite:
		s, err := sqlite.NewStore(a.cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.snapshots, a.closers = s, append(a.closers, s.Close)
	case config.StorePostgres:
		s, err := postgres.NewStore(ctx, a.cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.snapshots, a.closers = s, append(a.closers, s.Close)
	default:
		a.snapshots = memory.NewStore()
	}
	return a.snapshots, nil
}

func (a *app) close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// lazySnapshots defers opening the snapshot store to the first call.
type lazySnapshots struct{ a *app }

func (l lazySnapshots) Save(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	s, err := l.a.openSnapshots(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return s.Save(ctx, snap)
}

func (l lazySnapshots) Load(ctx context.Context, id string) (domain.Snapshot, error) {
	s, err := l.a.openSnapshots(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return s.Load(ctx, id)
}

func (l lazySnapshots) List(ctx context.Context) ([]domain.SnapshotSummary, error) {
	s, err := l.a.openSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	return s.List(ctx)
}

func (l lazySnapshots) Delete(ctx context.Context, id string) error {
	s, err := l.a.openSnapshots(ctx)
	if err != nil {
		return err
	}
	return s.Delete(ctx, id)
}

// readDoc decodes the JSON document stored under key into v.
func (a *app) readDoc(ctx context.Context, key string, v any) error {
	rc, err := a.loader.Open(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// documents reads the context then the process, link and theta documents.
// With optional set, absent process, link and theta documents are skipped.
func (a *app) documents(ctx context.Context, optional bool) (domain.Documents, error) {
	var docs domain.Documents
	if err := a.readDoc(ctx, a.paths.context, &docs.Context); err != nil {
		return docs, err
	}
	process, link, theta := new(domain.ProcessDoc), new(domain.LinkDoc), new(domain.ThetaDoc)
	for _, t := range []struct {
		key  string
		v    any
		keep func()
	}{
		{a.paths.process, process, func() { docs.Process = process }},
		{a.paths.link, link, func() { docs.Link = link }},
		{a.paths.theta, theta, func() { docs.Theta = theta }},
	} {
		if optional {
			ok, err := blobcore.Exists(ctx, a.store, t.key)
			if err != nil {
				return docs, err
			}
			if !ok {
				continue
			}
		}
		if err := a.readDoc(ctx, t.key, t.v); err != nil {
			return docs, err
		}
		t.keep()
	}
	return docs, nil
}

// emit writes v as indented JSON to --out or stdout.
func (a *app) emit(ctx context.Context, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if a.out == "" {
		_, err := a.stdout.Write(data)
		return err
	}
	if _, err := a.store.Put(ctx, a.out, bytes.NewReader(data), blobcore.PutOptions{ContentType: "application/json", Overwrite: true}); err != nil {
		return fmt.Errorf("write %s: %w", a.out, err)
	}
	a.logger.Info("written", "key", a.out, "bytes", len(data))
	return nil
}

func (a *app) reportMetrics() {
	switch {
	case a.registry != nil:
		families, err := a.registry.Gather()
		if err != nil {
			a.logger.Warn("gather metrics", "error", err)
			return
		}
		for _, mf := range families {
			a.logger.Debug("metric", "name", mf.GetName(), "series", len(mf.GetMetric()))
		}
	case a.expvar != nil:
		for op, st := range a.expvar.Snapshot() {
			a.logger.Debug("metric", "operation", op, "success", st.Success, "error", st.Error, "total_ms", st.TotalMS)
		}
	}
}
