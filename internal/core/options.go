package core

import (
	"sync"

	blobcore "thetacore/internal/blob/core"
	"thetacore/internal/datasource"
	fsstore "thetacore/internal/infra/blob/fs"
)

// Option configures a Context, Model or Theta.
type Option func(*options)

type options struct {
	root    string
	loader  *datasource.Loader
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer

	once    sync.Once
	initErr error
}

func newOptions(opts []Option) *options {
	o := &options{root: ".", logger: noopLogger{}, metrics: noopMetrics{}, tracer: noopTracer{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithRoot sets the directory that relative source paths resolve against.
// Ignored when a loader or store is supplied.
func WithRoot(dir string) Option { return func(o *options) { o.root = dir } }

// WithStore reads sources through store.
func WithStore(store blobcore.Store) Option {
	return func(o *options) { o.loader = datasource.New(store) }
}

// WithLoader reads sources through an existing loader.
func WithLoader(l *datasource.Loader) Option { return func(o *options) { o.loader = l } }

// WithLogger forwards diagnostics to l.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records mutate stage outcomes.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer traces mutate stages.
func WithTracer(t Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// dataLoader returns the configured loader, opening a filesystem store on the
// root directory on first use.
func (o *options) dataLoader() (*datasource.Loader, error) {
	o.once.Do(func() {
		if o.loader != nil {
			return
		}
		store, err := fsstore.New(o.root)
		if err != nil {
			o.initErr = err
			return
		}
		o.loader = datasource.New(store)
	})
	return o.loader, o.initErr
}
