package core

import (
	"context"
	"io"

	"thetacore/pkg/domain"
)

// Default file names used when a mutate input is enabled without a path.
const (
	DefaultTraceFile      = "trace_0.csv"
	DefaultDesignFile     = "design.csv"
	DefaultHatFile        = "hat_0.csv"
	DefaultCovarianceFile = "covariance_0.csv"
)

// MutateOptions selects the mutate stages. Empty paths and nil slices leave
// a stage disabled. File paths are keys of the configured store.
type MutateOptions struct {
	ZeroSdIC  bool
	ZeroSdPar bool

	// Trace or Design (Design wins) names a file whose row IndexTrace is
	// plugged into matching `par:group` guesses.
	Trace      string
	Design     string
	IndexTrace int

	// State names a state estimate file whose row IndexState is plugged
	// into the state variables.
	State      string
	IndexState int
	Ungroup    bool
	Preserve   bool

	// Rescale is [parameter] or [parameter, hat file].
	Rescale    []string
	Covariance string
	Set        []string
	// Unstick is the fraction of the bound span used to move stuck guesses.
	Unstick *float64
}

// MutateReport is returned by a successful Mutate.
type MutateReport struct {
	Stages      []string
	Diagnostics domain.Diagnostics
}

type mutateStage struct {
	name    string
	enabled func(MutateOptions) bool
	run     func(t *Theta, ctx context.Context, opts MutateOptions, d *diagSink) error
}

// mutateStages is the fixed stage order.
var mutateStages = []mutateStage{
	{"zero_sd_ic", func(o MutateOptions) bool { return o.ZeroSdIC }, func(t *Theta, _ context.Context, _ MutateOptions, _ *diagSink) error {
		t.zeroSd(t.parSV)
		return nil
	}},
	{"zero_sd_par", func(o MutateOptions) bool { return o.ZeroSdPar }, func(t *Theta, _ context.Context, _ MutateOptions, _ *diagSink) error {
		t.zeroSd(t.parProc)
		t.zeroSd(t.parObs)
		return nil
	}},
	{"plug_trace", func(o MutateOptions) bool { return o.Trace != "" || o.Design != "" }, (*Theta).plugTrace},
	{"plug_hat", func(o MutateOptions) bool { return o.State != "" }, (*Theta).plugHat},
	{"rescale", func(o MutateOptions) bool { return len(o.Rescale) > 0 }, (*Theta).rescale},
	{"plug_cov", func(o MutateOptions) bool { return o.Covariance != "" }, (*Theta).plugCov},
	{"set", func(o MutateOptions) bool { return len(o.Set) > 0 }, func(t *Theta, _ context.Context, o MutateOptions, d *diagSink) error {
		return t.set(o.Set, d)
	}},
	{"unstick", func(o MutateOptions) bool { return o.Unstick != nil }, func(t *Theta, _ context.Context, o MutateOptions, d *diagSink) error {
		t.unstick(*o.Unstick, d)
		return nil
	}},
}

// Mutate applies the enabled stages in order, then sanitizes every group
// and normalizes the state variables. The first failing stage aborts the
// chain; the instance then holds the effects of the earlier stages without
// sanitize or normalize and should be discarded.
func (t *Theta) Mutate(ctx context.Context, opts MutateOptions) (MutateReport, error) {
	if err := t.requireExpanded(); err != nil {
		return MutateReport{}, err
	}
	var report MutateReport
	sink := &diagSink{items: &report.Diagnostics, log: t.opts.logger}
	for _, st := range mutateStages {
		if !st.enabled(opts) {
			continue
		}
		t.opts.logger.Debug("mutate stage", "stage", st.name)
		err := observe(ctx, t.opts.metrics, t.opts.tracer, "mutate."+st.name, func(ctx context.Context) error {
			return st.run(t, ctx, opts, sink)
		})
		if err != nil {
			return report, err
		}
		report.Stages = append(report.Stages, st.name)
	}
	err := observe(ctx, t.opts.metrics, t.opts.tracer, "mutate.sanitize", func(context.Context) error {
		t.sanitizeAll(sink)
		return nil
	})
	if err != nil {
		return report, err
	}
	err = observe(ctx, t.opts.metrics, t.opts.tracer, "mutate.normalize", func(context.Context) error {
		return t.normalize(sink)
	})
	return report, err
}

func (t *Theta) zeroSd(params []string) {
	for _, name := range params {
		p := t.theta.Parameter[name]
		if p == nil {
			continue
		}
		for _, g := range p.Groups {
			g.SdTransf = domain.Num(0)
		}
	}
}

// open returns a reader for key through the configured loader.
func (t *Theta) open(ctx context.Context, key string) (io.ReadCloser, error) {
	loader, err := t.opts.dataLoader()
	if err != nil {
		return nil, err
	}
	return loader.Open(ctx, key)
}

// diagSink records diagnostics and forwards them to the logger.
type diagSink struct {
	items *domain.Diagnostics
	log   Logger
}

func (d *diagSink) Warnf(format string, args ...any) {
	emit(d.log, d.items.Warnf(format, args...))
}

func (d *diagSink) Infof(format string, args ...any) {
	emit(d.log, d.items.Infof(format, args...))
}
