package core

import (
	"context"
	"errors"
	"io"
	"strings"

	"thetacore/pkg/domain"
)

// Service runs engine operations over serialized documents and persists
// results as snapshots. Every operation is traced and measured.
type Service struct {
	store domain.SnapshotStore
	opts  []Option
	o     *options
}

// NewService constructs a service. store may be nil when snapshots are not
// used; opts are passed to every engine the service builds.
func NewService(store domain.SnapshotStore, opts ...Option) *Service {
	return &Service{store: store, opts: opts, o: newOptions(opts)}
}

// Store returns the snapshot store, possibly nil.
func (s *Service) Store() domain.SnapshotStore { return s.store }

func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	err := observe(ctx, s.o.metrics, s.o.tracer, "service."+op, fn)
	if err != nil {
		s.o.logger.Error("operation failed", "operation", op, "error", err)
	}
	return err
}

// theta builds an engine from docs. Process, link and theta are required.
func (s *Service) theta(docs domain.Documents) (*Theta, error) {
	var missing []string
	if docs.Process == nil {
		missing = append(missing, "process")
	}
	if docs.Link == nil {
		missing = append(missing, "link")
	}
	if docs.Theta == nil {
		missing = append(missing, "theta")
	}
	if len(missing) > 0 {
		return nil, &domain.InvalidArgumentError{Option: "documents", Value: strings.Join(missing, ","), Message: "required documents are missing"}
	}
	return NewTheta(docs.Context, *docs.Process, *docs.Link, *docs.Theta, s.opts...), nil
}

// Validate resolves data sources and validates as far as docs go: the
// context alone, the model, or the full theta.
func (s *Service) Validate(ctx context.Context, docs domain.Documents) error {
	return s.observe(ctx, "validate", func(ctx context.Context) error {
		switch {
		case docs.Process == nil || docs.Link == nil:
			c := NewContext(docs.Context, s.opts...)
			if err := c.Resolve(ctx); err != nil {
				return err
			}
			return c.Validate()
		case docs.Theta == nil:
			m := NewModel(docs.Context, *docs.Process, *docs.Link, s.opts...)
			if err := m.Resolve(ctx); err != nil {
				return err
			}
			return m.Validate()
		}
		t, err := s.theta(docs)
		if err != nil {
			return err
		}
		if err := t.Resolve(ctx); err != nil {
			return err
		}
		return t.Validate()
	})
}

// Adapt expands the theta of docs and returns the updated documents. The
// context keeps its sources unresolved.
func (s *Service) Adapt(ctx context.Context, docs domain.Documents) (domain.Documents, error) {
	var out domain.Documents
	err := s.observe(ctx, "adapt", func(context.Context) error {
		t, err := s.theta(docs)
		if err != nil {
			return err
		}
		if err := t.Adapt(); err != nil {
			return err
		}
		out = withTheta(docs, t.Doc())
		return nil
	})
	return out, err
}

// Mutate adapts then mutates the theta of docs. On error the returned
// documents are the input unchanged.
func (s *Service) Mutate(ctx context.Context, docs domain.Documents, opts MutateOptions) (domain.Documents, MutateReport, error) {
	out := docs
	var report MutateReport
	err := s.observe(ctx, "mutate", func(ctx context.Context) error {
		t, err := s.theta(docs)
		if err != nil {
			return err
		}
		if err := t.Adapt(); err != nil {
			return err
		}
		if report, err = t.Mutate(ctx, opts); err != nil {
			return err
		}
		out = withTheta(docs, t.Doc())
		return nil
	})
	return out, report, err
}

// Predict returns one document set per matching trace row at time n.
func (s *Service) Predict(ctx context.Context, docs domain.Documents, n int, states, trace io.Reader) ([]domain.Documents, error) {
	var out []domain.Documents
	err := s.observe(ctx, "predict", func(ctx context.Context) error {
		t, err := s.theta(docs)
		if err != nil {
			return err
		}
		if err := t.Adapt(); err != nil {
			return err
		}
		clones, err := t.Predict(ctx, n, states, trace)
		if err != nil {
			return err
		}
		out = make([]domain.Documents, len(clones))
		for i, c := range clones {
			out[i] = withTheta(docs, c.Doc())
		}
		return nil
	})
	return out, err
}

var errNoStore = errors.New("no snapshot store configured")

// SaveSnapshot persists docs under name.
func (s *Service) SaveSnapshot(ctx context.Context, name string, docs domain.Documents) (domain.Snapshot, error) {
	var saved domain.Snapshot
	err := s.observe(ctx, "snapshot.save", func(ctx context.Context) error {
		if s.store == nil {
			return errNoStore
		}
		var err error
		saved, err = s.store.Save(ctx, domain.Snapshot{Name: name, Documents: docs.Clone()})
		if err == nil {
			s.o.logger.Info("snapshot saved", "id", saved.ID, "name", name)
		}
		return err
	})
	return saved, err
}

// LoadSnapshot returns the snapshot stored under id.
func (s *Service) LoadSnapshot(ctx context.Context, id string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.observe(ctx, "snapshot.load", func(ctx context.Context) error {
		if s.store == nil {
			return errNoStore
		}
		var err error
		snap, err = s.store.Load(ctx, id)
		return err
	})
	return snap, err
}

// ListSnapshots returns stored snapshot summaries, oldest first.
func (s *Service) ListSnapshots(ctx context.Context) ([]domain.SnapshotSummary, error) {
	var out []domain.SnapshotSummary
	err := s.observe(ctx, "snapshot.list", func(ctx context.Context) error {
		if s.store == nil {
			return errNoStore
		}
		var err error
		out, err = s.store.List(ctx)
		return err
	})
	return out, err
}

func withTheta(docs domain.Documents, theta domain.ThetaDoc) domain.Documents {
	out := docs.Clone()
	out.Theta = &theta
	return out
}
