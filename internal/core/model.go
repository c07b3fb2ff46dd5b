package core

import (
	"context"
	"slices"

	"thetacore/internal/datasource"
	"thetacore/pkg/domain"
)

// PopulationSizeMetadataID is the metadata entry holding population sizes
// when they cannot be derived from state variables.
const PopulationSizeMetadataID = "N"

// Model extends a Context with the process and link documents and the
// parameter vocabulary derived from them.
type Model struct {
	*Context

	process domain.ProcessDoc
	link    domain.LinkDoc
	rules   *domain.RulesEngine

	parSV          []string
	parProc        []string
	parObs         []string
	popSizeEqSumSV bool
}

// NewModel derives the parameter sets. It performs no I/O.
func NewModel(ctxDoc domain.ContextDoc, process domain.ProcessDoc, link domain.LinkDoc, opts ...Option) *Model {
	m := &Model{
		Context: NewContext(ctxDoc, opts...),
		process: process.Clone(),
		link:    link.Clone(),
		rules:   NewDefaultRulesEngine(),
	}
	m.derive()
	return m
}

func (m *Model) derive() {
	meta := m.doc.MetadataIDs()
	m.popSizeEqSumSV = true
	m.parSV = m.parSV[:0]
	for _, s := range m.process.State {
		if s.IsRemainder() {
			m.popSizeEqSumSV = false
			continue
		}
		m.parSV = append(m.parSV, s.ID)
	}
	m.parProc = nil
	for _, p := range m.process.Parameter {
		if !slices.Contains(meta, p.ID) && !slices.Contains(m.parProc, p.ID) {
			m.parProc = append(m.parProc, p.ID)
		}
	}
	m.parObs = nil
	for _, obs := range m.link.Observation {
		for _, p := range obs.Parameter {
			if !slices.Contains(meta, p.ID) && !slices.Contains(m.parObs, p.ID) {
				m.parObs = append(m.parObs, p.ID)
			}
		}
	}
}

// ParSV returns the state-variable parameter ids (remainder states excluded).
func (m *Model) ParSV() []string { return slices.Clone(m.parSV) }

// ParProc returns the process parameter ids not supplied as metadata.
func (m *Model) ParProc() []string { return slices.Clone(m.parProc) }

// ParObs returns the observation parameter ids not supplied as metadata.
func (m *Model) ParObs() []string { return slices.Clone(m.parObs) }

// AllParameters returns ParSV, ParProc and ParObs concatenated.
func (m *Model) AllParameters() []string {
	return slices.Concat(m.parSV, m.parProc, m.parObs)
}

// PopSizeEqSumSV reports whether population sizes are the sum of the state
// variables (no remainder state).
func (m *Model) PopSizeEqSumSV() bool { return m.popSizeEqSumSV }

// Process returns a copy of the process document.
func (m *Model) Process() domain.ProcessDoc { return m.process.Clone() }

// Link returns a copy of the link document.
func (m *Model) Link() domain.LinkDoc { return m.link.Clone() }

// Snapshot returns the context, process and link documents.
func (m *Model) Snapshot() domain.Documents {
	p, l := m.process.Clone(), m.link.Clone()
	return domain.Documents{Context: m.Context.Snapshot(), Process: &p, Link: &l}
}

// Validate runs the context checks then the model rules.
func (m *Model) Validate() error {
	if err := m.Context.Validate(); err != nil {
		return err
	}
	return evaluateRules(context.Background(), m.rules, modelView{m})
}

// PopulationSize returns population id -> size for one row of a state
// estimate. With PopSizeEqSumSV the sizes are the sums of the `<state>:<pop>`
// columns; otherwise they come from row timeIndex+1 of the N metadata,
// clamped to its last row. A negative timeIndex selects the last row.
func (m *Model) PopulationSize(ctx context.Context, state datasource.Record, timeIndex int) (map[string]float64, error) {
	if m.popSizeEqSumSV {
		return m.sumStates(state)
	}
	meta, err := m.Load(ctx, PopulationSizeMetadataID)
	if err != nil {
		return nil, err
	}
	return PopulationSizeFromMetadata(m.doc.PopulationIDs(), meta, timeIndex)
}

func (m *Model) sumStates(state datasource.Record) (map[string]float64, error) {
	out := make(map[string]float64, len(m.doc.Population))
	for _, pop := range m.doc.PopulationIDs() {
		var sum float64
		for _, sv := range m.parSV {
			col := sv + ":" + pop
			if !state.Has(col) {
				return nil, &domain.NotFoundError{Kind: "column", ID: col}
			}
			sum += state[col]
		}
		out[pop] = sum
	}
	return out, nil
}

// PopulationSizeFromMetadata reads the size of every population from meta at
// row timeIndex+1, clamped to the last row; negative selects the last row.
func PopulationSizeFromMetadata(populations []string, meta map[string]domain.Series, timeIndex int) (map[string]float64, error) {
	out := make(map[string]float64, len(populations))
	for _, pop := range populations {
		s, ok := meta[pop]
		if !ok || len(s.Value) == 0 {
			return nil, &domain.NotFoundError{Kind: "metadata", ID: PopulationSizeMetadataID + "." + pop}
		}
		row := len(s.Value) - 1
		if timeIndex >= 0 && timeIndex+1 < len(s.Value) {
			row = timeIndex + 1
		}
		out[pop] = s.Value[row].First()
	}
	return out, nil
}

// modelView adapts Model to domain.ModelView.
type modelView struct{ m *Model }

func (v modelView) Context() domain.ContextDoc { return v.m.doc }
func (v modelView) Process() domain.ProcessDoc { return v.m.process }
func (v modelView) Link() domain.LinkDoc       { return v.m.link }

func (v modelView) StateIDs() []string {
	out := make([]string, len(v.m.process.State))
	for i, s := range v.m.process.State {
		out[i] = s.ID
	}
	return out
}

func (v modelView) ProcessParameterIDs() []string {
	out := make([]string, len(v.m.process.Parameter))
	for i, p := range v.m.process.Parameter {
		out[i] = p.ID
	}
	return out
}

func (v modelView) ObservationParameterIDs() []string {
	var out []string
	for _, obs := range v.m.link.Observation {
		for _, p := range obs.Parameter {
			out = append(out, p.ID)
		}
	}
	return out
}

func (v modelView) MetadataIDs() []string { return v.m.doc.MetadataIDs() }
