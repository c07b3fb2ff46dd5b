package domain

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Reserved partition ids generated from the context.
const (
	PartitionIdenticalPopulation = "identical_population"
	PartitionVariablePopulation  = "variable_population"
	PartitionIdenticalTimeSeries = "identical_time_series"
	PartitionVariableTimeSeries  = "variable_time_series"
)

// GroupAll is the single group id of the identical partitions.
const GroupAll = "all"

// Priors.
const (
	PriorUniform = "uniform"
	PriorNormal  = "normal"
)

// Legal enumerations.
var (
	Priors          = []string{PriorNormal, PriorUniform}
	Units           = []string{"D", "W", "M", "Y"}
	ParameterTypes  = []string{"rate_as_duration"}
	ReservedPartIDs = []string{PartitionIdenticalPopulation, PartitionVariablePopulation, PartitionIdenticalTimeSeries, PartitionVariableTimeSeries}
)

// IsReservedPartition reports whether id is engine generated.
func IsReservedPartition(id string) bool { return slices.Contains(ReservedPartIDs, id) }

// ThetaDoc is the parameter specification.
type ThetaDoc struct {
	Parameter  map[string]*Parameter `json:"parameter"`
	Partition  map[string]*Partition `json:"partition,omitempty"`
	Covariance [][]float64           `json:"covariance,omitempty"`
}

// Parameter is either in scalar form (Scalar set, Groups nil) or expanded
// (Groups set, Scalar nil).
type Parameter struct {
	Scalar         *Scalar
	Groups         map[string]*Group
	Transformation string
	PartitionID    string
	Follow         string
	Unit           string
	Type           string
	Comment        string
}

// Expanded reports whether the parameter carries per-group values.
func (p *Parameter) Expanded() bool { return p.Groups != nil }

// GroupIDs returns the sorted group ids of an expanded parameter.
func (p *Parameter) GroupIDs() []string {
	out := make([]string, 0, len(p.Groups))
	for id := range p.Groups {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Scalar holds ungrouped values. Nil pointers and an empty prior mean "absent".
type Scalar struct {
	Guess    *float64
	Min      *float64
	Max      *float64
	SdTransf *float64
	Prior    string
}

// Group holds the values of one group of an expanded parameter.
type Group struct {
	Guess    *Number `json:"guess,omitempty"`
	Min      *Number `json:"min,omitempty"`
	Max      *Number `json:"max,omitempty"`
	SdTransf *Number `json:"sd_transf,omitempty"`
	Prior    *Label  `json:"prior,omitempty"`
}

// Complete reports whether every field is set.
func (g *Group) Complete() bool {
	return g.Guess != nil && g.Min != nil && g.Max != nil && g.SdTransf != nil && g.Prior != nil
}

// Fixed reports whether the group is not estimated (sd_transf == 0).
func (g *Group) Fixed() bool { return g.SdTransf == nil || g.SdTransf.Value == 0 }

// Number is a `{"value": x}` numeric field.
type Number struct {
	Value float64 `json:"value"`
}

// Label is a `{"value": "..."}` string field.
type Label struct {
	Value string `json:"value"`
}

// Num returns a Number pointer.
func Num(v float64) *Number { return &Number{Value: v} }

// Lbl returns a Label pointer.
func Lbl(v string) *Label { return &Label{Value: v} }

// Partition groups populations or time series.
type Partition struct {
	Group   []PartitionGroup `json:"group"`
	Comment string           `json:"comment,omitempty"`
}

// GroupIDs returns the group ids in declaration order.
func (p *Partition) GroupIDs() []string {
	out := make([]string, len(p.Group))
	for i, g := range p.Group {
		out[i] = g.ID
	}
	return out
}

// PartitionGroup is one bucket of a partition.
type PartitionGroup struct {
	ID           string   `json:"id"`
	PopulationID []string `json:"population_id,omitempty"`
	TimeSeriesID []string `json:"time_series_id,omitempty"`
}

type parameterJSON struct {
	Guess          *float64          `json:"guess,omitempty"`
	Min            *float64          `json:"min,omitempty"`
	Max            *float64          `json:"max,omitempty"`
	SdTransf       *float64          `json:"sd_transf,omitempty"`
	Prior          string            `json:"prior,omitempty"`
	Group          map[string]*Group `json:"group,omitempty"`
	Transformation string            `json:"transformation,omitempty"`
	PartitionID    string            `json:"partition_id,omitempty"`
	Follow         string            `json:"follow,omitempty"`
	Unit           string            `json:"unit,omitempty"`
	Type           string            `json:"type,omitempty"`
	Comment        string            `json:"comment,omitempty"`
}

// MarshalJSON flattens scalar fields or writes the group object.
func (p *Parameter) MarshalJSON() ([]byte, error) {
	out := parameterJSON{
		Transformation: p.Transformation,
		PartitionID:    p.PartitionID,
		Follow:         p.Follow,
		Unit:           p.Unit,
		Type:           p.Type,
		Comment:        p.Comment,
	}
	if p.Groups != nil {
		out.Group = p.Groups
	} else if p.Scalar != nil {
		out.Guess, out.Min, out.Max, out.SdTransf, out.Prior = p.Scalar.Guess, p.Scalar.Min, p.Scalar.Max, p.Scalar.SdTransf, p.Scalar.Prior
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a parameter without parameter-name context; use
// DecodeTheta for messages that name the offending parameter.
func (p *Parameter) UnmarshalJSON(b []byte) error {
	decoded, err := decodeParameter("", b)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// UnmarshalJSON decodes the document with theta-specific validation messages.
func (t *ThetaDoc) UnmarshalJSON(b []byte) error {
	doc, err := DecodeTheta(b)
	if err != nil {
		return err
	}
	*t = doc
	return nil
}

// DecodeTheta decodes a theta document, reporting type mismatches as
// ValidationError naming the parameter and field.
func DecodeTheta(b []byte) (ThetaDoc, error) {
	var raw struct {
		Parameter  map[string]json.RawMessage `json:"parameter"`
		Partition  map[string]*Partition      `json:"partition"`
		Covariance [][]float64                `json:"covariance"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return ThetaDoc{}, Invalidf("theta", "", "malformed document: %v", err)
	}
	doc := ThetaDoc{Partition: raw.Partition, Covariance: raw.Covariance}
	if raw.Parameter != nil {
		doc.Parameter = make(map[string]*Parameter, len(raw.Parameter))
	}
	for name, rp := range raw.Parameter {
		p, err := decodeParameter(name, rp)
		if err != nil {
			return ThetaDoc{}, err
		}
		doc.Parameter[name] = p
	}
	return doc, nil
}

var scalarNumberFields = []string{"guess", "min", "max", "sd_transf"}

func decodeParameter(name string, b []byte) (*Parameter, error) {
	path := "parameter " + name
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, Invalidf("theta", path, "has to be an object")
	}
	p := &Parameter{}
	for key, dst := range map[string]*string{
		"transformation": &p.Transformation,
		"partition_id":   &p.PartitionID,
		"follow":         &p.Follow,
		"unit":           &p.Unit,
		"type":           &p.Type,
		"comment":        &p.Comment,
	} {
		if rv, ok := fields[key]; ok {
			if err := json.Unmarshal(rv, dst); err != nil {
				return nil, Invalidf("theta", path, "%q has to be a string", key)
			}
		}
	}
	if rg, ok := fields["group"]; ok {
		var groups map[string]json.RawMessage
		if err := json.Unmarshal(rg, &groups); err != nil || groups == nil {
			return nil, Invalidf("theta", path, "group has to be an object")
		}
		p.Groups = make(map[string]*Group, len(groups))
		for gid, raw := range groups {
			g, err := decodeGroup(path+" group "+gid, raw)
			if err != nil {
				return nil, err
			}
			p.Groups[gid] = g
		}
		return p, nil
	}
	s := &Scalar{}
	targets := map[string]**float64{"guess": &s.Guess, "min": &s.Min, "max": &s.Max, "sd_transf": &s.SdTransf}
	for _, key := range scalarNumberFields {
		rv, ok := fields[key]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(rv, &v); err != nil {
			return nil, Invalidf("theta", path, "%s is not a number", key)
		}
		*targets[key] = &v
	}
	if rv, ok := fields["prior"]; ok {
		if err := json.Unmarshal(rv, &s.Prior); err != nil {
			return nil, Invalidf("theta", path, "prior has to be a string")
		}
	}
	p.Scalar = s
	return p, nil
}

func decodeGroup(path string, b []byte) (*Group, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, Invalidf("theta", path, "has to be an object")
	}
	g := &Group{}
	targets := map[string]**Number{"guess": &g.Guess, "min": &g.Min, "max": &g.Max, "sd_transf": &g.SdTransf}
	for _, key := range scalarNumberFields {
		rv, ok := fields[key]
		if !ok {
			continue
		}
		value, err := valueOf(rv)
		if err != nil {
			return nil, Invalidf("theta", path+" property "+key, "value property is missing")
		}
		var v float64
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, Invalidf("theta", path, "%s.value is not a number", key)
		}
		*targets[key] = &Number{Value: v}
	}
	if rv, ok := fields["prior"]; ok {
		value, err := valueOf(rv)
		if err != nil {
			return nil, Invalidf("theta", path+" prior", "value property is missing")
		}
		var v string
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, Invalidf("theta", path, "prior.value has to be a string")
		}
		g.Prior = &Label{Value: v}
	}
	return g, nil
}

type missingValue struct{}

func (missingValue) Error() string { return "value property is missing" }

func valueOf(b []byte) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	v, ok := obj["value"]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, missingValue{}
	}
	return v, nil
}

// Clone returns a deep copy of the document.
func (t ThetaDoc) Clone() ThetaDoc {
	out := ThetaDoc{}
	if t.Parameter != nil {
		out.Parameter = make(map[string]*Parameter, len(t.Parameter))
		for k, p := range t.Parameter {
			out.Parameter[k] = p.Clone()
		}
	}
	if t.Partition != nil {
		out.Partition = make(map[string]*Partition, len(t.Partition))
		for k, p := range t.Partition {
			out.Partition[k] = p.Clone()
		}
	}
	if t.Covariance != nil {
		out.Covariance = make([][]float64, len(t.Covariance))
		for i, row := range t.Covariance {
			out.Covariance[i] = append([]float64(nil), row...)
		}
	}
	return out
}

// Clone returns a deep copy of the parameter.
func (p *Parameter) Clone() *Parameter {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Scalar != nil {
		s := Scalar{Prior: p.Scalar.Prior}
		s.Guess, s.Min, s.Max, s.SdTransf = cloneFloat(p.Scalar.Guess), cloneFloat(p.Scalar.Min), cloneFloat(p.Scalar.Max), cloneFloat(p.Scalar.SdTransf)
		cp.Scalar = &s
	}
	if p.Groups != nil {
		cp.Groups = make(map[string]*Group, len(p.Groups))
		for id, g := range p.Groups {
			cp.Groups[id] = g.Clone()
		}
	}
	return &cp
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	out := &Group{}
	if g.Guess != nil {
		out.Guess = Num(g.Guess.Value)
	}
	if g.Min != nil {
		out.Min = Num(g.Min.Value)
	}
	if g.Max != nil {
		out.Max = Num(g.Max.Value)
	}
	if g.SdTransf != nil {
		out.SdTransf = Num(g.SdTransf.Value)
	}
	if g.Prior != nil {
		out.Prior = Lbl(g.Prior.Value)
	}
	return out
}

// Clone returns a deep copy of the partition.
func (p *Partition) Clone() *Partition {
	if p == nil {
		return nil
	}
	out := &Partition{Comment: p.Comment, Group: make([]PartitionGroup, len(p.Group))}
	for i, g := range p.Group {
		out.Group[i] = PartitionGroup{ID: g.ID}
		if g.PopulationID != nil {
			out.Group[i].PopulationID = append([]string{}, g.PopulationID...)
		}
		if g.TimeSeriesID != nil {
			out.Group[i].TimeSeriesID = append([]string{}, g.TimeSeriesID...)
		}
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
