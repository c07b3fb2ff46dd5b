package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Unbounded is the source/sink sentinel usable as a reaction endpoint.
const Unbounded = "U"

// TagRemainder marks a state whose value is implied by the others.
const TagRemainder = "remainder"

// ProcessDoc is the compartmental reaction model.
type ProcessDoc struct {
	State      []State      `json:"state"`
	Parameter  []Declared   `json:"parameter"`
	Model      []Reaction   `json:"model"`
	WhiteNoise []WhiteNoise `json:"white_noise,omitempty"`
	Diffusion  []Diffusion  `json:"diffusion,omitempty"`
}

// State is a compartment.
type State struct {
	ID      string   `json:"id"`
	Comment string   `json:"comment,omitempty"`
	Tag     []string `json:"tag,omitempty"`
}

// IsRemainder reports whether the state carries the remainder tag.
func (s State) IsRemainder() bool { return slices.Contains(s.Tag, TagRemainder) }

// Declared is a declared parameter id.
type Declared struct {
	ID      string `json:"id"`
	Comment string `json:"comment,omitempty"`
}

// Reaction moves mass between two states (or U) at a rate expression.
type Reaction struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Rate string   `json:"rate"`
	Tag  []string `json:"tag,omitempty"`
}

// ReactionRef points at a reaction by endpoints, disambiguated by rate.
type ReactionRef struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate,omitempty"`
}

// WhiteNoise attaches environmental noise of intensity Sd to reactions.
type WhiteNoise struct {
	Reaction []ReactionRef `json:"reaction"`
	Sd       string        `json:"sd"`
}

// Diffusion declares a parameter following a driftless diffusion.
type Diffusion struct {
	Parameter  string  `json:"parameter"`
	Drift      float64 `json:"drift"`
	Volatility string  `json:"volatility"`
}

// LinkDoc is the observation model.
type LinkDoc struct {
	Observed    []Observed    `json:"observed"`
	Observation []Observation `json:"observation"`
}

// Observed maps model quantities onto time series.
type Observed struct {
	ID           string       `json:"id"`
	Definition   []Definition `json:"definition"`
	TimeSeriesID []string     `json:"time_series_id"`
}

// Definition is either a state id (prevalence) or a reaction reference
// (incidence).
type Definition struct {
	State    string
	Reaction *ReactionRef
}

// Incidence reports whether the definition references a reaction flow.
func (d Definition) Incidence() bool { return d.Reaction != nil }

// MarshalJSON writes a string or an object.
func (d Definition) MarshalJSON() ([]byte, error) {
	if d.Reaction != nil {
		return json.Marshal(d.Reaction)
	}
	return json.Marshal(d.State)
}

// UnmarshalJSON reads a string or an object.
func (d *Definition) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*d = Definition{State: id}
		return nil
	}
	var ref ReactionRef
	if err := json.Unmarshal(b, &ref); err != nil {
		return fmt.Errorf("definition must be a state id or a reaction: %w", err)
	}
	*d = Definition{Reaction: &ref}
	return nil
}

// Observation is one observation process.
type Observation struct {
	ID        string           `json:"id,omitempty"`
	Parameter []Declared       `json:"parameter"`
	Model     ObservationModel `json:"model"`
}

// ObservationModel is the observation distribution.
type ObservationModel struct {
	Distribution string `json:"distribution"`
	Mean         string `json:"mean"`
	Var          string `json:"var"`
}

// Clone returns a deep copy.
func (p ProcessDoc) Clone() ProcessDoc {
	out := ProcessDoc{
		State:     make([]State, len(p.State)),
		Parameter: append([]Declared(nil), p.Parameter...),
		Model:     make([]Reaction, len(p.Model)),
		Diffusion: append([]Diffusion(nil), p.Diffusion...),
	}
	for i, s := range p.State {
		out.State[i] = State{ID: s.ID, Comment: s.Comment, Tag: append([]string(nil), s.Tag...)}
	}
	for i, r := range p.Model {
		out.Model[i] = Reaction{From: r.From, To: r.To, Rate: r.Rate, Tag: append([]string(nil), r.Tag...)}
	}
	if p.WhiteNoise != nil {
		out.WhiteNoise = make([]WhiteNoise, len(p.WhiteNoise))
		for i, w := range p.WhiteNoise {
			out.WhiteNoise[i] = WhiteNoise{Reaction: append([]ReactionRef(nil), w.Reaction...), Sd: w.Sd}
		}
	}
	return out
}

// Clone returns a deep copy.
func (l LinkDoc) Clone() LinkDoc {
	out := LinkDoc{
		Observed:    make([]Observed, len(l.Observed)),
		Observation: make([]Observation, len(l.Observation)),
	}
	for i, o := range l.Observed {
		defs := make([]Definition, len(o.Definition))
		for j, d := range o.Definition {
			defs[j] = d
			if d.Reaction != nil {
				ref := *d.Reaction
				defs[j].Reaction = &ref
			}
		}
		out.Observed[i] = Observed{ID: o.ID, Definition: defs, TimeSeriesID: append([]string(nil), o.TimeSeriesID...)}
	}
	for i, o := range l.Observation {
		out.Observation[i] = Observation{ID: o.ID, Parameter: append([]Declared(nil), o.Parameter...), Model: o.Model}
	}
	return out
}
