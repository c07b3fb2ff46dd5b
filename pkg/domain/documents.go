package domain

// Documents is the serialized state of an engine: the context alone, the
// context with process and link for a model, plus theta for a theta.
type Documents struct {
	Context ContextDoc  `json:"context"`
	Process *ProcessDoc `json:"process,omitempty"`
	Link    *LinkDoc    `json:"link,omitempty"`
	Theta   *ThetaDoc   `json:"theta,omitempty"`
}

// Clone returns a deep copy.
func (d Documents) Clone() Documents {
	out := Documents{Context: d.Context.Clone()}
	if d.Process != nil {
		p := d.Process.Clone()
		out.Process = &p
	}
	if d.Link != nil {
		l := d.Link.Clone()
		out.Link = &l
	}
	if d.Theta != nil {
		t := d.Theta.Clone()
		out.Theta = &t
	}
	return out
}
