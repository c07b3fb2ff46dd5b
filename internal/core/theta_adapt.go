package core

import "thetacore/pkg/domain"

// Adapt fills defaults then expands every scalar parameter into one group per
// group mandated by its partition. Explicit values are never overwritten, so
// a second call leaves the tree unchanged.
func (t *Theta) Adapt() error {
	t.addDefaults()
	return t.repeat()
}

func (t *Theta) addDefaults() {
	for i, name := range t.AllParameters() {
		p, ok := t.theta.Parameter[name]
		if !ok || p == nil {
			continue
		}
		sv := i < len(t.parSV)
		if p.Transformation == "" {
			p.Transformation = TransformLog
			if sv {
				p.Transformation = TransformLogit
			}
		}
		if p.PartitionID == "" {
			p.PartitionID = domain.PartitionIdenticalTimeSeries
			if i < len(t.parSV)+len(t.parProc) {
				p.PartitionID = domain.PartitionIdenticalPopulation
			}
		}

		if !p.Expanded() {
			s := p.Scalar
			if s == nil {
				s = &domain.Scalar{}
				p.Scalar = s
			}
			if p.Follow != "" && s.Guess == nil {
				s.Guess = ptr(0.0)
			}
			if s.Min == nil {
				s.Min = cloneFloat(s.Guess)
			}
			if s.Max == nil {
				s.Max = cloneFloat(s.Guess)
			}
			if s.SdTransf == nil {
				s.SdTransf = ptr(0.0)
			}
			if s.Prior == "" {
				s.Prior = domain.PriorUniform
			}
			continue
		}

		for _, g := range p.Groups {
			if g == nil {
				continue
			}
			if p.Follow != "" && g.Guess == nil {
				g.Guess = domain.Num(0)
			}
			if g.Min == nil && g.Guess != nil {
				g.Min = domain.Num(g.Guess.Value)
			}
			if g.Max == nil && g.Guess != nil {
				g.Max = domain.Num(g.Guess.Value)
			}
			if g.SdTransf == nil {
				g.SdTransf = domain.Num(0)
			}
			if g.Prior == nil {
				g.Prior = domain.Lbl(domain.PriorUniform)
			}
		}
	}
}

// repeat stores the reserved partitions and replicates scalar values into
// each mandated group.
func (t *Theta) repeat() error {
	if t.theta.Partition == nil {
		t.theta.Partition = make(map[string]*domain.Partition)
	}
	for id, p := range reservedPartitions(t.doc) {
		t.theta.Partition[id] = p
	}
	for _, name := range sortedKeys(t.theta.Parameter) {
		p := t.theta.Parameter[name]
		if p == nil || p.Expanded() {
			continue
		}
		groups, ok := t.mandatedGroups(p.PartitionID)
		if !ok {
			return domain.Invalidf("theta", "parameter "+name, "partition %s is not defined", p.PartitionID)
		}
		s := p.Scalar
		if s == nil {
			s = &domain.Scalar{}
		}
		p.Groups = make(map[string]*domain.Group, len(groups))
		for _, gid := range groups {
			g := &domain.Group{}
			if s.Guess != nil {
				g.Guess = domain.Num(*s.Guess)
			}
			if s.Min != nil {
				g.Min = domain.Num(*s.Min)
			}
			if s.Max != nil {
				g.Max = domain.Num(*s.Max)
			}
			if s.SdTransf != nil {
				g.SdTransf = domain.Num(*s.SdTransf)
			}
			if s.Prior != "" {
				g.Prior = domain.Lbl(s.Prior)
			}
			p.Groups[gid] = g
		}
		p.Scalar = nil
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(*v)
}
