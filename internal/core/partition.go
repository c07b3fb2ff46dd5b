package core

import (
	"slices"

	"thetacore/pkg/domain"
)

// reservedPartitions synthesizes the four engine-generated partitions from
// the context's populations and time series.
func reservedPartitions(doc domain.ContextDoc) map[string]*domain.Partition {
	pops, series := doc.PopulationIDs(), doc.TimeSeriesIDs()
	variablePop := &domain.Partition{Group: make([]domain.PartitionGroup, len(pops))}
	for i, id := range pops {
		variablePop.Group[i] = domain.PartitionGroup{ID: id, PopulationID: []string{id}}
	}
	variableTS := &domain.Partition{Group: make([]domain.PartitionGroup, len(series))}
	for i, id := range series {
		variableTS.Group[i] = domain.PartitionGroup{ID: id, TimeSeriesID: []string{id}}
	}
	return map[string]*domain.Partition{
		domain.PartitionVariablePopulation:  variablePop,
		domain.PartitionVariableTimeSeries:  variableTS,
		domain.PartitionIdenticalPopulation: {Group: []domain.PartitionGroup{{ID: domain.GroupAll, PopulationID: pops}}},
		domain.PartitionIdenticalTimeSeries: {Group: []domain.PartitionGroup{{ID: domain.GroupAll, TimeSeriesID: series}}},
	}
}

// partition returns the partition named id. Reserved partitions are always
// derived from the context so they cannot drift from it.
func (t *Theta) partition(id string) (*domain.Partition, bool) {
	if domain.IsReservedPartition(id) {
		return reservedPartitions(t.doc)[id], true
	}
	p, ok := t.theta.Partition[id]
	return p, ok && p != nil
}

// mandatedGroups returns the group ids an expanded parameter on partition id
// must carry.
func (t *Theta) mandatedGroups(id string) ([]string, bool) {
	p, ok := t.partition(id)
	if !ok {
		return nil, false
	}
	return p.GroupIDs(), true
}

// populationGroups maps population id -> group id for a population partition.
func (t *Theta) populationGroups(id string) (map[string]string, error) {
	p, ok := t.partition(id)
	if !ok {
		return nil, &domain.NotFoundError{Kind: "partition", ID: id}
	}
	out := make(map[string]string)
	for _, g := range p.Group {
		for _, pop := range g.PopulationID {
			out[pop] = g.ID
		}
	}
	return out, nil
}

// timeSeriesGroups maps time series id -> group id for a time-series partition.
func (t *Theta) timeSeriesGroups(id string) (map[string]string, error) {
	p, ok := t.partition(id)
	if !ok {
		return nil, &domain.NotFoundError{Kind: "partition", ID: id}
	}
	out := make(map[string]string)
	for _, g := range p.Group {
		for _, ts := range g.TimeSeriesID {
			out[ts] = g.ID
		}
	}
	return out, nil
}

// validatePartitions checks user partitions: non-empty, each group keyed by
// population ids or time series ids only, never both kinds in one
// partition, and every referenced id declared in the context.
func (t *Theta) validatePartitions() error {
	pops, series := t.doc.PopulationIDs(), t.doc.TimeSeriesIDs()
	for _, id := range sortedKeys(t.theta.Partition) {
		if domain.IsReservedPartition(id) {
			continue
		}
		path := "partition " + id
		p := t.theta.Partition[id]
		if p == nil || len(p.Group) == 0 {
			return domain.Invalidf("theta", path, "group has to be a non empty list")
		}
		var kind string
		seen := make(map[string]struct{}, len(p.Group))
		for _, g := range p.Group {
			if g.ID == "" {
				return domain.Invalidf("theta", path, "\"id\" is missing")
			}
			if _, dup := seen[g.ID]; dup {
				return domain.Invalidf("theta", path, "duplicated group %s", g.ID)
			}
			seen[g.ID] = struct{}{}
			var (
				gkind string
				refs  []string
				known []string
			)
			switch {
			case g.TimeSeriesID != nil && g.PopulationID != nil:
				return domain.Invalidf("theta", path, "group %s mixes time_series_id and population_id", g.ID)
			case g.TimeSeriesID != nil:
				gkind, refs, known = "time_series_id", g.TimeSeriesID, series
			case g.PopulationID != nil:
				gkind, refs, known = "population_id", g.PopulationID, pops
			default:
				return domain.Invalidf("theta", path, "group %s has to contain a population_id or time_series_id property", g.ID)
			}
			if kind == "" {
				kind = gkind
			} else if kind != gkind {
				return domain.Invalidf("theta", path, "mix of time_series_id and population_id properties")
			}
			var aliens []string
			for _, ref := range refs {
				if !slices.Contains(known, ref) {
					aliens = append(aliens, ref)
				}
			}
			if len(aliens) > 0 {
				return domain.Invalidf("theta", path, "group %s %s contains invalid element: %v", g.ID, gkind, aliens)
			}
		}
	}
	return nil
}

// populationPartition reports whether partition id groups populations.
func (t *Theta) populationPartition(id string) bool {
	p, ok := t.partition(id)
	return ok && len(p.Group) > 0 && p.Group[0].PopulationID != nil
}

// timeSeriesPartition reports whether partition id groups time series.
func (t *Theta) timeSeriesPartition(id string) bool {
	p, ok := t.partition(id)
	return ok && len(p.Group) > 0 && p.Group[0].TimeSeriesID != nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
