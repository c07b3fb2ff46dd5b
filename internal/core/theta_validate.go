package core

import (
	"fmt"
	"slices"
	"strings"

	"thetacore/pkg/domain"
)

// Validate runs the context and model checks, then checks the parameter key
// set, enumerations, partitions and group structure. It stops at the first
// violation.
func (t *Theta) Validate() error {
	if err := t.Model.Validate(); err != nil {
		return err
	}
	if t.theta.Parameter == nil {
		return domain.Invalidf("theta", "", "parameter properties are missing")
	}
	if err := t.validatePartitions(); err != nil {
		return err
	}

	all := t.AllParameters()
	var missing, aliens []string
	for _, name := range all {
		if _, ok := t.theta.Parameter[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return domain.Invalidf("theta", "", "parameter [%s] are missing", strings.Join(missing, ","))
	}
	for _, name := range sortedKeys(t.theta.Parameter) {
		if !slices.Contains(all, name) {
			aliens = append(aliens, name)
		}
	}
	if len(aliens) > 0 {
		return domain.Invalidf("theta", "", "parameter [%s] have to be deleted", strings.Join(aliens, ","))
	}

	for i, name := range all {
		if err := t.validateParameter(name, i < len(t.parSV)+len(t.parProc), all); err != nil {
			return err
		}
	}
	return nil
}

func (t *Theta) validateParameter(name string, populationScoped bool, all []string) error {
	p := t.theta.Parameter[name]
	path := "parameter " + name
	if p == nil {
		return domain.Invalidf("theta", path, "has to be an object")
	}

	if p.PartitionID != "" {
		if _, ok := t.partition(p.PartitionID); !ok {
			return domain.Invalidf("theta", path, "partition %s is not defined", p.PartitionID)
		}
		if populationScoped && !t.populationPartition(p.PartitionID) {
			return domain.Invalidf("theta", path, "partition %s, groups should contain a \"population_id\" property", p.PartitionID)
		}
		if !populationScoped && !t.timeSeriesPartition(p.PartitionID) {
			return domain.Invalidf("theta", path, "partition %s, groups should contain a \"time_series_id\" property", p.PartitionID)
		}
	}
	if p.Transformation != "" && !ValidTransformation(p.Transformation) {
		return domain.Invalidf("theta", path, "unsupported transformation (%s)", p.Transformation)
	}
	if p.Unit != "" && !slices.Contains(domain.Units, p.Unit) {
		return domain.Invalidf("theta", path, "unsupported unit (%s)", p.Unit)
	}
	if p.Type != "" && !slices.Contains(domain.ParameterTypes, p.Type) {
		return domain.Invalidf("theta", path, "unsupported type (%s)", p.Type)
	}
	if p.Follow != "" && !slices.Contains(all, p.Follow) {
		return domain.Invalidf("theta", path, "follow is not a valid parameter (%s)", p.Follow)
	}

	if !p.Expanded() {
		s := p.Scalar
		if s == nil || s.Guess == nil {
			return domain.Invalidf("theta", path, "at least \"guess\" is required")
		}
		if s.Prior != "" && !slices.Contains(domain.Priors, s.Prior) {
			return domain.Invalidf("theta", path, "unsupported prior (%s)", s.Prior)
		}
		return nil
	}

	partitionID := p.PartitionID
	if partitionID == "" {
		return domain.Invalidf("theta", path, "partition_id is required for grouped parameters")
	}
	mandated, _ := t.mandatedGroups(partitionID)
	groups := p.GroupIDs()
	var missing, aliens []string
	for _, gid := range mandated {
		if !slices.Contains(groups, gid) {
			missing = append(missing, gid)
		}
	}
	for _, gid := range groups {
		if !slices.Contains(mandated, gid) {
			aliens = append(aliens, gid)
		}
	}
	if len(missing) > 0 {
		return domain.Invalidf("theta", path, "missing group: [%s]", strings.Join(missing, ","))
	}
	if len(aliens) > 0 {
		return domain.Invalidf("theta", path, "invalid group (should be deleted): [%s]", strings.Join(aliens, ","))
	}
	for _, gid := range groups {
		g := p.Groups[gid]
		gpath := fmt.Sprintf("%s group %s", path, gid)
		if g == nil || g.Guess == nil {
			return domain.Invalidf("theta", gpath, "at least \"guess\" is required")
		}
		if g.Prior != nil && !slices.Contains(domain.Priors, g.Prior.Value) {
			return domain.Invalidf("theta", gpath, "unsupported prior (%s)", g.Prior.Value)
		}
	}
	return nil
}
