package core

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"thetacore/pkg/domain"
)

const setUsage = "valid forms are par:group:property:value (property being min, max, guess, sd_transf or prior) or par:transformation:value"

// set applies literal overrides. Group "all" expands to every group of the
// parameter's partition.
func (t *Theta) set(overrides []string, d *diagSink) error {
	for _, raw := range overrides {
		parts := strings.Split(raw, ":")
		switch len(parts) {
		case 3:
			if err := t.setTransformation(raw, parts[0], parts[1], parts[2]); err != nil {
				return err
			}
		case 4:
			if err := t.setGroups(raw, parts[0], parts[1], parts[2], parts[3]); err != nil {
				return err
			}
		default:
			return &domain.InvalidArgumentError{Option: "set", Value: raw, Message: setUsage}
		}
		d.Infof("set %s", raw)
	}
	return nil
}

func (t *Theta) setTransformation(raw, par, prop, value string) error {
	if prop != "transformation" {
		return &domain.InvalidArgumentError{Option: "set", Value: raw, Message: setUsage}
	}
	if !ValidTransformation(value) {
		return &domain.InvalidArgumentError{Option: "set", Value: raw,
			Message: value + " is not a valid transformation (valid transformations are: " + strings.Join(Transformations, ", ") + ")"}
	}
	p, ok := t.theta.Parameter[par]
	if !ok || p == nil {
		return &domain.NotFoundError{Kind: "parameter", ID: par}
	}
	p.Transformation = value
	return nil
}

func (t *Theta) setGroups(raw, par, group, prop, value string) error {
	var (
		num   float64
		label string
	)
	switch prop {
	case "prior":
		if !slices.Contains(domain.Priors, value) {
			return &domain.InvalidArgumentError{Option: "set", Value: raw,
				Message: value + " is not a valid prior (valid priors are: " + strings.Join(domain.Priors, ", ") + ")"}
		}
		label = value
	case "guess", "min", "max", "sd_transf":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return &domain.InvalidArgumentError{Option: "set", Value: raw, Message: value + " is not a finite number"}
		}
		num = v
	default:
		return &domain.InvalidArgumentError{Option: "set", Value: raw, Message: prop + " is not a valid property name"}
	}

	p, ok := t.theta.Parameter[par]
	if !ok || p == nil {
		return &domain.NotFoundError{Kind: "parameter", ID: par}
	}
	groups := []string{group}
	if group == domain.GroupAll {
		mandated, ok := t.mandatedGroups(p.PartitionID)
		if !ok {
			return &domain.NotFoundError{Kind: "partition", ID: p.PartitionID}
		}
		groups = mandated
	}
	for _, gid := range groups {
		g, ok := p.Groups[gid]
		if !ok || g == nil {
			return &domain.NotFoundError{Kind: "group", ID: par + ":" + gid}
		}
		switch prop {
		case "guess":
			g.Guess = domain.Num(num)
		case "min":
			g.Min = domain.Num(num)
		case "max":
			g.Max = domain.Num(num)
		case "sd_transf":
			g.SdTransf = domain.Num(num)
		case "prior":
			g.Prior = domain.Lbl(label)
		}
	}
	return nil
}
