package priors

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"mnemos/internal/model"
)

// Distribution names accepted in a module's prior block.
const (
	DistNormal  = "normal"
	DistUniform = "uniform"
)

// Mean returns the prior's mean vector, the default phi value for a
// parameter group that has no explicit phi before fitting.
func Mean(p model.Prior) ([]float64, error) {
	switch p.Distribution {
	case DistNormal:
		if len(p.Mean) == 0 {
			return nil, fmt.Errorf("normal prior has no mean")
		}
		return append([]float64(nil), p.Mean...), nil
	case DistUniform:
		if len(p.Min) == 0 || len(p.Min) != len(p.Max) {
			return nil, fmt.Errorf("uniform prior needs matching min/max, got %d/%d", len(p.Min), len(p.Max))
		}
		mean := make([]float64, len(p.Min))
		for i := range mean {
			mean[i] = (p.Min[i] + p.Max[i]) / 2
		}
		return mean, nil
	default:
		return nil, fmt.Errorf("unknown prior distribution %q", p.Distribution)
	}
}

// Sample draws one value per parameter from the prior.
func Sample(p model.Prior, src rand.Source) ([]float64, error) {
	switch p.Distribution {
	case DistNormal:
		if len(p.Mean) == 0 || len(p.Mean) != len(p.SD) {
			return nil, fmt.Errorf("normal prior needs matching mean/sd, got %d/%d", len(p.Mean), len(p.SD))
		}
		out := make([]float64, len(p.Mean))
		for i := range out {
			dist := distuv.Normal{Mu: p.Mean[i], Sigma: p.SD[i], Src: src}
			out[i] = dist.Rand()
		}
		return out, nil
	case DistUniform:
		if len(p.Min) == 0 || len(p.Min) != len(p.Max) {
			return nil, fmt.Errorf("uniform prior needs matching min/max, got %d/%d", len(p.Min), len(p.Max))
		}
		out := make([]float64, len(p.Min))
		for i := range out {
			dist := distuv.Uniform{Min: p.Min[i], Max: p.Max[i], Src: src}
			out[i] = dist.Rand()
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown prior distribution %q", p.Distribution)
	}
}

// SetMeanPhi returns a copy of the spec with every missing phi group
// defaulted to its prior mean. Groups that already have phi keep it.
// A module with neither phi nor a prior is an error.
func SetMeanPhi(spec model.Spec) (model.Spec, error) {
	return fillPhi(spec, func(p model.Prior) ([]float64, error) {
		return Mean(p)
	})
}

// SetRandomPhi returns a copy of the spec with every phi group resampled
// from its prior. Used for randomized multi-start fitting.
func SetRandomPhi(spec model.Spec, src rand.Source) (model.Spec, error) {
	out := spec.Clone()
	for i := range out.Modules {
		m := &out.Modules[i]
		if len(m.Prior) == 0 {
			if len(m.Phi) == 0 {
				return model.Spec{}, fmt.Errorf("module %d (%s) has neither phi nor prior", i, m.Fn)
			}
			continue
		}
		if m.Phi == nil {
			m.Phi = make(map[string][]float64, len(m.Prior))
		}
		for _, name := range m.PriorNames() {
			values, err := Sample(m.Prior[name], src)
			if err != nil {
				return model.Spec{}, fmt.Errorf("module %d (%s) parameter %s: %w", i, m.Fn, name, err)
			}
			m.Phi[name] = values
		}
	}
	return out, nil
}

func fillPhi(spec model.Spec, draw func(model.Prior) ([]float64, error)) (model.Spec, error) {
	out := spec.Clone()
	for i := range out.Modules {
		m := &out.Modules[i]
		if len(m.Phi) > 0 {
			continue
		}
		if len(m.Prior) == 0 {
			return model.Spec{}, fmt.Errorf("module %d (%s) has neither phi nor prior", i, m.Fn)
		}
		m.Phi = make(map[string][]float64, len(m.Prior))
		for _, name := range m.PriorNames() {
			values, err := draw(m.Prior[name])
			if err != nil {
				return model.Spec{}, fmt.Errorf("module %d (%s) parameter %s: %w", i, m.Fn, name, err)
			}
			m.Phi[name] = values
		}
	}
	return out, nil
}
