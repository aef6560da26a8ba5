// Package fit is the optimization loop: it maps model specs onto flat
// parameter vectors, selects per-step data subsets, scores candidate
// vectors, and drives an external minimizer.
package fit

import (
	"fmt"

	"mnemos/internal/model"
)

// Packer flattens a spec's phi values into one ordered vector.
type Packer func(model.Spec) ([]float64, error)

// Unpacker rebuilds a full spec from a vector, preserving every
// non-numeric field of the template it was built from.
type Unpacker func([]float64) (model.Spec, error)

// Mapper derives pack/unpack closures from a spec's current shape.
// Ordering is module order, then sorted parameter-name order, and stays
// fixed for the mapper's lifetime. Vectors of any other length are
// rejected as a configuration error.
func Mapper(spec model.Spec) (Packer, Unpacker, error) {
	template := spec.Clone()
	expected := template.ParamCount()
	if expected == 0 {
		return nil, nil, fmt.Errorf("spec %s has no parameters to fit", spec.ID)
	}

	pack := func(s model.Spec) ([]float64, error) {
		sigma := make([]float64, 0, expected)
		for _, m := range s.Modules {
			for _, name := range m.PhiNames() {
				sigma = append(sigma, m.Phi[name]...)
			}
		}
		if len(sigma) != expected {
			return nil, fmt.Errorf("packed %d values, mapper expects %d", len(sigma), expected)
		}
		return sigma, nil
	}

	unpack := func(sigma []float64) (model.Spec, error) {
		if len(sigma) != expected {
			return model.Spec{}, fmt.Errorf("vector has %d values, mapper expects %d", len(sigma), expected)
		}
		out := template.Clone()
		pos := 0
		for i := range out.Modules {
			m := &out.Modules[i]
			for _, name := range m.PhiNames() {
				values := m.Phi[name]
				copy(values, sigma[pos:pos+len(values)])
				pos += len(values)
			}
		}
		return out, nil
	}

	return pack, unpack, nil
}
