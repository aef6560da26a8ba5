package model

import "sort"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Spec is an ordered sequence of transform modules describing a full
// encoding model. Modules are applied in order; the last module's output
// becomes the prediction signal.
type Spec struct {
	VersionedRecord
	ID      string            `json:"id"`
	Modules []Module          `json:"modules"`
	Meta    map[string]string `json:"meta,omitempty"`
	FitMode bool              `json:"fit_mode,omitempty"`
}

// Module is a single transform step. Phi holds the fittable parameter
// groups; Prior describes how to initialize them when Phi is absent.
type Module struct {
	Fn     string               `json:"fn"`
	Phi    map[string][]float64 `json:"phi,omitempty"`
	Prior  map[string]Prior     `json:"prior,omitempty"`
	Input  string               `json:"input,omitempty"`
	Output string               `json:"output,omitempty"`
	State  string               `json:"state,omitempty"`
}

// Prior describes the distribution a parameter group is drawn from.
type Prior struct {
	Distribution string    `json:"distribution"`
	Mean         []float64 `json:"mean,omitempty"`
	SD           []float64 `json:"sd,omitempty"`
	Min          []float64 `json:"min,omitempty"`
	Max          []float64 `json:"max,omitempty"`
}

// FitRecord is the persistent summary of one completed fit.
type FitRecord struct {
	VersionedRecord
	RunID      string  `json:"run_id"`
	CreatedAt  string  `json:"created_at_utc"`
	Fitter     string  `json:"fitter"`
	FitTimeSec float64 `json:"fit_time_sec"`
	NParms     int     `json:"n_parms"`
	FinalError float64 `json:"final_error"`
	Spec       Spec    `json:"spec"`
}

// PhiNames returns the module's parameter-group names in canonical
// (sorted) order. Pack/unpack ordering depends on this being stable.
func (m Module) PhiNames() []string {
	names := make([]string, 0, len(m.Phi))
	for name := range m.Phi {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PriorNames returns the module's prior parameter names in sorted order.
func (m Module) PriorNames() []string {
	names := make([]string, 0, len(m.Prior))
	for name := range m.Prior {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the spec. The fitting loop mutates its
// working copy freely; callers keep their original untouched.
func (s Spec) Clone() Spec {
	out := s
	out.Modules = make([]Module, len(s.Modules))
	for i, m := range s.Modules {
		out.Modules[i] = m.Clone()
	}
	if s.Meta != nil {
		out.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// Clone returns a deep copy of the module.
func (m Module) Clone() Module {
	out := m
	if m.Phi != nil {
		out.Phi = make(map[string][]float64, len(m.Phi))
		for name, values := range m.Phi {
			out.Phi[name] = append([]float64(nil), values...)
		}
	}
	if m.Prior != nil {
		out.Prior = make(map[string]Prior, len(m.Prior))
		for name, prior := range m.Prior {
			out.Prior[name] = prior.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the prior.
func (p Prior) Clone() Prior {
	out := p
	out.Mean = append([]float64(nil), p.Mean...)
	out.SD = append([]float64(nil), p.SD...)
	out.Min = append([]float64(nil), p.Min...)
	out.Max = append([]float64(nil), p.Max...)
	return out
}

// SetMeta records a metadata key on the spec, allocating the map lazily.
func (s *Spec) SetMeta(key, value string) {
	if s.Meta == nil {
		s.Meta = make(map[string]string)
	}
	s.Meta[key] = value
}

// ParamCount is the total number of scalar parameters across all modules.
func (s Spec) ParamCount() int {
	total := 0
	for _, m := range s.Modules {
		for _, name := range m.PhiNames() {
			total += len(m.Phi[name])
		}
	}
	return total
}
