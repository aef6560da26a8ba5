// Package eval applies a model spec to a recording, producing the
// prediction signal and optionally reusing partial results across
// repeated evaluations of nearby specs.
package eval

import (
	"fmt"
	"math"

	"mnemos/internal/model"
	"mnemos/internal/modules"
	"mnemos/internal/signal"
)

// DefaultInput is the signal the first module reads when its Input is
// unset; DefaultOutput is where every module writes unless overridden.
const (
	DefaultInput  = "stim"
	DefaultOutput = "pred"
)

// Stack snapshots the recording after each evaluated module, together
// with the spec that produced it. A later evaluation whose leading
// modules carry identical phi can resume from the deepest shared
// snapshot instead of re-running the whole chain.
type Stack struct {
	Spec      model.Spec
	Snapshots []*signal.Recording
}

// Evaluate runs every module in order against a copy of rec and returns
// the evaluated copy. The input recording is never mutated.
func Evaluate(rec *signal.Recording, spec model.Spec) (*signal.Recording, error) {
	out, _, err := evaluate(rec, spec, 0, nil, false)
	return out, err
}

// EvaluateStack is Evaluate with incremental caching. When start > 0 and
// the stack holds a compatible snapshot, evaluation resumes from module
// index start; any incompatibility falls back to a full evaluation. The
// returned stack is valid for the evaluated spec.
func EvaluateStack(rec *signal.Recording, spec model.Spec, start int, stack *Stack) (*signal.Recording, *Stack, error) {
	return evaluate(rec, spec, start, stack, true)
}

func evaluate(rec *signal.Recording, spec model.Spec, start int, stack *Stack, keepStack bool) (*signal.Recording, *Stack, error) {
	if len(spec.Modules) == 0 {
		return nil, nil, fmt.Errorf("spec %s has no modules", spec.ID)
	}
	if start < 0 || start > len(spec.Modules) {
		start = 0
	}
	if start > 0 && !resumable(rec, spec, start, stack) {
		start = 0
	}

	var working *signal.Recording
	var snapshots []*signal.Recording
	if start > 0 {
		working = stack.Snapshots[start-1].Clone()
		if keepStack {
			snapshots = append(snapshots, stack.Snapshots[:start]...)
		}
	} else {
		working = rec.Clone()
	}

	input := chainInputAt(spec, start)
	for i := start; i < len(spec.Modules); i++ {
		m := spec.Modules[i]
		fn, err := modules.Lookup(m.Fn)
		if err != nil {
			return nil, nil, fmt.Errorf("module %d: %w", i, err)
		}
		in := m.Input
		if in == "" {
			in = input
		}
		out, err := fn(working, m, in, spec.FitMode)
		if err != nil {
			return nil, nil, fmt.Errorf("module %d (%s): %w", i, m.Fn, err)
		}
		name := m.Output
		if name == "" {
			name = DefaultOutput
		}
		out.Name = name
		working.Set(out)
		input = name
		if keepStack {
			snapshots = append(snapshots, working.Clone())
		}
	}

	if !keepStack {
		return working, nil, nil
	}
	return working, &Stack{Spec: spec.Clone(), Snapshots: snapshots}, nil
}

// chainInputAt returns the signal name module index i reads when its own
// Input field is unset.
func chainInputAt(spec model.Spec, i int) string {
	if i == 0 {
		return DefaultInput
	}
	prev := spec.Modules[i-1]
	if prev.Output != "" {
		return prev.Output
	}
	return DefaultOutput
}

func resumable(rec *signal.Recording, spec model.Spec, start int, stack *Stack) bool {
	if stack == nil || start > len(stack.Snapshots) || start > len(stack.Spec.Modules) {
		return false
	}
	if MatchingPrefix(stack.Spec, spec) < start {
		return false
	}
	// The snapshot must come from the same data subset. A bitwise
	// comparison also catches equal-length subsets that differ only in
	// their NaN mask, as a resampling segmentor produces.
	base := stack.Snapshots[start-1]
	for name, s := range rec.Signals {
		snap, ok := base.Get(name)
		if !ok || !sameData(s, snap) {
			return false
		}
	}
	return true
}

func sameData(a, b *signal.Signal) bool {
	if len(a.Data) != len(b.Data) {
		return false
	}
	for c := range a.Data {
		if len(a.Data[c]) != len(b.Data[c]) {
			return false
		}
		for t := range a.Data[c] {
			if math.Float64bits(a.Data[c][t]) != math.Float64bits(b.Data[c][t]) {
				return false
			}
		}
	}
	return true
}

// MatchingPrefix counts the leading modules whose fn and phi values are
// bit-identical between two specs. It bounds how deep a cached stack can
// be reused.
func MatchingPrefix(old, updated model.Spec) int {
	n := len(old.Modules)
	if len(updated.Modules) < n {
		n = len(updated.Modules)
	}
	for i := 0; i < n; i++ {
		if !samePhi(old.Modules[i], updated.Modules[i]) {
			return i
		}
	}
	return n
}

func samePhi(a, b model.Module) bool {
	if a.Fn != b.Fn || len(a.Phi) != len(b.Phi) {
		return false
	}
	for name, av := range a.Phi {
		bv, ok := b.Phi[name]
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if math.Float64bits(av[i]) != math.Float64bits(bv[i]) {
				return false
			}
		}
	}
	return true
}
