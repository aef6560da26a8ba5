package modules

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"mnemos/internal/model"
	"mnemos/internal/signal"
)

// Canonical module fn names. Dispatch is an exact match on these, never a
// substring test.
const (
	FnWeightChannels = "wc"
	FnFIR            = "fir"
	FnLevelShift     = "lvl"
	FnDCGain         = "dcgain"
	FnStateGain      = "stategain"
	FnDoubleExp      = "dexp"
	FnNoise          = "noise"
)

func inputSignal(rec *signal.Recording, m model.Module, input string) (*signal.Signal, error) {
	in, ok := rec.Get(input)
	if !ok {
		return nil, fmt.Errorf("%s: input signal %q not found", m.Fn, input)
	}
	return in, nil
}

func phiGroup(m model.Module, name string) ([]float64, error) {
	values, ok := m.Phi[name]
	if !ok || len(values) == 0 {
		return nil, fmt.Errorf("%s: phi group %q missing", m.Fn, name)
	}
	return values, nil
}

// weightChannels collapses the input channels into one weighted channel.
// Phi: "coefficients", one weight per input channel.
func weightChannels(rec *signal.Recording, m model.Module, input string, _ bool) (*signal.Signal, error) {
	in, err := inputSignal(rec, m, input)
	if err != nil {
		return nil, err
	}
	weights, err := phiGroup(m, "coefficients")
	if err != nil {
		return nil, err
	}
	if len(weights) != in.ChanCount() {
		return nil, fmt.Errorf("wc: %d weights for %d channels", len(weights), in.ChanCount())
	}

	out := make([]float64, in.SampleCount())
	for c, w := range weights {
		floats.AddScaled(out, w, in.Data[c])
	}
	return &signal.Signal{Fs: in.Fs, Data: [][]float64{out}}, nil
}

// firFilter convolves each channel with a causal tap vector and sums the
// channels. Phi: "coefficients", taps applied newest-sample-first.
func firFilter(rec *signal.Recording, m model.Module, input string, _ bool) (*signal.Signal, error) {
	in, err := inputSignal(rec, m, input)
	if err != nil {
		return nil, err
	}
	taps, err := phiGroup(m, "coefficients")
	if err != nil {
		return nil, err
	}

	n := in.SampleCount()
	out := make([]float64, n)
	for _, row := range in.Data {
		for t := 0; t < n; t++ {
			acc := 0.0
			for k, c := range taps {
				if t-k < 0 {
					break
				}
				acc += c * row[t-k]
			}
			out[t] += acc
		}
	}
	return &signal.Signal{Fs: in.Fs, Data: [][]float64{out}}, nil
}

// levelShift adds a scalar offset to every sample. Phi: "level".
func levelShift(rec *signal.Recording, m model.Module, input string, _ bool) (*signal.Signal, error) {
	in, err := inputSignal(rec, m, input)
	if err != nil {
		return nil, err
	}
	level, err := phiGroup(m, "level")
	if err != nil {
		return nil, err
	}

	out := in.Clone()
	for _, row := range out.Data {
		floats.AddConst(level[0], row)
	}
	return out, nil
}

// dcGain applies y = g*x + d elementwise. Phi: "g", "d".
func dcGain(rec *signal.Recording, m model.Module, input string, _ bool) (*signal.Signal, error) {
	in, err := inputSignal(rec, m, input)
	if err != nil {
		return nil, err
	}
	g, err := phiGroup(m, "g")
	if err != nil {
		return nil, err
	}
	d, err := phiGroup(m, "d")
	if err != nil {
		return nil, err
	}

	out := in.Clone()
	for _, row := range out.Data {
		for t := range row {
			row[t] = g[0]*row[t] + d[0]
		}
	}
	return out, nil
}

// stateGain modulates the input by a state signal: y = (g·s)*x + (d·s),
// with one gain and one offset weight per state channel. Phi: "g", "d";
// the state signal name comes from the module's State field.
func stateGain(rec *signal.Recording, m model.Module, input string, _ bool) (*signal.Signal, error) {
	in, err := inputSignal(rec, m, input)
	if err != nil {
		return nil, err
	}
	stateName := m.State
	if stateName == "" {
		stateName = "state"
	}
	state, ok := rec.Get(stateName)
	if !ok {
		return nil, fmt.Errorf("stategain: state signal %q not found", stateName)
	}
	g, err := phiGroup(m, "g")
	if err != nil {
		return nil, err
	}
	d, err := phiGroup(m, "d")
	if err != nil {
		return nil, err
	}
	if len(g) != state.ChanCount() || len(d) != state.ChanCount() {
		return nil, fmt.Errorf("stategain: %d/%d weights for %d state channels", len(g), len(d), state.ChanCount())
	}
	if state.SampleCount() != in.SampleCount() {
		return nil, fmt.Errorf("stategain: state has %d samples, input has %d", state.SampleCount(), in.SampleCount())
	}

	out := in.Clone()
	for _, row := range out.Data {
		for t := range row {
			gain, dc := 0.0, 0.0
			for c := range g {
				gain += g[c] * state.Data[c][t]
				dc += d[c] * state.Data[c][t]
			}
			row[t] = gain*row[t] + dc
		}
	}
	return out, nil
}

// doubleExponential is the static output nonlinearity
// y = base + amplitude * exp(-exp(-kappa*(x-shift))).
// Phi: "base", "amplitude", "shift", "kappa".
func doubleExponential(rec *signal.Recording, m model.Module, input string, _ bool) (*signal.Signal, error) {
	in, err := inputSignal(rec, m, input)
	if err != nil {
		return nil, err
	}
	base, err := phiGroup(m, "base")
	if err != nil {
		return nil, err
	}
	amplitude, err := phiGroup(m, "amplitude")
	if err != nil {
		return nil, err
	}
	shift, err := phiGroup(m, "shift")
	if err != nil {
		return nil, err
	}
	kappa, err := phiGroup(m, "kappa")
	if err != nil {
		return nil, err
	}

	out := in.Clone()
	for _, row := range out.Data {
		for t := range row {
			row[t] = base[0] + amplitude[0]*math.Exp(-math.Exp(-kappa[0]*(row[t]-shift[0])))
		}
	}
	return out, nil
}

// outputNoise adds gaussian noise at inference time only. During fitting
// the module is an identity pass-through so the cost surface stays
// deterministic. Phi: "sd".
func outputNoise(rec *signal.Recording, m model.Module, input string, fitMode bool) (*signal.Signal, error) {
	in, err := inputSignal(rec, m, input)
	if err != nil {
		return nil, err
	}
	if fitMode {
		return in.Clone(), nil
	}
	sd, err := phiGroup(m, "sd")
	if err != nil {
		return nil, err
	}

	out := in.Clone()
	for _, row := range out.Data {
		for t := range row {
			row[t] += rand.NormFloat64() * sd[0]
		}
	}
	return out, nil
}
