// Package metrics reduces an evaluated recording to a scalar error.
// Lower is better for every metric here except Correlation.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"mnemos/internal/signal"
)

// Metric scores an evaluated recording. The fitting loop minimizes it.
type Metric func(rec *signal.Recording) (float64, error)

// finitePairs flattens two signals channel-by-channel and keeps only
// sample pairs where both values are finite.
func finitePairs(rec *signal.Recording, predName, respName string) ([]float64, []float64, error) {
	pred, ok := rec.Get(predName)
	if !ok {
		return nil, nil, fmt.Errorf("signal %q not found", predName)
	}
	resp, ok := rec.Get(respName)
	if !ok {
		return nil, nil, fmt.Errorf("signal %q not found", respName)
	}
	if pred.ChanCount() != resp.ChanCount() || pred.SampleCount() != resp.SampleCount() {
		return nil, nil, fmt.Errorf("shape mismatch: %s is %dx%d, %s is %dx%d",
			predName, pred.ChanCount(), pred.SampleCount(),
			respName, resp.ChanCount(), resp.SampleCount())
	}

	var ps, rs []float64
	for c := range pred.Data {
		for t := range pred.Data[c] {
			p, r := pred.Data[c][t], resp.Data[c][t]
			if math.IsNaN(p) || math.IsInf(p, 0) || math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			ps = append(ps, p)
			rs = append(rs, r)
		}
	}
	return ps, rs, nil
}

// MSE returns the mean squared error between two signals over their
// pairwise-finite samples. With no finite pairs the result is NaN,
// surfaced to the minimizer as-is.
func MSE(rec *signal.Recording, predName, respName string) (float64, error) {
	ps, rs, err := finitePairs(rec, predName, respName)
	if err != nil {
		return 0, err
	}
	if len(ps) == 0 {
		return math.NaN(), nil
	}
	sum := 0.0
	for i := range ps {
		d := ps[i] - rs[i]
		sum += d * d
	}
	return sum / float64(len(ps)), nil
}

// NMSE is MSE normalized by the response variance:
// mean((pred-resp)^2) / var(resp). A perfect prediction scores 0; a
// constant prediction at the response mean scores about 1.
func NMSE(rec *signal.Recording, predName, respName string) (float64, error) {
	ps, rs, err := finitePairs(rec, predName, respName)
	if err != nil {
		return 0, err
	}
	if len(ps) == 0 {
		return math.NaN(), nil
	}
	sum := 0.0
	for i := range ps {
		d := ps[i] - rs[i]
		sum += d * d
	}
	mse := sum / float64(len(ps))
	variance := stat.Variance(rs, nil)
	return mse / variance, nil
}

// Correlation is the Pearson correlation between prediction and response
// over pairwise-finite samples. Higher is better; it is reported on fit
// results, not minimized.
func Correlation(rec *signal.Recording, predName, respName string) (float64, error) {
	ps, rs, err := finitePairs(rec, predName, respName)
	if err != nil {
		return 0, err
	}
	if len(ps) == 0 {
		return math.NaN(), nil
	}
	return stat.Correlation(ps, rs, nil), nil
}

// NMSEMetric binds NMSE over the standard pred/resp pair.
func NMSEMetric(predName, respName string) Metric {
	return func(rec *signal.Recording) (float64, error) {
		return NMSE(rec, predName, respName)
	}
}
