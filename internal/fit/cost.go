package fit

import (
	"math"

	"mnemos/internal/eval"
	"mnemos/internal/metrics"
	"mnemos/internal/signal"
	"mnemos/internal/stats"
)

// DefaultProgressEvery is how many cost evaluations pass between
// progress observations when the caller does not say otherwise.
const DefaultProgressEvery = 500

// costContext carries the mutable state of one fitting run: the
// evaluation counter, the last error, and the incremental-evaluation
// stack. It lives exactly as long as one call into the driver, so
// concurrent fits over independent data never share state.
type costContext struct {
	counter int
	lastErr float64
	stack   *eval.Stack
	err     error
}

// costConfig binds the collaborators a cost closure needs.
type costConfig struct {
	unpack        Unpacker
	rec           *signal.Recording
	segmentor     Segmentor
	metric        metrics.Metric
	keepStack     bool
	progressEvery int
	observer      stats.Observer
}

// newCostFunc composes unpack, segment, evaluate, and score into a
// scalar function of the parameter vector. Internal failures are
// recorded on the context and surfaced to the minimizer as NaN; the
// driver checks ctx.err after the minimizer returns.
func newCostFunc(cfg costConfig, cc *costContext) func(sigma []float64) float64 {
	progressEvery := cfg.progressEvery
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}

	return func(sigma []float64) float64 {
		updated, err := cfg.unpack(sigma)
		if err != nil {
			return cc.fail(err)
		}

		subset, err := cfg.segmentor(cfg.rec)
		if err != nil {
			return cc.fail(err)
		}

		var evaluated *signal.Recording
		if cfg.keepStack {
			start := 0
			if cc.stack != nil {
				start = eval.MatchingPrefix(cc.stack.Spec, updated)
			}
			var stack *eval.Stack
			evaluated, stack, err = eval.EvaluateStack(subset, updated, start, cc.stack)
			if err != nil {
				return cc.fail(err)
			}
			cc.stack = stack
		} else {
			evaluated, err = eval.Evaluate(subset, updated)
			if err != nil {
				return cc.fail(err)
			}
		}

		errVal, err := cfg.metric(evaluated)
		if err != nil {
			return cc.fail(err)
		}

		cc.counter++
		cc.lastErr = errVal
		if cfg.observer != nil && cc.counter%progressEvery == 0 {
			cfg.observer.Observe(cc.counter, errVal)
		}
		return errVal
	}
}

func (cc *costContext) fail(err error) float64 {
	if cc.err == nil {
		cc.err = err
	}
	return math.NaN()
}
