package fit

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	exprand "golang.org/x/exp/rand"

	"mnemos/internal/eval"
	"mnemos/internal/metrics"
	"mnemos/internal/model"
	"mnemos/internal/priors"
	"mnemos/internal/signal"
	"mnemos/internal/stats"
)

// Meta keys attached to result specs.
const (
	MetaFitter     = "fitter"
	MetaFitTimeSec = "fit_time_sec"
	MetaNParms     = "n_parms"
	MetaValError   = "val_nmse"
)

// Config collects the collaborators of one fitting run. Zero values get
// sensible defaults: gonum Nelder-Mead, the identity segmentor, and NMSE
// over pred/resp.
type Config struct {
	Fitter        Fitter
	Segmentor     Segmentor
	Metric        metrics.Metric
	Name          string // metadata name, defaults to the fitter's
	PredSignal    string
	RespSignal    string
	KeepStack     bool
	ProgressEvery int
	Observer      stats.Observer
}

// Info summarizes one completed fit for callers that persist or report
// results.
type Info struct {
	Fitter     string
	FitTime    time.Duration
	NParms     int
	FinalError float64
	EvalCount  int
	ValError   *float64 // held-out score, when the variant computes one
}

// Result pairs a fitted spec with its run summary.
type Result struct {
	Spec model.Spec
	Info Info
}

func (c Config) withDefaults() Config {
	if c.Fitter == nil {
		c.Fitter = GonumFitter{}
	}
	if c.Segmentor == nil {
		c.Segmentor = UseAllData()
	}
	if c.PredSignal == "" {
		c.PredSignal = eval.DefaultOutput
	}
	if c.RespSignal == "" {
		c.RespSignal = "resp"
	}
	if c.Metric == nil {
		c.Metric = metrics.NMSEMetric(c.PredSignal, c.RespSignal)
	}
	if c.Name == "" {
		c.Name = c.Fitter.Name()
	}
	return c
}

// Basic fits a spec to a recording and returns a single-element result
// list. The caller's spec and recording are never mutated; every module
// must carry phi or a prior to default it from, or the fit aborts before
// the minimizer runs.
func Basic(ctx context.Context, rec *signal.Recording, spec model.Spec, cfg Config) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	start := time.Now()

	working, err := priors.SetMeanPhi(spec)
	if err != nil {
		return nil, fmt.Errorf("initialize phi: %w", err)
	}
	working.FitMode = true

	pack, unpack, err := Mapper(working)
	if err != nil {
		return nil, err
	}

	cc := &costContext{}
	cost := newCostFunc(costConfig{
		unpack:        unpack,
		rec:           rec,
		segmentor:     cfg.Segmentor,
		metric:        cfg.Metric,
		keepStack:     cfg.KeepStack,
		progressEvery: cfg.ProgressEvery,
		observer:      cfg.Observer,
	}, cc)

	sigma, err := pack(working)
	if err != nil {
		return nil, err
	}

	improved, err := cfg.Fitter.Minimize(ctx, sigma, cost)
	// A latched cost failure is the root cause of whatever the minimizer
	// reported about NaN values, so it wins.
	if cc.err != nil {
		return nil, fmt.Errorf("cost evaluation failed: %w", cc.err)
	}
	if err != nil {
		return nil, err
	}

	result, err := unpack(improved)
	if err != nil {
		return nil, err
	}
	result.FitMode = false

	elapsed := time.Since(start)
	info := Info{
		Fitter:     cfg.Name,
		FitTime:    elapsed,
		NParms:     len(improved),
		FinalError: cc.lastErr,
		EvalCount:  cc.counter,
	}
	result.SetMeta(MetaFitter, cfg.Name)
	result.SetMeta(MetaFitTimeSec, strconv.FormatFloat(elapsed.Seconds(), 'g', -1, 64))
	result.SetMeta(MetaNParms, strconv.Itoa(len(improved)))

	return []Result{{Spec: result, Info: info}}, nil
}

// FromPriors runs ntimes independent fits, each starting from phi values
// resampled from the spec's priors. Ensemble counterpart of Basic.
func FromPriors(ctx context.Context, rec *signal.Recording, spec model.Spec, ntimes int, src exprand.Source, cfg Config) ([]Result, error) {
	if ntimes <= 0 {
		return nil, fmt.Errorf("ntimes must be > 0, got %d", ntimes)
	}
	if src == nil {
		return nil, fmt.Errorf("random source is required")
	}

	results := make([]Result, 0, ntimes)
	for i := 0; i < ntimes; i++ {
		randomized, err := priors.SetRandomPhi(spec, src)
		if err != nil {
			return nil, fmt.Errorf("start %d/%d: %w", i+1, ntimes, err)
		}
		fits, err := Basic(ctx, rec, randomized, cfg)
		if err != nil {
			return nil, fmt.Errorf("start %d/%d: %w", i+1, ntimes, err)
		}
		results = append(results, fits...)
	}
	return results, nil
}

// Jackknifes fits one model per time-sliced fold, training on the fold
// with one slice withheld and scoring the result on the withheld slice.
func Jackknifes(ctx context.Context, rec *signal.Recording, spec model.Spec, njacks int, cfg Config) ([]Result, error) {
	if njacks <= 1 {
		return nil, fmt.Errorf("njacks must be > 1, got %d", njacks)
	}
	cfg = cfg.withDefaults()

	results := make([]Result, 0, njacks)
	for i := 0; i < njacks; i++ {
		est, err := rec.JackknifeByTime(njacks, i, false, false)
		if err != nil {
			return nil, fmt.Errorf("fold %d/%d: %w", i+1, njacks, err)
		}
		fits, err := Basic(ctx, est, spec, cfg)
		if err != nil {
			return nil, fmt.Errorf("fold %d/%d: %w", i+1, njacks, err)
		}

		val, err := rec.JackknifeByTime(njacks, i, true, false)
		if err != nil {
			return nil, fmt.Errorf("fold %d/%d: %w", i+1, njacks, err)
		}
		for j := range fits {
			score, err := heldOutScore(val, fits[j].Spec, cfg)
			if err != nil {
				return nil, fmt.Errorf("fold %d/%d validation: %w", i+1, njacks, err)
			}
			fits[j].Info.ValError = &score
			fits[j].Spec.SetMeta(MetaValError, strconv.FormatFloat(score, 'g', -1, 64))
		}
		results = append(results, fits...)
	}
	return results, nil
}

// NFold fits the spec to each pre-split recording independently.
func NFold(ctx context.Context, folds []*signal.Recording, spec model.Spec, cfg Config) ([]Result, error) {
	if len(folds) == 0 {
		return nil, fmt.Errorf("at least one fold is required")
	}

	results := make([]Result, 0, len(folds))
	for i, fold := range folds {
		fits, err := Basic(ctx, fold, spec, cfg)
		if err != nil {
			return nil, fmt.Errorf("fold %d/%d: %w", i+1, len(folds), err)
		}
		results = append(results, fits...)
	}
	return results, nil
}

// RandomSubsets fits against a small random fraction of the data per
// cost step, resampling the subset every rebuildEvery evaluations.
// Useful for faster early convergence on large recordings. The cadence
// defaults to 10000 evaluations: resampling mid-run invalidates the
// function values a simplex or line-search method has already accepted,
// so the default outlasts a typical minimizer run and a shorter cadence
// should pair with a restart-capable fitter.
func RandomSubsets(ctx context.Context, rec *signal.Recording, spec model.Spec, nsplits, rebuildEvery int, rnd *rand.Rand, cfg Config) ([]Result, error) {
	if rebuildEvery <= 0 {
		rebuildEvery = 10000
	}
	segmentor, err := RandomJackknifeMaker(nsplits, rebuildEvery, true, true, rnd)
	if err != nil {
		return nil, err
	}
	cfg.Segmentor = segmentor
	// Each step may see a differently sized subset, so cached partial
	// evaluations cannot be trusted across steps.
	cfg.KeepStack = false
	return Basic(ctx, rec, spec, cfg)
}

func heldOutScore(val *signal.Recording, spec model.Spec, cfg Config) (float64, error) {
	evaluated, err := eval.Evaluate(val, spec)
	if err != nil {
		return 0, err
	}
	return cfg.Metric(evaluated)
}
