// Package mnemos is the public entry point for fitting encoding models,
// inspecting stored runs, and exporting run artifacts.
package mnemos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	exprand "golang.org/x/exp/rand"

	"mnemos/internal/eval"
	"mnemos/internal/fit"
	"mnemos/internal/metrics"
	"mnemos/internal/model"
	"mnemos/internal/signal"
	"mnemos/internal/stats"
	"mnemos/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "mnemos.db"
)

// Fit variants selectable by name.
const (
	VariantBasic         = "basic"
	VariantFromPriors    = "from-priors"
	VariantJackknifes    = "jackknifes"
	VariantNFold         = "nfold"
	VariantRandomSubsets = "random-subsets"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store storage.Store

	artifactsDir string
	exportsDir   string

	initOnce sync.Once
	initErr  error
}

type FitRequest struct {
	Spec      model.Spec
	Recording *signal.Recording

	Fitter  string // nelder-mead, lbfgs, gradient-descent, coordinate-descent
	Variant string // basic, from-priors, jackknifes, nfold, random-subsets

	NTimes       int // from-priors restarts
	NSplits      int // jackknifes folds, nfold splits, random-subsets splits
	RebuildEvery int // random-subsets resample cadence, 0 for the safe default
	Seed         int64

	PredSignal    string
	RespSignal    string
	KeepStack     bool
	ProgressEvery int
	Observer      stats.Observer
}

type FitSummary struct {
	RunID        string
	ArtifactsDir string
	Fitter       string
	Variant      string
	Fits         int
	FitTimeSec   float64
	NParms       int
	FinalError   float64
	EvalCount    int
	ValError     *float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Fitter       string
	FitTimeSec   float64
	NParms       int
	FinalError   float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type PredictRequest struct {
	RunID     string
	Latest    bool
	Recording *signal.Recording

	PredSignal string
	RespSignal string
}

type PredictSummary struct {
	RunID     string
	Score     float64
	Recording *signal.Recording
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) ensureInit(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Fit runs the requested fit variant, persists the best result, writes
// run artifacts, and returns the run summary.
func (c *Client) Fit(ctx context.Context, req FitRequest) (FitSummary, error) {
	if err := c.ensureInit(ctx); err != nil {
		return FitSummary{}, err
	}
	if req.Recording == nil {
		return FitSummary{}, errors.New("recording is required")
	}
	if len(req.Spec.Modules) == 0 {
		return FitSummary{}, errors.New("spec has no modules")
	}
	if req.Variant == "" {
		req.Variant = VariantBasic
	}

	fitter, err := fitterFromName(req.Fitter)
	if err != nil {
		return FitSummary{}, err
	}

	collector := &stats.Collector{}
	var observer stats.Observer = collector
	if req.Observer != nil {
		observer = stats.Tee{collector, req.Observer}
	}
	cfg := fit.Config{
		Fitter:        fitter,
		PredSignal:    req.PredSignal,
		RespSignal:    req.RespSignal,
		KeepStack:     req.KeepStack,
		ProgressEvery: req.ProgressEvery,
		Observer:      observer,
	}

	var results []fit.Result
	switch req.Variant {
	case VariantBasic:
		results, err = fit.Basic(ctx, req.Recording, req.Spec, cfg)
	case VariantFromPriors:
		ntimes := req.NTimes
		if ntimes <= 0 {
			ntimes = 1
		}
		src := exprand.NewSource(uint64(req.Seed))
		results, err = fit.FromPriors(ctx, req.Recording, req.Spec, ntimes, src, cfg)
	case VariantJackknifes:
		nsplits := req.NSplits
		if nsplits <= 0 {
			nsplits = 10
		}
		results, err = fit.Jackknifes(ctx, req.Recording, req.Spec, nsplits, cfg)
	case VariantNFold:
		nsplits := req.NSplits
		if nsplits <= 0 {
			nsplits = 5
		}
		var folds []*signal.Recording
		folds, err = req.Recording.SplitByTime(nsplits)
		if err != nil {
			return FitSummary{}, err
		}
		results, err = fit.NFold(ctx, folds, req.Spec, cfg)
	case VariantRandomSubsets:
		nsplits := req.NSplits
		if nsplits <= 0 {
			nsplits = 10
		}
		rnd := rand.New(rand.NewSource(req.Seed))
		results, err = fit.RandomSubsets(ctx, req.Recording, req.Spec, nsplits, req.RebuildEvery, rnd, cfg)
	default:
		return FitSummary{}, fmt.Errorf("unknown fit variant %q", req.Variant)
	}
	if err != nil {
		return FitSummary{}, err
	}
	if len(results) == 0 {
		return FitSummary{}, errors.New("fit produced no results")
	}

	best := bestResult(results)
	best.Spec.SchemaVersion = storage.CurrentSchemaVersion
	best.Spec.CodecVersion = storage.CurrentCodecVersion
	runID := uuid.NewString()
	now := time.Now().UTC()

	if best.Spec.ID != "" {
		if err := c.store.SaveSpec(ctx, best.Spec); err != nil {
			return FitSummary{}, err
		}
	}

	record := model.FitRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		RunID:      runID,
		CreatedAt:  now.Format(time.RFC3339Nano),
		Fitter:     best.Info.Fitter,
		FitTimeSec: best.Info.FitTime.Seconds(),
		NParms:     best.Info.NParms,
		FinalError: best.Info.FinalError,
		Spec:       best.Spec,
	}
	if err := c.store.SaveFitRecord(ctx, record); err != nil {
		return FitSummary{}, err
	}
	points := collector.Points()
	history := make([]float64, 0, len(points))
	for _, p := range points {
		history = append(history, p.Error)
	}
	if err := c.store.SaveErrorHistory(ctx, runID, history); err != nil {
		return FitSummary{}, err
	}

	dir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunSummary{
		RunID:      runID,
		CreatedAt:  record.CreatedAt,
		Fitter:     best.Info.Fitter,
		FitTimeSec: best.Info.FitTime.Seconds(),
		NParms:     best.Info.NParms,
		FinalError: best.Info.FinalError,
		EvalCount:  best.Info.EvalCount,
	}, points, best.Spec)
	if err != nil {
		return FitSummary{}, err
	}

	return FitSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(dir),
		Fitter:       best.Info.Fitter,
		Variant:      req.Variant,
		Fits:         len(results),
		FitTimeSec:   best.Info.FitTime.Seconds(),
		NParms:       best.Info.NParms,
		FinalError:   best.Info.FinalError,
		EvalCount:    best.Info.EvalCount,
		ValError:     best.Info.ValError,
	}, nil
}

// Runs lists stored fit runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	records, err := c.store.ListFitRecords(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(records))
	for _, r := range records {
		out = append(out, RunItem{
			RunID:        r.RunID,
			CreatedAtUTC: r.CreatedAt,
			Fitter:       r.Fitter,
			FitTimeSec:   r.FitTimeSec,
			NParms:       r.NParms,
			FinalError:   r.FinalError,
		})
	}
	return out, nil
}

// Export copies a run's artifact directory into the exports directory.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		var err error
		runID, err = c.latestRunID(ctx)
		if err != nil {
			return ExportSummary{}, err
		}
	}

	dir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

// Predict evaluates a stored run's fitted spec on a recording and scores
// the prediction against the response signal.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (PredictSummary, error) {
	if err := c.ensureInit(ctx); err != nil {
		return PredictSummary{}, err
	}
	if req.RunID != "" && req.Latest {
		return PredictSummary{}, errors.New("use either run id or latest")
	}
	if req.Recording == nil {
		return PredictSummary{}, errors.New("recording is required")
	}

	runID := req.RunID
	if req.Latest {
		var err error
		runID, err = c.latestRunID(ctx)
		if err != nil {
			return PredictSummary{}, err
		}
	}
	if runID == "" {
		return PredictSummary{}, errors.New("predict requires run id or latest")
	}

	record, ok, err := c.store.GetFitRecord(ctx, runID)
	if err != nil {
		return PredictSummary{}, err
	}
	if !ok {
		return PredictSummary{}, fmt.Errorf("run %s not found", runID)
	}

	evaluated, err := eval.Evaluate(req.Recording, record.Spec)
	if err != nil {
		return PredictSummary{}, err
	}
	predName := req.PredSignal
	if predName == "" {
		predName = eval.DefaultOutput
	}
	respName := req.RespSignal
	if respName == "" {
		respName = "resp"
	}
	score, err := metrics.NMSE(evaluated, predName, respName)
	if err != nil {
		return PredictSummary{}, err
	}
	return PredictSummary{RunID: runID, Score: score, Recording: evaluated}, nil
}

func (c *Client) latestRunID(ctx context.Context) (string, error) {
	records, err := c.store.ListFitRecords(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", errors.New("no runs available")
	}
	return records[0].RunID, nil
}

func fitterFromName(name string) (fit.Fitter, error) {
	switch name {
	case "", fit.MethodNelderMead:
		return fit.GonumFitter{Method: fit.MethodNelderMead}, nil
	case fit.MethodLBFGS:
		return fit.GonumFitter{Method: fit.MethodLBFGS}, nil
	case fit.MethodGradientDescent:
		return fit.GonumFitter{Method: fit.MethodGradientDescent}, nil
	case "coordinate-descent":
		return fit.CoordinateDescent{}, nil
	default:
		return nil, fmt.Errorf("unknown fitter %q", name)
	}
}

// bestResult prefers the lowest validation score when available, falling
// back to the lowest fit error. Non-finite scores always lose.
func bestResult(results []fit.Result) fit.Result {
	best := results[0]
	for _, r := range results[1:] {
		if better(score(r), score(best)) {
			best = r
		}
	}
	return best
}

func score(r fit.Result) float64 {
	if r.Info.ValError != nil {
		return *r.Info.ValError
	}
	return r.Info.FinalError
}

func better(a, b float64) bool {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return false
	}
	if math.IsNaN(b) || math.IsInf(b, 0) {
		return true
	}
	return a < b
}
