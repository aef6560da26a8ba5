package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"mnemos/internal/stats"
	"mnemos/internal/storage"
	api "mnemos/pkg/mnemos"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "mnemos.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "fit":
		return runFit(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "eval":
		return runEval(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runFit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON fit config file")
	specPath := fs.String("spec", "", "model spec JSON file")
	dataPath := fs.String("data", "", "recording JSON file")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	artifactsDir := fs.String("artifacts-dir", defaultArtifactsDir, "run artifacts directory")
	fitter := fs.String("fitter", "", "nelder-mead|lbfgs|gradient-descent|coordinate-descent")
	variant := fs.String("variant", "", "basic|from-priors|jackknifes|nfold|random-subsets")
	ntimes := fs.Int("ntimes", 0, "from-priors restarts")
	nsplits := fs.Int("nsplits", 0, "fold or subset count")
	rebuildEvery := fs.Int("rebuild-every", 0, "random-subsets resample cadence")
	seed := fs.Int64("seed", 0, "random seed")
	keepStack := fs.Bool("keep-stack", false, "reuse partial evaluations between cost calls")
	progressEvery := fs.Int("progress-every", 0, "observer cadence in cost evaluations")
	verbose := fs.Bool("verbose", false, "log fit progress")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadOrDefaultFitConfig(*configPath)
	if err != nil {
		return err
	}
	if *fitter != "" {
		cfg.req.Fitter = *fitter
	}
	if *variant != "" {
		cfg.req.Variant = *variant
	}
	if *ntimes > 0 {
		cfg.req.NTimes = *ntimes
	}
	if *nsplits > 0 {
		cfg.req.NSplits = *nsplits
	}
	if *rebuildEvery > 0 {
		cfg.req.RebuildEvery = *rebuildEvery
	}
	if *progressEvery > 0 {
		cfg.req.ProgressEvery = *progressEvery
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["seed"] {
		cfg.req.Seed = *seed
	}
	if set["keep-stack"] {
		cfg.req.KeepStack = *keepStack
	}
	if *specPath != "" {
		cfg.specPath = *specPath
	}
	if *dataPath != "" {
		cfg.dataPath = *dataPath
	}

	if cfg.req.Spec.Modules == nil {
		if cfg.specPath == "" {
			return errors.New("fit requires -spec, or a config with a spec")
		}
		spec, err := loadSpecFile(cfg.specPath)
		if err != nil {
			return err
		}
		cfg.req.Spec = spec
	}
	if cfg.dataPath == "" {
		return errors.New("fit requires -data, or a config with data_path")
	}
	rec, err := loadRecordingFile(cfg.dataPath)
	if err != nil {
		return err
	}
	cfg.req.Recording = rec
	if *verbose {
		cfg.req.Observer = stats.LogObserver{}
	}

	client, err := api.New(api.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: *artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Fit(ctx, cfg.req)
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Printf("run %s: fitter=%s variant=%s fits=%d parms=%d error=%.6g\n",
		summary.RunID, summary.Fitter, summary.Variant, summary.Fits, summary.NParms, summary.FinalError)
	if summary.ValError != nil {
		fmt.Printf("validation error: %.6g\n", *summary.ValError)
	}
	fmt.Printf("%s cost evaluations in %s\n",
		humanize.Comma(int64(summary.EvalCount)),
		time.Duration(summary.FitTimeSec*float64(time.Second)).Round(time.Millisecond))
	fmt.Printf("artifacts: %s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := api.New(api.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		type runsItem struct {
			RunID        string  `json:"run_id"`
			CreatedAtUTC string  `json:"created_at_utc"`
			Fitter       string  `json:"fitter"`
			FitTimeSec   float64 `json:"fit_time_sec"`
			NParms       int     `json:"n_parms"`
			FinalError   float64 `json:"final_error"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem{
				RunID:        r.RunID,
				CreatedAtUTC: r.CreatedAtUTC,
				Fitter:       r.Fitter,
				FitTimeSec:   r.FitTimeSec,
				NParms:       r.NParms,
				FinalError:   r.FinalError,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, r := range runs {
		created := r.CreatedAtUTC
		if t, err := time.Parse(time.RFC3339Nano, r.CreatedAtUTC); err == nil {
			created = humanize.Time(t)
		}
		fmt.Printf("%s  %s  fitter=%s parms=%d error=%.6g\n",
			r.RunID, created, r.Fitter, r.NParms, r.FinalError)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run", "", "run id to export")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", defaultExportsDir, "destination directory")
	artifactsDir := fs.String("artifacts-dir", defaultArtifactsDir, "run artifacts directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: *artifactsDir,
		ExportsDir:   *outDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	fmt.Printf("exported run %s to %s\n", summary.RunID, summary.Directory)
	return nil
}

func runEval(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	runID := fs.String("run", "", "run id to evaluate")
	latest := fs.Bool("latest", false, "evaluate the most recent run")
	dataPath := fs.String("data", "", "recording JSON file")
	predSignal := fs.String("pred", "", "prediction signal name")
	respSignal := fs.String("resp", "", "response signal name")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the score as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataPath == "" {
		return errors.New("eval requires -data")
	}

	rec, err := loadRecordingFile(*dataPath)
	if err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Predict(ctx, api.PredictRequest{
		RunID:      *runID,
		Latest:     *latest,
		Recording:  rec,
		PredSignal: *predSignal,
		RespSignal: *respSignal,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		out := struct {
			RunID string  `json:"run_id"`
			Score float64 `json:"score"`
		}{RunID: summary.RunID, Score: summary.Score}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Printf("run %s: score=%.6g\n", summary.RunID, summary.Score)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: mnemosctl <fit|runs|export|eval> [flags]", msg)
}
