package mnemos

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"mnemos/internal/model"
	"mnemos/internal/modules"
	"mnemos/internal/signal"
	"mnemos/internal/stats"
)

func linearRecording(t *testing.T, samples int) *signal.Recording {
	t.Helper()

	stim := make([]float64, samples)
	resp := make([]float64, samples)
	for i := range stim {
		x := float64(i) / float64(samples)
		stim[i] = x
		resp[i] = 3*x + 1
	}
	rec := signal.NewRecording("api-test")
	for name, data := range map[string][]float64{"stim": stim, "resp": resp} {
		s, err := signal.New(name, 100, [][]float64{data}, nil)
		if err != nil {
			t.Fatalf("new %s: %v", name, err)
		}
		rec.Set(s)
	}
	return rec
}

func linearSpec() model.Spec {
	return model.Spec{
		ID: "linear-model",
		Modules: []model.Module{
			{
				Fn: modules.FnDCGain,
				Prior: map[string]model.Prior{
					"g": {Distribution: "normal", Mean: []float64{0}, SD: []float64{1}},
					"d": {Distribution: "normal", Mean: []float64{0}, SD: []float64{1}},
				},
			},
		},
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "artifacts"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientFitRunsAndExport(t *testing.T) {
	client := newTestClient(t)
	rec := linearRecording(t, 100)

	summary, err := client.Fit(context.Background(), FitRequest{
		Spec:      linearSpec(),
		Recording: rec,
	})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if summary.Fits != 1 {
		t.Fatalf("expected 1 fit, got %d", summary.Fits)
	}
	if summary.NParms != 2 {
		t.Fatalf("expected 2 parameters, got %d", summary.NParms)
	}
	if summary.FinalError > 1e-5 {
		t.Fatalf("final error too high: %f", summary.FinalError)
	}

	loaded, err := stats.ReadRunSummary(summary.ArtifactsDir)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if loaded.RunID != summary.RunID || loaded.NParms != 2 {
		t.Fatalf("artifact summary mismatch: %+v", loaded)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("expected run %s in runs list: %+v", summary.RunID, runs)
	}

	exported, err := client.Export(context.Background(), ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("exported wrong run: %s", exported.RunID)
	}
	for _, file := range []string{"summary.json", "result_spec.json", "progress.csv"} {
		if _, err := os.Stat(filepath.Join(exported.Directory, file)); err != nil {
			t.Fatalf("missing exported file %s: %v", file, err)
		}
	}
}

func TestClientFitVariants(t *testing.T) {
	client := newTestClient(t)
	rec := linearRecording(t, 200)

	cases := []struct {
		name string
		req  FitRequest
		fits int
	}{
		{
			name: "from-priors",
			req:  FitRequest{Variant: VariantFromPriors, NTimes: 3, Seed: 7},
			fits: 3,
		},
		{
			name: "jackknifes",
			req:  FitRequest{Variant: VariantJackknifes, NSplits: 4},
			fits: 4,
		},
		{
			name: "nfold",
			req:  FitRequest{Variant: VariantNFold, NSplits: 4},
			fits: 4,
		},
		{
			name: "random-subsets",
			req:  FitRequest{Variant: VariantRandomSubsets, NSplits: 4, Seed: 7},
			fits: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			req.Spec = linearSpec()
			req.Recording = rec
			summary, err := client.Fit(context.Background(), req)
			if err != nil {
				t.Fatalf("fit: %v", err)
			}
			if summary.Fits != tc.fits {
				t.Fatalf("expected %d fits, got %d", tc.fits, summary.Fits)
			}
			if summary.Variant != tc.req.Variant {
				t.Fatalf("variant mismatch: %s", summary.Variant)
			}
		})
	}

	if summary, err := client.Fit(context.Background(), FitRequest{
		Spec: linearSpec(), Recording: rec, Variant: "imaginary",
	}); err == nil {
		t.Fatalf("expected unknown variant error, got %+v", summary)
	}
	if summary, err := client.Fit(context.Background(), FitRequest{
		Spec: linearSpec(), Recording: rec, Fitter: "imaginary",
	}); err == nil {
		t.Fatalf("expected unknown fitter error, got %+v", summary)
	}
}

func TestClientPredict(t *testing.T) {
	client := newTestClient(t)
	rec := linearRecording(t, 100)

	summary, err := client.Fit(context.Background(), FitRequest{
		Spec:      linearSpec(),
		Recording: rec,
	})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	predicted, err := client.Predict(context.Background(), PredictRequest{
		RunID:     summary.RunID,
		Recording: linearRecording(t, 50),
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if predicted.RunID != summary.RunID {
		t.Fatalf("predicted wrong run: %s", predicted.RunID)
	}
	if math.IsNaN(predicted.Score) || predicted.Score > 1e-3 {
		t.Fatalf("prediction score too high: %f", predicted.Score)
	}
	if _, ok := predicted.Recording.Get("pred"); !ok {
		t.Fatal("prediction signal missing from evaluated recording")
	}

	if _, err := client.Predict(context.Background(), PredictRequest{
		RunID:     "no-such-run",
		Recording: rec,
	}); err == nil {
		t.Fatal("expected missing run error")
	}
}

func TestClientExportValidation(t *testing.T) {
	client := newTestClient(t)

	if _, err := client.Export(context.Background(), ExportRequest{}); err == nil {
		t.Fatal("expected error without run id or latest")
	}
	if _, err := client.Export(context.Background(), ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected error with both run id and latest")
	}
	if _, err := client.Export(context.Background(), ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected error with no stored runs")
	}
}
