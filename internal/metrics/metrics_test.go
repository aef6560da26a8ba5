package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"mnemos/internal/signal"
)

func recWith(t *testing.T, pred, resp []float64) *signal.Recording {
	t.Helper()
	rec := signal.NewRecording("metrics-test")
	for name, data := range map[string][]float64{"pred": pred, "resp": resp} {
		s, err := signal.New(name, 100, [][]float64{data}, nil)
		if err != nil {
			t.Fatalf("new %s: %v", name, err)
		}
		rec.Set(s)
	}
	return rec
}

func TestNMSEZeroForPerfectPrediction(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	rec := recWith(t, data, data)

	got, err := NMSE(rec, "pred", "resp")
	if err != nil {
		t.Fatalf("nmse: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0 for perfect prediction, got %f", got)
	}
}

func TestNMSEMatchesFormula(t *testing.T) {
	pred := []float64{1, 2, 2, 5}
	resp := []float64{1, 3, 2, 4}
	rec := recWith(t, pred, resp)

	got, err := NMSE(rec, "pred", "resp")
	if err != nil {
		t.Fatalf("nmse: %v", err)
	}

	mse := (0.0 + 1 + 0 + 1) / 4
	want := mse / stat.Variance(resp, nil)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestNMSESkipsNonFinitePairs(t *testing.T) {
	pred := []float64{1, math.NaN(), 3, 4}
	resp := []float64{1, 2, math.Inf(1), 4}
	rec := recWith(t, pred, resp)

	got, err := NMSE(rec, "pred", "resp")
	if err != nil {
		t.Fatalf("nmse: %v", err)
	}
	// Only pairs (1,1) and (4,4) survive; both are exact.
	if got != 0 {
		t.Fatalf("expected 0 over finite pairs, got %f", got)
	}
}

func TestNMSEAllNonFiniteYieldsNaN(t *testing.T) {
	nan := math.NaN()
	rec := recWith(t, []float64{nan, nan}, []float64{1, 2})

	got, err := NMSE(rec, "pred", "resp")
	if err != nil {
		t.Fatalf("nmse: %v", err)
	}
	if !math.IsNaN(got) {
		t.Fatalf("expected NaN for all-non-finite input, got %f", got)
	}
}

func TestMSERejectsShapeMismatch(t *testing.T) {
	rec := signal.NewRecording("bad")
	p, _ := signal.New("pred", 100, [][]float64{{1, 2}}, nil)
	r, _ := signal.New("resp", 100, [][]float64{{1, 2, 3}}, nil)
	rec.Set(p)
	rec.Set(r)

	if _, err := MSE(rec, "pred", "resp"); err == nil {
		t.Fatalf("expected shape-mismatch error")
	}
}

func TestMSERejectsMissingSignal(t *testing.T) {
	rec := recWith(t, []float64{1}, []float64{1})
	if _, err := MSE(rec, "pred", "response"); err == nil {
		t.Fatalf("expected missing-signal error")
	}
}

func TestCorrelationPerfectFit(t *testing.T) {
	pred := []float64{1, 2, 3, 4}
	resp := []float64{2, 4, 6, 8}
	rec := recWith(t, pred, resp)

	got, err := Correlation(rec, "pred", "resp")
	if err != nil {
		t.Fatalf("correlation: %v", err)
	}
	if math.Abs(got-1) > 1e-12 {
		t.Fatalf("expected correlation 1, got %f", got)
	}
}
