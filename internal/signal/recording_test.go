package signal

import (
	"math"
	"testing"
)

func testRecording(t *testing.T, samples int) *Recording {
	t.Helper()

	stim := make([]float64, samples)
	resp := make([]float64, samples)
	for i := range stim {
		stim[i] = float64(i)
		resp[i] = 2 * float64(i)
	}

	rec := NewRecording("test-rec")
	for name, data := range map[string][]float64{"stim": stim, "resp": resp} {
		s, err := New(name, 100, [][]float64{data}, nil)
		if err != nil {
			t.Fatalf("new signal %s: %v", name, err)
		}
		rec.Set(s)
	}
	return rec
}

func TestNewSignalValidation(t *testing.T) {
	if _, err := New("", 100, [][]float64{{1}}, nil); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := New("x", 0, [][]float64{{1}}, nil); err == nil {
		t.Fatalf("expected error for zero sampling rate")
	}
	if _, err := New("x", 100, [][]float64{{1, 2}, {1}}, nil); err == nil {
		t.Fatalf("expected error for ragged channels")
	}
	if _, err := New("x", 100, [][]float64{{1, 2}}, []string{"a", "b"}); err == nil {
		t.Fatalf("expected error for label/channel mismatch")
	}
}

func TestRecordingCloneIsDeep(t *testing.T) {
	rec := testRecording(t, 10)
	clone := rec.Clone()
	clone.Signals["stim"].Data[0][0] = 999

	if rec.Signals["stim"].Data[0][0] != 0 {
		t.Fatalf("clone mutation leaked into original")
	}
}

func TestJackknifeByTimeMasksOnePiece(t *testing.T) {
	rec := testRecording(t, 20)
	fold, err := rec.JackknifeByTime(4, 1, false, false)
	if err != nil {
		t.Fatalf("jackknife: %v", err)
	}

	stim := fold.Signals["stim"].Data[0]
	if len(stim) != 20 {
		t.Fatalf("expected 20 samples without excise, got %d", len(stim))
	}
	for t0 := 0; t0 < 20; t0++ {
		masked := t0 >= 5 && t0 < 10
		if masked != math.IsNaN(stim[t0]) {
			t.Fatalf("sample %d: masked=%v value=%f", t0, masked, stim[t0])
		}
	}

	// Original untouched.
	if math.IsNaN(rec.Signals["stim"].Data[0][5]) {
		t.Fatalf("jackknife mutated the source recording")
	}
}

func TestJackknifeByTimeInvertExcise(t *testing.T) {
	rec := testRecording(t, 20)
	fold, err := rec.JackknifeByTime(4, 0, true, true)
	if err != nil {
		t.Fatalf("jackknife: %v", err)
	}

	stim := fold.Signals["stim"].Data[0]
	if len(stim) != 5 {
		t.Fatalf("expected 5 kept samples, got %d", len(stim))
	}
	for i, v := range stim {
		if v != float64(i) {
			t.Fatalf("kept sample %d: expected %f, got %f", i, float64(i), v)
		}
	}
}

func TestJackknifeUnevenSplits(t *testing.T) {
	rec := testRecording(t, 10)

	// 3 splits of 10 samples: sizes 4, 3, 3.
	total := 0
	for i := 0; i < 3; i++ {
		fold, err := rec.JackknifeByTime(3, i, true, true)
		if err != nil {
			t.Fatalf("jackknife %d: %v", i, err)
		}
		total += fold.Signals["stim"].SampleCount()
	}
	if total != 10 {
		t.Fatalf("splits do not partition the time axis: total %d", total)
	}
}

func TestJackknifeRejectsBadArgs(t *testing.T) {
	rec := testRecording(t, 10)
	if _, err := rec.JackknifeByTime(0, 0, false, false); err == nil {
		t.Fatalf("expected error for nsplits=0")
	}
	if _, err := rec.JackknifeByTime(3, 3, false, false); err == nil {
		t.Fatalf("expected error for out-of-range index")
	}
}

func TestSampleCountMismatch(t *testing.T) {
	rec := testRecording(t, 10)
	short, err := New("state", 100, [][]float64{{1, 2, 3}}, nil)
	if err != nil {
		t.Fatalf("new signal: %v", err)
	}
	rec.Set(short)

	if _, err := rec.SampleCount(); err == nil {
		t.Fatalf("expected error for mismatched sample counts")
	}
}

func TestSplitByTimeProducesAllFolds(t *testing.T) {
	rec := testRecording(t, 12)
	folds, err := rec.SplitByTime(3)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(folds) != 3 {
		t.Fatalf("expected 3 folds, got %d", len(folds))
	}
	for i, fold := range folds {
		stim := fold.Signals["stim"].Data[0]
		nan := 0
		for _, v := range stim {
			if math.IsNaN(v) {
				nan++
			}
		}
		if nan != 4 {
			t.Fatalf("fold %d: expected 4 masked samples, got %d", i, nan)
		}
	}
}
