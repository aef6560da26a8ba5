//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"mnemos/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(filepath.Join(t.TempDir(), "mnemos.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return store
}

func TestSQLiteStoreSpecRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	if err := store.SaveSpec(ctx, storedSpec("spec-1")); err != nil {
		t.Fatalf("save spec: %v", err)
	}
	spec, ok, err := store.GetSpec(ctx, "spec-1")
	if err != nil {
		t.Fatalf("get spec: %v", err)
	}
	if !ok || spec.Modules[0].Phi["g"][0] != 3 {
		t.Fatalf("unexpected spec: ok=%v %+v", ok, spec)
	}

	// Overwrite on conflict.
	updated := storedSpec("spec-1")
	updated.Modules[0].Phi["g"][0] = 5
	if err := store.SaveSpec(ctx, updated); err != nil {
		t.Fatalf("save updated spec: %v", err)
	}
	spec, _, err = store.GetSpec(ctx, "spec-1")
	if err != nil {
		t.Fatalf("get updated spec: %v", err)
	}
	if spec.Modules[0].Phi["g"][0] != 5 {
		t.Fatalf("conflict update lost: %+v", spec)
	}
}

func TestSQLiteStoreFitRecordListOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	for i, created := range []string{"2026-01-01T00:00:00Z", "2026-01-03T00:00:00Z", "2026-01-02T00:00:00Z"} {
		record := model.FitRecord{
			VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
			RunID:           []string{"run-a", "run-b", "run-c"}[i],
			CreatedAt:       created,
			Spec:            storedSpec("spec-1"),
		}
		if err := store.SaveFitRecord(ctx, record); err != nil {
			t.Fatalf("save record %d: %v", i, err)
		}
	}

	records, err := store.ListFitRecords(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].RunID != "run-b" || records[2].RunID != "run-a" {
		t.Fatalf("unexpected ordering: %+v", records)
	}
}

func TestSQLiteStoreErrorHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	if err := store.SaveErrorHistory(ctx, "run-1", []float64{1, 0.5, 0.25}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetErrorHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok || len(history) != 3 || history[2] != 0.25 {
		t.Fatalf("unexpected history: ok=%v %+v", ok, history)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "mnemos.db"))
	if err := store.SaveSpec(context.Background(), storedSpec("spec-1")); err == nil {
		t.Fatalf("expected error before init")
	}
}
