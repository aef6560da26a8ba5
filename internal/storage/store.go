package storage

import (
	"context"

	"mnemos/internal/model"
)

// Store defines persistence operations for specs and fit runs.
type Store interface {
	Init(ctx context.Context) error
	SaveSpec(ctx context.Context, spec model.Spec) error
	GetSpec(ctx context.Context, id string) (model.Spec, bool, error)
	SaveFitRecord(ctx context.Context, record model.FitRecord) error
	GetFitRecord(ctx context.Context, runID string) (model.FitRecord, bool, error)
	ListFitRecords(ctx context.Context, limit int) ([]model.FitRecord, error)
	SaveErrorHistory(ctx context.Context, runID string, history []float64) error
	GetErrorHistory(ctx context.Context, runID string) ([]float64, bool, error)
}
