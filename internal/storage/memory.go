package storage

import (
	"context"
	"sort"
	"sync"

	"mnemos/internal/model"
)

type MemoryStore struct {
	mu      sync.RWMutex
	specs   map[string]model.Spec
	records map[string]model.FitRecord
	history map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.specs = make(map[string]model.Spec)
	s.records = make(map[string]model.FitRecord)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveSpec(_ context.Context, spec model.Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.specs[spec.ID] = spec.Clone()
	return nil
}

func (s *MemoryStore) GetSpec(_ context.Context, id string) (model.Spec, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.specs[id]
	if !ok {
		return model.Spec{}, false, nil
	}
	return spec.Clone(), true, nil
}

func (s *MemoryStore) SaveFitRecord(_ context.Context, record model.FitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Spec = record.Spec.Clone()
	s.records[record.RunID] = record
	return nil
}

func (s *MemoryStore) GetFitRecord(_ context.Context, runID string) (model.FitRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[runID]
	if !ok {
		return model.FitRecord{}, false, nil
	}
	record.Spec = record.Spec.Clone()
	return record, true, nil
}

func (s *MemoryStore) ListFitRecords(_ context.Context, limit int) ([]model.FitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.FitRecord, 0, len(s.records))
	for _, record := range s.records {
		record.Spec = record.Spec.Clone()
		records = append(records, record)
	}
	// Most recent first, matching the sqlite backend's ordering.
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt > records[j].CreatedAt
		}
		return records[i].RunID > records[j].RunID
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *MemoryStore) SaveErrorHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetErrorHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}
