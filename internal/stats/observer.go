// Package stats collects fitting progress and writes run artifacts.
package stats

import (
	"log/slog"
	"sync"
)

// Observer receives periodic progress observations from a running cost
// function: the evaluation count so far and the current error. Observers
// must not influence the fit.
type Observer interface {
	Observe(count int, err float64)
}

// LogObserver reports progress through a structured logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) Observe(count int, err float64) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("fit progress", "evals", count, "error", err)
}

// Collector records every observation for later artifact export.
type Collector struct {
	mu     sync.Mutex
	points []ProgressPoint
}

// ProgressPoint is one recorded (count, error) observation.
type ProgressPoint struct {
	Count int     `json:"count"`
	Error float64 `json:"error"`
}

func (c *Collector) Observe(count int, err float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = append(c.points, ProgressPoint{Count: count, Error: err})
}

// Points returns a copy of the recorded observations in order.
func (c *Collector) Points() []ProgressPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ProgressPoint(nil), c.points...)
}

// Tee fans observations out to several observers.
type Tee []Observer

func (t Tee) Observe(count int, err float64) {
	for _, o := range t {
		if o != nil {
			o.Observe(count, err)
		}
	}
}
