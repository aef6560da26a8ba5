package modules

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"mnemos/internal/model"
	"mnemos/internal/signal"
)

var (
	ErrTransformExists   = errors.New("transform already registered")
	ErrTransformNotFound = errors.New("transform not found")
)

// TransformFunc applies one module to a recording. It reads the signal
// named input (plus any state signal the module references) and returns
// the transformed data; the evaluator decides the output signal's name.
// Transforms never mutate the recording.
type TransformFunc func(rec *signal.Recording, m model.Module, input string, fitMode bool) (*signal.Signal, error)

var transformRegistry = struct {
	mu sync.RWMutex
	m  map[string]TransformFunc
}{
	m: make(map[string]TransformFunc),
}

func init() {
	MustRegister(FnWeightChannels, weightChannels)
	MustRegister(FnFIR, firFilter)
	MustRegister(FnLevelShift, levelShift)
	MustRegister(FnDCGain, dcGain)
	MustRegister(FnStateGain, stateGain)
	MustRegister(FnDoubleExp, doubleExponential)
	MustRegister(FnNoise, outputNoise)
}

// Register adds a transform under a canonical fn name.
func Register(name string, fn TransformFunc) error {
	if name == "" {
		return errors.New("transform name is required")
	}
	if fn == nil {
		return errors.New("transform func is required")
	}

	transformRegistry.mu.Lock()
	defer transformRegistry.mu.Unlock()

	if _, ok := transformRegistry.m[name]; ok {
		return fmt.Errorf("%w: %s", ErrTransformExists, name)
	}
	transformRegistry.m[name] = fn
	return nil
}

// MustRegister is Register for built-ins; it panics on conflict.
func MustRegister(name string, fn TransformFunc) {
	if err := Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup resolves a module fn name to its transform.
func Lookup(name string) (TransformFunc, error) {
	transformRegistry.mu.RLock()
	defer transformRegistry.mu.RUnlock()

	fn, ok := transformRegistry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransformNotFound, name)
	}
	return fn, nil
}

// Names lists registered transforms in sorted order.
func Names() []string {
	transformRegistry.mu.RLock()
	defer transformRegistry.mu.RUnlock()

	names := make([]string, 0, len(transformRegistry.m))
	for name := range transformRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
