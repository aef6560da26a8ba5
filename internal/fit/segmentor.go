package fit

import (
	"fmt"
	"math/rand"

	"mnemos/internal/signal"
)

// Segmentor selects the data subset one cost evaluation trains against.
// Implementations never mutate the input recording.
type Segmentor func(rec *signal.Recording) (*signal.Recording, error)

// UseAllData is the identity segmentor for full-batch fitting.
func UseAllData() Segmentor {
	return func(rec *signal.Recording) (*signal.Recording, error) {
		return rec, nil
	}
}

// RandomJackknifeMaker builds a segmentor that trains on one randomly
// chosen of nsplits time slices. The same slice is reused for
// rebuildEvery consecutive calls before a new one is drawn, amortizing
// subset construction across minimizer steps. invert keeps the chosen
// slice rather than withholding it; excise drops masked samples instead
// of NaN-filling them.
func RandomJackknifeMaker(nsplits, rebuildEvery int, invert, excise bool, rnd *rand.Rand) (Segmentor, error) {
	if nsplits <= 0 {
		return nil, fmt.Errorf("nsplits must be > 0, got %d", nsplits)
	}
	if rebuildEvery <= 0 {
		return nil, fmt.Errorf("rebuildEvery must be > 0, got %d", rebuildEvery)
	}
	if rnd == nil {
		return nil, fmt.Errorf("random source is required")
	}

	calls := 0
	var cached *signal.Recording
	return func(rec *signal.Recording) (*signal.Recording, error) {
		if calls%rebuildEvery == 0 || cached == nil {
			idx := rnd.Intn(nsplits)
			subset, err := rec.JackknifeByTime(nsplits, idx, invert, excise)
			if err != nil {
				return nil, err
			}
			cached = subset
		}
		calls++
		return cached, nil
	}, nil
}
