package signal

import (
	"fmt"
	"math"
)

// Signal is one named channel group of time-aligned samples.
// Data is laid out channels x time; every channel has the same length.
type Signal struct {
	Name  string      `json:"name"`
	Fs    float64     `json:"fs"`
	Chans []string    `json:"chans,omitempty"`
	Data  [][]float64 `json:"data"`
}

// New builds a signal and validates that all channels share one length.
func New(name string, fs float64, data [][]float64, chans []string) (*Signal, error) {
	if name == "" {
		return nil, fmt.Errorf("signal name is required")
	}
	if fs <= 0 {
		return nil, fmt.Errorf("signal %s: sampling rate must be > 0", name)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("signal %s: at least one channel is required", name)
	}
	width := len(data[0])
	for i, row := range data {
		if len(row) != width {
			return nil, fmt.Errorf("signal %s: channel %d has %d samples, expected %d", name, i, len(row), width)
		}
	}
	if chans != nil && len(chans) != len(data) {
		return nil, fmt.Errorf("signal %s: %d channel labels for %d channels", name, len(chans), len(data))
	}
	return &Signal{Name: name, Fs: fs, Chans: append([]string(nil), chans...), Data: data}, nil
}

// ChanCount is the number of channels.
func (s *Signal) ChanCount() int {
	return len(s.Data)
}

// SampleCount is the number of samples per channel.
func (s *Signal) SampleCount() int {
	if len(s.Data) == 0 {
		return 0
	}
	return len(s.Data[0])
}

// Clone returns a deep copy of the signal.
func (s *Signal) Clone() *Signal {
	out := &Signal{Name: s.Name, Fs: s.Fs}
	out.Chans = append([]string(nil), s.Chans...)
	out.Data = make([][]float64, len(s.Data))
	for i, row := range s.Data {
		out.Data[i] = append([]float64(nil), row...)
	}
	return out
}

// Recording is a named collection of time-aligned signals.
type Recording struct {
	Name    string             `json:"name"`
	Signals map[string]*Signal `json:"signals"`
}

// NewRecording builds an empty recording.
func NewRecording(name string) *Recording {
	return &Recording{Name: name, Signals: make(map[string]*Signal)}
}

// Get looks up a signal by name.
func (r *Recording) Get(name string) (*Signal, bool) {
	s, ok := r.Signals[name]
	return s, ok
}

// Set stores a signal under its name, overwriting any previous entry.
func (r *Recording) Set(s *Signal) {
	if r.Signals == nil {
		r.Signals = make(map[string]*Signal)
	}
	r.Signals[s.Name] = s
}

// Clone returns a deep copy of the recording.
func (r *Recording) Clone() *Recording {
	out := NewRecording(r.Name)
	for name, s := range r.Signals {
		out.Signals[name] = s.Clone()
	}
	return out
}

// SampleCount returns the shared sample count across signals, or an error
// when signals disagree on the time axis.
func (r *Recording) SampleCount() (int, error) {
	count := -1
	for name, s := range r.Signals {
		n := s.SampleCount()
		if count == -1 {
			count = n
			continue
		}
		if n != count {
			return 0, fmt.Errorf("signal %s has %d samples, expected %d", name, n, count)
		}
	}
	if count == -1 {
		return 0, fmt.Errorf("recording %s has no signals", r.Name)
	}
	return count, nil
}

// JackknifeByTime splits the time axis into nsplits contiguous pieces and
// returns a new recording with piece idx withheld. With invert the selected
// piece is kept and the rest withheld. Withheld samples are NaN-masked, or
// removed entirely when excise is set. The receiver is never mutated.
func (r *Recording) JackknifeByTime(nsplits, idx int, invert, excise bool) (*Recording, error) {
	if nsplits <= 0 {
		return nil, fmt.Errorf("nsplits must be > 0, got %d", nsplits)
	}
	if idx < 0 || idx >= nsplits {
		return nil, fmt.Errorf("split index %d out of range [0,%d)", idx, nsplits)
	}
	total, err := r.SampleCount()
	if err != nil {
		return nil, err
	}

	lo, hi := splitBounds(total, nsplits, idx)
	keep := func(t int) bool {
		inPiece := t >= lo && t < hi
		if invert {
			return inPiece
		}
		return !inPiece
	}

	out := NewRecording(r.Name)
	for name, s := range r.Signals {
		masked := s.Clone()
		if excise {
			for c := range masked.Data {
				kept := make([]float64, 0, total)
				for t, v := range masked.Data[c] {
					if keep(t) {
						kept = append(kept, v)
					}
				}
				masked.Data[c] = kept
			}
		} else {
			for c := range masked.Data {
				for t := range masked.Data[c] {
					if !keep(t) {
						masked.Data[c][t] = math.NaN()
					}
				}
			}
		}
		out.Signals[name] = masked
	}
	return out, nil
}

// SplitByTime returns all nsplits jackknife folds, each with one piece
// withheld. Used by n-fold fitting.
func (r *Recording) SplitByTime(nsplits int) ([]*Recording, error) {
	folds := make([]*Recording, 0, nsplits)
	for i := 0; i < nsplits; i++ {
		fold, err := r.JackknifeByTime(nsplits, i, false, false)
		if err != nil {
			return nil, err
		}
		folds = append(folds, fold)
	}
	return folds, nil
}

func splitBounds(total, nsplits, idx int) (int, int) {
	base := total / nsplits
	rem := total % nsplits
	lo := idx*base + min(idx, rem)
	size := base
	if idx < rem {
		size++
	}
	return lo, lo + size
}
