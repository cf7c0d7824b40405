package signal

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmptySample is returned when a sample was heard by no station.
	ErrEmptySample = errors.New("sample has no receiving stations")

	// ErrInsufficientHistory is returned when a device has fewer samples than
	// the configured history range.
	ErrInsufficientHistory = errors.New("not enough samples in history")
)

// Sample is a single uplink as heard by every station that received it. It
// maps the station identity to the received power in dBm.
type Sample map[string]float64

// CombiningMethod selects how the receptions of one uplink are merged.
type CombiningMethod int

const (
	Average CombiningMethod = iota
	Maximum
	Minimum
)

func (m CombiningMethod) String() string {
	switch m {
	case Average:
		return "avg"
	case Maximum:
		return "max"
	case Minimum:
		return "min"
	default:
		return fmt.Sprintf("CombiningMethod(%d)", int(m))
	}
}

// ParseCombiningMethod accepts avg, max or min (and their long forms).
func ParseCombiningMethod(s string) (CombiningMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "avg", "average", "mean":
		return Average, nil
	case "max", "maximum":
		return Maximum, nil
	case "min", "minimum":
		return Minimum, nil
	}
	return Maximum, fmt.Errorf("unknown combining method %q", s)
}

// Combine reduces the receptions of one uplink to a single power value.
func Combine(s Sample, m CombiningMethod) (float64, error) {
	if len(s) == 0 {
		return 0, ErrEmptySample
	}

	// Map iteration order is random; sort so averaging is reproducible.
	values := make([]float64, 0, len(s))
	for _, p := range s {
		values = append(values, p)
	}
	sort.Float64s(values)

	switch m {
	case Average:
		return floats.Sum(values) / float64(len(values)), nil
	case Maximum:
		return values[len(values)-1], nil
	case Minimum:
		return values[0], nil
	default:
		return 0, fmt.Errorf("combine: %v", m)
	}
}
