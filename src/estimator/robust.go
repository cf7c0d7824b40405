package estimator

import (
	"gonum.org/v1/gonum/stat"

	"github.com/glmoritz/labscimadr/src/signal"
	"github.com/glmoritz/labscimadr/src/state"
)

// quartile drops values outside the Tukey fences and returns the median of
// what is left.
type quartile struct{}

func (quartile) Kind() Kind { return Quartile }

func (quartile) Estimate(w signal.Window, _ *state.Device) (float64, error) {
	if len(w) == 0 {
		return 0, ErrEmptyWindow
	}
	sorted := w.Sorted()
	kept := RemoveOutliers(sorted, FirstQuartile(sorted), ThirdQuartile(sorted))
	if len(kept) == 0 {
		return signal.Median(sorted), nil
	}
	return signal.Median(kept), nil
}

// FirstQuartile of an ascending slice, taken at index n/4. For even lengths
// the value is averaged with its predecessor.
func FirstQuartile(sorted []float64) float64 {
	return rankAt(sorted, len(sorted)/4)
}

// ThirdQuartile of an ascending slice, taken at index 3n/4.
func ThirdQuartile(sorted []float64) float64 {
	return rankAt(sorted, 3*len(sorted)/4)
}

func rankAt(sorted []float64, index int) float64 {
	if len(sorted)%2 != 0 || index == 0 {
		return sorted[index]
	}
	return (sorted[index-1] + sorted[index]) / 2
}

// RemoveOutliers keeps the values inside [q1-1.5*IQR, q3+1.5*IQR]. Order is
// preserved.
func RemoveOutliers(values []float64, q1, q3 float64) []float64 {
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lower && v <= upper {
			kept = append(kept, v)
		}
	}
	return kept
}

// gaussian averages the values lying within one standard deviation of the
// window mean.
type gaussian struct{}

func (gaussian) Kind() Kind { return Gaussian }

func (gaussian) Estimate(w signal.Window, _ *state.Device) (float64, error) {
	if len(w) == 0 {
		return 0, ErrEmptyWindow
	}
	// Sum in ascending order so the result does not depend on arrival order.
	sorted := w.Sorted()
	mean, sd := stat.PopMeanStdDev(sorted, nil)
	low, high := mean-sd, mean+sd

	var sum float64
	var n int
	for _, v := range sorted {
		if v >= low && v <= high {
			sum += v
			n++
		}
	}
	if n == 0 {
		return mean, nil
	}
	return sum / float64(n), nil
}
