package modules

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dop251/goja"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var errEmptySample = errors.New("sample must not be empty")

func statsModule(vm *goja.Runtime) (goja.Value, error) {
	return vm.ToValue(map[string]interface{}{
		"sum": func(xs []float64) float64 { return floats.Sum(xs) },
		"mean": func(xs []float64) (float64, error) {
			if len(xs) == 0 {
				return 0, errEmptySample
			}
			return stat.Mean(xs, nil), nil
		},
		"median": func(xs []float64) (float64, error) {
			return percentile(xs, 50)
		},
		"percentile": percentile,
		"variance": func(xs []float64) (float64, error) {
			if len(xs) < 2 {
				return 0, fmt.Errorf("variance needs at least 2 values, got %d", len(xs))
			}
			return stat.Variance(xs, nil), nil
		},
		"stddev": func(xs []float64) (float64, error) {
			if len(xs) < 2 {
				return 0, fmt.Errorf("stddev needs at least 2 values, got %d", len(xs))
			}
			return stat.StdDev(xs, nil), nil
		},
		"min": func(xs []float64) (float64, error) {
			if len(xs) == 0 {
				return 0, errEmptySample
			}
			return floats.Min(xs), nil
		},
		"max": func(xs []float64) (float64, error) {
			if len(xs) == 0 {
				return 0, errEmptySample
			}
			return floats.Max(xs), nil
		},
		"correlation": func(x, y []float64) (float64, error) {
			if err := pairedSample(x, y); err != nil {
				return 0, err
			}
			return stat.Correlation(x, y, nil), nil
		},
		"covariance": func(x, y []float64) (float64, error) {
			if err := pairedSample(x, y); err != nil {
				return 0, err
			}
			return stat.Covariance(x, y, nil), nil
		},
	}), nil
}

// percentile uses the empirical quantile, so the answer is always a member
// of the sample. p is in [0, 100].
func percentile(xs []float64, p float64) (float64, error) {
	if len(xs) == 0 {
		return 0, errEmptySample
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("percentile must be between 0 and 100, got %v", p)
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(p/100, stat.Empirical, sorted, nil), nil
}

func pairedSample(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("samples differ in length: %d and %d", len(x), len(y))
	}
	if len(x) < 2 {
		return fmt.Errorf("paired samples need at least 2 values, got %d", len(x))
	}
	return nil
}
