package processing

import (
	"math"
	"slices"

	"github.com/cwbudde/algo-vecmath"

	"github.com/manogenome/Spectra/peaks"
)

// ReplaceIntensitiesBelow returns a step that replaces every intensity
// strictly below threshold with value. Peak count and m/z values are
// unchanged.
func ReplaceIntensitiesBelow(threshold, value float64) Step {
	return NewStep("replaceIntensitiesBelow", func(m peaks.Matrix) (peaks.Matrix, error) {
		out := make([]float64, len(m.Intensity))
		for i, v := range m.Intensity {
			if v < threshold {
				out[i] = value
			} else {
				out[i] = v
			}
		}
		return peaks.Matrix{Mz: m.Mz, Intensity: out}, nil
	})
}

// FilterIntensityRange returns a step that keeps only peaks whose
// intensity lies in [lo, hi], both ends inclusive. Pass math.Inf(1) as
// hi for an open upper end.
func FilterIntensityRange(lo, hi float64) Step {
	return NewStep("filterIntensityRange", func(m peaks.Matrix) (peaks.Matrix, error) {
		return selectPeaks(m, func(i int) bool {
			v := m.Intensity[i]
			return v >= lo && v <= hi
		}), nil
	})
}

// FilterMzRange returns a step that keeps only peaks whose m/z lies in
// [lo, hi], both ends inclusive.
func FilterMzRange(lo, hi float64) Step {
	return NewStep("filterMzRange", func(m peaks.Matrix) (peaks.Matrix, error) {
		return selectPeaks(m, func(i int) bool {
			v := m.Mz[i]
			return v >= lo && v <= hi
		}), nil
	})
}

// FilterMzValues returns a step that keeps only peaks whose m/z lies
// within tolerance of any of the given values.
func FilterMzValues(values []float64, tolerance float64) Step {
	match := slices.Clone(values)
	return NewStep("filterMzValues", func(m peaks.Matrix) (peaks.Matrix, error) {
		return selectPeaks(m, func(i int) bool {
			for _, v := range match {
				if math.Abs(m.Mz[i]-v) <= tolerance {
					return true
				}
			}
			return false
		}), nil
	})
}

// ScaleIntensities returns a step that multiplies every intensity by
// factor.
func ScaleIntensities(factor float64) Step {
	return NewStep("scaleIntensities", func(m peaks.Matrix) (peaks.Matrix, error) {
		out := make([]float64, len(m.Intensity))
		vecmath.ScaleBlock(out, m.Intensity, factor)
		return peaks.Matrix{Mz: m.Mz, Intensity: out}, nil
	})
}

// NormalizeToBasePeak returns a step that rescales intensities to the
// relative-abundance scale: the most intense peak reads 100. Spectra
// with no signal pass through unchanged.
func NormalizeToBasePeak() Step {
	return NewStep("normalizeToBasePeak", func(m peaks.Matrix) (peaks.Matrix, error) {
		if m.IsEmpty() {
			return m, nil
		}
		max := vecmath.MaxAbs(m.Intensity)
		if max == 0 {
			return m, nil
		}
		out := make([]float64, len(m.Intensity))
		vecmath.ScaleBlock(out, m.Intensity, 100/max)
		return peaks.Matrix{Mz: m.Mz, Intensity: out}, nil
	})
}

// KeepTopN returns a step that keeps the n most intense peaks,
// preserving their m/z order. Intensity ties resolve to the lower row
// so the selection is deterministic.
func KeepTopN(n int) Step {
	return NewStep("keepTopN", func(m peaks.Matrix) (peaks.Matrix, error) {
		if n <= 0 {
			return peaks.Matrix{Mz: []float64{}, Intensity: []float64{}}, nil
		}
		if m.Len() <= n {
			return m, nil
		}

		rows := make([]int, m.Len())
		for i := range rows {
			rows[i] = i
		}
		slices.SortFunc(rows, func(a, b int) int {
			switch {
			case m.Intensity[a] > m.Intensity[b]:
				return -1
			case m.Intensity[a] < m.Intensity[b]:
				return 1
			default:
				return a - b
			}
		})
		keep := rows[:n]
		slices.Sort(keep)

		out := peaks.Matrix{
			Mz:        make([]float64, n),
			Intensity: make([]float64, n),
		}
		for i, r := range keep {
			out.Mz[i] = m.Mz[r]
			out.Intensity[i] = m.Intensity[r]
		}
		return out, nil
	})
}

func selectPeaks(m peaks.Matrix, keep func(i int) bool) peaks.Matrix {
	out := peaks.Matrix{Mz: []float64{}, Intensity: []float64{}}
	for i := range m.Mz {
		if keep(i) {
			out.Mz = append(out.Mz, m.Mz[i])
			out.Intensity = append(out.Intensity, m.Intensity[i])
		}
	}
	return out
}
