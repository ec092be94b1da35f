// Package peaks holds the peak data of mass spectra in columnar form.
//
// A Matrix is the peak list of a single spectrum: two parallel columns
// with the m/z and intensity values of its peaks. The columnar layout is
// shared by the storage backends and the processing pipeline, so peak
// data moves through the library without being reshaped.
package peaks

import (
	"errors"
	"math"
	"slices"

	"github.com/cwbudde/algo-vecmath"
)

// ErrLengthMismatch is returned when the m/z and intensity columns of a
// peak matrix differ in length.
var ErrLengthMismatch = errors.New("peaks: m/z and intensity length mismatch")

// Matrix is the peak data of a single spectrum. Both columns always have
// the same length. Data read from raw sources is ordered by ascending
// m/z; processing steps may drop rows but keep the column pairing.
type Matrix struct {
	Mz        []float64
	Intensity []float64
}

// New builds a Matrix from the given columns. It fails if the columns
// differ in length.
func New(mz, intensity []float64) (Matrix, error) {
	if len(mz) != len(intensity) {
		return Matrix{}, ErrLengthMismatch
	}
	return Matrix{Mz: mz, Intensity: intensity}, nil
}

// Len returns the number of peaks.
func (m Matrix) Len() int { return len(m.Mz) }

// IsEmpty reports whether the spectrum has no peaks.
func (m Matrix) IsEmpty() bool { return len(m.Mz) == 0 }

// Validate checks the column pairing invariant.
func (m Matrix) Validate() error {
	if len(m.Mz) != len(m.Intensity) {
		return ErrLengthMismatch
	}
	return nil
}

// Clone returns a deep copy of the matrix.
func (m Matrix) Clone() Matrix {
	return Matrix{
		Mz:        slices.Clone(m.Mz),
		Intensity: slices.Clone(m.Intensity),
	}
}

// IsSortedByMz reports whether the peaks are ordered by ascending m/z.
func (m Matrix) IsSortedByMz() bool {
	return slices.IsSorted(m.Mz)
}

// TIC returns the total ion current, the sum of all intensities.
func (m Matrix) TIC() float64 {
	if m.IsEmpty() {
		return 0
	}
	return vecmath.Sum(m.Intensity)
}

// BasePeakIntensity returns the intensity of the most intense peak, or
// zero for an empty spectrum.
func (m Matrix) BasePeakIntensity() float64 {
	if m.IsEmpty() {
		return 0
	}
	return vecmath.MaxAbs(m.Intensity)
}

// BasePeakMz returns the m/z of the most intense peak, or NaN for an
// empty spectrum.
func (m Matrix) BasePeakMz() float64 {
	if m.IsEmpty() {
		return math.NaN()
	}
	best := 0
	for i, v := range m.Intensity {
		if v > m.Intensity[best] {
			best = i
		}
	}
	return m.Mz[best]
}

// MzRange returns the smallest and largest m/z value. Both are NaN for
// an empty spectrum.
func (m Matrix) MzRange() (lo, hi float64) {
	if m.IsEmpty() {
		return math.NaN(), math.NaN()
	}
	lo, hi = m.Mz[0], m.Mz[0]
	for _, v := range m.Mz[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
