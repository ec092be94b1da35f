package spectra

import (
	"context"

	"github.com/cwbudde/algo-vecmath"

	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
)

// Core variable accessors. These read the collection's metadata table
// and never trigger the processing queue. Spectra lacking a field read
// as the documented missing sentinel.

// MsLevels returns the MS level per spectrum (-1 when missing).
func (s *Spectra) MsLevels() []int {
	return s.table.Ints(metadata.FieldMsLevel, -1)
}

// RetentionTimes returns the retention time per spectrum (NaN when
// missing).
func (s *Spectra) RetentionTimes() []float64 {
	return s.table.Floats(metadata.FieldRtime)
}

// AcquisitionNums returns the acquisition number per spectrum (-1 when
// missing).
func (s *Spectra) AcquisitionNums() []int {
	return s.table.Ints(metadata.FieldAcquisitionNum, -1)
}

// ScanIndices returns the scan index per spectrum (-1 when missing).
func (s *Spectra) ScanIndices() []int {
	return s.table.Ints(metadata.FieldScanIndex, -1)
}

// DataStorage returns the physical storage location per spectrum (empty
// when missing). It is the key peak reads partition on.
func (s *Spectra) DataStorage() []string {
	return s.table.Strings(metadata.FieldDataStorage)
}

// DataOrigins returns the original source per spectrum (empty when
// missing).
func (s *Spectra) DataOrigins() []string {
	return s.table.Strings(metadata.FieldDataOrigin)
}

// Polarities returns the polarity per spectrum: metadata.PolarityNegative,
// metadata.PolarityPositive or metadata.PolarityMissing.
func (s *Spectra) Polarities() []int {
	return s.table.Ints(metadata.FieldPolarity, metadata.PolarityMissing)
}

// PrecScanNums returns the precursor scan number per spectrum (-1 when
// missing).
func (s *Spectra) PrecScanNums() []int {
	return s.table.Ints(metadata.FieldPrecScanNum, -1)
}

// PrecursorMzs returns the precursor m/z per spectrum (NaN when
// missing).
func (s *Spectra) PrecursorMzs() []float64 {
	return s.table.Floats(metadata.FieldPrecursorMz)
}

// PrecursorIntensities returns the precursor intensity per spectrum
// (NaN when missing).
func (s *Spectra) PrecursorIntensities() []float64 {
	return s.table.Floats(metadata.FieldPrecursorIntensity)
}

// PrecursorCharges returns the precursor charge per spectrum (0 when
// missing).
func (s *Spectra) PrecursorCharges() []int {
	return s.table.Ints(metadata.FieldPrecursorCharge, 0)
}

// CollisionEnergies returns the collision energy per spectrum (NaN when
// missing).
func (s *Spectra) CollisionEnergies() []float64 {
	return s.table.Floats(metadata.FieldCollisionEnergy)
}

// IsolationWindowLowerMzs returns the isolation window lower bound per
// spectrum (NaN when missing).
func (s *Spectra) IsolationWindowLowerMzs() []float64 {
	return s.table.Floats(metadata.FieldIsolationWindowLowerMz)
}

// IsolationWindowTargetMzs returns the isolation window target m/z per
// spectrum (NaN when missing).
func (s *Spectra) IsolationWindowTargetMzs() []float64 {
	return s.table.Floats(metadata.FieldIsolationWindowTargetMz)
}

// IsolationWindowUpperMzs returns the isolation window upper bound per
// spectrum (NaN when missing).
func (s *Spectra) IsolationWindowUpperMzs() []float64 {
	return s.table.Floats(metadata.FieldIsolationWindowUpperMz)
}

// CentroidedFlags returns the centroided flag per spectrum plus a
// presence mask: present[i] is false where the flag is unknown.
func (s *Spectra) CentroidedFlags() (vals, present []bool) {
	return s.table.Bools(metadata.FieldCentroided)
}

// SmoothedFlags returns the smoothed flag per spectrum plus a presence
// mask.
func (s *Spectra) SmoothedFlags() (vals, present []bool) {
	return s.table.Bools(metadata.FieldSmoothed)
}

// Peak accessors. These route through the storage backends and apply
// the processing queue, partitioning the read by storage location.

// Peaks returns one peak matrix per spectrum, in collection order, with
// the processing queue applied.
func (s *Spectra) Peaks(ctx context.Context) ([]peaks.Matrix, error) {
	return s.readPeaks(ctx)
}

// MzValues returns the m/z column per spectrum, with the processing
// queue applied.
func (s *Spectra) MzValues(ctx context.Context) ([][]float64, error) {
	pk, err := s.readPeaks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(pk))
	for i, m := range pk {
		out[i] = m.Mz
	}
	return out, nil
}

// IntensityValues returns the intensity column per spectrum, with the
// processing queue applied.
func (s *Spectra) IntensityValues(ctx context.Context) ([][]float64, error) {
	pk, err := s.readPeaks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(pk))
	for i, m := range pk {
		out[i] = m.Intensity
	}
	return out, nil
}

// PeakCounts returns the number of peaks per spectrum after the
// processing queue.
func (s *Spectra) PeakCounts(ctx context.Context) ([]int, error) {
	pk, err := s.readPeaks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(pk))
	for i, m := range pk {
		out[i] = m.Len()
	}
	return out, nil
}

// TIC returns the total ion current per spectrum after the processing
// queue.
func (s *Spectra) TIC(ctx context.Context) ([]float64, error) {
	pk, err := s.readPeaks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pk))
	for i, m := range pk {
		if !m.IsEmpty() {
			out[i] = vecmath.Sum(m.Intensity)
		}
	}
	return out, nil
}

// IsEmpty reports per spectrum whether it has no peaks after the
// processing queue.
func (s *Spectra) IsEmpty(ctx context.Context) ([]bool, error) {
	counts, err := s.PeakCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(counts))
	for i, n := range counts {
		out[i] = n == 0
	}
	return out, nil
}
