package spectra

import (
	"context"
	"math"

	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
)

// The filter family. Every filter returns a new collection holding
// exactly the matching spectra in their original relative order; the
// receiver is unchanged. Range filters are closed intervals [lo, hi].
// Spectra whose field is missing never match a metadata filter:
// missing data is excluded, not treated as zero.
//
// Metadata filters answer from the table's secondary indexes when
// BuildIndexes was called, and scan rows otherwise. Peak-content
// filters read peak data through the processing queue.

// FilterMsLevel keeps spectra whose MS level equals any of the given
// levels.
func (s *Spectra) FilterMsLevel(levels ...int) (*Spectra, error) {
	return s.filterMeta("filterMsLevel", inFilter(metadata.FieldMsLevel, intValues(levels)))
}

// FilterPolarity keeps spectra with the given polarity
// (metadata.PolarityNegative or metadata.PolarityPositive).
func (s *Spectra) FilterPolarity(polarity int) (*Spectra, error) {
	return s.filterMeta("filterPolarity", metadata.NewFilterSet(metadata.Filter{
		Key:      metadata.FieldPolarity,
		Operator: metadata.OpEqual,
		Value:    metadata.Int(int64(polarity)),
	}))
}

// FilterRt keeps spectra whose retention time t satisfies lo <= t <= hi.
func (s *Spectra) FilterRt(lo, hi float64) (*Spectra, error) {
	return s.filterMeta("filterRt", rangeFilter(metadata.FieldRtime, lo, hi))
}

// FilterPrecursorMzRange keeps spectra whose precursor m/z lies in
// [lo, hi].
func (s *Spectra) FilterPrecursorMzRange(lo, hi float64) (*Spectra, error) {
	return s.filterMeta("filterPrecursorMzRange", rangeFilter(metadata.FieldPrecursorMz, lo, hi))
}

// FilterPrecursorCharge keeps spectra whose precursor charge equals any
// of the given charges.
func (s *Spectra) FilterPrecursorCharge(charges ...int) (*Spectra, error) {
	return s.filterMeta("filterPrecursorCharge", inFilter(metadata.FieldPrecursorCharge, intValues(charges)))
}

// FilterIsolationWindow keeps spectra whose isolation window contains
// mz: lower <= mz <= upper. Spectra without window bounds never match.
func (s *Spectra) FilterIsolationWindow(mz float64) (*Spectra, error) {
	return s.filterMeta("filterIsolationWindow", metadata.NewFilterSet(
		metadata.Filter{
			Key:      metadata.FieldIsolationWindowLowerMz,
			Operator: metadata.OpLessEqual,
			Value:    metadata.Float(mz),
		},
		metadata.Filter{
			Key:      metadata.FieldIsolationWindowUpperMz,
			Operator: metadata.OpGreaterEqual,
			Value:    metadata.Float(mz),
		},
	))
}

// FilterAcquisitionNum keeps spectra whose acquisition number equals
// any of the given numbers.
func (s *Spectra) FilterAcquisitionNum(nums ...int) (*Spectra, error) {
	return s.filterMeta("filterAcquisitionNum", inFilter(metadata.FieldAcquisitionNum, intValues(nums)))
}

// FilterDataOrigin keeps spectra originating from any of the given
// sources, in the collection's order.
func (s *Spectra) FilterDataOrigin(origins ...string) (*Spectra, error) {
	return s.filterMeta("filterDataOrigin", inFilter(metadata.FieldDataOrigin, stringValues(origins)))
}

// FilterDataStorage keeps spectra currently stored in any of the given
// locations.
func (s *Spectra) FilterDataStorage(storages ...string) (*Spectra, error) {
	return s.filterMeta("filterDataStorage", inFilter(metadata.FieldDataStorage, stringValues(storages)))
}

// FilterEmptySpectra drops spectra with no peaks left after the
// processing queue.
func (s *Spectra) FilterEmptySpectra(ctx context.Context) (*Spectra, error) {
	return s.filterPeaks(ctx, "filterEmptySpectra", func(m peaks.Matrix) bool {
		return !m.IsEmpty()
	})
}

// FilterMzRange keeps spectra with at least one post-queue peak whose
// m/z lies in [lo, hi].
func (s *Spectra) FilterMzRange(ctx context.Context, lo, hi float64) (*Spectra, error) {
	return s.filterPeaks(ctx, "filterMzRange", func(m peaks.Matrix) bool {
		for _, v := range m.Mz {
			if v >= lo && v <= hi {
				return true
			}
		}
		return false
	})
}

// FilterIntensity keeps spectra with at least one post-queue peak whose
// intensity lies in [lo, hi]. Pass math.Inf(1) as hi for an open upper
// end.
func (s *Spectra) FilterIntensity(ctx context.Context, lo, hi float64) (*Spectra, error) {
	return s.filterPeaks(ctx, "filterIntensity", func(m peaks.Matrix) bool {
		for _, v := range m.Intensity {
			if v >= lo && v <= hi {
				return true
			}
		}
		return false
	})
}

// FilterMzValues keeps spectra containing at least one post-queue peak
// within tolerance of any of the given m/z values.
//
// When a part's backend can answer approximate m/z membership (the
// peaksfile backend with hint filters) and its queue is empty, spectra
// the backend rules out are dropped without reading their peak data.
func (s *Spectra) FilterMzValues(ctx context.Context, values []float64, tolerance float64) (*Spectra, error) {
	match := func(m peaks.Matrix) bool {
		for _, mz := range m.Mz {
			for _, v := range values {
				if math.Abs(mz-v) <= tolerance {
					return true
				}
			}
		}
		return false
	}

	// Hint pass: authoritative "no" answers skip the peak read.
	candidates := make([]int, 0, s.Len())
	for pos, ref := range s.rows {
		p := s.parts[ref.part]
		if h, ok := p.backend.(backend.MzHinter); ok && p.queue.IsEmpty() {
			may := false
			for _, v := range values {
				if h.MayContainMz(ref.row, v, tolerance) {
					may = true
					break
				}
			}
			if !may {
				continue
			}
		}
		candidates = append(candidates, pos)
	}

	cand, err := s.Subset(candidates...)
	if err != nil {
		return nil, err
	}
	pk, err := cand.Peaks(ctx)
	if err != nil {
		return nil, err
	}

	keep := make([]int, 0, len(candidates))
	for i, m := range pk {
		if match(m) {
			keep = append(keep, candidates[i])
		}
	}

	out, err := s.Subset(keep...)
	if err != nil {
		return nil, err
	}
	s.recordFilter(ctx, "filterMzValues", out.Len())
	return out, nil
}

// filterMeta evaluates a metadata filter set, via the table's indexes
// when they can answer it and a row scan otherwise.
func (s *Spectra) filterMeta(name string, fs *metadata.FilterSet) (*Spectra, error) {
	var (
		keep     []int
		resolved bool
	)

	if x := s.table.Index(); x != nil {
		if bm, ok := x.Resolve(fs); ok {
			resolved = true
			keep = make([]int, 0, bm.GetCardinality())
			it := bm.Iterator()
			for it.HasNext() {
				keep = append(keep, int(it.Next()))
			}
		}
	}
	if !resolved {
		for i := 0; i < s.Len(); i++ {
			if fs.MatchesRow(s.table, i) {
				keep = append(keep, i)
			}
		}
	}

	out, err := s.Subset(keep...)
	if err != nil {
		return nil, err
	}
	s.recordFilter(context.Background(), name, out.Len())
	return out, nil
}

// filterPeaks keeps the spectra whose post-queue peak matrix satisfies
// the predicate.
func (s *Spectra) filterPeaks(ctx context.Context, name string, pred func(m peaks.Matrix) bool) (*Spectra, error) {
	pk, err := s.readPeaks(ctx)
	if err != nil {
		return nil, err
	}

	keep := make([]int, 0, len(pk))
	for i, m := range pk {
		if pred(m) {
			keep = append(keep, i)
		}
	}

	out, err := s.Subset(keep...)
	if err != nil {
		return nil, err
	}
	s.recordFilter(ctx, name, out.Len())
	return out, nil
}

func (s *Spectra) recordFilter(ctx context.Context, name string, out int) {
	s.opts.metricsCollector.RecordFilter(name, s.Len(), out)
	s.opts.logger.LogFilter(ctx, name, s.Len(), out)
}

func inFilter(field string, values []metadata.Value) *metadata.FilterSet {
	return metadata.NewFilterSet(metadata.Filter{
		Key:      field,
		Operator: metadata.OpIn,
		Value:    metadata.Array(values),
	})
}

func rangeFilter(field string, lo, hi float64) *metadata.FilterSet {
	return metadata.NewFilterSet(
		metadata.Filter{Key: field, Operator: metadata.OpGreaterEqual, Value: metadata.Float(lo)},
		metadata.Filter{Key: field, Operator: metadata.OpLessEqual, Value: metadata.Float(hi)},
	)
}

func intValues(vals []int) []metadata.Value {
	out := make([]metadata.Value, len(vals))
	for i, v := range vals {
		out[i] = metadata.Int(int64(v))
	}
	return out
}

func stringValues(vals []string) []metadata.Value {
	out := make([]metadata.Value, len(vals))
	for i, v := range vals {
		out[i] = metadata.String(v)
	}
	return out
}
