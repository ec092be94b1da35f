package peaksfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/manogenome/Spectra/peaks"
)

// Hint filters answer "could this spectrum contain a peak near m/z x"
// without touching peak blocks. Peaks are hashed into fixed-width m/z
// bins; a query tests every bin overlapping the tolerance window. Bins
// are closed under flooring, so a negative answer is authoritative.
const (
	// hintBinWidth is the m/z quantization of the filters, in Da. It
	// bounds the sharpest tolerance the filters can discriminate.
	hintBinWidth = 0.01

	// hintMaxQueryBins caps the window a query scans. Wider windows
	// answer true outright; verifying them costs less than the bin
	// tests would.
	hintMaxQueryBins = 4096

	// hintFalsePositiveRate tunes the per-spectrum filter size.
	hintFalsePositiveRate = 0.01
)

func mzBin(mz float64) uint64 {
	if mz <= 0 || math.IsNaN(mz) {
		return 0
	}
	return uint64(mz / hintBinWidth)
}

// buildHint creates the m/z hint filter of one spectrum.
func buildHint(m peaks.Matrix) *bloom.BloomFilter {
	n := uint(m.Len())
	if n == 0 {
		n = 1
	}
	bf := bloom.NewWithEstimates(n, hintFalsePositiveRate)

	var key [8]byte
	for _, mz := range m.Mz {
		binary.LittleEndian.PutUint64(key[:], mzBin(mz))
		bf.Add(key[:])
	}
	return bf
}

// testHint reports whether the filter may contain a peak within
// [mz-tol, mz+tol].
func testHint(bf *bloom.BloomFilter, mz, tol float64) bool {
	if tol < 0 {
		tol = 0
	}
	lo := mzBin(mz - tol)
	hi := mzBin(mz + tol)
	if hi-lo >= hintMaxQueryBins {
		return true
	}

	var key [8]byte
	for bin := lo; bin <= hi; bin++ {
		binary.LittleEndian.PutUint64(key[:], bin)
		if bf.Test(key[:]) {
			return true
		}
	}
	return false
}

// encodeHints serializes the per-spectrum filters as length-prefixed
// records.
func encodeHints(hints []*bloom.BloomFilter) ([]byte, error) {
	var buf bytes.Buffer
	var lenPrefix [4]byte
	for _, bf := range hints {
		data, err := bf.MarshalBinary()
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(data)))
		buf.Write(lenPrefix[:])
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func decodeHints(data []byte, count int) ([]*bloom.BloomFilter, error) {
	hints := make([]*bloom.BloomFilter, count)
	off := 0
	for i := range hints {
		if off+4 > len(data) {
			return nil, fmt.Errorf("%w: short hint section", ErrCorrupted)
		}
		sz := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if off+sz > len(data) {
			return nil, fmt.Errorf("%w: short hint section", ErrCorrupted)
		}
		bf := &bloom.BloomFilter{}
		if err := bf.UnmarshalBinary(data[off : off+sz]); err != nil {
			return nil, fmt.Errorf("%w: hint filter %d: %v", ErrCorrupted, i, err)
		}
		hints[i] = bf
		off += sz
	}
	return hints, nil
}
