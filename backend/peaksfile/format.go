package peaksfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/manogenome/Spectra/internal/hash"
	"github.com/manogenome/Spectra/peaks"
)

const (
	// formatMagic identifies peaks store files (ASCII "SPKC").
	formatMagic = 0x53504B43

	// formatVersion is the current store file format version.
	formatVersion uint32 = 1

	// headerSize is the size of the file header in bytes.
	headerSize = 64

	// trailerSize is the size of the file trailer (payload CRC).
	trailerSize = 4

	flagHasHints uint32 = 1 << 0
	flagHasMeta  uint32 = 1 << 1
)

// Codec selects the per-spectrum block compression.
type Codec uint32

const (
	// CodecNone stores peak blocks uncompressed.
	CodecNone Codec = iota
	// CodecSnappy favors decode speed over ratio.
	CodecSnappy
	// CodecLZ4 is comparable to snappy with a slightly better ratio.
	CodecLZ4
	// CodecZstd favors ratio, for libraries that are written once and
	// read over slow storage.
	CodecZstd
)

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecSnappy:
		return "snappy"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint32(c))
	}
}

func (c Codec) valid() bool { return c <= CodecZstd }

var (
	// ErrCorrupted is returned when a store file fails structural or
	// checksum validation.
	ErrCorrupted = errors.New("peaksfile: store corrupted")

	// ErrInvalidCodec is returned for unknown codec ids.
	ErrInvalidCodec = errors.New("peaksfile: unknown codec")
)

// fileHeader is the fixed 64-byte header of a store file. All
// multi-byte fields are little-endian; the checksum covers the first 48
// bytes.
type fileHeader struct {
	Magic    uint32
	Version  uint32
	Flags    uint32
	Codec    Codec
	Count    uint64
	IndexOff uint64
	HintsOff uint64 // 0 when the file carries no m/z hint filters
	MetaOff  uint64 // 0 when the file carries no metadata section
	Checksum uint32
}

func (h *fileHeader) hasHints() bool { return h.Flags&flagHasHints != 0 }
func (h *fileHeader) hasMeta() bool  { return h.Flags&flagHasMeta != 0 }

func (h *fileHeader) encode() []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.Codec))
	binary.LittleEndian.PutUint64(buf[16:24], h.Count)
	binary.LittleEndian.PutUint64(buf[24:32], h.IndexOff)
	binary.LittleEndian.PutUint64(buf[32:40], h.HintsOff)
	binary.LittleEndian.PutUint64(buf[40:48], h.MetaOff)

	h.Checksum = hash.CRC32C(buf[:48])
	binary.LittleEndian.PutUint32(buf[48:52], h.Checksum)
	// Remaining bytes stay zero.
	return buf
}

func (h *fileHeader) decode(buf []byte) error {
	if len(buf) < headerSize {
		return fmt.Errorf("%w: short header", ErrCorrupted)
	}

	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.Flags = binary.LittleEndian.Uint32(buf[8:12])
	h.Codec = Codec(binary.LittleEndian.Uint32(buf[12:16]))
	h.Count = binary.LittleEndian.Uint64(buf[16:24])
	h.IndexOff = binary.LittleEndian.Uint64(buf[24:32])
	h.HintsOff = binary.LittleEndian.Uint64(buf[32:40])
	h.MetaOff = binary.LittleEndian.Uint64(buf[40:48])
	h.Checksum = binary.LittleEndian.Uint32(buf[48:52])

	if hash.CRC32C(buf[:48]) != h.Checksum {
		return fmt.Errorf("%w: header checksum mismatch", ErrCorrupted)
	}
	if h.Magic != formatMagic {
		return fmt.Errorf("%w: bad magic", ErrCorrupted)
	}
	if h.Version > formatVersion {
		return fmt.Errorf("%w: version %d not supported", ErrCorrupted, h.Version)
	}
	if !h.Codec.valid() {
		return fmt.Errorf("%w: id %d", ErrInvalidCodec, uint32(h.Codec))
	}
	return nil
}

// blockRef is one index entry: where a spectrum's block lives and how
// many peaks it decodes to. CompressedLen 0 marks a block stored raw,
// whose length is the raw block size for N peaks.
type blockRef struct {
	Offset        uint64
	CompressedLen uint32
	PeakCount     uint32
}

const blockRefSize = 16

func (r blockRef) rawLen() int { return int(r.PeakCount) * 16 }

func encodeIndex(refs []blockRef) []byte {
	buf := make([]byte, len(refs)*blockRefSize)
	for i, r := range refs {
		base := i * blockRefSize
		binary.LittleEndian.PutUint64(buf[base:], r.Offset)
		binary.LittleEndian.PutUint32(buf[base+8:], r.CompressedLen)
		binary.LittleEndian.PutUint32(buf[base+12:], r.PeakCount)
	}
	return buf
}

func decodeIndex(buf []byte, count int) ([]blockRef, error) {
	if len(buf) < count*blockRefSize {
		return nil, fmt.Errorf("%w: short index", ErrCorrupted)
	}
	refs := make([]blockRef, count)
	for i := range refs {
		base := i * blockRefSize
		refs[i] = blockRef{
			Offset:        binary.LittleEndian.Uint64(buf[base:]),
			CompressedLen: binary.LittleEndian.Uint32(buf[base+8:]),
			PeakCount:     binary.LittleEndian.Uint32(buf[base+12:]),
		}
	}
	return refs, nil
}

// Shared zstd coders. EncodeAll/DecodeAll are safe for concurrent use,
// so one of each serves all stores in the process.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodeBlock serializes one spectrum's peak columns (m/z column, then
// intensity column, float64 little-endian) and compresses them with the
// given codec. The returned ref has CompressedLen 0 when the block is
// stored raw, either by codec choice or because compression did not
// shrink it.
func encodeBlock(m peaks.Matrix, codec Codec) ([]byte, blockRef, error) {
	n := m.Len()
	raw := make([]byte, n*16)
	for i, v := range m.Mz {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	base := n * 8
	for i, v := range m.Intensity {
		binary.LittleEndian.PutUint64(raw[base+i*8:], math.Float64bits(v))
	}

	ref := blockRef{PeakCount: uint32(n)}
	if codec == CodecNone || n == 0 {
		return raw, ref, nil
	}

	var compressed []byte
	switch codec {
	case CodecSnappy:
		compressed = snappy.Encode(nil, raw)
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		sz, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, blockRef{}, err
		}
		if sz == 0 {
			// Incompressible
			return raw, ref, nil
		}
		compressed = buf[:sz]
	case CodecZstd:
		compressed = zstdEncoder.EncodeAll(raw, nil)
	default:
		return nil, blockRef{}, fmt.Errorf("%w: id %d", ErrInvalidCodec, uint32(codec))
	}

	if len(compressed) >= len(raw) {
		return raw, ref, nil
	}
	ref.CompressedLen = uint32(len(compressed))
	return compressed, ref, nil
}

// decodeBlock reverses encodeBlock. data must hold exactly the block's
// stored bytes.
func decodeBlock(data []byte, ref blockRef, codec Codec) (peaks.Matrix, error) {
	rawLen := ref.rawLen()

	var raw []byte
	if ref.CompressedLen == 0 {
		if len(data) != rawLen {
			return peaks.Matrix{}, fmt.Errorf("%w: raw block size %d, want %d", ErrCorrupted, len(data), rawLen)
		}
		raw = data
	} else {
		var err error
		switch codec {
		case CodecNone:
			err = errors.New("compressed block in uncompressed store")
		case CodecSnappy:
			raw, err = snappy.Decode(nil, data)
		case CodecLZ4:
			raw = make([]byte, rawLen)
			var sz int
			sz, err = lz4.UncompressBlock(data, raw)
			if err == nil && sz != rawLen {
				err = fmt.Errorf("decompressed %d bytes, want %d", sz, rawLen)
			}
		case CodecZstd:
			raw, err = zstdDecoder.DecodeAll(data, make([]byte, 0, rawLen))
		default:
			err = fmt.Errorf("%w: id %d", ErrInvalidCodec, uint32(codec))
		}
		if err != nil {
			return peaks.Matrix{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if len(raw) != rawLen {
			return peaks.Matrix{}, fmt.Errorf("%w: block decodes to %d bytes, want %d", ErrCorrupted, len(raw), rawLen)
		}
	}

	n := int(ref.PeakCount)
	m := peaks.Matrix{
		Mz:        make([]float64, n),
		Intensity: make([]float64, n),
	}
	for i := range m.Mz {
		m.Mz[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	base := n * 8
	for i := range m.Intensity {
		m.Intensity[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[base+i*8:]))
	}
	return m, nil
}

// sectionWriter tracks the payload offset and checksum while a store
// file is streamed out.
type sectionWriter struct {
	w   io.Writer
	off uint64
}

func newSectionWriter(w io.Writer) (*sectionWriter, func() uint32) {
	crc := hash.NewCRC32C()
	return &sectionWriter{w: io.MultiWriter(w, crc), off: headerSize}, crc.Sum32
}

func (s *sectionWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.off += uint64(n)
	return n, err
}
