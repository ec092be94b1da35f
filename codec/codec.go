// Package codec centralizes the encoding of persisted spectra metadata.
//
// Store files and database columns that carry metadata values encode
// them through one Codec, so every on-disk producer and consumer agrees
// on the byte format. Codec selection is a breaking-change boundary:
// only JSON-compatible codecs are offered, which keeps bytes written by
// either built-in codec decodable by the other.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for persisted metadata sections and
// columns.
var Default Codec = GoJSON{}

// MustMarshal is a helper for internal tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
