package spectra

import (
	"context"
	"fmt"

	"github.com/manogenome/Spectra/backend"
)

// Export writes the collection to destination through b's export
// capability. The collection is materialized first: metadata from its
// table copy, peaks read through the processing queue. Backends without
// export support, and destinations the backend cannot produce, fail
// with ErrUnsupportedFormat.
//
// Round-trip fidelity is format-dependent: fields the destination
// cannot represent are silently dropped. Callers discover the loss by
// comparing SpectraVariables of the collection with those of a
// collection re-read from the destination.
func Export(ctx context.Context, s *Spectra, b backend.Backend, destination string, opts backend.ExportOptions) error {
	exp, ok := b.(backend.Exporter)
	if !ok {
		return fmt.Errorf("backend %T has no export capability: %w", b, ErrUnsupportedFormat)
	}

	pk, err := s.Peaks(ctx)
	if err != nil {
		return err
	}
	return exp.Export(ctx, s.table.Clone(), pk, destination, opts)
}
