// Package spectra provides a backend-agnostic container for large
// ordered collections of mass-spectrometry spectra.
//
// A Spectra collection composes three things: a storage backend holding
// the raw data, a metadata table with one row per spectrum, and a lazy
// processing queue applied to peak data on every read. Analysis code
// works against the collection surface and never learns which storage
// variant is bound:
//
//   - backend/memory: everything resident in RAM, fully writable
//   - backend/peaksfile: metadata in memory, peaks in a compressed
//     columnar store file
//   - backend/mspfile: metadata in memory, peaks re-read on demand from
//     MSP spectral libraries (local disk, S3, MinIO)
//   - backend/sqlitedb: spectra in a SQLite database file
//
// # Reading peaks
//
//	s, _ := spectra.FromBackend(ctx, b)
//	ms2, _ := s.FilterMsLevel(2)
//	pk, _ := ms2.Peaks(ctx)
//
// Peak reads partition the collection by storage location and fetch
// partitions concurrently; results always come back in collection
// order.
//
// # Lazy processing
//
//	clean := s.AddProcessing(processing.ReplaceIntensitiesBelow(10, 0))
//
// AddProcessing returns a new collection sharing the same backend; the
// step runs on every subsequent peak read. Reset drops queued steps,
// ApplyProcessing writes their effect into a writable backend, and
// SetBackend materializes the queue into a fresh backend of any kind.
//
// Collections are cheap views: Subset, the filter family and Combine
// share backends and never copy peak data.
package spectra
