package spectra

import (
	"time"

	"context"

	"golang.org/x/sync/errgroup"

	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
	"github.com/manogenome/Spectra/resource"
)

// partition is one unit of parallel work: the collection positions that
// share a part and a physical storage location.
type partition struct {
	part      int
	storage   string
	positions []int
}

// partitions groups the collection's positions by (part, dataStorage)
// in order of first appearance. Spectra in the same physical location
// are fetched together, so a backend sees one batched read per
// location.
func (s *Spectra) partitions() []partition {
	storages := s.table.Strings(metadata.FieldDataStorage)

	type key struct {
		part    int
		storage string
	}
	index := make(map[key]int)
	var out []partition

	for pos, ref := range s.rows {
		k := key{part: ref.part, storage: storages[pos]}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, partition{part: ref.part, storage: k.storage})
		}
		out[i].positions = append(out[i].positions, pos)
	}
	return out
}

// readPeaks fetches peak data for the whole collection: positions are
// partitioned by storage location, partitions are dispatched to
// concurrent workers, each worker reads its part's backend and applies
// that part's processing queue, and results land in a preallocated
// slice at their original positions. The merge is order-preserving by
// construction, regardless of worker completion order or partition
// count.
//
// Workers only read; the first failure cancels the remaining
// partitions and is returned tagged as a *PartitionError.
func (s *Spectra) readPeaks(ctx context.Context) ([]peaks.Matrix, error) {
	started := time.Now()
	parts := s.partitions()
	out := make([]peaks.Matrix, s.Len())

	ctx = resource.WithController(ctx, s.opts.controller)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.concurrency())

	for _, pt := range parts {
		g.Go(func() error {
			if err := s.readPartition(ctx, pt, out); err != nil {
				return &PartitionError{
					Storage: pt.storage,
					First:   pt.positions[0],
					Last:    pt.positions[len(pt.positions)-1],
					Err:     err,
				}
			}
			return nil
		})
	}

	err := g.Wait()
	s.opts.metricsCollector.RecordPeaksRead(s.Len(), len(parts), time.Since(started), err)
	if err != nil {
		return nil, err
	}

	s.opts.logger.LogPeaksRead(ctx, s.Len(), len(parts))
	return out, nil
}

// readPartition reads one partition's spectra and writes them to their
// collection positions. The partition's positions are strictly
// increasing, so First/Last in error tags are its bounds.
func (s *Spectra) readPartition(ctx context.Context, pt partition, out []peaks.Matrix) error {
	rows := make([]int, len(pt.positions))
	for i, pos := range pt.positions {
		rows[i] = s.rows[pos].row
	}

	p := s.parts[pt.part]
	ms, err := p.backend.Peaks(ctx, rows)
	if err != nil {
		return err
	}

	for i, m := range ms {
		applied, err := p.queue.Apply(m)
		if err != nil {
			return err
		}
		out[pt.positions[i]] = applied
	}
	return nil
}
