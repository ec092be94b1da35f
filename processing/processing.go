// Package processing implements the lazy peak processing queue of a
// spectra collection.
//
// A Queue is an ordered sequence of Steps. It is never applied to
// metadata: collections run the queue over each peak matrix every time
// peak data is requested, so queued work stays lazy until a read, and
// storage keeps the original data until the queue is explicitly
// materialized.
//
// Steps are pure with respect to everything outside the matrix they
// receive: a step gets one matrix plus its bound parameters and returns
// one matrix. The output may have fewer or more rows than the input,
// which is how peak removal and synthesis work, but it must keep the
// two-column m/z and intensity pairing.
package processing

import (
	"errors"
	"fmt"

	"github.com/manogenome/Spectra/peaks"
)

// ErrStepOutput is returned when a step produces a matrix whose columns
// differ in length.
var ErrStepOutput = errors.New("processing: step returned mismatched peak columns")

// Step transforms one peak matrix. Implementations must not retain or
// mutate the input matrix and must not touch shared state: the queue is
// applied from concurrent readers.
type Step interface {
	// Name identifies the step in logs and queue listings.
	Name() string
	// Apply transforms the matrix.
	Apply(m peaks.Matrix) (peaks.Matrix, error)
}

type stepFunc struct {
	name string
	fn   func(m peaks.Matrix) (peaks.Matrix, error)
}

func (s stepFunc) Name() string { return s.name }

func (s stepFunc) Apply(m peaks.Matrix) (peaks.Matrix, error) { return s.fn(m) }

// NewStep wraps a function as a named Step. It is the extension point
// for user-defined processing.
func NewStep(name string, fn func(m peaks.Matrix) (peaks.Matrix, error)) Step {
	return stepFunc{name: name, fn: fn}
}

// Queue is an immutable ordered sequence of processing steps. The zero
// value and the nil queue are both the empty queue. Extending a queue
// returns a new one, so collections can share tails safely.
type Queue struct {
	steps []Step
}

// NewQueue creates a queue from the given steps.
func NewQueue(steps ...Step) *Queue {
	if len(steps) == 0 {
		return &Queue{}
	}
	return &Queue{steps: steps}
}

// Len returns the number of steps.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.steps)
}

// IsEmpty reports whether the queue holds no steps.
func (q *Queue) IsEmpty() bool { return q.Len() == 0 }

// Append returns a new queue with the given steps appended. The
// receiver is left unchanged.
func (q *Queue) Append(steps ...Step) *Queue {
	out := make([]Step, 0, q.Len()+len(steps))
	if q != nil {
		out = append(out, q.steps...)
	}
	out = append(out, steps...)
	return &Queue{steps: out}
}

// Steps returns a copy of the queued steps in application order.
func (q *Queue) Steps() []Step {
	if q == nil {
		return nil
	}
	out := make([]Step, len(q.steps))
	copy(out, q.steps)
	return out
}

// Names returns the step names in application order.
func (q *Queue) Names() []string {
	if q == nil {
		return nil
	}
	names := make([]string, len(q.steps))
	for i, s := range q.steps {
		names[i] = s.Name()
	}
	return names
}

// Apply runs every step over the matrix in insertion order: step N+1
// always observes the output of step N. Steps are never reordered or
// fused, since step functions may be arbitrary user code.
func (q *Queue) Apply(m peaks.Matrix) (peaks.Matrix, error) {
	if q == nil {
		return m, nil
	}
	for _, s := range q.steps {
		var err error
		m, err = s.Apply(m)
		if err != nil {
			return peaks.Matrix{}, fmt.Errorf("step %q: %w", s.Name(), err)
		}
		if len(m.Mz) != len(m.Intensity) {
			return peaks.Matrix{}, fmt.Errorf("step %q: %w", s.Name(), ErrStepOutput)
		}
	}
	return m, nil
}
