package processing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manogenome/Spectra/peaks"
)

func TestQueueEmpty(t *testing.T) {
	m := peaks.Matrix{Mz: []float64{100}, Intensity: []float64{1}}

	var nilQueue *Queue
	out, err := nilQueue.Apply(m)
	require.NoError(t, err)
	assert.Equal(t, m, out)
	assert.True(t, nilQueue.IsEmpty())

	out, err = NewQueue().Apply(m)
	require.NoError(t, err)
	assert.Equal(t, m, out)
}

func TestQueueAppendImmutable(t *testing.T) {
	q1 := NewQueue(ScaleIntensities(2))
	q2 := q1.Append(ScaleIntensities(3))

	assert.Equal(t, 1, q1.Len())
	assert.Equal(t, 2, q2.Len())

	m := peaks.Matrix{Mz: []float64{10}, Intensity: []float64{1}}

	out1, err := q1.Apply(m)
	require.NoError(t, err)
	assert.Equal(t, 2.0, out1.Intensity[0])

	out2, err := q2.Apply(m)
	require.NoError(t, err)
	assert.Equal(t, 6.0, out2.Intensity[0])
}

func TestQueueInsertionOrder(t *testing.T) {
	// Non-commuting steps: (1+2)*10 != 1*10+2.
	add := NewStep("addTwo", func(m peaks.Matrix) (peaks.Matrix, error) {
		out := make([]float64, len(m.Intensity))
		for i, v := range m.Intensity {
			out[i] = v + 2
		}
		return peaks.Matrix{Mz: m.Mz, Intensity: out}, nil
	})

	q := NewQueue(add, ScaleIntensities(10))
	out, err := q.Apply(peaks.Matrix{Mz: []float64{10}, Intensity: []float64{1}})
	require.NoError(t, err)
	assert.Equal(t, 30.0, out.Intensity[0])

	assert.Equal(t, []string{"addTwo", "scaleIntensities"}, q.Names())
}

func TestQueueStepError(t *testing.T) {
	boom := errors.New("boom")
	q := NewQueue(NewStep("failing", func(peaks.Matrix) (peaks.Matrix, error) {
		return peaks.Matrix{}, boom
	}))

	_, err := q.Apply(peaks.Matrix{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
}

func TestQueueShapeViolation(t *testing.T) {
	q := NewQueue(NewStep("broken", func(m peaks.Matrix) (peaks.Matrix, error) {
		return peaks.Matrix{Mz: []float64{1, 2}, Intensity: []float64{1}}, nil
	}))

	_, err := q.Apply(peaks.Matrix{})
	require.ErrorIs(t, err, ErrStepOutput)
}

func TestReplaceIntensitiesBelow(t *testing.T) {
	m := peaks.Matrix{
		Mz:        []float64{100, 200, 300, 400, 500},
		Intensity: []float64{3.407, 47.494, 3.094, 100.0, 13.24},
	}

	out, err := ReplaceIntensitiesBelow(10, 0).Apply(m)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 47.494, 0, 100.0, 13.24}, out.Intensity)
	assert.Equal(t, m.Mz, out.Mz)

	// Input untouched.
	assert.Equal(t, 3.407, m.Intensity[0])
}

func TestReplaceThenFilterScenario(t *testing.T) {
	// Low-signal cleanup: zero out noise, then drop the zeroed peaks.
	m := peaks.Matrix{
		Mz:        []float64{112.1, 221.0, 316.9, 441.2, 512.7},
		Intensity: []float64{3.407, 47.494, 3.094, 100.0, 13.24},
	}

	q := NewQueue(
		ReplaceIntensitiesBelow(10, 0),
		FilterIntensityRange(0.1, math.Inf(1)),
	)

	out, err := q.Apply(m)
	require.NoError(t, err)
	assert.Equal(t, []float64{47.494, 100.0, 13.24}, out.Intensity)
	assert.Equal(t, []float64{221.0, 441.2, 512.7}, out.Mz)
}

func TestFilterMzRange(t *testing.T) {
	m := peaks.Matrix{
		Mz:        []float64{100, 200, 300, 400},
		Intensity: []float64{1, 2, 3, 4},
	}

	// Closed interval: both boundary peaks stay.
	out, err := FilterMzRange(200, 300).Apply(m)
	require.NoError(t, err)
	assert.Equal(t, []float64{200, 300}, out.Mz)
	assert.Equal(t, []float64{2, 3}, out.Intensity)

	out, err = FilterMzRange(500, 600).Apply(m)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestFilterMzValues(t *testing.T) {
	m := peaks.Matrix{
		Mz:        []float64{100.00, 100.02, 250.5, 300.0},
		Intensity: []float64{1, 2, 3, 4},
	}

	out, err := FilterMzValues([]float64{100.0, 300.0}, 0.01).Apply(m)
	require.NoError(t, err)
	assert.Equal(t, []float64{100.00, 300.0}, out.Mz)
	assert.Equal(t, []float64{1, 4}, out.Intensity)
}

func TestNormalizeToBasePeak(t *testing.T) {
	m := peaks.Matrix{
		Mz:        []float64{100, 200, 300},
		Intensity: []float64{50, 200, 100},
	}

	// Base peak lands on 100, the relative-abundance convention.
	out, err := NormalizeToBasePeak().Apply(m)
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 100, 50}, out.Intensity)

	// No signal passes through.
	zero := peaks.Matrix{Mz: []float64{100}, Intensity: []float64{0}}
	out, err = NormalizeToBasePeak().Apply(zero)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, out.Intensity)
}

func TestKeepTopN(t *testing.T) {
	m := peaks.Matrix{
		Mz:        []float64{100, 200, 300, 400},
		Intensity: []float64{5, 80, 20, 40},
	}

	out, err := KeepTopN(2).Apply(m)
	require.NoError(t, err)
	// Most intense two, back in m/z order.
	assert.Equal(t, []float64{200, 400}, out.Mz)
	assert.Equal(t, []float64{80, 40}, out.Intensity)

	out, err = KeepTopN(10).Apply(m)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Len())

	out, err = KeepTopN(0).Apply(m)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestKeepTopNTies(t *testing.T) {
	m := peaks.Matrix{
		Mz:        []float64{100, 200, 300},
		Intensity: []float64{7, 7, 7},
	}

	out, err := KeepTopN(2).Apply(m)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200}, out.Mz)
}
