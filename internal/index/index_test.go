package index

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/faceid/internal/models"
)

// axisVector returns a unit vector along the given axis.
func axisVector(axis int) []float32 {
	v := make([]float32, Dim)
	v[axis] = 1
	return v
}

// similarTo returns a unit vector whose dot product with axisVector(0) is
// exactly score, using a distinct axis for the orthogonal component.
func similarTo(score float32, axis int) []float32 {
	v := make([]float32, Dim)
	v[0] = score
	v[axis] = float32(math.Sqrt(1 - float64(score)*float64(score)))
	return v
}

func entry(name string, vec []float32) Entry {
	return Entry{
		ID:     uuid.New(),
		Vector: vec,
		Record: models.IdentityRecord{Name: name},
	}
}

func TestEmptySnapshot(t *testing.T) {
	idx := New()

	m := idx.Snapshot().TopOne(axisVector(0), 0.45)
	assert.False(t, m.Found)
	assert.Equal(t, float32(0), m.Score)

	candidates := idx.Snapshot().TopK(axisVector(0), 5, 0.2)
	assert.Empty(t, candidates)
}

func TestSwapRejectsBadVectors(t *testing.T) {
	idx := New()

	err := idx.Swap([]Entry{entry("short", []float32{1, 0, 0})})
	assert.Error(t, err)

	unnormalized := make([]float32, Dim)
	unnormalized[0] = 2
	err = idx.Swap([]Entry{entry("big", unnormalized)})
	assert.Error(t, err)

	// A failed swap must leave the previous snapshot in place.
	assert.Equal(t, 0, idx.Size())
}

func TestTopOneSelfSimilarity(t *testing.T) {
	idx := New()
	v := axisVector(3)
	require.NoError(t, idx.Swap([]Entry{entry("alice", v)}))

	m := idx.Snapshot().TopOne(v, 0.45)
	require.True(t, m.Found)
	assert.Equal(t, "alice", m.Record.Name)
	assert.InDelta(t, 1.0, float64(m.Score), 1e-6)
}

func TestTopOneThresholdIsStrict(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Swap([]Entry{entry("borderline", similarTo(0.45, 1))}))

	// A score of exactly the threshold must not match.
	m := idx.Snapshot().TopOne(axisVector(0), 0.45)
	assert.False(t, m.Found)
	assert.InDelta(t, 0.45, float64(m.Score), 1e-6)

	// Nudging the threshold below the score flips the outcome.
	m = idx.Snapshot().TopOne(axisVector(0), 0.44)
	assert.True(t, m.Found)
	assert.Equal(t, "borderline", m.Record.Name)
}

func TestTopOnePicksBest(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Swap([]Entry{
		entry("weak", similarTo(0.5, 1)),
		entry("strong", similarTo(0.9, 2)),
		entry("middle", similarTo(0.7, 3)),
	}))

	m := idx.Snapshot().TopOne(axisVector(0), 0.45)
	require.True(t, m.Found)
	assert.Equal(t, "strong", m.Record.Name)
	assert.InDelta(t, 0.9, float64(m.Score), 1e-6)
}

func TestTopKOrderingAndThreshold(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Swap([]Entry{
		entry("a", similarTo(0.5, 1)),
		entry("b", similarTo(0.9, 2)),
		entry("c", similarTo(0.1, 3)),
		entry("d", similarTo(0.7, 4)),
		entry("e", similarTo(0.3, 5)),
	}))

	got := idx.Snapshot().TopK(axisVector(0), 5, 0.2)
	require.Len(t, got, 4) // 0.1 falls below the floor
	assert.Equal(t, "b", got[0].Record.Name)
	assert.Equal(t, "d", got[1].Record.Name)
	assert.Equal(t, "a", got[2].Record.Name)
	assert.Equal(t, "e", got[3].Record.Name)
}

func TestTopKLimit(t *testing.T) {
	idx := New()
	entries := make([]Entry, 0, 8)
	for i := 0; i < 8; i++ {
		entries = append(entries, entry("x", similarTo(0.6, i+1)))
	}
	require.NoError(t, idx.Swap(entries))

	got := idx.Snapshot().TopK(axisVector(0), 5, 0.2)
	assert.Len(t, got, 5)
}

func TestTopKTiesKeepInsertionOrder(t *testing.T) {
	idx := New()
	first := entry("first", similarTo(0.6, 1))
	second := entry("second", similarTo(0.6, 2))
	require.NoError(t, idx.Swap([]Entry{first, second}))

	got := idx.Snapshot().TopK(axisVector(0), 5, 0.2)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
}

func TestTopKStrictFloor(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Swap([]Entry{entry("floor", similarTo(0.2, 1))}))

	got := idx.Snapshot().TopK(axisVector(0), 5, 0.2)
	assert.Empty(t, got)
}

func TestNormalize(t *testing.T) {
	v := make([]float32, Dim)
	v[0] = 3
	v[1] = 4
	require.NoError(t, Normalize(v))
	require.NoError(t, CheckNorm(v))
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	zero := make([]float32, Dim)
	assert.Error(t, Normalize(zero))
}

func TestCheckNormTolerance(t *testing.T) {
	v := axisVector(0)
	assert.NoError(t, CheckNorm(v))

	v[0] = 1.001
	assert.Error(t, CheckNorm(v))
}

func TestSwapIsAtomicForReaders(t *testing.T) {
	idx := New()
	snap := idx.Snapshot()

	require.NoError(t, idx.Swap([]Entry{entry("late", axisVector(0))}))

	// The old snapshot is still empty; the new one sees the entry.
	assert.Equal(t, 0, snap.Size())
	assert.Equal(t, 1, idx.Snapshot().Size())
}
