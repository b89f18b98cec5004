// Package index holds the in-memory identity index: every enrolled feature
// vector paired with its record, rebuilt in full from the durable store and
// ranked by cosine similarity. The index is a derived cache; the store is
// the source of truth.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/models"
)

// Dim is the feature vector dimension produced by the embedding model.
const Dim = 512

// NormTolerance is how far a stored or query vector's Euclidean norm may
// drift from 1.0.
const NormTolerance = 1e-5

// NewLabel is the sentinel identity returned when no stored vector clears
// the match threshold.
const NewLabel = "NEW"

var errZeroVector = errors.New("zero vector cannot be normalized")

// Entry is one indexed identity.
type Entry struct {
	ID     uuid.UUID
	Vector []float32
	Record models.IdentityRecord
}

// Match is a scored candidate. Found is false only for the NEW sentinel,
// whose Score then carries the best similarity seen as a confidence hint.
type Match struct {
	Found  bool
	ID     uuid.UUID
	Record models.IdentityRecord
	Score  float32
}

// Snapshot is an immutable view of the index. Matchers always rank against
// one snapshot, so an in-flight match never observes a partial rebuild.
type Snapshot struct {
	entries []Entry
}

// Index is the process-wide identity index. Refreshes build a new snapshot
// off to the side and swap it in atomically.
type Index struct {
	snap atomic.Pointer[Snapshot]
}

// New returns an index holding a well-formed empty snapshot.
func New() *Index {
	idx := &Index{}
	idx.snap.Store(&Snapshot{})
	return idx
}

// Swap replaces the current snapshot with one built from entries. Every
// vector must already be unit-normalized and Dim wide.
func (i *Index) Swap(entries []Entry) error {
	for n, e := range entries {
		if len(e.Vector) != Dim {
			return fmt.Errorf("entry %d: vector dimension %d, want %d", n, len(e.Vector), Dim)
		}
		if err := CheckNorm(e.Vector); err != nil {
			return fmt.Errorf("entry %d: %w", n, err)
		}
	}
	i.snap.Store(&Snapshot{entries: entries})
	return nil
}

// Snapshot returns the current immutable view.
func (i *Index) Snapshot() *Snapshot {
	return i.snap.Load()
}

// Size returns the number of indexed identities.
func (i *Index) Size() int {
	return len(i.snap.Load().entries)
}

// Size returns the number of entries in the snapshot.
func (s *Snapshot) Size() int {
	return len(s.entries)
}

// TopOne ranks query against every entry and returns the best candidate if
// its similarity strictly exceeds threshold. Otherwise it returns the NEW
// sentinel carrying the best score seen, so "no good match" stays
// informative. An empty snapshot yields NEW with score 0.
func (s *Snapshot) TopOne(query []float32, threshold float32) Match {
	best := -1
	var bestScore float32
	for n := range s.entries {
		score := Dot(query, s.entries[n].Vector)
		if best < 0 || score > bestScore {
			best = n
			bestScore = score
		}
	}

	if best < 0 || bestScore <= threshold {
		m := Match{Found: false, Score: 0}
		if best >= 0 {
			m.Score = bestScore
		}
		return m
	}

	e := s.entries[best]
	return Match{Found: true, ID: e.ID, Record: e.Record, Score: bestScore}
}

// TopK returns up to k candidates with similarity strictly above threshold,
// ordered by descending score. Equal scores keep insertion order. An empty
// result is valid and means nothing was sufficiently similar.
func (s *Snapshot) TopK(query []float32, k int, threshold float32) []Match {
	scored := make([]Match, 0, len(s.entries))
	for n := range s.entries {
		e := s.entries[n]
		scored = append(scored, Match{Found: true, ID: e.ID, Record: e.Record, Score: Dot(query, e.Vector)})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}

	out := make([]Match, 0, len(scored))
	for _, m := range scored {
		if m.Score > threshold {
			out = append(out, m)
		}
	}
	return out
}

// Dot returns the dot product of two vectors. For unit vectors this is their
// cosine similarity.
func Dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// Normalize scales v to unit Euclidean norm in place. A zero vector is an
// error, it carries no direction to compare.
func Normalize(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return errZeroVector
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return nil
}

// CheckNorm verifies that v has unit norm within NormTolerance.
func CheckNorm(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1.0) > NormTolerance {
		return fmt.Errorf("vector norm %.8f outside unit tolerance", norm)
	}
	return nil
}
