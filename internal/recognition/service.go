package recognition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/faceid/internal/index"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
)

// IdentityStore is the durable source of truth for enrolled identities.
// storage.PostgresStore satisfies it.
type IdentityStore interface {
	ListIdentities(ctx context.Context) ([]models.Identity, error)
	InsertIdentity(ctx context.Context, embedding []float32, record models.IdentityRecord) (*models.Identity, error)
}

// FramePipeline turns raw image bytes into a feature vector.
type FramePipeline interface {
	Process(ctx context.Context, imageData []byte) (*Frame, error)
}

// ResultPublisher fans recognition outcomes out to the event bus.
// queue.Producer satisfies it.
type ResultPublisher interface {
	PublishResult(ctx context.Context, kind string, data interface{}) error
}

// MatchConfig carries the matcher thresholds. Both are strict greater-than
// gates: a score exactly equal to a threshold is not a match.
type MatchConfig struct {
	MatchThreshold     float32
	CandidateThreshold float32
	CandidateLimit     int
}

// Identification is the outcome of a top-1 identify request. Match.Found
// false means the NEW sentinel: nothing cleared the threshold, and Score
// carries the best similarity seen as a confidence hint.
type Identification struct {
	Match       index.Match
	SnapshotKey string
}

// CandidateSet is the outcome of a top-K identify request. An empty Matches
// slice is valid and means no stored identity was sufficiently similar.
type CandidateSet struct {
	Matches     []index.Match
	SnapshotKey string
}

// Service coordinates the recognition pipeline, the in-memory index and the
// durable store. The index is owned here and refreshed by atomic snapshot
// swap, so matches racing a refresh always see a complete view.
type Service struct {
	store     IdentityStore
	pipe      FramePipeline
	idx       *index.Index
	publisher ResultPublisher // may be nil
	cfg       MatchConfig
}

func NewService(store IdentityStore, pipe FramePipeline, publisher ResultPublisher, cfg MatchConfig) *Service {
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = 0.45
	}
	if cfg.CandidateThreshold == 0 {
		cfg.CandidateThreshold = 0.2
	}
	if cfg.CandidateLimit == 0 {
		cfg.CandidateLimit = 5
	}
	return &Service{
		store:     store,
		pipe:      pipe,
		idx:       index.New(),
		publisher: publisher,
		cfg:       cfg,
	}
}

// Index exposes the owned index, mainly for inspection.
func (s *Service) Index() *index.Index {
	return s.idx
}

// Refresh rebuilds the index from every document in the store and swaps it
// in atomically. An empty store yields a valid empty index, never an error.
func (s *Service) Refresh(ctx context.Context) error {
	identities, err := s.store.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	entries := make([]index.Entry, 0, len(identities))
	for _, ident := range identities {
		vec := make([]float32, len(ident.Embedding))
		copy(vec, ident.Embedding)
		// Stored vectors are unit-normalized at enrollment; renormalizing
		// here absorbs storage rounding so the index invariant holds.
		if err := index.Normalize(vec); err != nil {
			return fmt.Errorf("identity %s: %w", ident.ID, err)
		}
		entries = append(entries, index.Entry{
			ID:     ident.ID,
			Vector: vec,
			Record: ident.Record,
		})
	}

	if err := s.idx.Swap(entries); err != nil {
		return fmt.Errorf("swap index: %w", err)
	}

	observability.IndexRefreshes.Inc()
	observability.IndexSize.Set(float64(len(entries)))
	slog.Info("identity index refreshed", "size", len(entries))
	return nil
}

// Identify runs the pipeline on imageData and ranks the result against the
// current index snapshot. A frame with no detectable face is not an error:
// it degrades to the NEW sentinel so callers can tell "nothing resembled
// anyone" from "the system is broken".
func (s *Service) Identify(ctx context.Context, imageData []byte) (*Identification, error) {
	frame, err := s.pipe.Process(ctx, imageData)
	if err != nil {
		observability.Identifications.WithLabelValues("failed").Inc()
		return nil, err
	}

	result := &Identification{SnapshotKey: frame.SnapshotKey}
	if !frame.FaceFound {
		result.Match = index.Match{Found: false, Score: 0}
	} else {
		result.Match = s.idx.Snapshot().TopOne(frame.Vector, s.cfg.MatchThreshold)
	}

	outcome := "new"
	if result.Match.Found {
		outcome = "matched"
	}
	observability.Identifications.WithLabelValues(outcome).Inc()

	s.publish(ctx, models.EventIdentify, result.Match, frame.SnapshotKey)
	return result, nil
}

// IdentifyCandidates is the ranked-list variant: up to CandidateLimit
// matches above CandidateThreshold, descending by score.
func (s *Service) IdentifyCandidates(ctx context.Context, imageData []byte) (*CandidateSet, error) {
	frame, err := s.pipe.Process(ctx, imageData)
	if err != nil {
		observability.Identifications.WithLabelValues("failed").Inc()
		return nil, err
	}

	set := &CandidateSet{SnapshotKey: frame.SnapshotKey, Matches: []index.Match{}}
	if frame.FaceFound {
		set.Matches = s.idx.Snapshot().TopK(frame.Vector, s.cfg.CandidateLimit, s.cfg.CandidateThreshold)
	}

	outcome := "new"
	best := index.Match{}
	if len(set.Matches) > 0 {
		outcome = "matched"
		best = set.Matches[0]
	}
	observability.Identifications.WithLabelValues(outcome).Inc()

	s.publish(ctx, models.EventIdentify, best, frame.SnapshotKey)
	return set, nil
}

// Enroll runs the pipeline on imageData, persists the record with its unit
// embedding as one document, then rebuilds the index before returning. A
// frame with no detectable face fails the enrollment and writes nothing.
// There is no dedup check: re-enrolling a similar face creates a second,
// independent identity.
func (s *Service) Enroll(ctx context.Context, record models.IdentityRecord, imageData []byte) (*models.Identity, error) {
	frame, err := s.pipe.Process(ctx, imageData)
	if err != nil {
		observability.Enrollments.WithLabelValues("failed").Inc()
		return nil, err
	}
	if !frame.FaceFound {
		observability.Enrollments.WithLabelValues("no_face").Inc()
		return nil, ErrNoFace
	}

	ident, err := s.store.InsertIdentity(ctx, frame.Vector, record)
	if err != nil {
		observability.Enrollments.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := s.Refresh(ctx); err != nil {
		// The document is durable; only the cache rebuild failed.
		observability.Enrollments.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("refresh after enrollment: %w", err)
	}

	observability.Enrollments.WithLabelValues("ok").Inc()

	s.publish(ctx, models.EventEnroll, index.Match{
		Found:  true,
		ID:     ident.ID,
		Record: ident.Record,
		Score:  frame.FaceConfidence,
	}, frame.SnapshotKey)

	return ident, nil
}

func (s *Service) publish(ctx context.Context, kind string, m index.Match, snapshotKey string) {
	if s.publisher == nil {
		return
	}

	result := models.RecognitionResult{
		Kind:        kind,
		Label:       index.NewLabel,
		Score:       m.Score,
		Matched:     m.Found,
		SnapshotKey: snapshotKey,
		Timestamp:   time.Now(),
	}
	if m.Found {
		id := m.ID
		result.IdentityID = &id
		result.Label = m.Record.Name
	}

	if err := s.publisher.PublishResult(ctx, kind, result); err != nil {
		slog.Warn("publish recognition result", "error", err, "kind", kind)
	}
}
