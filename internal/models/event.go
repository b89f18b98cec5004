package models

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	EventIdentify = "identify"
	EventEnroll   = "enroll"
)

// Event is one recorded pipeline outcome: an identification attempt or a
// completed enrollment.
type Event struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Kind        string     `json:"kind" db:"kind"`
	IdentityID  *uuid.UUID `json:"identity_id,omitempty" db:"identity_id"`
	Label       string     `json:"label" db:"label"` // matched name or "NEW"
	Score       float32    `json:"score" db:"score"`
	Matched     bool       `json:"matched" db:"matched"`
	SnapshotKey string     `json:"snapshot_key" db:"snapshot_key"` // canonical frame in MinIO
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// RecognitionResult is the message published to NATS after each pipeline run.
// The API process consumes it, stores the event row and pushes it to
// WebSocket subscribers.
type RecognitionResult struct {
	Kind        string     `json:"kind"`
	IdentityID  *uuid.UUID `json:"identity_id,omitempty"`
	Label       string     `json:"label"`
	Score       float32    `json:"score"`
	Matched     bool       `json:"matched"`
	SnapshotKey string     `json:"snapshot_key"`
	Timestamp   time.Time  `json:"timestamp"`
}
