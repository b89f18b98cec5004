package dto

import "github.com/google/uuid"

// EventResponse is one recorded identification or enrollment outcome.
type EventResponse struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	IdentityID  *uuid.UUID `json:"identity_id,omitempty"`
	Label       string     `json:"label"`
	Score       Score      `json:"score"`
	Matched     bool       `json:"matched"`
	SnapshotURL string     `json:"snapshot_url,omitempty"`
	CreatedAt   string     `json:"created_at"`
}

// EventListResponse wraps a page of events.
type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

// WSEvent is a WebSocket message for real-time event delivery.
type WSEvent struct {
	Type string        `json:"type"` // identified, enrolled
	Data EventResponse `json:"data"`
}
