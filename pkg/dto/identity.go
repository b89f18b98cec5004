package dto

import (
	"github.com/google/uuid"
)

// IdentifyRequest carries a base64-encoded image, optionally prefixed with a
// data-URI scheme tag.
type IdentifyRequest struct {
	Image string `json:"image" binding:"required"`
}

// EnrollRequest is the enrollment payload: the identity attributes plus the
// source image. All attributes are optional; unknown keys go to Extra.
type EnrollRequest struct {
	Image         string         `json:"image" binding:"required"`
	Name          string         `json:"name"`
	Nickname      string         `json:"nickname"`
	Age           int            `json:"age"`
	PoliceStation string         `json:"police_station"`
	Crime         string         `json:"crime"`
	Sections      string         `json:"sections"`
	Notes         string         `json:"notes"`
	Photo         string         `json:"photo"`
	Extra         map[string]any `json:"extra"`
}

// EnrollResponse reports enrollment success or failure with a human-readable
// message. The new document's identifier is intentionally not returned.
type EnrollResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// IdentityResponse is one enrolled identity, embedding omitted.
type IdentityResponse struct {
	ID        uuid.UUID      `json:"id"`
	Info      map[string]any `json:"info"`
	CreatedAt string         `json:"created_at"`
}

// IdentityListResponse wraps the identity listing.
type IdentityListResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Total      int                `json:"total"`
}
