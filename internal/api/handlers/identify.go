package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceid/internal/index"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/recognition"
	"github.com/your-org/faceid/pkg/dto"
)

// Recognizer is the slice of the recognition service the HTTP layer needs.
type Recognizer interface {
	Identify(ctx context.Context, imageData []byte) (*recognition.Identification, error)
	IdentifyCandidates(ctx context.Context, imageData []byte) (*recognition.CandidateSet, error)
	Enroll(ctx context.Context, record models.IdentityRecord, imageData []byte) (*models.Identity, error)
}

// dataURIPrefix matches the optional data-URI scheme tag on submitted images.
var dataURIPrefix = regexp.MustCompile(`^data:image/[^;]+;base64,`)

// DecodeImagePayload strips an optional data-URI prefix and base64-decodes
// the submitted image.
func DecodeImagePayload(payload string) ([]byte, error) {
	raw := dataURIPrefix.ReplaceAllString(payload, "")
	return base64.StdEncoding.DecodeString(raw)
}

// statusForError maps the recognition failure taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, recognition.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, recognition.ErrNoSubject), errors.Is(err, recognition.ErrNoFace):
		return http.StatusUnprocessableEntity
	case errors.Is(err, recognition.ErrStoreUnavailable), errors.Is(err, recognition.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type IdentifyHandler struct {
	svc Recognizer
}

func NewIdentifyHandler(svc Recognizer) *IdentifyHandler {
	return &IdentifyHandler{svc: svc}
}

// Identify handles POST /v1/identify: top-1 match or the NEW sentinel.
func (h *IdentifyHandler) Identify(c *gin.Context) {
	var req dto.IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failure", "error": "no image provided"})
		return
	}

	imageData, err := DecodeImagePayload(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failure", "error": "invalid base64 image"})
		return
	}

	result, err := h.svc.Identify(c.Request.Context(), imageData)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"status": "failure", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"result": matchBody(result.Match),
	})
}

// Candidates handles POST /v1/identify/candidates: the ranked-list variant.
func (h *IdentifyHandler) Candidates(c *gin.Context) {
	var req dto.IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failure", "error": "no image provided"})
		return
	}

	imageData, err := DecodeImagePayload(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failure", "error": "invalid base64 image"})
		return
	}

	set, err := h.svc.IdentifyCandidates(c.Request.Context(), imageData)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"status": "failure", "error": err.Error()})
		return
	}

	results := make([]gin.H, 0, len(set.Matches))
	for _, m := range set.Matches {
		results = append(results, matchBody(m))
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": results,
		"total":   len(results),
	})
}

// matchBody flattens a match into the wire shape: the identity attributes
// plus a score for matches, or the NEW sentinel with a confidence hint.
func matchBody(m index.Match) gin.H {
	if !m.Found {
		return gin.H{"id": index.NewLabel, "confidence": dto.Score(m.Score)}
	}

	body := gin.H{}
	for k, v := range m.Record.Info() {
		body[k] = v
	}
	body["id"] = m.ID
	body["score"] = dto.Score(m.Score)
	return body
}
