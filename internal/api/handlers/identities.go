package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/recognition"
	"github.com/your-org/faceid/pkg/dto"
)

// IdentityLister reads enrolled identities from the durable store.
type IdentityLister interface {
	ListIdentities(ctx context.Context) ([]models.Identity, error)
}

type IdentityHandler struct {
	svc   Recognizer
	store IdentityLister
}

func NewIdentityHandler(svc Recognizer, store IdentityLister) *IdentityHandler {
	return &IdentityHandler{svc: svc, store: store}
}

// Enroll handles POST /v1/identities: runs the full pipeline on the
// submitted image and persists the identity. No face means failure and no
// write.
func (h *IdentityHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.EnrollResponse{Status: "failure", Message: "image required"})
		return
	}

	imageData, err := DecodeImagePayload(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.EnrollResponse{Status: "failure", Message: "invalid base64 image"})
		return
	}

	record := models.IdentityRecord{
		Name:          req.Name,
		Nickname:      req.Nickname,
		Age:           req.Age,
		PoliceStation: req.PoliceStation,
		Crime:         req.Crime,
		Sections:      req.Sections,
		Notes:         req.Notes,
		Photo:         req.Photo,
		Extra:         req.Extra,
	}

	if _, err := h.svc.Enroll(c.Request.Context(), record, imageData); err != nil {
		msg := err.Error()
		if errors.Is(err, recognition.ErrNoFace) {
			msg = "no face found in image"
		}
		c.JSON(statusForError(err), dto.EnrollResponse{Status: "failure", Message: msg})
		return
	}

	c.JSON(http.StatusCreated, dto.EnrollResponse{Status: "success", Message: "identity enrolled"})
}

// List handles GET /v1/identities. Embeddings stay server-side.
func (h *IdentityHandler) List(c *gin.Context) {
	identities, err := h.store.ListIdentities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.IdentityResponse, 0, len(identities))
	for _, ident := range identities {
		resp = append(resp, dto.IdentityResponse{
			ID:        ident.ID,
			Info:      ident.Record.Info(),
			CreatedAt: ident.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, dto.IdentityListResponse{Identities: resp, Total: len(resp)})
}
