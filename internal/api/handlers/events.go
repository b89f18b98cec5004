package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/storage"
	"github.com/your-org/faceid/pkg/dto"
)

type EventHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewEventHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *EventHandler {
	return &EventHandler{db: db, minio: minio}
}

// List handles GET /v1/events, newest first.
func (h *EventHandler) List(c *gin.Context) {
	kind := c.Query("kind")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.db.ListEvents(c.Request.Context(), kind, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for _, ev := range events {
		r := dto.EventResponse{
			ID:         ev.ID,
			Kind:       ev.Kind,
			IdentityID: ev.IdentityID,
			Label:      ev.Label,
			Score:      dto.Score(ev.Score),
			Matched:    ev.Matched,
			CreatedAt:  ev.CreatedAt.Format(time.RFC3339),
		}
		if ev.SnapshotKey != "" {
			r.SnapshotURL = "/v1/events/" + ev.ID.String() + "/snapshot"
		}
		resp = append(resp, r)
	}

	c.JSON(http.StatusOK, dto.EventListResponse{Events: resp, Total: total})
}

// Snapshot proxies the event's canonical frame from MinIO.
func (h *EventHandler) Snapshot(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil || ev.SnapshotKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), ev.SnapshotKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	c.Data(http.StatusOK, "image/png", data)
}
