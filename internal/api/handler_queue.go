package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"charging-queue-backend/internal/model"
	"charging-queue-backend/internal/queue"
)

type joinQueueRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// queueEntryResponse is the API view of a queue entry.
type queueEntryResponse struct {
	model.QueueEntry
	EstimatedWaitMin int `json:"estimatedWaitMin"`
}

func (h *Handler) entryResponse(e model.QueueEntry) queueEntryResponse {
	eta := 0
	if e.Status == model.QueueWaiting {
		eta = h.coordinator.EstimatedWaitMinutes(e.Position)
	}
	return queueEntryResponse{QueueEntry: e, EstimatedWaitMin: eta}
}

// JoinQueue handles POST /api/stations/{station_id}/queue. A duplicate
// join answers 409 with the existing position rather than a generic
// error.
func (h *Handler) JoinQueue(c *gin.Context) {
	stationID, err := strconv.ParseInt(c.Param("station_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid station ID"})
		return
	}

	var req joinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.coordinator.Join(c.Request.Context(), stationID, req.UserID)
	if err != nil {
		var dup *queue.AlreadyQueuedError
		if errors.As(err, &dup) {
			c.JSON(http.StatusConflict, gin.H{
				"error":    "already queued",
				"position": dup.Position,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join queue"})
		return
	}

	c.JSON(http.StatusCreated, h.entryResponse(*entry))
}

// LeaveQueue handles DELETE /api/stations/{station_id}/queue/{user_id}.
func (h *Handler) LeaveQueue(c *gin.Context) {
	stationID, err := strconv.ParseInt(c.Param("station_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid station ID"})
		return
	}

	err = h.coordinator.Leave(c.Request.Context(), stationID, c.Param("user_id"))
	if errors.Is(err, queue.ErrNotQueued) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not queued"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave queue"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetQueue handles GET /api/stations/{station_id}/queue, the
// administrative listing of active entries.
func (h *Handler) GetQueue(c *gin.Context) {
	stationID, err := strconv.ParseInt(c.Param("station_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid station ID"})
		return
	}

	entries, err := h.coordinator.List(c.Request.Context(), stationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list queue"})
		return
	}

	responses := make([]queueEntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, h.entryResponse(e))
	}
	c.JSON(http.StatusOK, responses)
}

// GetQueuePosition handles GET /api/stations/{station_id}/queue/{user_id},
// a user's own position, status and expiry. Expiry is applied lazily on
// read, so a stale grant is never reported as claimable.
func (h *Handler) GetQueuePosition(c *gin.Context) {
	stationID, err := strconv.ParseInt(c.Param("station_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid station ID"})
		return
	}

	entry, err := h.coordinator.Position(c.Request.Context(), stationID, c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read queue position"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not queued"})
		return
	}

	c.JSON(http.StatusOK, h.entryResponse(*entry))
}
