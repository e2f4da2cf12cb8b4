package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"charging-queue-backend/internal/model"
)

type putWatchRequest struct {
	StationID int64  `json:"stationId" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
	Endpoint  string `json:"endpoint" binding:"required"`
	P256DH    string `json:"p256dh" binding:"required"`
	Auth      string `json:"auth" binding:"required"`
}

// PutWatch handles PUT /api/watches: a one-shot "notify me when a port
// frees up" subscription. It delivers a single notification and then
// deactivates itself; it does not hold a place in the queue.
func (h *Handler) PutWatch(c *gin.Context) {
	var req putWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	watch := model.AvailabilityWatch{
		StationID: req.StationID,
		UserID:    req.UserID,
		Endpoint:  req.Endpoint,
		P256DH:    req.P256DH,
		Auth:      req.Auth,
	}
	if err := h.store.UpsertWatch(c.Request.Context(), &watch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusCreated)
}

type deleteWatchRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteWatch handles DELETE /api/watches.
func (h *Handler) DeleteWatch(c *gin.Context) {
	var req deleteWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.DeleteWatchByEndpoint(c.Request.Context(), req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
