package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"charging-queue-backend/internal/store"
)

// GetNotifications handles GET /api/users/{user_id}/notifications.
func (h *Handler) GetNotifications(c *gin.Context) {
	userID := c.Param("user_id")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	notifications, err := h.store.ListNotifications(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// MarkNotificationRead handles POST /api/users/{user_id}/notifications/{id}/read.
// The read flip is the only mutation a notification supports.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	err := h.store.MarkNotificationRead(c.Request.Context(), c.Param("user_id"), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification read"})
		return
	}
	c.Status(http.StatusNoContent)
}
