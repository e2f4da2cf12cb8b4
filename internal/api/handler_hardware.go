package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"charging-queue-backend/internal/ingest"
)

// PostHardwareReport handles POST /api/hardware/reports. The report is
// acknowledged as long as it is well-formed; downstream store or bus
// trouble is the server's problem, not the hardware's.
func (h *Handler) PostHardwareReport(c *gin.Context) {
	var report ingest.Report
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ingest.HandleReport(c.Request.Context(), report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
