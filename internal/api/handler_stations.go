package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"charging-queue-backend/internal/model"
)

// StationResponse represents the API response for a single station.
type StationResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	TotalPorts int    `json:"totalPorts"`
}

// GetStations handles the GET /api/stations request.
func (h *Handler) GetStations(c *gin.Context) {
	stations, err := h.store.ListStations(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stations"})
		return
	}

	responses := make([]StationResponse, 0, len(stations))
	for _, s := range stations {
		responses = append(responses, StationResponse{
			ID:         s.ID,
			Name:       s.Name,
			TotalPorts: len(s.Ports),
		})
	}
	c.JSON(http.StatusOK, responses)
}

// portSnapshotResponse is the polling-fallback payload for one port.
type portSnapshotResponse struct {
	PortID    int64           `json:"portId"`
	Status    model.PortState `json:"status"`
	Event     string          `json:"event,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// GetPortSnapshot handles GET /api/stations/{station_id}/ports. It is
// the poll-path counterpart of the live stream: any client that missed
// a push converges to correct state from here.
func (h *Handler) GetPortSnapshot(c *gin.Context) {
	stationID, err := strconv.ParseInt(c.Param("station_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid station ID"})
		return
	}

	snapshot, err := h.store.PortSnapshot(c.Request.Context(), stationID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve port status"})
		return
	}

	response := make(map[int64]portSnapshotResponse, len(snapshot))
	for portID, s := range snapshot {
		response[portID] = portSnapshotResponse{
			PortID:    s.PortID,
			Status:    s.Status,
			Event:     s.Event,
			UpdatedAt: s.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, response)
}
