package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
	"github.com/PratikDhanave/pdv-lan-sync/internal/sessions"
)

// RegisterSyncRoutes registers the catalog delta endpoint.
//
// POST /sync
// - Requires pin + eventId (auth middleware)
// - products is null when the catalog did not change after since
func RegisterSyncRoutes(r gin.IRoutes, reg *sessions.Registry, collab Collaborators) {
	r.POST("/sync", func(c *gin.Context) {
		var req models.SyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid JSON payload")
			return
		}

		ip := c.ClientIP()
		reg.Touch(req.DeviceID, ip)

		result, err := collab.OnSyncRequest(c.Request.Context(), models.SyncInput{
			DeviceID: req.DeviceID,
			Since:    req.Since,
			IP:       ip,
		})
		if err != nil {
			log.Error().Err(err).Str("device_id", req.DeviceID).Msg("sync collaborator failed")
			fail(c, http.StatusInternalServerError, "could not load catalog")
			return
		}

		c.JSON(http.StatusOK, models.SyncResponse{
			OK:            true,
			SnapshotDelta: result.Delta,
			TicketModel:   result.TicketModel,
		})
	})
}
