package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
	"github.com/PratikDhanave/pdv-lan-sync/internal/sessions"
)

// RegisterJoinRoutes registers the join handshake.
//
// POST /join
// - Requires pin + eventId (auth middleware)
// - Registers the device and returns the catalog and ticket model
func RegisterJoinRoutes(r gin.IRoutes, reg *sessions.Registry, collab Collaborators) {
	r.POST("/join", func(c *gin.Context) {
		var req models.JoinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid JSON payload")
			return
		}

		ip := c.ClientIP()
		session, connected := reg.Join(req.DeviceID, req.DeviceName, ip)

		result, err := collab.OnClientJoin(c.Request.Context(), models.JoinInfo{
			ClientID:   session.ClientID,
			DeviceID:   session.DeviceID,
			DeviceName: session.DeviceName,
			IP:         ip,
		})
		if err != nil {
			log.Error().Err(err).Str("client_id", session.ClientID).Msg("join collaborator failed")
			fail(c, http.StatusInternalServerError, "could not load event snapshot")
			return
		}

		log.Info().
			Str("client_id", session.ClientID).
			Str("device_name", session.DeviceName).
			Str("ip", ip).
			Int("clients_connected", connected).
			Msg("client joined")

		c.JSON(http.StatusOK, models.JoinResponse{
			OK:               true,
			Snapshot:         result.Snapshot,
			TicketModel:      result.TicketModel,
			ClientID:         session.ClientID,
			ClientsConnected: connected,
		})
	})
}
