package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
	"github.com/PratikDhanave/pdv-lan-sync/internal/sessions"
)

// RegisterSaleRoutes registers the ingestion-path endpoint.
//
// POST /sale
// - Requires pin + eventId (auth middleware)
// - Idempotent: a sale already seen is acknowledged with applied=false
// - Returns 200 only after the collaborator has durably recorded the sale
func RegisterSaleRoutes(r gin.IRoutes, reg *sessions.Registry, collab Collaborators) {
	r.POST("/sale", func(c *gin.Context) {
		var req models.SaleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid JSON payload")
			return
		}

		summary := req.SummaryOrAlias()
		if req.Sale == nil && summary == nil {
			fail(c, http.StatusBadRequest, "sale or saleSummary required")
			return
		}

		ip := c.ClientIP()
		reg.Touch(req.DeviceID, ip)

		deviceName := req.DeviceName
		if deviceName == "" {
			deviceName = "Cliente"
		}

		result, err := collab.OnSale(c.Request.Context(), models.SaleInput{
			Sale:       req.Sale,
			Summary:    summary,
			DeviceID:   req.DeviceID,
			DeviceName: deviceName,
			IP:         ip,
		})
		if errors.Is(err, models.ErrInvalidSale) {
			fail(c, http.StatusBadRequest, "sale id required")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("device_id", req.DeviceID).Msg("sale collaborator failed")
			fail(c, http.StatusInternalServerError, "could not record sale")
			return
		}

		serverSaleID := result.ServerSaleID
		if serverSaleID == "" && req.Sale != nil {
			serverSaleID = req.Sale.ID
		}

		// Duplicates are a successful no-op: the client must stop retrying
		// either way.
		c.JSON(http.StatusOK, models.SaleResponse{
			OK:           true,
			Applied:      result.Applied,
			Totals:       result.Totals,
			ServerSaleID: serverSaleID,
		})
	})
}
