package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// Collaborators are the host application's business effects. The handlers
// only authenticate, translate and delegate.
type Collaborators interface {
	OnClientJoin(ctx context.Context, info models.JoinInfo) (models.JoinResult, error)
	OnSale(ctx context.Context, in models.SaleInput) (models.SaleResult, error)
	OnSyncRequest(ctx context.Context, in models.SyncInput) (models.SyncResult, error)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, models.ErrorResponse{OK: false, Error: msg})
}
