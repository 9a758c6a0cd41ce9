package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/auth"
	"github.com/PratikDhanave/pdv-lan-sync/internal/handlers"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
	"github.com/PratikDhanave/pdv-lan-sync/internal/ratelimit"
	"github.com/PratikDhanave/pdv-lan-sync/internal/sessions"
)

// RouterConfig is everything the request pipeline needs.
type RouterConfig struct {
	Credentials   auth.Credentials
	Limiter       *ratelimit.Limiter
	Sessions      *sessions.Registry
	Collaborators handlers.Collaborators
}

// NewRouter wires the master's request pipeline. Every request, matched or
// not, goes through the same checks in this order:
// CORS/OPTIONS → POST only (405) → rate limit (429) → PIN (401) → event (403).
// Unmatched paths that pass them get 404.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	// A redirect would answer before authentication runs; /join/ is just an
	// unknown route.
	r.RedirectTrailingSlash = false
	// The rate limiter keys on the peer address; on a LAN there is no proxy
	// whose forwarding headers we could trust.
	_ = r.SetTrustedProxies(nil)

	r.Use(
		gin.Recovery(),
		requestLogger(),
		corsMiddleware(),
		postOnly(),
		ratelimit.Middleware(cfg.Limiter),
		auth.PINMiddleware(cfg.Credentials),
	)

	handlers.RegisterJoinRoutes(r, cfg.Sessions, cfg.Collaborators)
	handlers.RegisterSaleRoutes(r, cfg.Sessions, cfg.Collaborators)
	handlers.RegisterSyncRoutes(r, cfg.Sessions, cfg.Collaborators)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{OK: false, Error: "route not found"})
	})

	return r
}

func postOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, models.ErrorResponse{OK: false, Error: "method not allowed"})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("ip", c.ClientIP()).
			Str("device_id", auth.Envelope(c).DeviceID).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
