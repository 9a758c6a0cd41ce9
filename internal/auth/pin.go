package auth

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// envelopeCtxKey is the Gin context key used to store the authenticated envelope.
const envelopeCtxKey = "pdv_envelope"

// maxBodyBytes bounds request bodies; a sale with hundreds of items still fits.
const maxBodyBytes = 1 << 20

// Credentials are what a master checks every request against.
type Credentials struct {
	PIN string
	// EventID is the short event id. Empty skips the event check.
	EventID string
}

// PINMiddleware authenticates the JSON body's pin and eventId.
//
// A body that is not JSON is treated as carrying no credentials and gets 401.
// A wrongly typed non-credential field does not hide the credentials; the
// handler rejects it with 400 once the request is authenticated. The body is
// restored afterwards so handlers can bind it again.
func PINMiddleware(creds Credentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{OK: false, Error: "request body too large"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		var env models.Envelope
		if len(raw) > 0 {
			var typeErr *json.UnmarshalTypeError
			if err := json.Unmarshal(raw, &env); err != nil && !errors.As(err, &typeErr) {
				env = models.Envelope{}
			}
		}

		if creds.PIN == "" || env.PIN == "" || !equal(string(env.PIN), creds.PIN) {
			log.Warn().Str("ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("rejected request: invalid PIN")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{OK: false, Error: "invalid PIN"})
			return
		}

		if creds.EventID != "" && !equal(string(env.EventID), creds.EventID) {
			log.Warn().Str("ip", c.ClientIP()).Str("event_id", string(env.EventID)).Msg("rejected request: wrong event")
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{OK: false, Error: "invalid event"})
			return
		}

		c.Set(envelopeCtxKey, env)
		c.Next()
	}
}

// Envelope returns the authenticated envelope from the request context.
func Envelope(c *gin.Context) models.Envelope {
	v, _ := c.Get(envelopeCtxKey)
	env, _ := v.(models.Envelope)
	return env
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
