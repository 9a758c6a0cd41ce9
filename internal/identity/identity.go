// Package identity issues the credentials that scope one event's LAN session:
// a stable event key, its short wire id, and a 6-digit PIN.
package identity

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/kv"
)

const (
	eventKeyPrefix = "pdv:eventoKey"
	eventPINPrefix = "pdv:eventoPin"
	deviceIDKey    = "pdv:deviceId"

	pinMin = 100000
	pinMax = 999999
)

// Identity scopes one event's sync session. A zero Identity means
// multi-device mode is disabled for the event.
type Identity struct {
	EventKey string `json:"eventKey"`
	ShortID  string `json:"shortId"`
	PIN      string `json:"pin"`
}

// Enabled reports whether every part of the identity could be issued.
func (i Identity) Enabled() bool {
	return i.EventKey != "" && i.ShortID != "" && i.PIN != ""
}

// Resolve returns the identity for an event, creating it on first use.
func Resolve(ctx context.Context, store kv.Store, eventIDOrName string) Identity {
	key := EventKey(ctx, store, eventIDOrName)
	if key == "" {
		return Identity{}
	}
	pin := EventPIN(ctx, store, key)
	if pin == "" {
		return Identity{}
	}
	return Identity{EventKey: key, ShortID: ShortID(key), PIN: pin}
}

// EventKey returns the stored UUID for an event, generating and persisting one
// the first time. Storage failures degrade to "".
func EventKey(ctx context.Context, store kv.Store, eventIDOrName string) string {
	id := strings.TrimSpace(eventIDOrName)
	if id == "" {
		return ""
	}
	return getOrCreate(ctx, store, eventKeyPrefix+":"+id, newUUID)
}

// EventPIN returns the stored PIN for an event key, generating one in
// [100000, 999999] the first time.
func EventPIN(ctx context.Context, store kv.Store, eventKey string) string {
	key := strings.TrimSpace(eventKey)
	if key == "" {
		return ""
	}
	return getOrCreate(ctx, store, eventPINPrefix+":"+key, newPIN)
}

// DeviceID returns this device's stable id.
func DeviceID(ctx context.Context, store kv.Store) string {
	return getOrCreate(ctx, store, deviceIDKey, func() string {
		return "device-" + newUUID()
	})
}

// ShortID is the wire-level event id: the first 8 characters of the key.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func getOrCreate(ctx context.Context, store kv.Store, key string, gen func() string) string {
	if store == nil {
		return ""
	}
	existing, err := store.Load(ctx, key)
	if err == nil && len(existing) > 0 {
		return string(existing)
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		log.Warn().Err(err).Str("key", key).Msg("identity storage unavailable")
		return ""
	}

	value := gen()
	if err := store.Save(ctx, key, []byte(value)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("identity storage unavailable")
		return ""
	}
	return value
}

func newUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fallbackUUID()
	}
	return id.String()
}

// fallbackUUID has the textual shape of a v4 UUID but uses a non-crypto
// source. Only reached when the system random source fails.
func fallbackUUID() string {
	var b [16]byte
	for i := range b {
		b[i] = byte(rand.IntN(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func newPIN() string {
	return strconv.Itoa(pinMin + rand.IntN(pinMax-pinMin+1))
}
