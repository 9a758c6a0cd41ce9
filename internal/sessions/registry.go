// Package sessions tracks the devices that joined the master. The table is
// volatile: a restarted master simply relearns clients as they rejoin.
package sessions

import (
	"sort"
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// Registry is the in-memory table of joined devices, keyed by client id.
// It is safe for concurrent use.
type Registry struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	clients map[string]models.ClientSession
}

// NewRegistry returns an empty registry. A nil clock means the real clock.
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{clock: clock, clients: make(map[string]models.ClientSession)}
}

// Join registers or refreshes a device. Devices without an id get a
// client-<unix millis> id. It returns the session and the number of known clients.
func (r *Registry) Join(deviceID, deviceName, ip string) (models.ClientSession, int) {
	now := r.clock.Now().UTC()
	clientID := deviceID
	if clientID == "" {
		clientID = "client-" + strconv.FormatInt(now.UnixMilli(), 10)
	}
	if deviceName == "" {
		deviceName = "Cliente"
	}

	s := models.ClientSession{
		ClientID:   clientID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		IP:         ip,
		LastSeen:   now,
	}

	r.mu.Lock()
	r.clients[clientID] = s
	n := len(r.clients)
	r.mu.Unlock()
	return s, n
}

// Touch updates LastSeen for a known device; unknown devices are ignored
// since every request authenticates on its own.
func (r *Registry) Touch(deviceID, ip string) {
	if deviceID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.clients[deviceID]
	if !ok {
		return
	}
	s.LastSeen = r.clock.Now().UTC()
	if ip != "" {
		s.IP = ip
	}
	r.clients[deviceID] = s
}

// Len is the number of known clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// List returns the sessions ordered by client id.
func (r *Registry) List() []models.ClientSession {
	r.mu.RLock()
	out := make([]models.ClientSession, 0, len(r.clients))
	for _, s := range r.clients {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}
