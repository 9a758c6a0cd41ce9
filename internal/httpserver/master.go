package httpserver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/auth"
	"github.com/PratikDhanave/pdv-lan-sync/internal/handlers"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
	"github.com/PratikDhanave/pdv-lan-sync/internal/ratelimit"
	"github.com/PratikDhanave/pdv-lan-sync/internal/sessions"
)

// MasterOptions configure one event's master server.
type MasterOptions struct {
	Host          string
	Port          int
	Credentials   auth.Credentials
	RateWindow    time.Duration
	RateMax       int
	Collaborators handlers.Collaborators
	Transport     Transport
	Clock         clockwork.Clock
}

// Master owns the lifecycle of the server for one opened event. It holds at
// most one running Handle.
type Master struct {
	opts MasterOptions

	mu     sync.Mutex
	handle *Handle
}

// NewMaster returns a stopped master. A nil Clock means the real clock.
func NewMaster(opts MasterOptions) *Master {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Master{opts: opts}
}

// Start brings the server up. Calling it while a server is running returns
// the running handle.
func (m *Master) Start(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil && !m.handle.stopped.Load() {
		return m.handle, nil
	}
	if m.opts.Transport == nil {
		return nil, ErrServerUnavailable
	}
	if m.opts.Collaborators == nil {
		return nil, errors.New("master: collaborators required")
	}

	reg := sessions.NewRegistry(m.opts.Clock)
	router := NewRouter(RouterConfig{
		Credentials:   m.opts.Credentials,
		Limiter:       ratelimit.New(m.opts.RateWindow, m.opts.RateMax, m.opts.Clock),
		Sessions:      reg,
		Collaborators: m.opts.Collaborators,
	})

	addr, stop, err := m.opts.Transport.Start(ctx, Options{Host: m.opts.Host, Port: m.opts.Port}, router)
	if err != nil {
		return nil, err
	}

	log.Info().Str("addr", addr).Str("event_id", m.opts.Credentials.EventID).Msg("master server started")
	m.handle = &Handle{addr: addr, stop: stop, sessions: reg}
	return m.handle, nil
}

// Stop shuts the running server down. It is a no-op when nothing runs.
func (m *Master) Stop(ctx context.Context) error {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	m.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Stop(ctx)
}

// Handle is a running master server.
type Handle struct {
	addr     string
	stop     StopFunc
	sessions *sessions.Registry

	stopped atomic.Bool
	once    sync.Once
	err     error
}

// Addr is the address the server is bound to.
func (h *Handle) Addr() string { return h.addr }

// Clients lists the devices that joined since the server started.
func (h *Handle) Clients() []models.ClientSession { return h.sessions.List() }

// Stop is idempotent; later calls return the first call's result.
func (h *Handle) Stop(ctx context.Context) error {
	h.once.Do(func() {
		h.stopped.Store(true)
		if h.stop != nil {
			h.err = h.stop(ctx)
		}
		log.Info().Str("addr", h.addr).Int("clients", h.sessions.Len()).Msg("master server stopped")
	})
	return h.err
}
