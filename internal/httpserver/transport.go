package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrServerUnavailable is returned when no transport can host the master on
// this runtime. The event keeps working in single-device mode.
var ErrServerUnavailable = errors.New("LAN server unavailable on this device")

// Options say where a transport should listen.
type Options struct {
	Host string
	Port int
}

// StopFunc shuts a running transport down.
type StopFunc func(ctx context.Context) error

// Transport hosts an http.Handler. Start returns the address actually bound.
type Transport interface {
	Start(ctx context.Context, opts Options, h http.Handler) (string, StopFunc, error)
}

// NetTransport binds host:port itself.
type NetTransport struct{}

// Start listens on opts.Host:opts.Port; port 0 picks a free port.
func (NetTransport) Start(ctx context.Context, opts Options, h http.Handler) (string, StopFunc, error) {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("%w: listen %s: %v", ErrServerUnavailable, addr, err)
	}
	return serve(l, h)
}

// ListenerTransport serves on a listener the host already opened, e.g. one
// handed over by the platform or a test.
type ListenerTransport struct {
	Listener net.Listener
}

// Start serves on the wrapped listener and ignores opts.
func (t ListenerTransport) Start(_ context.Context, _ Options, h http.Handler) (string, StopFunc, error) {
	if t.Listener == nil {
		return "", nil, fmt.Errorf("%w: no listener", ErrServerUnavailable)
	}
	return serve(t.Listener, h)
}

// SelectTransport picks the transport for this runtime: a listener provided by
// the host wins, otherwise the master binds its own socket.
func SelectTransport(l net.Listener) Transport {
	if l != nil {
		return ListenerTransport{Listener: l}
	}
	return NetTransport{}
}

func serve(l net.Listener, h http.Handler) (string, StopFunc, error) {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", l.Addr().String()).Msg("master server stopped unexpectedly")
		}
	}()

	return l.Addr().String(), srv.Shutdown, nil
}
