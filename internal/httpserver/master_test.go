package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/PratikDhanave/pdv-lan-sync/internal/auth"
)

func newTestMaster(t *testing.T, tr Transport) *Master {
	t.Helper()
	return NewMaster(MasterOptions{
		Host:          "127.0.0.1",
		Port:          0,
		Credentials:   auth.Credentials{PIN: testPIN, EventID: testEventID},
		Collaborators: newFixture(t, 30).service,
		Transport:     tr,
	})
}

// postJSON performs a real POST against a running master.
func postJSON(t *testing.T, addr, path string, payload any) (int, []byte) {
	t.Helper()

	b, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, "http://"+addr+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func TestMaster_StartServesAndIsIdempotent(t *testing.T) {
	m := newTestMaster(t, NetTransport{})
	ctx := context.Background()

	h1, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop(ctx)

	h2, err := m.Start(ctx)
	if err != nil || h2 != h1 {
		t.Fatalf("second start must return the running handle: %v", err)
	}

	status, body := postJSON(t, h1.Addr(), "/join", creds(nil))
	if status != http.StatusOK {
		t.Fatalf("join expected 200 got %d: %s", status, body)
	}
	if clients := h1.Clients(); len(clients) != 1 || clients[0].DeviceID != "dev-a" {
		t.Fatalf("expected one joined client got %+v", clients)
	}
}

func TestMaster_StopIsIdempotentAndRestartable(t *testing.T) {
	m := newTestMaster(t, NetTransport{})
	ctx := context.Background()

	h, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	addr := h.Addr()

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("handle stop after master stop: %v", err)
	}

	if _, err := (&http.Client{Timeout: time.Second}).Post("http://"+addr+"/join", "application/json", nil); err == nil {
		t.Fatal("server still answering after stop")
	}

	h2, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer h2.Stop(ctx)
	if h2 == h {
		t.Fatal("restart returned the stopped handle")
	}
}

func TestMaster_NoTransport(t *testing.T) {
	m := newTestMaster(t, nil)
	if _, err := m.Start(context.Background()); !errors.Is(err, ErrServerUnavailable) {
		t.Fatalf("expected ErrServerUnavailable got %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop without server: %v", err)
	}
}

func TestMaster_PortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	m := NewMaster(MasterOptions{
		Host:          "127.0.0.1",
		Port:          l.Addr().(*net.TCPAddr).Port,
		Credentials:   auth.Credentials{PIN: testPIN},
		Collaborators: newFixture(t, 30).service,
		Transport:     NetTransport{},
	})
	if _, err := m.Start(context.Background()); !errors.Is(err, ErrServerUnavailable) {
		t.Fatalf("expected ErrServerUnavailable got %v", err)
	}
}

func TestListenerTransport(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	tr := SelectTransport(l)
	if _, ok := tr.(ListenerTransport); !ok {
		t.Fatalf("expected ListenerTransport got %T", tr)
	}

	m := newTestMaster(t, tr)
	h, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop(context.Background())

	if h.Addr() != l.Addr().String() {
		t.Fatalf("expected %s got %s", l.Addr(), h.Addr())
	}
	if status, _ := postJSON(t, h.Addr(), "/sync", creds(nil)); status != http.StatusOK {
		t.Fatalf("sync expected 200 got %d", status)
	}

	if _, ok := SelectTransport(nil).(NetTransport); !ok {
		t.Fatal("expected NetTransport without a listener")
	}
}
