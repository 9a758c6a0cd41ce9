package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// connTo points a Conn at a test server.
func connTo(t *testing.T, srv *httptest.Server) Conn {
	t.Helper()
	addr := srv.Listener.Addr().(*net.TCPAddr)
	return Conn{Host: addr.IP.String(), Port: addr.Port, PIN: "482913", EventID: "3f2a9c1b"}
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_SendsEnvelope(t *testing.T) {
	var got models.SyncRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sync" || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		respond(w, http.StatusOK, models.SyncResponse{OK: true})
	}))
	defer srv.Close()

	c := New("dev-a", "Caixa 2", time.Second)
	if _, err := c.Sync(context.Background(), connTo(t, srv), "2026-06-24T18:00:00Z"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got.PIN != "482913" || got.EventID != "3f2a9c1b" || got.DeviceID != "dev-a" ||
		got.Type != "SYNC_PRODUCTS" || got.Since != "2026-06-24T18:00:00Z" {
		t.Fatalf("unexpected envelope %+v", got)
	}
}

func TestClient_ServerErrorIsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusForbidden, models.ErrorResponse{OK: false, Error: "invalid event"})
	}))
	defer srv.Close()

	_, err := New("dev-a", "", time.Second).Join(context.Background(), connTo(t, srv))
	if err == nil || err.Error() != "invalid event" {
		t.Fatalf("expected server message got %v", err)
	}
	if !IsAuthError(err) {
		t.Fatal("403 must be an auth error")
	}
}

func TestClient_RetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "10")
		respond(w, http.StatusTooManyRequests, models.ErrorResponse{Error: "too many requests"})
	}))
	defer srv.Close()

	_, err := New("dev-a", "", time.Second).Sync(context.Background(), connTo(t, srv), "")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError got %T %v", err, err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.RetryAfter != 10*time.Second || apiErr.Auth() {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New("dev-a", "", time.Second).Sync(context.Background(), connTo(t, srv), "")
	if err == nil || err.Error() != "request failed with status 502" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := New("dev-a", "", 50*time.Millisecond).Sync(context.Background(), connTo(t, srv), "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout not applied")
	}
}

func TestClient_PostSaleRequiresOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, models.SaleResponse{OK: false})
	}))
	defer srv.Close()

	summary := &models.SaleSummary{ID: "dev-a:s1", SaleID: "s1"}
	if _, err := New("dev-a", "", time.Second).PostSale(context.Background(), connTo(t, srv), summary, nil); err == nil {
		t.Fatal("expected error for ok=false")
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	if c := New("dev-a", "", 0); c.timeout != DefaultTimeout {
		t.Fatalf("expected %v got %v", DefaultTimeout, c.timeout)
	}
}
