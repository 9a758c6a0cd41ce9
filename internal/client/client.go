// Package client is the client device's side of the sync protocol: the wire
// calls to the master and the agent that keeps the catalog and outbox in sync.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// DefaultTimeout bounds every call to the master.
const DefaultTimeout = 8 * time.Second

// Conn is where and how to reach a master.
type Conn struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	PIN     string `json:"pin"`
	EventID string `json:"eventId"`
}

func (c Conn) url(path string) string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + path
}

// APIError is a non-2xx reply from the master. Message is the server's error
// text, verbatim.
type APIError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return e.Message
}

// Auth reports whether the master rejected the credentials. Such errors need
// the user to re-enter them; retrying is pointless.
func (e *APIError) Auth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsAuthError reports whether err is a credential rejection from the master.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Auth()
}

// Client performs the three protocol calls for one device.
type Client struct {
	http       *http.Client
	timeout    time.Duration
	deviceID   string
	deviceName string
}

// New returns a client that identifies as deviceID. A non-positive timeout
// means DefaultTimeout.
func New(deviceID, deviceName string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		timeout:    timeout,
		deviceID:   deviceID,
		deviceName: deviceName,
	}
}

func (c *Client) envelope(conn Conn, typ string) models.Envelope {
	return models.Envelope{
		PIN:        models.Credential(conn.PIN),
		EventID:    models.Credential(conn.EventID),
		DeviceID:   c.deviceID,
		DeviceName: c.deviceName,
		Type:       typ,
	}
}

// Join performs the one-time handshake.
func (c *Client) Join(ctx context.Context, conn Conn) (*models.JoinResponse, error) {
	var out models.JoinResponse
	req := models.JoinRequest{Envelope: c.envelope(conn, "REQUEST_PRODUCTS")}
	if err := c.postJSON(ctx, conn, "/join", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostSale sends one sale. A nil error means the master acknowledged it,
// whether it applied it now or had already applied it before.
func (c *Client) PostSale(ctx context.Context, conn Conn, summary *models.SaleSummary, sale *models.Sale) (*models.SaleResponse, error) {
	var out models.SaleResponse
	req := models.SaleRequest{
		Envelope:    c.envelope(conn, "SALE_SUMMARY"),
		Sale:        sale,
		SaleSummary: summary,
	}
	if err := c.postJSON(ctx, conn, "/sale", req, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, errors.New("master did not acknowledge the sale")
	}
	return &out, nil
}

// Sync asks for catalog changes after since (RFC 3339, may be empty).
func (c *Client) Sync(ctx context.Context, conn Conn, since string) (*models.SyncResponse, error) {
	var out models.SyncResponse
	req := models.SyncRequest{Envelope: c.envelope(conn, "SYNC_PRODUCTS"), Since: since}
	if err := c.postJSON(ctx, conn, "/sync", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, conn Conn, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.url(path), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("request failed with status %d", resp.StatusCode)}
		var e models.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
