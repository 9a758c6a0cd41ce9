package models

import (
	"bytes"
	"encoding/json"
)

// Credential is a pin or event id as sent by a device. Older clients send the
// PIN as a JSON number, so numbers and booleans decode to their literal text.
// Objects and arrays decode as empty and never match.
type Credential string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Credential) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*c = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Credential(s)
	case b[0] == '{' || b[0] == '[':
		*c = ""
	default:
		*c = Credential(b)
	}
	return nil
}

// Envelope holds the credentials every request body carries.
type Envelope struct {
	PIN        Credential `json:"pin"`
	EventID    Credential `json:"eventId"`
	DeviceID   string     `json:"deviceId,omitempty"`
	DeviceName string     `json:"deviceName,omitempty"`
	Type       string     `json:"type,omitempty"`
}

// JoinRequest is the POST /join payload.
type JoinRequest struct {
	Envelope
}

// JoinResponse is returned by POST /join.
type JoinResponse struct {
	OK               bool             `json:"ok"`
	Snapshot         *ProductSnapshot `json:"snapshot"`
	TicketModel      *TicketModel     `json:"ticketModel"`
	ClientID         string           `json:"clientId"`
	ClientsConnected int              `json:"clientsConnected"`
}

// SaleRequest is the POST /sale payload. Either Sale or one of the summary
// fields is required; "summary" is accepted as an alias of "saleSummary".
type SaleRequest struct {
	Envelope
	Sale        *Sale        `json:"sale,omitempty"`
	SaleSummary *SaleSummary `json:"saleSummary,omitempty"`
	Summary     *SaleSummary `json:"summary,omitempty"`
}

// SummaryOrAlias returns whichever summary field the client filled in.
func (r SaleRequest) SummaryOrAlias() *SaleSummary {
	if r.SaleSummary != nil {
		return r.SaleSummary
	}
	return r.Summary
}

// SaleResponse is returned by POST /sale. Applied is false when the master had
// already seen the sale; that is still a successful acknowledgement.
type SaleResponse struct {
	OK           bool    `json:"ok"`
	Applied      bool    `json:"applied"`
	Totals       *Totals `json:"totals"`
	ServerSaleID string  `json:"serverSaleId"`
}

// SyncRequest is the POST /sync payload. Since is the client's last known
// catalog UpdatedAt in RFC 3339 form, or empty.
type SyncRequest struct {
	Envelope
	Since string `json:"since,omitempty"`
}

// SyncResponse is returned by POST /sync.
type SyncResponse struct {
	OK            bool          `json:"ok"`
	SnapshotDelta SnapshotDelta `json:"snapshotDelta"`
	TicketModel   *TicketModel  `json:"ticketModel"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// JoinInfo is what the join collaborator learns about a joining device.
type JoinInfo struct {
	ClientID   string
	DeviceID   string
	DeviceName string
	IP         string
}

// JoinResult is what the join collaborator hands back to the device.
type JoinResult struct {
	Snapshot    *ProductSnapshot
	TicketModel *TicketModel
}

// SaleInput is what the sale collaborator receives.
type SaleInput struct {
	Sale       *Sale
	Summary    *SaleSummary
	DeviceID   string
	DeviceName string
	IP         string
}

// SaleResult reports whether a sale was applied for the first time.
type SaleResult struct {
	Applied      bool
	Totals       *Totals
	ServerSaleID string
}

// SyncInput is what the sync collaborator receives.
type SyncInput struct {
	DeviceID string
	Since    string
	IP       string
}

// SyncResult is the catalog delta for one device.
type SyncResult struct {
	Delta       SnapshotDelta
	TicketModel *TicketModel
}
