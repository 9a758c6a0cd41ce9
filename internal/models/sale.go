package models

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidSale is returned for a sale or summary without an id to
// deduplicate on.
var ErrInvalidSale = errors.New("sale has no id")

// SaleItem is one line of a completed sale.
type SaleItem struct {
	ProductID string  `json:"productId,omitempty"`
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
	Subtotal  float64 `json:"subtotal"`
}

// Sale is a completed sale as recorded on the device that made it.
// ID is assigned once when the sale is created and never regenerated.
type Sale struct {
	ID         string     `json:"id"`
	EventID    string     `json:"eventId,omitempty"`
	EventName  string     `json:"eventName,omitempty"`
	Payment    string     `json:"payment,omitempty"`
	Received   *float64   `json:"received,omitempty"`
	Change     *float64   `json:"change,omitempty"`
	Items      []SaleItem `json:"items"`
	Total      float64    `json:"total"`
	DeviceID   string     `json:"deviceId,omitempty"`
	DeviceName string     `json:"deviceName,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// SaleSummary is the transport-sized projection of a sale sent to the master.
// ID is the composite "deviceId:saleId" and is the deduplication key.
type SaleSummary struct {
	ID         string     `json:"id"`
	SaleID     string     `json:"saleId"`
	DeviceID   string     `json:"deviceId,omitempty"`
	DeviceName string     `json:"deviceName,omitempty"`
	EventID    string     `json:"eventId,omitempty"`
	EventName  string     `json:"eventName,omitempty"`
	Total      float64    `json:"total"`
	Items      []SaleItem `json:"items"`
	CreatedAt  time.Time  `json:"createdAt"`
	SentAt     time.Time  `json:"sentAt"`
}

// SummaryID builds the composite id used to deduplicate sales on the master.
func SummaryID(deviceID, saleID string) string {
	if deviceID == "" {
		deviceID = "device"
	}
	return deviceID + ":" + saleID
}

// Key returns the id the master deduplicates on.
func (s *SaleSummary) Key() string {
	if s == nil {
		return ""
	}
	if s.ID != "" {
		return s.ID
	}
	return s.SaleID
}

// BuildSummary derives a summary from a full sale. It returns nil for a nil sale
// or one without an id, since such a sale cannot be deduplicated.
func BuildSummary(sale *Sale, deviceID, deviceName string, now time.Time) *SaleSummary {
	if sale == nil || strings.TrimSpace(sale.ID) == "" {
		return nil
	}
	if deviceID == "" {
		deviceID = sale.DeviceID
	}
	if deviceName == "" {
		deviceName = sale.DeviceName
	}
	if deviceName == "" {
		deviceName = "Cliente"
	}

	items := NormalizeItems(sale.Items)
	total := sale.Total
	if total == 0 {
		for _, it := range items {
			total += it.Subtotal
		}
	}

	createdAt := sale.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	return &SaleSummary{
		ID:         SummaryID(deviceID, sale.ID),
		SaleID:     sale.ID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		EventID:    sale.EventID,
		EventName:  strings.TrimSpace(sale.EventName),
		Total:      total,
		Items:      items,
		CreatedAt:  createdAt,
		SentAt:     now,
	}
}

// NormalizeItems fills in missing subtotals as qty * unit price.
func NormalizeItems(items []SaleItem) []SaleItem {
	out := make([]SaleItem, 0, len(items))
	for _, it := range items {
		if it.Subtotal == 0 {
			it.Subtotal = it.Qty * it.UnitPrice
		}
		out = append(out, it)
	}
	return out
}

// PendingSaleEntry is one item of the client outbox. Summary is authoritative
// when present; otherwise the summary is derived from Sale at send time.
type PendingSaleEntry struct {
	Summary  *SaleSummary `json:"summary"`
	Sale     *Sale        `json:"sale"`
	QueuedAt time.Time    `json:"queuedAt"`
}

// ID returns the id used to deduplicate entries in the outbox.
func (e PendingSaleEntry) ID() string {
	if e.Summary != nil && e.Summary.ID != "" {
		return e.Summary.ID
	}
	if e.Sale != nil {
		return e.Sale.ID
	}
	return ""
}

// DeviceTotal is the per-device slice of the master's sales report.
type DeviceTotal struct {
	DeviceID   string  `json:"deviceId"`
	DeviceName string  `json:"deviceName"`
	Sales      int     `json:"sales"`
	Total      float64 `json:"total"`
}

// Totals aggregates every sale the master has applied for an event.
type Totals struct {
	Sales    int           `json:"sales"`
	Total    float64       `json:"total"`
	ByDevice []DeviceTotal `json:"byDevice,omitempty"`
}
