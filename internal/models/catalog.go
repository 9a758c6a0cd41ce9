package models

import "time"

// Product is one sellable item of the event catalog.
type Product struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Price    float64 `json:"price" yaml:"price"`
	Category string  `json:"category,omitempty" yaml:"category"`
	Icon     string  `json:"icon,omitempty" yaml:"icon"`
}

// ProductSnapshot is the master-owned catalog. UpdatedAt never moves backwards.
type ProductSnapshot struct {
	EventName string    `json:"eventName"`
	Products  []Product `json:"products"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SnapshotDelta is returned by /sync. Products is nil when nothing changed
// since the client's last known UpdatedAt.
type SnapshotDelta struct {
	Products  []Product `json:"products"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TicketModel carries what a client needs to render tickets like the master.
type TicketModel struct {
	OrgName     string `json:"orgName,omitempty" yaml:"org_name"`
	Footer      string `json:"footer,omitempty" yaml:"footer"`
	LogoDataURL string `json:"logoDataUrl,omitempty" yaml:"logo_data_url"`
	LogoWidthMM int    `json:"logoWidthMm,omitempty" yaml:"logo_width_mm"`
	ImageMode   string `json:"imageMode,omitempty" yaml:"image_mode"`
}

// ClientSession is the master's volatile record of a joined device.
type ClientSession struct {
	ClientID   string    `json:"clientId"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	IP         string    `json:"ip"`
	LastSeen   time.Time `json:"lastSeen"`
}
