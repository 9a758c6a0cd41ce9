package client

import (
	"strconv"
	"strings"
)

// ValidationError rejects join parameters before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// JoinParams are the join fields as a user types them or a QR code carries them.
type JoinParams struct {
	Host    string
	Port    string
	EventID string
	PIN     string
}

// Conn validates the parameters and returns the connection they describe.
func (p JoinParams) Conn() (Conn, error) {
	host := strings.TrimSpace(p.Host)
	if host == "" || strings.ContainsAny(host, " /") {
		return Conn{}, &ValidationError{Field: "host", Message: "enter the master's IP address"}
	}

	port, err := strconv.Atoi(strings.TrimSpace(p.Port))
	if err != nil || port < 1 || port > 65535 {
		return Conn{}, &ValidationError{Field: "port", Message: "port must be a number between 1 and 65535"}
	}

	eventID := strings.TrimSpace(p.EventID)
	if eventID == "" {
		return Conn{}, &ValidationError{Field: "eventId", Message: "enter the event id"}
	}

	pin := strings.TrimSpace(p.PIN)
	if !validPIN(pin) {
		return Conn{}, &ValidationError{Field: "pin", Message: "PIN must have 6 digits"}
	}

	return Conn{Host: host, Port: port, PIN: pin, EventID: eventID}, nil
}

func validPIN(pin string) bool {
	if len(pin) != 6 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
