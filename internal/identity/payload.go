package identity

import (
	"errors"
	"strconv"
	"strings"
)

// JoinPayloadPrefix marks a join payload, typically rendered as a QR code.
const JoinPayloadPrefix = "PDV_EVENT"

// ErrInvalidJoinPayload is returned for payloads missing a required field.
var ErrInvalidJoinPayload = errors.New("invalid join payload")

// JoinPayload is everything a client needs to join a master.
type JoinPayload struct {
	Host string
	Port int
	ID   string
	PIN  string
}

// EncodeJoinPayload renders PDV_EVENT|host=..|port=..|id=..|pin=..
func EncodeJoinPayload(p JoinPayload) string {
	return strings.Join([]string{
		JoinPayloadPrefix,
		"host=" + p.Host,
		"port=" + strconv.Itoa(p.Port),
		"id=" + p.ID,
		"pin=" + p.PIN,
	}, "|")
}

// DecodeJoinPayload parses a payload produced by EncodeJoinPayload. The host
// key must be present; id, pin and port must be present and non-empty.
func DecodeJoinPayload(raw string) (JoinPayload, error) {
	parts := strings.Split(strings.TrimSpace(raw), "|")
	if len(parts) < 2 || parts[0] != JoinPayloadPrefix {
		return JoinPayload{}, ErrInvalidJoinPayload
	}

	fields := make(map[string]string, len(parts)-1)
	for _, seg := range parts[1:] {
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	host, hasHost := fields["host"]
	if !hasHost || fields["id"] == "" || fields["pin"] == "" || fields["port"] == "" {
		return JoinPayload{}, ErrInvalidJoinPayload
	}
	port, err := strconv.Atoi(fields["port"])
	if err != nil || port < 1 || port > 65535 {
		return JoinPayload{}, ErrInvalidJoinPayload
	}

	return JoinPayload{
		Host: host,
		Port: port,
		ID:   fields["id"],
		PIN:  fields["pin"],
	}, nil
}
