// Package lan finds the address other devices on the Wi-Fi should dial.
package lan

import (
	"errors"
	"net"
)

// ErrNoLANAddress is returned when no private IPv4 interface is up.
var ErrNoLANAddress = errors.New("no LAN IPv4 address found")

// LocalIPv4 returns the first private IPv4 address of an interface that is up
// and not a loopback.
func LocalIPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ip := privateIPv4(a); ip != "" {
				return ip, nil
			}
		}
	}
	return "", ErrNoLANAddress
}

func privateIPv4(a net.Addr) string {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	}
	ip4 := ip.To4()
	if ip4 == nil || !ip4.IsPrivate() {
		return ""
	}
	return ip4.String()
}
