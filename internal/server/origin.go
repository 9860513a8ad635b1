package server

import (
	"net"
	"net/http"
	"strings"
)

// maskOrigin reduces a client address to a network prefix before it is
// stored or logged: /24 for IPv4, /48 for IPv6. Unparseable input masks to
// the empty string rather than leaking through.
func maskOrigin(remoteAddr string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return (&net.IPNet{IP: v4.Mask(net.CIDRMask(24, 32)), Mask: net.CIDRMask(24, 32)}).String()
	}
	return (&net.IPNet{IP: ip.Mask(net.CIDRMask(48, 128)), Mask: net.CIDRMask(48, 128)}).String()
}

// clientOrigin resolves the caller's masked origin, preferring the first
// X-Forwarded-For hop when present (the service sits behind the platform's
// edge proxy).
func clientOrigin(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if m := maskOrigin(first); m != "" {
			return m
		}
	}
	return maskOrigin(r.RemoteAddr)
}
