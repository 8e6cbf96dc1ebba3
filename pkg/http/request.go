package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig lists the proxy networks whose forwarding headers are believed.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges
}

// ExtractClientIP resolves the client address for audit attribution.
// Forwarding headers are honored only when the direct peer is a trusted
// proxy; anyone else could plant X-Forwarded-For to misattribute attempts.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := peerAddr(r)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// First valid entry is the originating client.
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if isValidIP(ip) {
					return ip
				}
			}
		}

		if xri := r.Header.Get("X-Real-IP"); isValidIP(xri) {
			return xri
		}
	}

	return remoteIP
}

func peerAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func isTrustedProxy(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}
	return false
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
