// Package identity derives the pseudo-identity keys used for throttling and
// anti-forgery state. Keys are not verified identities; two clients behind
// one NAT share a key, and that collision is accepted.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// Unknown is the client IP when no address can be resolved.
const Unknown = "unknown"

const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
	headerUserAgent    = "User-Agent"
)

// Resolver computes identity keys from request headers. The zero value
// reads only forwarding headers; UseRemoteAddr additionally falls back to
// the connection's peer address before giving up.
type Resolver struct {
	UseRemoteAddr bool
}

var defaultResolver Resolver

// Identify returns "ip:<addr>" for the first X-Forwarded-For entry or
// X-Real-IP, or "ua:<user agent>" when no address is available. It never
// fails.
func Identify(r *http.Request) string {
	return defaultResolver.Identify(r)
}

// SessionFingerprint is the hex SHA-256 of "<client ip>:<user agent>".
func SessionFingerprint(r *http.Request) string {
	return defaultResolver.SessionFingerprint(r)
}

func (res Resolver) Identify(r *http.Request) string {
	ip := res.ClientIP(r)
	if ip == "" || ip == Unknown {
		ua := r.Header.Get(headerUserAgent)
		if ua == "" {
			ua = Unknown
		}
		return "ua:" + ua
	}
	return "ip:" + ip
}

func (res Resolver) SessionFingerprint(r *http.Request) string {
	sum := sha256.Sum256([]byte(res.ClientIP(r) + ":" + r.Header.Get(headerUserAgent)))
	return hex.EncodeToString(sum[:])
}

// ClientIP resolves the client address. A present X-Forwarded-For header
// always wins, even when its first entry is blank.
func (res Resolver) ClientIP(r *http.Request) string {
	if xff := r.Header.Get(headerForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get(headerRealIP); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	if res.UseRemoteAddr {
		if host := remoteHost(r.RemoteAddr); host != "" {
			return host
		}
	}
	return Unknown
}

func remoteHost(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.Trim(remoteAddr, "[]")
	}
	return host
}
