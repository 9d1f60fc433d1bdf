// Package privacy masks client identifiers before they reach logs.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"
)

// AnonymizeIP zeroes the host part of an address: IPv4 keeps its /24,
// IPv6 keeps its /48. Returns "unknown" for empty input and "invalid" for
// anything unparseable.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	if addr.Is4() {
		return prefix.Addr().String()
	}
	b := prefix.Addr().As16()
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::", b[0], b[1], b[2], b[3], b[4], b[5])
}

// AnonymizeIdentity masks a throttling identity key ("ip:..." or "ua:...").
// User agents are replaced by a short hash since they are fingerprintable.
func AnonymizeIdentity(key string) string {
	switch {
	case strings.HasPrefix(key, "ip:"):
		return "ip:" + AnonymizeIP(strings.TrimPrefix(key, "ip:"))
	case strings.HasPrefix(key, "ua:"):
		sum := sha256.Sum256([]byte(strings.TrimPrefix(key, "ua:")))
		return "ua:" + hex.EncodeToString(sum[:6])
	default:
		return "unknown"
	}
}

// RedactEmail keeps the first character of the local part and the domain.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
