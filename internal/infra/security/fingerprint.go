package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ClientFingerprint derives a stable identifier for rate-limit scoping from
// the request metadata available at the gateway. The same client yields the
// same string across attempts within a session; the raw IP and user agent
// never leave the process.
func ClientFingerprint(ip, userAgent string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}

	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:16])
}
