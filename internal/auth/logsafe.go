package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// maskUsername redacts a username for log output ("johnsmith" -> "jo*****th").
func maskUsername(username string) string {
	if username == "" {
		return "***"
	}
	if len(username) <= 4 {
		return "****"
	}
	masked := make([]byte, len(username))
	copy(masked, username[:2])
	for i := 2; i < len(username)-2; i++ {
		masked[i] = '*'
	}
	copy(masked[len(username)-2:], username[len(username)-2:])
	return string(masked)
}

// hashIP reduces an IP to a short SHA-256 prefix so logs can correlate
// sources without storing the address next to login outcomes.
func hashIP(ip string) string {
	if ip == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])[:12]
}
