package identity

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/nailsalon/admin-gate/internal/domain"
)

// ClientAddress picks the caller address: the first hop of X-Forwarded-For,
// then X-Real-IP, then the "unknown" sentinel.
func ClientAddress(forwardedFor, realIP string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(realIP); ip != "" {
		return ip
	}
	return domain.UnknownAddress
}

// Fingerprint derives an advisory device fingerprint from request headers.
// It never grants access.
func Fingerprint(userAgent, acceptLanguage, acceptEncoding string) string {
	sum := blake2b.Sum256([]byte(userAgent + "|" + acceptLanguage + "|" + acceptEncoding))
	return hex.EncodeToString(sum[:])
}
