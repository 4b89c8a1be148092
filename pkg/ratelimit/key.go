package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// maxKeyLength bounds stored key length; longer composite keys are hashed.
const maxKeyLength = 64

// KeyFunc extracts the caller identity used as the limiter key.
// An empty result means "no identity" and the request is not limited.
type KeyFunc func(*http.Request) string

// Composite returns the first non-empty key produced by keyFuncs, prefixed with
// its position so that a user id can never collide with an IP address.
// Keys longer than 64 chars are hashed to 32 hex chars.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		for i, fn := range keyFuncs {
			key := fn(r)
			if key == "" {
				continue
			}
			key = string(rune('a'+i)) + ":" + key
			if len(key) > maxKeyLength {
				hash := sha256.Sum256([]byte(key))
				return hex.EncodeToString(hash[:16])
			}
			return key
		}
		return ""
	}
}

// ByUser keys requests by an authenticated user id resolved by userFn.
func ByUser(userFn func(*http.Request) string) KeyFunc {
	return func(r *http.Request) string {
		return userFn(r)
	}
}

// ByIP keys requests by client IP. Proxy headers are consulted in order:
// CF-Connecting-IP, X-Forwarded-For (first valid entry), X-Real-IP, then RemoteAddr.
func ByIP() KeyFunc {
	return ClientIP
}

// ClientIP returns the normalized client IP of r, or "" when none is valid.
func ClientIP(r *http.Request) string {
	if ip := parseIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for part := range strings.SplitSeq(forwarded, ",") {
			if ip := parseIP(part); ip != "" {
				return ip
			}
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
