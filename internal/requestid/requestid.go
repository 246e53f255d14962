package requestid

import (
	crand "crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

const HeaderKey = "X-Request-Id"

// maxInboundLen bounds ids accepted from clients.
const maxInboundLen = 128

// ResolveHeaderKey returns headerKey, or HeaderKey when it is blank.
func ResolveHeaderKey(headerKey string) string {
	if v := strings.TrimSpace(headerKey); v != "" {
		return v
	}
	return HeaderKey
}

// Gen returns yyyymmddHHMMSS followed by 12 random hex digits.
func Gen() string {
	var b [6]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UTC().Format("20060102150405.000000")
	}
	return time.Now().UTC().Format("20060102150405") + hex.EncodeToString(b[:])
}

// FromInbound keeps a client supplied id when it is printable and short,
// otherwise it generates a new one.
func FromInbound(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxInboundLen {
		return Gen()
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 0x21 || v[i] > 0x7e {
			return Gen()
		}
	}
	return v
}
