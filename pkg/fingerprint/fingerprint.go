package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"

	"github.com/dmitrymomot/statuscast/pkg/clientip"
)

// Headers a client may use to present its own device fingerprint.
const (
	HeaderDeviceFingerprint    = "X-Device-Fingerprint"
	HeaderDeviceFingerprintAlt = "Device-Fingerprint"
)

// Generate derives a 32-character hex fingerprint from request headers and
// client IP. Used when the client does not send a fingerprint header.
func Generate(r *http.Request) string {
	components := []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		r.Header.Get("Accept"),
		clientip.GetIP(r),
		headerOrder(r),
	}

	filtered := components[:0]
	for _, c := range components {
		if c != "" {
			filtered = append(filtered, c)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(filtered, "|")))
	return hex.EncodeToString(hash[:16])
}

// FromRequest returns the client-supplied fingerprint header, or a derived
// fingerprint when none is present.
func FromRequest(r *http.Request) string {
	for _, h := range []string{HeaderDeviceFingerprint, HeaderDeviceFingerprintAlt} {
		if fp := strings.TrimSpace(r.Header.Get(h)); fp != "" {
			return fp
		}
	}
	return Generate(r)
}

// DeviceID is the stable identity used for admission control:
// "<fingerprint>:<client ip>". A missing IP is recorded as "unknown".
func DeviceID(r *http.Request) string {
	ip := clientip.GetIP(r)
	if ip == "" {
		ip = "unknown"
	}
	return FromRequest(r) + ":" + ip
}

// Truncate shortens a device id for logs and API responses.
func Truncate(deviceID string) string {
	const n = 20
	if len(deviceID) <= n {
		return deviceID
	}
	return deviceID[:n] + "..."
}

// headerOrder lists the stable browser headers present on the request.
func headerOrder(r *http.Request) string {
	var names []string
	for name := range r.Header {
		switch n := strings.ToLower(name); n {
		case "user-agent", "accept", "accept-language", "accept-encoding",
			"connection", "upgrade-insecure-requests", "sec-fetch-dest",
			"sec-fetch-mode", "sec-fetch-site", "cache-control":
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
