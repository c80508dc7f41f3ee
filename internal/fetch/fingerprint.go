// Package fetch - fingerprint.go defines the browser profiles: a TLS ClientHello
// plus the header set that browser sends.
package fetch

import (
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// Fingerprint names.
const (
	FingerprintChrome    = "chrome"
	FingerprintChrome110 = "chrome110"
	FingerprintSafari    = "safari15_3"

	DefaultFingerprint = FingerprintChrome
)

const chromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fingerprint imitates one browser build at the TLS and HTTP header level.
type Fingerprint struct {
	Name    string
	Hello   utls.ClientHelloID
	Headers map[string]string
}

// Apply sets the profile's headers on req, replacing existing values.
func (f Fingerprint) Apply(req *http.Request) {
	for key, value := range f.Headers {
		req.Header.Set(key, value)
	}
}

var fingerprints = []Fingerprint{
	{
		Name:  FingerprintChrome,
		Hello: utls.HelloChrome_120,
		Headers: map[string]string{
			"User-Agent":         chromeUserAgent,
			"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":    "en-US,en;q=0.9",
			"Sec-Ch-Ua":          `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
			"Sec-Ch-Ua-Mobile":   "?0",
			"Sec-Ch-Ua-Platform": `"Windows"`,
			"Sec-Fetch-Dest":     "document",
			"Sec-Fetch-Mode":     "navigate",
			"Sec-Fetch-Site":     "none",
		},
	},
	{
		Name: FingerprintChrome110,
		// closest shipped parrot; Chrome shuffles extensions from 106 on
		Hello: utls.HelloChrome_106_Shuffle,
		Headers: map[string]string{
			"User-Agent":         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
			"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":    "en-US,en;q=0.9",
			"Sec-Ch-Ua":          `"Chromium";v="110", "Not A(Brand";v="24", "Google Chrome";v="110"`,
			"Sec-Ch-Ua-Mobile":   "?0",
			"Sec-Ch-Ua-Platform": `"Windows"`,
		},
	},
	{
		Name:  FingerprintSafari,
		Hello: utls.HelloSafari_16_0,
		Headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.3 Safari/605.1.15",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	},
}

// Fingerprints returns every profile in rotation order.
func Fingerprints() []Fingerprint {
	out := make([]Fingerprint, len(fingerprints))
	copy(out, fingerprints)
	return out
}

// FingerprintNames returns the profile names in rotation order.
func FingerprintNames() []string {
	names := make([]string, 0, len(fingerprints))
	for _, fp := range fingerprints {
		names = append(names, fp.Name)
	}
	return names
}

// LookupFingerprint finds a profile by name.
func LookupFingerprint(name string) (Fingerprint, bool) {
	for _, fp := range fingerprints {
		if fp.Name == name {
			return fp, true
		}
	}
	return Fingerprint{}, false
}
