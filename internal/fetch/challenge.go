package fetch

import (
	"bytes"
)

// Known bot-challenge body signatures, matched case-insensitively.
var challengeMarkers = [][]byte{
	[]byte("cf-chl-"),
	[]byte("checking your browser"),
	[]byte("just a moment..."),
}

var (
	markerCloudflare = []byte("cloudflare")
	markerAttention  = []byte("attention required")
)

// IsChallenge reports whether the body looks like an anti-automation
// challenge page rather than real content.
func IsChallenge(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	lower := bytes.ToLower(body)
	if bytes.Contains(lower, markerCloudflare) && bytes.Contains(lower, markerAttention) {
		return true
	}
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}
