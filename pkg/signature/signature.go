// Package signature verifies HMAC-SHA256 webhook signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verify checks an HMAC-SHA256 signature against the raw request body.
// The signature must be computed over the body exactly as received, before
// any JSON decoding. Comparison is constant time.
//
// Supported header formats:
//   - "sha256=<hex>" (GitHub style)
//   - "<hex>" (plain hex)
//
// Returns false for an empty secret, an empty header, or a header that does
// not decode to a valid MAC.
func Verify(body []byte, header, secret string) bool {
	if secret == "" || header == "" {
		return false
	}

	actual, err := parseHeader(header)
	if err != nil {
		return false
	}

	return hmac.Equal(Compute(body, secret), actual)
}

// Compute returns the raw HMAC-SHA256 of body keyed with secret.
func Compute(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// ComputeHex returns the hex-encoded HMAC-SHA256 of body keyed with secret.
// Callers building outbound webhook requests use this to sign payloads.
func ComputeHex(body []byte, secret string) string {
	return hex.EncodeToString(Compute(body, secret))
}

func parseHeader(header string) ([]byte, error) {
	hexSig := strings.TrimPrefix(header, "sha256=")
	return hex.DecodeString(hexSig)
}
