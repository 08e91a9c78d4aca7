package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// sigPrefix is the algorithm prefix GitHub uses in X-Hub-Signature-256.
const sigPrefix = "sha256="

// VerifySignature reports whether header carries a valid HMAC-SHA256
// signature of body under secret, in GitHub's "sha256=<hex>" format.
//
// It fails closed: an empty secret, a missing or foreign-prefixed header, a
// non-hex payload, or a decoded length that differs from the digest length
// all return false. The digest is computed over the exact raw body bytes —
// never a re-serialized form — and compared in constant time.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" || header == "" {
		return false
	}
	if !strings.HasPrefix(header, sigPrefix) {
		return false
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(header, sigPrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if len(sig) != len(expected) {
		return false
	}

	return hmac.Equal(expected, sig)
}
