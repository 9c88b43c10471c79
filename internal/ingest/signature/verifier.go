package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"
)

// Header carries the sender's base64-encoded HMAC-SHA256 digest of the
// raw request body.
const Header = "X-Shopify-Hmac-Sha256"

// Verifier checks webhook authenticity against a shared secret. An
// empty secret puts the verifier in insecure mode: every delivery is
// accepted and each one is logged loudly.
type Verifier struct {
	secret []byte
	log    *zap.Logger
}

func New(secret string, log *zap.Logger) *Verifier {
	if secret == "" {
		log.Warn("webhook secret is not configured, signature verification is DISABLED and all payloads will be accepted")
	}
	return &Verifier{secret: []byte(secret), log: log}
}

// Verify reports whether digest authenticates payload. The digest must
// be computed over the exact raw bytes of the request body, before any
// parsing or re-serialization.
func (v *Verifier) Verify(payload []byte, digest string) bool {
	if len(v.secret) == 0 {
		v.log.Warn("accepting webhook without signature verification: no secret configured")
		return true
	}

	digest = strings.TrimSpace(digest)
	if digest == "" {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if len(expected) != len(digest) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(digest))
}
