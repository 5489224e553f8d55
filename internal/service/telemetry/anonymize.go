package telemetry

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// DefaultSalt matches the development default; deployments must override it.
const DefaultSalt = "default_salt_change_me"

// Anonymizer derives stable, non-reversible identifiers.
type Anonymizer struct {
	salt []byte
}

func NewAnonymizer(salt string) *Anonymizer {
	if salt == "" {
		salt = DefaultSalt
	}
	return &Anonymizer{salt: []byte(salt)}
}

// Hash returns the hex HMAC-SHA256 of value, or "" for an empty value.
func (a *Anonymizer) Hash(value string) string {
	if value == "" {
		return ""
	}
	mac := hmac.New(sha256.New, a.salt)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
