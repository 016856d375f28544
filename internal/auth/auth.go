// Package auth binds inbound commands to the pre-shared ground-station key.
// Tags are HMAC-SHA256 truncated to 8 bytes (16 hex characters): the LoRa
// link budget is tight and full 32-byte tags would double the airtime of a
// short command. The truncation trades signature strength for airtime; it is
// a documented operational tradeoff, not a cryptographic recommendation.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// TagLen is the transmitted tag length in bytes.
const TagLen = 8

// HexTagLen is the tag length as hex characters on the wire.
const HexTagLen = TagLen * 2

// Signer computes and verifies message tags with a fixed pre-shared key.
type Signer struct {
	key []byte
}

// NewSigner copies the key. An empty key is accepted (useful in bench rigs)
// but real deployments load a 32-byte key from configuration.
func NewSigner(key []byte) *Signer {
	k := make([]byte, len(key))
	copy(k, key)
	return &Signer{key: k}
}

// Tag returns the lowercase hex tag for message.
func (s *Signer) Tag(message []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(message)
	sum := mac.Sum(nil)
	return hex.EncodeToString(sum[:TagLen])
}

// Verify checks presented against the computed tag for message. Hex case is
// ignored. The comparison is constant-time; the broadcast radio link makes
// timing attacks largely academic, but it costs nothing here.
func (s *Signer) Verify(message []byte, presented string) bool {
	if len(presented) != HexTagLen {
		return false
	}
	want := s.Tag(message)
	got := strings.ToLower(presented)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
