package payway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"strings"
)

// Canonical joins field values in order with no separator. Absent values must be passed as "".
func Canonical(fields ...string) string {
	return strings.Join(fields, "")
}

// Signer computes PayWay hashes: base64(HMAC-SHA512(apiKey, canonical string)).
type Signer struct {
	key []byte
}

func NewSigner(apiKey string) *Signer {
	return &Signer{key: []byte(apiKey)}
}

func (s *Signer) Sign(fields ...string) string {
	mac := hmac.New(sha512.New, s.key)
	mac.Write([]byte(Canonical(fields...)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected hash in constant time.
func (s *Signer) Verify(signature string, fields ...string) bool {
	expected := s.Sign(fields...)
	return hmac.Equal([]byte(expected), []byte(signature))
}
