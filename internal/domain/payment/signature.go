// internal/domain/payment/signature.go
package payment

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
)

// Signer signs and verifies gateway payloads:
// signature = base64(sha1(private_key + data + private_key))
type Signer struct {
	publicKey  string
	privateKey string
}

// NewSigner creates a signer for a key pair
func NewSigner(publicKey, privateKey string) *Signer {
	return &Signer{publicKey: publicKey, privateKey: privateKey}
}

// Sign returns the signature of the base64 data field
func (s *Signer) Sign(data string) string {
	sum := sha1.Sum([]byte(s.privateKey + data + s.privateKey))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Verify checks a signature in constant time
func (s *Signer) Verify(data, signature string) bool {
	if s.privateKey == "" || data == "" || signature == "" {
		return false
	}
	expected := s.Sign(data)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Encode serializes a payload into the data and signature form fields
func (s *Signer) Encode(payload interface{}) (data, signature string, err error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode payment payload: %w", err)
	}
	data = base64.StdEncoding.EncodeToString(raw)
	return data, s.Sign(data), nil
}
