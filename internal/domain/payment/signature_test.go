package payment

import (
	"crypto/sha1"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignMatchesGatewayFormula(t *testing.T) {
	signer := NewSigner("public", "private")
	data := base64.StdEncoding.EncodeToString([]byte(`{"order_id":"x"}`))

	sum := sha1.Sum([]byte("private" + data + "private"))
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), signer.Sign(data))
}

func TestSigner_Verify(t *testing.T) {
	signer := NewSigner("public", "private")
	data, signature, err := signer.Encode(map[string]string{"status": "success"})
	require.NoError(t, err)

	assert.True(t, signer.Verify(data, signature))
	assert.False(t, signer.Verify(data+"=", signature), "tampered data")
	assert.False(t, signer.Verify(data, NewSigner("public", "other").Sign(data)), "foreign key")
	assert.False(t, signer.Verify(data, ""))
	assert.False(t, NewSigner("public", "").Verify(data, NewSigner("public", "").Sign(data)), "empty key never verifies")
}
