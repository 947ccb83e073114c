package payment

import (
	"encoding/base64"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/storefront-backend/internal/pkg/validation"
)

const testTxID = "6f1c2d1e-9a0b-4c3d-8e7f-112233445566"

func encode(t *testing.T, raw string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func TestDecodeCallback(t *testing.T) {
	data := encode(t, `{"order_id":"`+testTxID+`","action":"pay","status":"success","amount":150.5,"currency":"uah","payment_id":42}`)

	cb, err := DecodeCallback(data)
	require.NoError(t, err)
	assert.Equal(t, testTxID, cb.TransactionID)
	assert.True(t, cb.Amount.Equal(decimal.RequireFromString("150.50")))
	assert.Equal(t, "UAH", cb.Currency)
	assert.Equal(t, int64(42), cb.PaymentID)
	assert.True(t, cb.Succeeded())
}

func TestDecodeCallback_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{name: "not base64", data: "%%%", field: "data"},
		{name: "not json", data: encode(t, "nope"), field: "data"},
		{name: "missing id", data: encode(t, `{"action":"pay","status":"success","amount":1,"currency":"UAH"}`), field: "order_id"},
		{name: "bad id", data: encode(t, `{"order_id":"7","action":"pay","status":"success","amount":1,"currency":"UAH"}`), field: "order_id"},
		{name: "zero amount", data: encode(t, `{"order_id":"`+testTxID+`","action":"pay","status":"success","amount":0,"currency":"UAH"}`), field: "amount"},
		{name: "bad currency", data: encode(t, `{"order_id":"`+testTxID+`","action":"pay","status":"success","amount":1,"currency":"HRYVNIA"}`), field: "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCallback(tt.data)

			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}

func TestCallback_Succeeded(t *testing.T) {
	for status, want := range map[string]bool{
		"success":     true,
		"sandbox":     true,
		"SUCCESS":     true,
		"failure":     false,
		"error":       false,
		"reversed":    false,
		"wait_accept": false,
	} {
		cb := Callback{Status: status}
		assert.Equal(t, want, cb.Succeeded(), status)
	}
}

func TestCallback_Pending(t *testing.T) {
	for status, want := range map[string]bool{
		"processing":     true,
		"wait_accept":    true,
		"WAIT_SECURE":    true,
		"hold_wait":      true,
		"invoice_wait":   true,
		"3ds_verify":     true,
		"otp_verify":     true,
		"success":        false,
		"failure":        false,
		"reversed":       false,
		"subscribed":     false,
		"wait_unsettled": true,
	} {
		cb := Callback{Status: status}
		assert.Equal(t, want, cb.Pending(), status)
		if want {
			assert.False(t, cb.Succeeded(), status)
		}
	}
}
