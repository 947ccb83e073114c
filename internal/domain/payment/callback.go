// internal/domain/payment/callback.go
package payment

import (
	"encoding/base64"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/your-org/storefront-backend/internal/pkg/validation"
)

// Gateway statuses that mean the money arrived
var successStatuses = map[string]bool{
	"success": true,
	"sandbox": true,
}

// Gateway statuses for payments that are still in flight
var pendingStatuses = map[string]bool{
	"processing":   true,
	"prepared":     true,
	"invoice_wait": true,
	"cash_wait":    true,
	"hold_wait":    true,
}

// Callback is the decoded data field of a gateway notification
type Callback struct {
	TransactionID string          `json:"order_id" validate:"required,uuid"`
	Action        string          `json:"action" validate:"required"`
	Status        string          `json:"status" validate:"required,max=30"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	PaymentID     int64           `json:"payment_id,omitempty"`
	ErrCode       string          `json:"err_code,omitempty"`
}

// Succeeded reports whether the gateway confirmed the payment
func (c *Callback) Succeeded() bool {
	return successStatuses[strings.ToLower(c.Status)]
}

// Pending reports whether the gateway has not settled the payment yet.
// A later callback for the same transaction carries the final status.
func (c *Callback) Pending() bool {
	status := strings.ToLower(c.Status)
	return pendingStatuses[status] ||
		strings.HasPrefix(status, "wait_") ||
		strings.HasSuffix(status, "_verify")
}

// DecodeCallback parses the base64 data field
func DecodeCallback(data string) (*Callback, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, validation.NewError("data", "data must be base64 encoded")
	}

	var cb Callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, validation.NewError("data", "data must be a JSON object")
	}
	if err := validation.Struct(cb); err != nil {
		return nil, err
	}
	if !cb.Amount.IsPositive() {
		return nil, validation.NewError("amount", "amount must be positive")
	}
	cb.Currency = strings.ToUpper(cb.Currency)
	return &cb, nil
}

// checkoutPayload is what the storefront sends to the gateway checkout page
type checkoutPayload struct {
	Version     int             `json:"version"`
	PublicKey   string          `json:"public_key"`
	Action      string          `json:"action"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	OrderID     string          `json:"order_id"`
	ResultURL   string          `json:"result_url,omitempty"`
	ServerURL   string          `json:"server_url,omitempty"`
	Sandbox     int             `json:"sandbox,omitempty"`
}
