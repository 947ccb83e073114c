// internal/pkg/notify/resend.go
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/your-org/storefront-backend/internal/config"
)

const resendEndpoint = "https://api.resend.com/emails"

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// ResendNotifier sends mail through the Resend HTTP API
type ResendNotifier struct {
	cfg      config.NotifyConfig
	endpoint string
	client   *http.Client
}

// NewResendNotifier creates a Resend notifier
func NewResendNotifier(cfg config.NotifyConfig) *ResendNotifier {
	return &ResendNotifier{
		cfg:      cfg,
		endpoint: resendEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify implements Notifier
func (n *ResendNotifier) Notify(ctx context.Context, to Recipient, subject, body string) error {
	if n.cfg.APIKey == "" {
		return fmt.Errorf("Resend API key not configured")
	}

	address := to.Email
	if address == "" {
		address = n.cfg.AdminEmail
	}
	if address == "" {
		return fmt.Errorf("no email address for recipient %q", to.Name)
	}

	from := n.cfg.FromEmail
	if n.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", n.cfg.FromName, n.cfg.FromEmail)
	}

	payload, err := json.Marshal(resendRequest{
		From:    from,
		To:      []string{address},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal Resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create Resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Resend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Resend API returned status %d", resp.StatusCode)
	}
	return nil
}
