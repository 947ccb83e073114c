// internal/pkg/notify/smtp.go
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"

	"github.com/your-org/storefront-backend/internal/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends plain-text mail through an SMTP relay
type SMTPNotifier struct {
	cfg      config.NotifyConfig
	sendMail sendMailFunc
}

// NewSMTPNotifier creates an SMTP notifier
func NewSMTPNotifier(cfg config.NotifyConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

// Notify implements Notifier. Recipients without an email address go to the
// configured admin mailbox.
func (n *SMTPNotifier) Notify(ctx context.Context, to Recipient, subject, body string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" {
		return fmt.Errorf("SMTP configuration incomplete: missing host or username")
	}

	address := to.Email
	if address == "" {
		address = n.cfg.AdminEmail
	}
	if address == "" {
		return fmt.Errorf("no email address for recipient %q", to.Name)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	from := n.cfg.FromEmail
	if n.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", n.cfg.FromName, n.cfg.FromEmail)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", address)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPass, n.cfg.SMTPHost)
	serverAddr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)

	if err := n.sendMail(serverAddr, auth, n.cfg.FromEmail, []string{address}, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", address, err)
	}
	return nil
}
