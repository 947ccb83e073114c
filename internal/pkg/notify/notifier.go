// internal/pkg/notify/notifier.go
package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-backend/internal/config"
)

// Recipient identifies who a notification is for. Any of the fields may be
// empty; each Notifier uses the ones it understands.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Notifier delivers a message. Callers treat it as fire-and-forget after a
// commit: a returned error is logged and never rolls anything back.
type Notifier interface {
	Notify(ctx context.Context, to Recipient, subject, body string) error
}

// New builds the configured notifier
func New(cfg config.NotifyConfig, log logrus.FieldLogger) Notifier {
	switch cfg.Provider {
	case "smtp":
		return Multi{NewSMTPNotifier(cfg), NewLogNotifier(log)}
	case "resend":
		return Multi{NewResendNotifier(cfg), NewLogNotifier(log)}
	default:
		return NewLogNotifier(log)
	}
}

// LogNotifier writes notifications to the log
type LogNotifier struct {
	log logrus.FieldLogger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(ctx context.Context, to Recipient, subject, body string) error {
	n.log.WithFields(logrus.Fields{
		"to_name":  to.Name,
		"to_email": to.Email,
		"to_phone": to.Phone,
		"subject":  subject,
	}).Info(body)
	return nil
}

// Multi fans a notification out to several notifiers and joins their errors
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ctx context.Context, to Recipient, subject, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, to, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
