package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
)

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(ctx context.Context, to Recipient, subject, body string) error {
	return f.err
}

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("telegram down")
	m := Multi{NewLogNotifier(logger.Discard()), failingNotifier{err: boom}}

	err := m.Notify(context.Background(), Recipient{Name: "Ivan"}, "subject", "body")
	assert.ErrorIs(t, err, boom)
}

func TestSMTPNotifier_SendsToAdminWhenRecipientHasNoEmail(t *testing.T) {
	cfg := config.NotifyConfig{
		FromEmail:  "shop@example.com",
		FromName:   "Shop",
		AdminEmail: "admin@example.com",
		SMTPHost:   "smtp.example.com",
		SMTPPort:   587,
		SMTPUser:   "user",
	}
	n := NewSMTPNotifier(cfg)

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	err := n.Notify(context.Background(), Recipient{Name: "Ivan", Phone: "+380501112233"}, "New order", "Order abc")
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"admin@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: New order")
	assert.Contains(t, string(gotMsg), "Order abc")
}

func TestSMTPNotifier_IncompleteConfig(t *testing.T) {
	n := NewSMTPNotifier(config.NotifyConfig{})
	err := n.Notify(context.Background(), Recipient{Email: "a@example.com"}, "s", "b")
	assert.Error(t, err)
}

func TestResendNotifier_PostsMessage(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	n := NewResendNotifier(config.NotifyConfig{APIKey: "re_test", FromEmail: "shop@example.com", FromName: "Shop"})
	n.endpoint = srv.URL

	err := n.Notify(context.Background(), Recipient{Email: "buyer@example.com"}, "Order paid", "Thanks")
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_test", gotAuth)
	assert.Contains(t, string(gotBody), `"to":["buyer@example.com"]`)
	assert.Contains(t, string(gotBody), `"subject":"Order paid"`)
}

func TestResendNotifier_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	n := NewResendNotifier(config.NotifyConfig{APIKey: "re_test", AdminEmail: "admin@example.com"})
	n.endpoint = srv.URL
	assert.ErrorContains(t, n.Notify(context.Background(), Recipient{}, "s", "b"), "status 422")

	n = NewResendNotifier(config.NotifyConfig{})
	assert.ErrorContains(t, n.Notify(context.Background(), Recipient{Email: "a@example.com"}, "s", "b"), "API key")
}
