// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-backend/internal/domain/payment"
)

// CallbackProcessor applies gateway callbacks
type CallbackProcessor interface {
	Process(ctx context.Context, data, signature string) (*payment.Result, error)
}

// PaymentService starts payments and reports campaign progress
type PaymentService interface {
	InitiateOrderPayment(ctx context.Context, orderID uuid.UUID) (*payment.CheckoutForm, error)
	InitiateDonation(ctx context.Context, campaignID uint, amount decimal.Decimal, currency string) (*payment.CheckoutForm, error)
	Campaign(ctx context.Context, campaignID uint) (*payment.CampaignSummary, error)
}

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	processor CallbackProcessor
	payments  PaymentService
	resultURL string
	log       logrus.FieldLogger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(processor CallbackProcessor, payments PaymentService, resultURL string, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{
		processor: processor,
		payments:  payments,
		resultURL: resultURL,
		log:       log,
	}
}

type donationRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Callback handles POST /payments/callback (form fields data and signature).
// With redirect=1 the payer's browser is sent on to the result page.
func (h *PaymentHandler) Callback(c *gin.Context) {
	data := c.PostForm("data")
	signature := c.PostForm("signature")
	redirect := c.Query("redirect") == "1"

	result, err := h.processor.Process(c.Request.Context(), data, signature)
	if redirect {
		h.redirectToResult(c, result, err)
		return
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Callback processed",
		"data":    result,
	})
}

func (h *PaymentHandler) redirectToResult(c *gin.Context, result *payment.Result, err error) {
	q := url.Values{}
	switch {
	case err == nil:
		q.Set("outcome", string(result.Outcome))
		q.Set("transaction_id", result.TransactionID.String())
	case errors.Is(err, payment.ErrRetryable):
		q.Set("outcome", "pending")
	default:
		q.Set("outcome", "failed")
	}
	if err != nil {
		h.log.WithError(err).Warn("Payment callback failed, redirecting payer")
	}

	target := h.resultURL
	if u, perr := url.Parse(h.resultURL); perr == nil {
		existing := u.Query()
		for k, v := range q {
			existing[k] = v
		}
		u.RawQuery = existing.Encode()
		target = u.String()
	}
	c.Redirect(http.StatusSeeOther, target)
}

// PayOrder handles POST /orders/:id/payment
func (h *PaymentHandler) PayOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	form, err := h.payments.InitiateOrderPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Payment initiated",
		"data":    form,
	})
}

// Donate handles POST /campaigns/:id/donations
func (h *PaymentHandler) Donate(c *gin.Context) {
	campaignID, ok := campaignIDParam(c)
	if !ok {
		return
	}

	var req donationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	form, err := h.payments.InitiateDonation(c.Request.Context(), campaignID, req.Amount, req.Currency)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Donation initiated",
		"data":    form,
	})
}

// GetCampaign handles GET /campaigns/:id
func (h *PaymentHandler) GetCampaign(c *gin.Context) {
	campaignID, ok := campaignIDParam(c)
	if !ok {
		return
	}

	summary, err := h.payments.Campaign(c.Request.Context(), campaignID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Campaign retrieved successfully",
		"data":    summary,
	})
}

func campaignIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return 0, false
	}
	return uint(id), true
}
