// internal/domain/payment/service.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/pkg/validation"
)

// CheckoutURL is where the signed form is posted by the client
const CheckoutURL = "https://www.liqpay.ua/api/3/checkout"

var (
	ErrAlreadyPaid      = errors.New("order is already paid")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrCampaignFinished = errors.New("campaign is finished")
)

// OrderReader loads orders for payment initiation
type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

// CheckoutForm is a signed request for the gateway checkout page
type CheckoutForm struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	URL           string    `json:"url"`
	Data          string    `json:"data"`
	Signature     string    `json:"signature"`
}

// Service creates pending transactions and reports campaign progress
type Service struct {
	db     *gorm.DB
	orders OrderReader
	signer *Signer
	cfg    config.PaymentConfig
	log    logrus.FieldLogger
}

// NewService creates a payment service
func NewService(db *gorm.DB, orders OrderReader, signer *Signer, cfg config.PaymentConfig, log logrus.FieldLogger) *Service {
	return &Service{
		db:     db,
		orders: orders,
		signer: signer,
		cfg:    cfg,
		log:    log,
	}
}

// InitiateOrderPayment returns a checkout form for the order total, reusing
// the latest transaction the gateway has not reported on yet
func (s *Service) InitiateOrderPayment(ctx context.Context, orderID uuid.UUID) (*CheckoutForm, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return nil, ErrAlreadyPaid
	}

	total := o.Total()
	if !total.IsPositive() {
		return nil, validation.NewError("order_id", "order has nothing to pay for")
	}

	amount := total.Round(2)
	description := fmt.Sprintf("Order %s", o.ID)

	// Latest transaction the gateway has not reported on
	var existing Transaction
	err = s.db.WithContext(ctx).
		Where("order_id = ? AND is_paid = ? AND refund_required = ? AND gateway_status = ?", o.ID, false, false, "").
		Where("amount = ? AND currency = ?", amount, s.cfg.Currency).
		Order("created_at DESC").
		First(&existing).Error
	switch {
	case err == nil:
		s.log.WithFields(logrus.Fields{
			"transaction_id": existing.TransactionID,
			"order_id":       o.ID,
		}).Info("Reusing pending order payment")
		return s.checkoutForm(&existing, description)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to look up pending payment: %w", err)
	}

	t := Transaction{
		TransactionID: uuid.New(),
		SubjectType:   SubjectOrder,
		OrderID:       &o.ID,
		Amount:        amount,
		Currency:      s.cfg.Currency,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": t.TransactionID,
		"order_id":       o.ID,
		"amount":         t.Amount.StringFixed(2),
	}).Info("Order payment initiated")

	return s.checkoutForm(&t, description)
}

// InitiateDonation creates a pending donation to a campaign
func (s *Service) InitiateDonation(ctx context.Context, campaignID uint, amount decimal.Decimal, currency string) (*CheckoutForm, error) {
	if !amount.IsPositive() {
		return nil, validation.NewError("amount", "amount must be positive")
	}
	if amount.Exponent() < -2 {
		return nil, validation.NewError("amount", "amount must have at most two decimals")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.cfg.Currency
	}
	if len(currency) != 3 {
		return nil, validation.NewError("currency", "currency must be a 3 letter code")
	}

	var c Campaign
	if err := s.db.WithContext(ctx).First(&c, campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if c.IsFinished {
		return nil, ErrCampaignFinished
	}

	t := Transaction{
		TransactionID: uuid.New(),
		SubjectType:   SubjectCampaign,
		CampaignID:    &c.ID,
		Amount:        amount,
		Currency:      currency,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": t.TransactionID,
		"campaign_id":    c.ID,
		"amount":         amount.StringFixed(2),
	}).Info("Donation initiated")

	return s.checkoutForm(&t, fmt.Sprintf("Donation to %s", c.Title))
}

// Campaign returns a campaign with the sum of its paid donations
func (s *Service) Campaign(ctx context.Context, campaignID uint) (*CampaignSummary, error) {
	db := s.db.WithContext(ctx)

	var c Campaign
	if err := db.First(&c, campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}

	raised, err := raisedTotal(db, campaignID)
	if err != nil {
		return nil, err
	}

	var donations int64
	err = db.Model(&Transaction{}).
		Where("campaign_id = ? AND is_paid = ?", campaignID, true).
		Count(&donations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count donations: %w", err)
	}

	return &CampaignSummary{Campaign: c, Raised: raised, Donations: donations}, nil
}

func (s *Service) checkoutForm(t *Transaction, description string) (*CheckoutForm, error) {
	payload := checkoutPayload{
		Version:     3,
		PublicKey:   s.cfg.PublicKey,
		Action:      "pay",
		Amount:      t.Amount,
		Currency:    t.Currency,
		Description: description,
		OrderID:     t.TransactionID.String(),
		ResultURL:   s.cfg.ResultURL,
		ServerURL:   s.cfg.ServerURL,
	}
	if s.cfg.Sandbox {
		payload.Sandbox = 1
	}

	data, signature, err := s.signer.Encode(payload)
	if err != nil {
		return nil, err
	}
	return &CheckoutForm{
		TransactionID: t.TransactionID,
		URL:           CheckoutURL,
		Data:          data,
		Signature:     signature,
	}, nil
}
