// internal/domain/payment/processor.go
package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/metrics"
	"github.com/your-org/storefront-backend/internal/pkg/notify"
	"github.com/your-org/storefront-backend/internal/pkg/validation"
)

var (
	ErrInvalidSignature    = errors.New("invalid payment signature")
	ErrTransactionNotFound = errors.New("payment transaction not found")
	// ErrAmountMismatch means the gateway confirmed a different sum than was
	// requested. Nothing is credited.
	ErrAmountMismatch = errors.New("payment amount or currency mismatch")
	ErrRetryable      = errors.New("payment transaction failed, retry later")
)

// Outcome is the non-error result of a callback
type Outcome string

const (
	OutcomePaid             Outcome = "paid"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeCancelled        Outcome = "cancelled"
	// OutcomePending means the gateway has not settled the payment yet
	OutcomePending          Outcome = "pending"
	// OutcomeDuplicatePayment means the money arrived for an order paid by
	// another transaction. The transaction is flagged for refund.
	OutcomeDuplicatePayment Outcome = "duplicate_payment"
)

// Result describes what a callback did
type Result struct {
	Outcome          Outcome     `json:"outcome"`
	TransactionID    uuid.UUID   `json:"transaction_id"`
	SubjectType      SubjectType `json:"subject_type"`
	OrderID          *uuid.UUID  `json:"order_id,omitempty"`
	CampaignID       *uint       `json:"campaign_id,omitempty"`
	CampaignFinished bool        `json:"campaign_finished,omitempty"`
}

// Processor applies gateway callbacks exactly once
type Processor struct {
	db        *gorm.DB
	signer    *Signer
	notifier  notify.Notifier
	txTimeout time.Duration
	log       logrus.FieldLogger
}

// NewProcessor creates a callback processor
func NewProcessor(db *gorm.DB, signer *Signer, notifier notify.Notifier, txTimeout time.Duration, log logrus.FieldLogger) *Processor {
	return &Processor{
		db:        db,
		signer:    signer,
		notifier:  notifier,
		txTimeout: txTimeout,
		log:       log,
	}
}

// Process verifies and applies one callback. Redelivery of an applied
// callback returns OutcomeAlreadyProcessed. A second paid transaction for the
// same order is not credited and returns OutcomeDuplicatePayment.
func (p *Processor) Process(ctx context.Context, data, signature string) (*Result, error) {
	if !p.signer.Verify(data, signature) {
		metrics.PaymentCallbacks.WithLabelValues("invalid_signature").Inc()
		p.log.Warn("Rejected payment callback with invalid signature")
		return nil, ErrInvalidSignature
	}

	cb, err := DecodeCallback(data)
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues("invalid").Inc()
		return nil, err
	}
	txID, err := uuid.Parse(cb.TransactionID)
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues("invalid").Inc()
		return nil, validation.NewError("order_id", "order_id must be a UUID")
	}

	log := p.log.WithFields(logrus.Fields{
		"transaction_id": txID,
		"status":         cb.Status,
	})

	var (
		result    *Result
		paid      Transaction
		duplicate Transaction
	)
	err = p.inTx(ctx, func(tx *gorm.DB) error {
		var t Transaction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("transaction_id = ?", txID).
			First(&t).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return fmt.Errorf("failed to lock transaction: %w", err)
		}

		result = &Result{
			TransactionID: t.TransactionID,
			SubjectType:   t.SubjectType,
			OrderID:       t.OrderID,
			CampaignID:    t.CampaignID,
		}

		if t.RefundRequired {
			result.Outcome = OutcomeDuplicatePayment
			return nil
		}
		if t.IsPaid {
			result.Outcome = OutcomeAlreadyProcessed
			return nil
		}
		if !cb.Succeeded() {
			if err := setGatewayStatus(tx, t.ID, cb.Status); err != nil {
				return err
			}
			result.Outcome = OutcomeCancelled
			if cb.Pending() {
				result.Outcome = OutcomePending
			}
			return nil
		}
		if !cb.Amount.Equal(t.Amount) || cb.Currency != t.Currency {
			return fmt.Errorf("%w: expected %s %s, got %s %s",
				ErrAmountMismatch, t.Amount.StringFixed(2), t.Currency, cb.Amount.StringFixed(2), cb.Currency)
		}

		if t.SubjectType == SubjectOrder {
			if t.OrderID == nil {
				return fmt.Errorf("transaction %s has no order", t.TransactionID)
			}
			alreadyPaid, err := order.LockPaidTx(tx, *t.OrderID)
			if err != nil {
				return err
			}
			if alreadyPaid {
				err := tx.Model(&Transaction{}).
					Where("id = ?", t.ID).
					Updates(map[string]interface{}{
						"refund_required": true,
						"gateway_status":  cb.Status,
					}).Error
				if err != nil {
					return fmt.Errorf("failed to flag duplicate payment: %w", err)
				}
				result.Outcome = OutcomeDuplicatePayment
				duplicate = t
				return nil
			}
		}

		now := time.Now().UTC()
		err = tx.Model(&Transaction{}).
			Where("id = ?", t.ID).
			Updates(map[string]interface{}{
				"is_paid":        true,
				"paid_at":        now,
				"gateway_status": cb.Status,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to mark transaction paid: %w", err)
		}
		t.IsPaid, t.PaidAt = true, &now

		switch t.SubjectType {
		case SubjectOrder:
			if _, err := order.MarkPaidTx(tx, *t.OrderID); err != nil {
				return err
			}
		case SubjectCampaign:
			if t.CampaignID == nil {
				return fmt.Errorf("transaction %s has no campaign", t.TransactionID)
			}
			finished, err := finishCampaignIfFunded(tx, *t.CampaignID)
			if err != nil {
				return err
			}
			result.CampaignFinished = finished
		}

		result.Outcome = OutcomePaid
		paid = t
		return nil
	})
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues(callbackLabel(err)).Inc()
		if errors.Is(err, ErrAmountMismatch) {
			log.WithError(err).Error("Payment callback amount mismatch")
		}
		return nil, err
	}

	metrics.PaymentCallbacks.WithLabelValues(string(result.Outcome)).Inc()
	if result.CampaignFinished {
		metrics.CampaignsFinished.Inc()
	}
	log.WithField("outcome", result.Outcome).Info("Payment callback processed")

	switch {
	case result.Outcome == OutcomePaid:
		p.notifyPaid(ctx, &paid, result)
	case duplicate.ID != 0:
		log.WithField("order_id", duplicate.OrderID).Error("Payment captured for an order that is already paid")
		p.notifyDuplicate(ctx, &duplicate)
	}
	return result, nil
}

// finishCampaignIfFunded locks the campaign and sets is_finished when the paid
// donations reach the objective. It reports whether this call finished it.
func finishCampaignIfFunded(tx *gorm.DB, campaignID uint) (bool, error) {
	var c Campaign
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", campaignID).
		First(&c).Error
	if err != nil {
		return false, fmt.Errorf("failed to lock campaign %d: %w", campaignID, err)
	}
	if c.IsFinished {
		return false, nil
	}

	raised, err := raisedTotal(tx, campaignID)
	if err != nil {
		return false, err
	}
	if raised.LessThan(c.FinancialObjective) {
		return false, nil
	}

	res := tx.Model(&Campaign{}).
		Where("id = ? AND is_finished = ?", campaignID, false).
		Update("is_finished", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to finish campaign %d: %w", campaignID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func raisedTotal(db *gorm.DB, campaignID uint) (decimal.Decimal, error) {
	var raised decimal.Decimal
	err := db.Model(&Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("campaign_id = ? AND is_paid = ?", campaignID, true).
		Row().
		Scan(&raised)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum donations: %w", err)
	}
	return raised, nil
}

func (p *Processor) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.txTimeout)
	defer cancel()

	err := p.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransactionNotFound) || errors.Is(err, ErrAmountMismatch) || errors.Is(err, order.ErrOrderNotFound) {
		return err
	}
	if order.IsRetryable(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRetryable, err)
	}
	return err
}

func setGatewayStatus(tx *gorm.DB, id uint, status string) error {
	if err := tx.Model(&Transaction{}).Where("id = ?", id).Update("gateway_status", status).Error; err != nil {
		return fmt.Errorf("failed to record gateway status: %w", err)
	}
	return nil
}

func (p *Processor) notifyPaid(ctx context.Context, t *Transaction, result *Result) {
	var subject, body string
	switch t.SubjectType {
	case SubjectOrder:
		subject = fmt.Sprintf("Order %s paid", t.OrderID)
		body = fmt.Sprintf("Payment %s of %s %s received for order %s", t.TransactionID, t.Amount.StringFixed(2), t.Currency, t.OrderID)
	case SubjectCampaign:
		subject = fmt.Sprintf("Donation to campaign %d", *t.CampaignID)
		body = fmt.Sprintf("Donation %s of %s %s received", t.TransactionID, t.Amount.StringFixed(2), t.Currency)
		if result.CampaignFinished {
			body += "; the campaign reached its objective"
		}
	}

	if err := p.notifier.Notify(context.WithoutCancel(ctx), notify.Recipient{Name: "payments"}, subject, body); err != nil {
		metrics.NotificationFailures.WithLabelValues("payment").Inc()
		p.log.WithError(err).WithField("transaction_id", t.TransactionID).Warn("Failed to send payment notification")
	}
}

func (p *Processor) notifyDuplicate(ctx context.Context, t *Transaction) {
	subject := fmt.Sprintf("Refund required for order %s", t.OrderID)
	body := fmt.Sprintf("Payment %s of %s %s arrived for order %s, which is already paid", t.TransactionID, t.Amount.StringFixed(2), t.Currency, t.OrderID)

	if err := p.notifier.Notify(context.WithoutCancel(ctx), notify.Recipient{Name: "payments"}, subject, body); err != nil {
		metrics.NotificationFailures.WithLabelValues("payment").Inc()
		p.log.WithError(err).WithField("transaction_id", t.TransactionID).Warn("Failed to send refund notification")
	}
}

func callbackLabel(err error) string {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		return "not_found"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrRetryable):
		return "retryable"
	default:
		return "error"
	}
}
