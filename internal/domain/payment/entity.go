// internal/domain/payment/entity.go
package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubjectType is what a transaction pays for
type SubjectType string

const (
	SubjectOrder    SubjectType = "order"
	SubjectCampaign SubjectType = "campaign"
)

// Transaction is one payment attempt. IsPaid moves from false to true once
// and never back. IsPaid and RefundRequired are never both set.
type Transaction struct {
	ID             uint            `gorm:"primaryKey" json:"-"`
	TransactionID  uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"transaction_id"`
	SubjectType    SubjectType     `gorm:"not null;size:20" json:"subject_type"`
	OrderID        *uuid.UUID      `gorm:"type:uuid;index;check:chk_payment_transactions_subject,(order_id IS NULL) <> (campaign_id IS NULL)" json:"order_id,omitempty"`
	CampaignID     *uint           `gorm:"index:idx_payment_transactions_campaign_paid,priority:1" json:"campaign_id,omitempty"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_payment_transactions_amount,amount > 0" json:"amount"`
	Currency       string          `gorm:"not null;size:3" json:"currency"`
	IsPaid         bool            `gorm:"not null;default:false;index:idx_payment_transactions_campaign_paid,priority:2" json:"is_paid"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	GatewayStatus  string          `gorm:"size:30" json:"gateway_status,omitempty"`
	// RefundRequired marks money captured for an order that was already paid
	RefundRequired bool            `gorm:"not null;default:false" json:"refund_required,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Transaction) TableName() string {
	return "payment_transactions"
}

// Campaign is a fundraising campaign. IsFinished is derived from the paid
// donations and only ever moves from false to true.
type Campaign struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Title              string          `gorm:"not null;size:255" json:"title"`
	Description        string          `gorm:"type:text" json:"description,omitempty"`
	FinancialObjective decimal.Decimal `gorm:"type:numeric(14,2);not null;check:chk_fundraising_campaigns_objective,financial_objective > 0" json:"financial_objective"`
	IsFinished         bool            `gorm:"not null;default:false" json:"is_finished"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Campaign) TableName() string {
	return "fundraising_campaigns"
}

// CampaignSummary is a campaign with its raised total
type CampaignSummary struct {
	Campaign
	Raised    decimal.Decimal `json:"raised"`
	Donations int64           `json:"donations"`
}
