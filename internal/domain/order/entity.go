// internal/domain/order/entity.go
package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/product"
)

// Status represents the order status
type Status string

const (
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// transitions lists the statuses reachable from each status
var transitions = map[Status][]Status{
	StatusProcessing: {StatusPaid, StatusShipped, StatusCancelled},
	StatusPaid:       {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the history may move from s to next
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod represents how an order is paid
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Recipient is the person an order is delivered to. Authenticated users reuse
// their recipients; anonymous orders always get a fresh one.
type Recipient struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      *uint     `gorm:"uniqueIndex:idx_order_recipients_identity,priority:1" json:"user_id,omitempty"`
	FirstName   string    `gorm:"not null;size:100;uniqueIndex:idx_order_recipients_identity,priority:2" json:"first_name"`
	LastName    string    `gorm:"not null;size:100;uniqueIndex:idx_order_recipients_identity,priority:3" json:"last_name"`
	PhoneNumber string    `gorm:"not null;size:20;uniqueIndex:idx_order_recipients_identity,priority:4" json:"phone_number"`
	Email       string    `gorm:"size:255" json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName overrides the table name
func (Recipient) TableName() string {
	return "order_recipients"
}

// Order represents the order entity. Items are written once at creation;
// afterwards only IsPaid and the status history change.
type Order struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            *uint         `gorm:"index" json:"user_id,omitempty"`
	RecipientID       uint          `gorm:"not null;index" json:"recipient_id"`
	PaymentMethod     PaymentMethod `gorm:"not null;size:30" json:"payment_method"`
	DeliveryCarrier   string        `gorm:"not null;size:100" json:"delivery_carrier"`
	DeliveryWarehouse string        `gorm:"not null;size:255" json:"delivery_warehouse"`
	IsPaid            bool          `gorm:"not null;default:false" json:"is_paid"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	// Relationships
	Recipient Recipient       `gorm:"foreignKey:RecipientID;constraint:OnDelete:RESTRICT" json:"recipient"`
	Items     []Item          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	History   []StatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"history,omitempty"`

	// Status is the latest history row, filled on reads
	Status Status `gorm:"-" json:"status,omitempty"`
}

// BeforeCreate assigns a random id
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Total returns the order sum
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Item is an order line with the price captured at order time
type Item struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Quantity  int             `gorm:"not null;check:chk_order_items_quantity,quantity > 0" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_order_items_price,price >= 0" json:"price"`

	Product product.Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName overrides the table name
func (Item) TableName() string {
	return "order_items"
}

// StatusHistory is an append-only status ledger row
type StatusHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index:idx_order_status_history_order,priority:1" json:"order_id"`
	Status    Status    `gorm:"not null;size:20" json:"status"`
	Comment   string    `gorm:"size:255" json:"comment,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_order_status_history_order,priority:2" json:"created_at"`
}

// TableName overrides the table name
func (StatusHistory) TableName() string {
	return "order_status_history"
}

// RecipientInput identifies who receives an order
type RecipientInput struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
}

// CreateOrderRequest holds the checkout details of an order
type CreateOrderRequest struct {
	Recipient         RecipientInput `json:"recipient"`
	PaymentMethod     PaymentMethod  `json:"payment_method" validate:"required,oneof=card cash_on_delivery"`
	DeliveryCarrier   string         `json:"delivery_carrier" validate:"required,max=100"`
	DeliveryWarehouse string         `json:"delivery_warehouse" validate:"required,max=255"`
}

// AnonymousOrderRequest is a checkout without an account; the lines replace the cart
type AnonymousOrderRequest struct {
	CreateOrderRequest
	Lines []cart.LineInput `json:"lines"`
}

type linesRequest struct {
	Lines []cart.LineInput `json:"lines" validate:"required,min=1,max=100,dive"`
}
