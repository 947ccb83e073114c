// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-backend/internal/domain/product"
)

// Line is the authoritative cart row of an authenticated user
type Line struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ProductID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"product_id"`
	Quantity  int       `gorm:"not null;check:chk_cart_lines_quantity,quantity > 0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Lines disappear with their product
	Product product.Product `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// TableName overrides the table name
func (Line) TableName() string {
	return "cart_lines"
}

// Entry is a cart line joined with the product snapshot it was read with.
// Cached entries may be stale; they never decide anything about an order.
type Entry struct {
	ProductID    uint            `json:"product_id"`
	Title        string          `json:"title"`
	Price        decimal.Decimal `json:"price"`
	PreviewImage string          `json:"preview_image"`
	Quantity     int             `json:"quantity"`
}

// LineInput is a product/quantity pair coming from a client, e.g. a local
// cart being merged after login
type LineInput struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"min=1"`
}

// Totals summarizes a list of entries
type Totals struct {
	ItemCount     int             `json:"item_count"`     // Number of unique items
	TotalQuantity int             `json:"total_quantity"` // Sum of all quantities
	SubTotal      decimal.Decimal `json:"sub_total"`
}

// CalculateTotals sums up entries
func CalculateTotals(entries []Entry) Totals {
	totals := Totals{ItemCount: len(entries), SubTotal: decimal.Zero}
	for _, e := range entries {
		totals.TotalQuantity += e.Quantity
		totals.SubTotal = totals.SubTotal.Add(e.Price.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}
	return totals
}
