// internal/domain/product/entity.go
package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the ledger row this subsystem reads price, stock and per-order
// limits from. Catalog editing lives elsewhere; the only write made from here
// is the stock reservation inside the order transaction.
type Product struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Title            string          `gorm:"not null;size:255" json:"title"`
	Price            decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_products_price,price >= 0" json:"price"`
	QuantityInStock  int             `gorm:"not null;default:0;check:chk_products_stock,quantity_in_stock >= 0" json:"quantity_in_stock"`
	MaxOrderQuantity int             `gorm:"not null;default:1;check:chk_products_max_order,max_order_quantity > 0" json:"max_order_quantity"`
	PreviewImage     string          `gorm:"size:500" json:"preview_image"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Product) TableName() string {
	return "products"
}

// Orderable reports whether quantity can be ordered right now
func (p *Product) Orderable(quantity int) bool {
	return quantity > 0 && quantity <= p.QuantityInStock && quantity <= p.MaxOrderQuantity
}
