// internal/domain/product/ledger.go
package product

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnknownField    = errors.New("unknown product field")
)

// Ledger is the read side of the product catalog
type Ledger interface {
	GetProduct(ctx context.Context, id uint, fields ...string) (*Product, error)
	ProductsExist(ctx context.Context, ids []uint) (bool, error)
}

// fieldColumns maps requested field names to columns. Only these can be selected.
var fieldColumns = map[string]string{
	"id":               "id",
	"title":            "title",
	"price":            "price",
	"quantityInStock":  "quantity_in_stock",
	"maxOrderQuantity": "max_order_quantity",
	"previewImage":     "preview_image",
}

// Columns resolves requested fields to a column list. No fields selects all.
func Columns(fields []string) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	columns := []string{"id"}
	seen := map[string]bool{"id": true}
	for _, f := range fields {
		col, ok := fieldColumns[f]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}
	return columns, nil
}

// GormLedger reads products from PostgreSQL
type GormLedger struct {
	db *gorm.DB
}

// NewLedger creates a product ledger
func NewLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// GetProduct loads one product, restricted to the requested fields
func (l *GormLedger) GetProduct(ctx context.Context, id uint, fields ...string) (*Product, error) {
	columns, err := Columns(fields)
	if err != nil {
		return nil, err
	}

	query := l.db.WithContext(ctx).Model(&Product{})
	if columns != nil {
		query = query.Select(columns)
	}

	var p Product
	if err := query.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &p, nil
}

// ProductsExist reports whether every id refers to an existing product
func (l *GormLedger) ProductsExist(ctx context.Context, ids []uint) (bool, error) {
	unique := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	if len(unique) == 0 {
		return true, nil
	}

	var count int64
	err := l.db.WithContext(ctx).Model(&Product{}).Where("id IN ?", ids).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check products: %w", err)
	}
	return int(count) == len(unique), nil
}
