// internal/domain/cart/store.go
package cart

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the authoritative cart storage. Every method is a single statement;
// stock and per-order limits are not checked here.
type Store interface {
	Lines(ctx context.Context, userID uint) ([]Line, error)
	Entries(ctx context.Context, userID uint) ([]Entry, error)
	Upsert(ctx context.Context, userID, productID uint, quantity int) error
	Delete(ctx context.Context, userID, productID uint) error
	Clear(ctx context.Context, userID uint) error
	BulkInsert(ctx context.Context, userID uint, lines []LineInput) error
	Count(ctx context.Context, userID uint, includeDuplicates bool) (int, error)
}

// GormStore keeps cart lines in PostgreSQL
type GormStore struct {
	db *gorm.DB
}

// NewStore creates a cart store
func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// WithTx returns a store bound to an open transaction
func (s *GormStore) WithTx(tx *gorm.DB) *GormStore {
	return &GormStore{db: tx}
}

// Lines returns the raw cart lines of a user
func (s *GormStore) Lines(ctx context.Context, userID uint) ([]Line, error) {
	var lines []Line
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, product_id").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart lines: %w", err)
	}
	return lines, nil
}

// Entries returns the cart lines joined with their products
func (s *GormStore) Entries(ctx context.Context, userID uint) ([]Entry, error) {
	entries := []Entry{}
	err := s.db.WithContext(ctx).
		Table("cart_lines AS cl").
		Select("cl.product_id, p.title, p.price, p.preview_image, cl.quantity").
		Joins("JOIN products p ON p.id = cl.product_id").
		Where("cl.user_id = ?", userID).
		Order("cl.created_at, cl.product_id").
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return entries, nil
}

// Upsert sets the quantity of a line, creating it if needed. The quantity is
// replaced, not added.
func (s *GormStore) Upsert(ctx context.Context, userID, productID uint, quantity int) error {
	line := Line{UserID: userID, ProductID: productID, Quantity: quantity}
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(&line).Error
	if err != nil {
		return fmt.Errorf("failed to upsert cart line: %w", err)
	}
	return nil
}

// Delete removes one line
func (s *GormStore) Delete(ctx context.Context, userID, productID uint) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&Line{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	return nil
}

// Clear removes every line of a user
func (s *GormStore) Clear(ctx context.Context, userID uint) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Line{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// BulkInsert writes several lines in one statement. Existing lines take the
// incoming quantity.
func (s *GormStore) BulkInsert(ctx context.Context, userID uint, lines []LineInput) error {
	if len(lines) == 0 {
		return nil
	}

	rows := make([]Line, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, Line{UserID: userID, ProductID: l.ProductID, Quantity: l.Quantity})
	}

	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to insert cart lines: %w", err)
	}
	return nil
}

// Count returns the number of lines, or the sum of quantities when
// includeDuplicates is set
func (s *GormStore) Count(ctx context.Context, userID uint, includeDuplicates bool) (int, error) {
	expr := "COUNT(*)"
	if includeDuplicates {
		expr = "COALESCE(SUM(quantity), 0)"
	}

	var n int64
	err := s.db.WithContext(ctx).
		Model(&Line{}).
		Select(expr).
		Where("user_id = ?", userID).
		Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count cart lines: %w", err)
	}
	return int(n), nil
}
