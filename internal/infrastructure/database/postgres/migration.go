// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/product"
)

// Migration handles database migrations
type Migration struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, log logrus.FieldLogger) *Migration {
	return &Migration{
		db:  db,
		log: log,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.log.Info("Running database auto-migrations")

	// Dependency order
	models := []interface{}{
		&product.Product{},
		&cart.Line{},
		&order.Recipient{},
		&order.Order{},
		&order.Item{},
		&order.StatusHistory{},
		&payment.Campaign{},
		&payment.Transaction{},
	}

	for _, model := range models {
		m.log.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.log.Info("Database auto-migrations completed")
	return nil
}

// CreateIndexes creates indexes and constraints AutoMigrate cannot express
func (m *Migration) CreateIndexes() error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_cart_lines_user_created ON cart_lines(user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_order_product ON order_items(order_id, product_id)",
		"CREATE INDEX IF NOT EXISTS idx_payment_transactions_order_paid ON payment_transactions(order_id, is_paid)",
		// One paid transaction per order at most
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_transactions_order_once ON payment_transactions(order_id) WHERE is_paid AND order_id IS NOT NULL",
	}

	failed := 0
	for _, stmt := range statements {
		if err := m.db.Exec(stmt).Error; err != nil {
			m.log.WithError(err).Warn("Failed to create index")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d index statements failed", failed, len(statements))
	}

	m.log.WithField("count", len(statements)).Info("Database indexes ensured")
	return nil
}

// SeedInitialData inserts development products and a campaign
func (m *Migration) SeedInitialData() error {
	if err := m.seedProducts(); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	if err := m.seedCampaigns(); err != nil {
		return fmt.Errorf("failed to seed campaigns: %w", err)
	}
	m.log.Info("Initial data seeded")
	return nil
}

func (m *Migration) seedProducts() error {
	var count int64
	if err := m.db.Model(&product.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		m.log.Debug("Products already exist, skipping seed")
		return nil
	}

	products := []product.Product{
		{Title: "Embroidered Shirt", Price: decimal.RequireFromString("1450.00"), QuantityInStock: 12, MaxOrderQuantity: 3, PreviewImage: "shirts/embroidered.jpg"},
		{Title: "Ceramic Mug", Price: decimal.RequireFromString("280.00"), QuantityInStock: 40, MaxOrderQuantity: 10, PreviewImage: "mugs/ceramic.jpg"},
		{Title: "Canvas Tote Bag", Price: decimal.RequireFromString("390.50"), QuantityInStock: 2, MaxOrderQuantity: 2, PreviewImage: "bags/tote.jpg"},
	}
	return m.db.Create(&products).Error
}

func (m *Migration) seedCampaigns() error {
	var count int64
	if err := m.db.Model(&payment.Campaign{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return m.db.Create(&payment.Campaign{
		Title:              "Field hospital generators",
		Description:        "Two diesel generators for a field hospital",
		FinancialObjective: decimal.RequireFromString("50000.00"),
	}).Error
}

// DropAllTables drops all tables (use with extreme caution)
func (m *Migration) DropAllTables() error {
	m.log.Warn("Dropping all database tables")

	// Reverse dependency order
	tables := []string{
		"payment_transactions",
		"fundraising_campaigns",
		"order_status_history",
		"order_items",
		"orders",
		"order_recipients",
		"cart_lines",
		"products",
	}

	for _, table := range tables {
		if err := m.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}

// GetTableInfo logs the row count of every public table
func (m *Migration) GetTableInfo() error {
	var tables []string
	if err := m.db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename").Scan(&tables).Error; err != nil {
		return err
	}

	for _, table := range tables {
		var count int64
		if err := m.db.Table(table).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count %s: %w", table, err)
		}
		m.log.WithFields(logrus.Fields{"table": table, "rows": count}).Info("Table info")
	}
	return nil
}
