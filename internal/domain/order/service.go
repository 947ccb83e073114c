// internal/domain/order/service.go
package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/metrics"
	"github.com/your-org/storefront-backend/internal/pkg/notify"
	"github.com/your-org/storefront-backend/internal/pkg/validation"
)

// CartInvalidator drops cached carts after an order commits
type CartInvalidator interface {
	InvalidateCache(ctx context.Context, userIDs ...uint)
}

// Service turns carts into orders. It reads the cart store only, never the cache.
type Service struct {
	db        *gorm.DB
	carts     CartInvalidator
	notifier  notify.Notifier
	txTimeout time.Duration
	log       logrus.FieldLogger
}

// NewService creates a new order service
func NewService(db *gorm.DB, carts CartInvalidator, notifier notify.Notifier, cfg config.DatabaseConfig, log logrus.FieldLogger) *Service {
	return &Service{
		db:        db,
		carts:     carts,
		notifier:  notifier,
		txTimeout: cfg.TxTimeout,
		log:       log,
	}
}

// Product rows are locked in id order first so that concurrent orders over
// the same products queue up instead of deadlocking.
const (
	lockCartProductsSQL = `SELECT p.id FROM products p
JOIN cart_lines cl ON cl.product_id = p.id
WHERE cl.user_id = ?
ORDER BY p.id
FOR UPDATE OF p`

	// Check, reserve and copy in one statement. Lines over stock or over
	// the per-order limit are skipped.
	reserveCartSQL = `WITH reserved AS (
	UPDATE products p
	SET quantity_in_stock = p.quantity_in_stock - cl.quantity, updated_at = NOW()
	FROM cart_lines cl
	WHERE cl.user_id = ?
		AND cl.product_id = p.id
		AND cl.quantity <= p.quantity_in_stock
		AND cl.quantity <= p.max_order_quantity
	RETURNING p.id AS product_id, cl.quantity AS quantity, p.price AS price
)
INSERT INTO order_items (order_id, product_id, quantity, price)
SELECT ?::uuid, product_id, quantity, price FROM reserved`

	lockProductsSQL = `SELECT id FROM products
WHERE id = ANY(?::bigint[])
ORDER BY id
FOR UPDATE`

	reserveLinesSQL = `WITH lines AS (
	SELECT product_id, quantity FROM unnest(?::bigint[], ?::int[]) AS l(product_id, quantity)
), reserved AS (
	UPDATE products p
	SET quantity_in_stock = p.quantity_in_stock - l.quantity, updated_at = NOW()
	FROM lines l
	WHERE l.product_id = p.id
		AND l.quantity <= p.quantity_in_stock
		AND l.quantity <= p.max_order_quantity
	RETURNING p.id AS product_id, l.quantity AS quantity, p.price AS price
)
INSERT INTO order_items (order_id, product_id, quantity, price)
SELECT ?::uuid, product_id, quantity, price FROM reserved`
)

// CreateFromCart converts the stored cart of a user into an order and clears it
func (s *Service) CreateFromCart(ctx context.Context, userID uint, req CreateOrderRequest) (*Order, error) {
	const source = "cart"

	if err := validation.Struct(req); err != nil {
		metrics.OrdersCreated.WithLabelValues(source, "invalid").Inc()
		return nil, err
	}

	start := time.Now()
	var created *Order
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		recipient, err := findOrCreateRecipient(tx, &userID, req.Recipient)
		if err != nil {
			return err
		}

		order, err := insertOrder(tx, &userID, recipient, req)
		if err != nil {
			return err
		}

		var locked []uint
		if err := tx.Raw(lockCartProductsSQL, userID).Scan(&locked).Error; err != nil {
			return fmt.Errorf("failed to lock products: %w", err)
		}

		res := tx.Exec(reserveCartSQL, userID, order.ID)
		if res.Error != nil {
			return fmt.Errorf("failed to reserve order lines: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrEmptyOrder
		}

		if err := cart.NewStore(tx).Clear(tx.Statement.Context, userID); err != nil {
			return err
		}

		if err := tx.Where("order_id = ?", order.ID).Order("id").Find(&order.Items).Error; err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}
		created = order
		return nil
	})
	metrics.OrderTxDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OrdersCreated.WithLabelValues(source, resultLabel(err)).Inc()
		return nil, err
	}
	metrics.OrdersCreated.WithLabelValues(source, "created").Inc()

	s.carts.InvalidateCache(ctx, userID)
	s.notifyCreated(ctx, created)

	s.log.WithFields(logrus.Fields{
		"order_id": created.ID,
		"user_id":  userID,
		"items":    len(created.Items),
	}).Info("Order created from cart")

	return created, nil
}

// CreateAnonymous creates an order from an explicit line list
func (s *Service) CreateAnonymous(ctx context.Context, req AnonymousOrderRequest) (*Order, error) {
	const source = "anonymous"

	if err := validateAnonymous(req); err != nil {
		metrics.OrdersCreated.WithLabelValues(source, "invalid").Inc()
		return nil, err
	}

	ids, quantities := mergeLines(req.Lines)

	start := time.Now()
	var created *Order
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		recipient, err := findOrCreateRecipient(tx, nil, req.Recipient)
		if err != nil {
			return err
		}

		order, err := insertOrder(tx, nil, recipient, req.CreateOrderRequest)
		if err != nil {
			return err
		}

		var locked []uint
		if err := tx.Raw(lockProductsSQL, ids).Scan(&locked).Error; err != nil {
			return fmt.Errorf("failed to lock products: %w", err)
		}

		res := tx.Exec(reserveLinesSQL, ids, quantities, order.ID)
		if res.Error != nil {
			return fmt.Errorf("failed to reserve order lines: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrEmptyOrder
		}

		if err := tx.Where("order_id = ?", order.ID).Order("id").Find(&order.Items).Error; err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}
		created = order
		return nil
	})
	metrics.OrderTxDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OrdersCreated.WithLabelValues(source, resultLabel(err)).Inc()
		return nil, err
	}
	metrics.OrdersCreated.WithLabelValues(source, "created").Inc()

	s.notifyCreated(ctx, created)

	s.log.WithFields(logrus.Fields{
		"order_id": created.ID,
		"items":    len(created.Items),
	}).Info("Anonymous order created")

	return created, nil
}

// GetOrder loads an order with its recipient, items and current status
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var order Order
	err := s.db.WithContext(ctx).
		Preload("Recipient").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at, id")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}

	if n := len(order.History); n > 0 {
		order.Status = order.History[n-1].Status
	}
	return &order, nil
}

// ListForUser returns the orders of a user, newest first
func (s *Service) ListForUser(ctx context.Context, userID uint, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	orders := []Order{}
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at, id")
		}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	for i := range orders {
		if n := len(orders[i].History); n > 0 {
			orders[i].Status = orders[i].History[n-1].Status
		}
	}
	return orders, nil
}

// History returns the status history of an order, oldest first
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]StatusHistory, error) {
	history := []StatusHistory{}
	err := s.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("created_at, id").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	if len(history) == 0 {
		return nil, ErrOrderNotFound
	}
	return history, nil
}

// AppendStatus records a status change. Rows are never updated or deleted.
func (s *Service) AppendStatus(ctx context.Context, id uuid.UUID, status Status, comment string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	return s.inTx(ctx, func(tx *gorm.DB) error {
		var order Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "is_paid").
			Where("id = ?", id).
			First(&order).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}

		current, err := currentStatus(tx, id)
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, status)
		}

		if status == StatusPaid && !order.IsPaid {
			if err := tx.Model(&Order{}).Where("id = ?", id).Update("is_paid", true).Error; err != nil {
				return fmt.Errorf("failed to mark order paid: %w", err)
			}
		}

		return appendHistory(tx, id, status, comment)
	})
}

// MarkPaidTx flips is_paid inside the caller's transaction and records the
// paid status. It reports whether the order changed.
func MarkPaidTx(tx *gorm.DB, id uuid.UUID) (bool, error) {
	res := tx.Model(&Order{}).
		Where("id = ? AND is_paid = ?", id, false).
		Update("is_paid", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := appendHistory(tx, id, StatusPaid, "payment received"); err != nil {
		return false, err
	}
	return true, nil
}

// LockPaidTx locks the order row inside the caller's transaction and reports
// whether it is already paid
func LockPaidTx(tx *gorm.DB, id uuid.UUID) (bool, error) {
	var o Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "is_paid").
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrOrderNotFound
		}
		return false, fmt.Errorf("failed to lock order: %w", err)
	}
	return o.IsPaid, nil
}

// inTx runs fn in a READ COMMITTED transaction bounded by the tx timeout
func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEmptyOrder) || errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrInvalidTransition) || validation.IsValidationError(err) {
		return err
	}
	if IsRetryable(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRetryable, err)
	}
	return err
}

func findOrCreateRecipient(tx *gorm.DB, userID *uint, in RecipientInput) (*Recipient, error) {
	r := Recipient{
		UserID:      userID,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Email:       strings.TrimSpace(in.Email),
	}

	if userID == nil {
		if err := tx.Create(&r).Error; err != nil {
			return nil, fmt.Errorf("failed to create recipient: %w", err)
		}
		return &r, nil
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error; err != nil {
		return nil, fmt.Errorf("failed to create recipient: %w", err)
	}
	if r.ID != 0 {
		return &r, nil
	}

	var existing Recipient
	err := tx.Where("user_id = ? AND first_name = ? AND last_name = ? AND phone_number = ?",
		*userID, r.FirstName, r.LastName, r.PhoneNumber).
		First(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recipient: %w", err)
	}
	return &existing, nil
}

func insertOrder(tx *gorm.DB, userID *uint, recipient *Recipient, req CreateOrderRequest) (*Order, error) {
	order := &Order{
		UserID:            userID,
		RecipientID:       recipient.ID,
		PaymentMethod:     req.PaymentMethod,
		DeliveryCarrier:   strings.TrimSpace(req.DeliveryCarrier),
		DeliveryWarehouse: strings.TrimSpace(req.DeliveryWarehouse),
	}
	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if err := appendHistory(tx, order.ID, StatusProcessing, "order created"); err != nil {
		return nil, err
	}

	order.Recipient = *recipient
	order.Status = StatusProcessing
	return order, nil
}

func appendHistory(tx *gorm.DB, id uuid.UUID, status Status, comment string) error {
	row := StatusHistory{OrderID: id, Status: status, Comment: comment}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func currentStatus(tx *gorm.DB, id uuid.UUID) (Status, error) {
	var row StatusHistory
	err := tx.Where("order_id = ?", id).Order("created_at DESC, id DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StatusProcessing, nil
		}
		return "", fmt.Errorf("failed to load current status: %w", err)
	}
	return row.Status, nil
}

func validateAnonymous(req AnonymousOrderRequest) error {
	if err := validation.Struct(req.CreateOrderRequest); err != nil {
		return err
	}
	return validation.Struct(linesRequest{Lines: req.Lines})
}

// mergeLines sums duplicate products and returns parallel id/quantity arrays
func mergeLines(lines []cart.LineInput) (pq.Int64Array, pq.Int64Array) {
	index := make(map[uint]int, len(lines))
	ids := make(pq.Int64Array, 0, len(lines))
	quantities := make(pq.Int64Array, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			quantities[i] += int64(l.Quantity)
			continue
		}
		index[l.ProductID] = len(ids)
		ids = append(ids, int64(l.ProductID))
		quantities = append(quantities, int64(l.Quantity))
	}
	return ids, quantities
}

func (s *Service) notifyCreated(ctx context.Context, order *Order) {
	subject := fmt.Sprintf("New order %s", order.ID)
	body := fmt.Sprintf("Order %s for %s %s (%s): %d item(s), total %s, payment %s, delivery %s / %s",
		order.ID,
		order.Recipient.FirstName,
		order.Recipient.LastName,
		order.Recipient.PhoneNumber,
		len(order.Items),
		order.Total().StringFixed(2),
		order.PaymentMethod,
		order.DeliveryCarrier,
		order.DeliveryWarehouse,
	)

	// Empty email routes the message to the shop admin.
	if err := s.notifier.Notify(context.WithoutCancel(ctx), notify.Recipient{Name: "orders"}, subject, body); err != nil {
		metrics.NotificationFailures.WithLabelValues("order_created").Inc()
		s.log.WithError(err).WithField("order_id", order.ID).Warn("Failed to send new order notification")
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrEmptyOrder):
		return "empty"
	case errors.Is(err, ErrRetryable):
		return "retryable"
	default:
		return "error"
	}
}
