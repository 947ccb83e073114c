// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/metrics"
	"github.com/your-org/storefront-backend/internal/pkg/validation"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrCartFull        = errors.New("cart item limit reached")
)

// Service reads and writes carts. The Store is the authority; the cache is
// filled on reads and invalidated after every write, and its failures never
// reach the caller.
type Service struct {
	store  Store
	cache  Cache
	ledger product.Ledger
	cfg    config.CartConfig
	log    logrus.FieldLogger

	loads singleflight.Group
	fills sync.WaitGroup
}

// NewService creates a new cart service
func NewService(store Store, cache Cache, ledger product.Ledger, cfg config.CartConfig, log logrus.FieldLogger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		ledger: ledger,
		cfg:    cfg,
		log:    log,
	}
}

// GetCart returns the cart of a user
func (s *Service) GetCart(ctx context.Context, userID uint) ([]Entry, error) {
	entries, hit, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Cart cache read failed, using store")
	}
	if hit {
		return entries, nil
	}

	key := strconv.FormatUint(uint64(userID), 10)
	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(key, func() (interface{}, error) {
		return s.load(loadCtx, userID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Entry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load reads the cart once for all concurrent callers and schedules one fill.
// The version is read before the store, inside the shared call, so the fill
// always carries the version that was current when its snapshot was taken.
func (s *Service) load(ctx context.Context, userID uint) ([]Entry, error) {
	if s.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LoadTimeout)
		defer cancel()
	}

	version, verr := s.cache.Version(ctx, userID)

	entries, err := s.store.Entries(ctx, userID)
	if err != nil {
		return nil, err
	}

	if verr == nil {
		s.fill(ctx, userID, version, entries)
	}
	return entries, nil
}

// fill repopulates the cache in the background
func (s *Service) fill(ctx context.Context, userID uint, version int64, entries []Entry) {
	ctx = context.WithoutCancel(ctx)
	s.fills.Add(1)
	go func() {
		defer s.fills.Done()
		err := s.cache.Put(ctx, userID, version, entries, s.cfg.CacheTTL)
		switch {
		case err == nil:
		case errors.Is(err, ErrStaleVersion):
			s.log.WithField("user_id", userID).Debug("Skipped stale cart cache fill")
		default:
			metrics.CartCacheWriteErrors.WithLabelValues("put").Inc()
			s.log.WithError(err).WithField("user_id", userID).Warn("Failed to populate cart cache")
		}
	}()
}

// Wait blocks until background cache fills finish
func (s *Service) Wait() {
	s.fills.Wait()
}

// UpsertItem sets the quantity of a product in the cart
func (s *Service) UpsertItem(ctx context.Context, userID, productID uint, quantity int) error {
	if quantity < 1 {
		return validation.NewError("quantity", "quantity must be at least 1")
	}
	if err := s.checkProducts(ctx, []uint{productID}); err != nil {
		return err
	}

	lines, err := s.store.Lines(ctx, userID)
	if err != nil {
		return err
	}
	if !containsProduct(lines, productID) && len(lines) >= s.cfg.MaxItems {
		return ErrCartFull
	}

	if err := s.store.Upsert(ctx, userID, productID, quantity); err != nil {
		return err
	}
	s.InvalidateCache(ctx, userID)
	return nil
}

// AddItem increases the quantity of a product by delta and returns the new quantity
func (s *Service) AddItem(ctx context.Context, userID, productID uint, delta int) (int, error) {
	if delta < 1 {
		return 0, validation.NewError("quantity", "quantity must be at least 1")
	}
	if err := s.checkProducts(ctx, []uint{productID}); err != nil {
		return 0, err
	}

	lines, err := s.store.Lines(ctx, userID)
	if err != nil {
		return 0, err
	}

	quantity := delta
	found := false
	for _, l := range lines {
		if l.ProductID == productID {
			quantity += l.Quantity
			found = true
			break
		}
	}
	if !found && len(lines) >= s.cfg.MaxItems {
		return 0, ErrCartFull
	}

	if err := s.store.Upsert(ctx, userID, productID, quantity); err != nil {
		return 0, err
	}
	s.InvalidateCache(ctx, userID)
	return quantity, nil
}

// DeleteItem removes a product from the cart
func (s *Service) DeleteItem(ctx context.Context, userID, productID uint) error {
	if err := s.store.Delete(ctx, userID, productID); err != nil {
		return err
	}
	s.InvalidateCache(ctx, userID)
	return nil
}

// Clear empties the cart
func (s *Service) Clear(ctx context.Context, userID uint) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return err
	}
	s.InvalidateCache(ctx, userID)
	return nil
}

// MergeLocalCart writes a client-side cart into the stored one. Incoming
// quantities replace stored ones; duplicate inputs keep the last quantity.
func (s *Service) MergeLocalCart(ctx context.Context, userID uint, lines []LineInput) error {
	if len(lines) == 0 {
		return nil
	}
	if err := validation.Struct(mergeRequest{Lines: lines}); err != nil {
		return err
	}

	merged := make([]LineInput, 0, len(lines))
	index := make(map[uint]int, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity = l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}

	ids := make([]uint, 0, len(merged))
	for _, l := range merged {
		ids = append(ids, l.ProductID)
	}
	if err := s.checkProducts(ctx, ids); err != nil {
		return err
	}

	existing, err := s.store.Lines(ctx, userID)
	if err != nil {
		return err
	}
	distinct := len(existing)
	for _, l := range merged {
		if !containsProduct(existing, l.ProductID) {
			distinct++
		}
	}
	if distinct > s.cfg.MaxItems {
		return ErrCartFull
	}

	if err := s.store.BulkInsert(ctx, userID, merged); err != nil {
		return err
	}
	s.InvalidateCache(ctx, userID)
	return nil
}

type mergeRequest struct {
	Lines []LineInput `json:"lines" validate:"required,dive"`
}

// CountItems returns the number of lines, or the total quantity when
// includeDuplicates is set
func (s *Service) CountItems(ctx context.Context, userID uint, includeDuplicates bool) (int, error) {
	entries, hit, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Cart cache read failed, counting in store")
	}
	if hit {
		if !includeDuplicates {
			return len(entries), nil
		}
		return CalculateTotals(entries).TotalQuantity, nil
	}
	return s.store.Count(ctx, userID, includeDuplicates)
}

// InvalidateCache drops cached carts. Failures are logged and counted.
func (s *Service) InvalidateCache(ctx context.Context, userIDs ...uint) {
	if len(userIDs) == 0 {
		return
	}
	// Readers arriving after this write start a fresh load
	for _, id := range userIDs {
		s.loads.Forget(strconv.FormatUint(uint64(id), 10))
	}
	// A cancelled request must not leave a stale cart behind.
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), userIDs...); err != nil {
		metrics.CartCacheWriteErrors.WithLabelValues("invalidate").Inc()
		s.log.WithError(err).WithField("user_ids", userIDs).Warn("Failed to invalidate cart cache")
	}
}

func (s *Service) checkProducts(ctx context.Context, ids []uint) error {
	ok, err := s.ledger.ProductsExist(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to check products: %w", err)
	}
	if !ok {
		return ErrProductNotFound
	}
	return nil
}

func containsProduct(lines []Line, productID uint) bool {
	for _, l := range lines {
		if l.ProductID == productID {
			return true
		}
	}
	return false
}
