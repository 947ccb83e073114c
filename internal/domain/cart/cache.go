// internal/domain/cart/cache.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/your-org/storefront-backend/internal/metrics"
)

// ErrStaleVersion is returned by Put when the cart changed after the version
// was read. The write is dropped.
var ErrStaleVersion = errors.New("cart cache version changed")

// Cache is a best-effort projection of the Store. A miss means unknown, never empty.
type Cache interface {
	Get(ctx context.Context, userID uint) ([]Entry, bool, error)
	// Version returns a counter bumped by every Invalidate. Put only succeeds
	// while it is unchanged, so a slow fill cannot overwrite a newer write.
	Version(ctx context.Context, userID uint) (int64, error)
	Put(ctx context.Context, userID uint, version int64, entries []Entry, ttl time.Duration) error
	Invalidate(ctx context.Context, userIDs ...uint) error
}

const (
	cartKeyPrefix    = "cart:user:"
	versionKeyPrefix = "cart:version:"
	versionTTL       = 24 * time.Hour
	breakerName      = "cart-cache"
)

type cachedCart struct {
	Entries  []Entry   `json:"entries"`
	CachedAt time.Time `json:"cached_at"`
}

// RedisCache stores one JSON blob per user. Invalidations that fail are kept
// and retried on later calls; until then those users always miss.
type RedisCache struct {
	client  *redis.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     logrus.FieldLogger

	mu      sync.Mutex
	pending map[uint]struct{}
}

// NewRedisCache creates a cart cache. Every call is bounded by timeout and
// skipped while the breaker is open.
func NewRedisCache(client *redis.Client, timeout time.Duration, log logrus.FieldLogger) *RedisCache {
	c := &RedisCache{
		client:  client,
		timeout: timeout,
		log:     log,
		pending: map[uint]struct{}{},
	}

	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			c.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Cart cache circuit breaker changed state")
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return c
}

func cartKey(userID uint) string {
	return cartKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func versionKey(userID uint) string {
	return versionKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func (c *RedisCache) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return struct{}{}, fn(ctx)
	})
	return err
}

// Get returns the cached entries. A corrupt blob is dropped and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, userID uint) ([]Entry, bool, error) {
	c.retryPending(ctx)
	if c.isPending(userID) {
		metrics.CartCacheRequests.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	var raw []byte
	found := false

	err := c.guard(ctx, func(ctx context.Context) error {
		b, err := c.client.Get(ctx, cartKey(userID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, found = b, true
		return nil
	})
	if err != nil {
		metrics.CartCacheRequests.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to read cart cache: %w", err)
	}
	if !found {
		metrics.CartCacheRequests.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	var cart cachedCart
	if err := json.Unmarshal(raw, &cart); err != nil || cart.Entries == nil {
		metrics.CartCacheRequests.WithLabelValues("miss").Inc()
		c.log.WithField("user_id", userID).Warn("Dropping undecodable cart cache entry")
		if delErr := c.guard(ctx, func(ctx context.Context) error {
			return c.client.Del(ctx, cartKey(userID)).Err()
		}); delErr != nil {
			metrics.CartCacheWriteErrors.WithLabelValues("invalidate").Inc()
		}
		return nil, false, nil
	}

	metrics.CartCacheRequests.WithLabelValues("hit").Inc()
	return cart.Entries, true, nil
}

// Version returns the current invalidation counter, zero if none
func (c *RedisCache) Version(ctx context.Context, userID uint) (int64, error) {
	var version int64
	err := c.guard(ctx, func(ctx context.Context) error {
		v, err := c.client.Get(ctx, versionKey(userID)).Int64()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read cart cache version: %w", err)
	}
	return version, nil
}

// Put stores entries if the version is still current
func (c *RedisCache) Put(ctx context.Context, userID uint, version int64, entries []Entry, ttl time.Duration) error {
	if c.isPending(userID) {
		return ErrStaleVersion
	}
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(cachedCart{Entries: entries, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	var stale bool
	err = c.guard(ctx, func(ctx context.Context) error {
		vKey := versionKey(userID)
		return c.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, vKey).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if current != version {
				stale = true
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, cartKey(userID), data, ttl)
				return nil
			})
			if errors.Is(err, redis.TxFailedErr) {
				stale = true
				return nil
			}
			return err
		}, vKey)
	})
	if err != nil {
		return fmt.Errorf("failed to write cart cache: %w", err)
	}
	if stale {
		return ErrStaleVersion
	}
	return nil
}

// Invalidate drops the cached carts and bumps their versions. On failure the
// users are remembered and invalidated again once Redis answers.
func (c *RedisCache) Invalidate(ctx context.Context, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}

	if err := c.invalidate(ctx, userIDs); err != nil {
		c.mu.Lock()
		for _, id := range userIDs {
			c.pending[id] = struct{}{}
		}
		c.mu.Unlock()
		return fmt.Errorf("failed to invalidate cart cache: %w", err)
	}

	c.forget(userIDs)
	return nil
}

func (c *RedisCache) invalidate(ctx context.Context, userIDs []uint) error {
	return c.guard(ctx, func(ctx context.Context) error {
		_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range userIDs {
				pipe.Del(ctx, cartKey(id))
				pipe.Incr(ctx, versionKey(id))
				pipe.Expire(ctx, versionKey(id), versionTTL)
			}
			return nil
		})
		return err
	})
}

// retryPending replays failed invalidations unless the breaker is still open
func (c *RedisCache) retryPending(ctx context.Context) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	ids := make([]uint, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	if c.breaker.State() == gobreaker.StateOpen {
		return
	}
	if err := c.invalidate(ctx, ids); err != nil {
		c.log.WithError(err).WithField("users", len(ids)).Debug("Pending cart invalidations still failing")
		return
	}
	c.forget(ids)
	c.log.WithField("users", len(ids)).Info("Replayed pending cart cache invalidations")
}

func (c *RedisCache) forget(userIDs []uint) {
	c.mu.Lock()
	for _, id := range userIDs {
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *RedisCache) isPending(userID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[userID]
	return ok
}

// BreakerState reports the circuit breaker state
func (c *RedisCache) BreakerState() gobreaker.State {
	return c.breaker.State()
}
