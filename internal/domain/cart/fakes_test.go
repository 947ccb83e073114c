package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/your-org/storefront-backend/internal/domain/product"
)

type fakeStore struct {
	mu       sync.Mutex
	lines    map[uint]map[uint]int
	order    map[uint][]uint
	entries  atomic.Int32
	release  chan struct{} // blocks Entries before it reads
	readDone chan struct{} // signalled once Entries has read
	hold     chan struct{} // blocks Entries after it has read
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{lines: map[uint]map[uint]int{}, order: map[uint][]uint{}}
}

func (f *fakeStore) set(userID, productID uint, quantity int) {
	if f.lines[userID] == nil {
		f.lines[userID] = map[uint]int{}
	}
	if _, ok := f.lines[userID][productID]; !ok {
		f.order[userID] = append(f.order[userID], productID)
	}
	f.lines[userID][productID] = quantity
}

func (f *fakeStore) Lines(_ context.Context, userID uint) ([]Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []Line
	for _, id := range f.order[userID] {
		if q, ok := f.lines[userID][id]; ok {
			out = append(out, Line{UserID: userID, ProductID: id, Quantity: q})
		}
	}
	return out, nil
}

func (f *fakeStore) Entries(ctx context.Context, userID uint) ([]Entry, error) {
	f.entries.Add(1)
	if f.release != nil {
		<-f.release
	}
	lines, err := f.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.hold != nil {
		select {
		case f.readDone <- struct{}{}:
		default:
		}
		<-f.hold
	}
	out := []Entry{}
	for _, l := range lines {
		out = append(out, Entry{
			ProductID: l.ProductID,
			Title:     "product",
			Price:     decimal.NewFromInt(10),
			Quantity:  l.Quantity,
		})
	}
	return out, nil
}

func (f *fakeStore) Upsert(_ context.Context, userID, productID uint, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.set(userID, productID, quantity)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, userID, productID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines[userID], productID)
	kept := f.order[userID][:0]
	for _, id := range f.order[userID] {
		if id != productID {
			kept = append(kept, id)
		}
	}
	f.order[userID] = kept
	return nil
}

func (f *fakeStore) Clear(_ context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, userID)
	delete(f.order, userID)
	return nil
}

func (f *fakeStore) BulkInsert(_ context.Context, userID uint, lines []LineInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range lines {
		f.set(userID, l.ProductID, l.Quantity)
	}
	return nil
}

func (f *fakeStore) Count(_ context.Context, userID uint, includeDuplicates bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !includeDuplicates {
		return len(f.lines[userID]), nil
	}
	total := 0
	for _, q := range f.lines[userID] {
		total += q
	}
	return total, nil
}

// fakeCache is an in-memory Cache; err makes every call fail
type fakeCache struct {
	mu       sync.Mutex
	carts    map[uint][]Entry
	versions map[uint]int64
	err      error
	puts     int
}

func newFakeCache() *fakeCache {
	return &fakeCache{carts: map[uint][]Entry{}, versions: map[uint]int64{}}
}

func (f *fakeCache) Get(_ context.Context, userID uint) ([]Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	e, ok := f.carts[userID]
	return e, ok, nil
}

func (f *fakeCache) Version(_ context.Context, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.versions[userID], nil
}

func (f *fakeCache) Put(_ context.Context, userID uint, version int64, entries []Entry, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.versions[userID] != version {
		return ErrStaleVersion
	}
	f.puts++
	f.carts[userID] = entries
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, userIDs ...uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, id := range userIDs {
		delete(f.carts, id)
		f.versions[id]++
	}
	return nil
}

func (f *fakeCache) cached(userID uint) ([]Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.carts[userID]
	return e, ok
}

type fakeLedger struct {
	known map[uint]bool
	err   error
}

func (f *fakeLedger) ProductsExist(_ context.Context, ids []uint) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, id := range ids {
		if !f.known[id] {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeLedger) GetProduct(_ context.Context, id uint, _ ...string) (*product.Product, error) {
	if !f.known[id] {
		return nil, product.ErrProductNotFound
	}
	return &product.Product{ID: id}, nil
}

var errCacheDown = errors.New("cache down")

func productIDs(entries []Entry) []uint {
	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
