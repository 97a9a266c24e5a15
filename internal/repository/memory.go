package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stolik/internal/domain"
)

// MemoryStore объединённое in-memory хранилище меню и заказов
type MemoryStore struct {
	mu          sync.RWMutex
	itemsByID   map[string]domain.Item
	itemIDByKey map[string]string // NameKey -> item id
	ordersByID  map[string]domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		itemsByID:   make(map[string]domain.Item),
		itemIDByKey: make(map[string]string),
		ordersByID:  make(map[string]domain.Order),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var _ ItemRepository = (*MemoryStore)(nil)

// OrderRepository реализован отдельным типом MemoryOrders

// ItemRepository implementation
func (m *MemoryStore) Create(ctx context.Context, it *domain.Item) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	m.itemsByID[it.ID] = *it.Clone()
	m.itemIDByKey[domain.NameKey(it.Name)] = it.ID
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	it, ok := m.itemsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	return it.Clone(), nil
}

func (m *MemoryStore) GetByName(ctx context.Context, name string) (*domain.Item, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	id, ok := m.itemIDByKey[domain.NameKey(name)]
	if !ok {
		return nil, ErrNotFound
	}
	it := m.itemsByID[id]
	return it.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, it *domain.Item) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.itemsByID[it.ID]; !ok {
		return ErrNotFound
	}
	m.itemsByID[it.ID] = *it.Clone()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ItemFilter) ([]domain.Item, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Item, 0)
	for _, it := range m.itemsByID {
		if !containsIgnoreCase(it.Name, f.NameSubstring) {
			continue
		}
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		out = append(out, *it.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = time.Now().UTC()
	mo.store.ordersByID[o.ID] = *o.Clone()
	return nil
}

func (mo *MemoryOrders) FindOpen(ctx context.Context, customerName, seatNumber string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	for _, o := range mo.store.ordersByID {
		if o.CustomerName == customerName && o.SeatNumber == seatNumber {
			return o.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (mo *MemoryOrders) Update(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[o.ID]; !ok {
		return ErrNotFound
	}
	mo.store.ordersByID[o.ID] = *o.Clone()
	return nil
}

func (mo *MemoryOrders) List(ctx context.Context) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0, len(mo.store.ordersByID))
	for _, o := range mo.store.ordersByID {
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (mo *MemoryOrders) DeleteBySeat(ctx context.Context, seatNumber string) (int, error) {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	removed := 0
	for id, o := range mo.store.ordersByID {
		if o.SeatNumber == seatNumber {
			delete(mo.store.ordersByID, id)
			removed++
		}
	}
	return removed, nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Для in-memory используем блокировку записи и помечаем контекст, чтобы репозитории пропускали внутренние локи
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx)
}
