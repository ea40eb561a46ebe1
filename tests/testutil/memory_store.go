package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/sale"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// StockStore is an in-memory inventory.StockLevelRepository and
// inventory.MovementRepository. It does not lock rows; callers that need
// serialization wrap it in SerialScope.
type StockStore struct {
	mu        sync.Mutex
	levels    map[inventory.StockKey]inventory.StockLevel
	movements []inventory.InventoryMovement
	// FailCreate, when set, is returned by the next movement Create
	FailCreate error
}

// NewStockStore creates an empty StockStore
func NewStockStore() *StockStore {
	return &StockStore{levels: map[inventory.StockKey]inventory.StockLevel{}}
}

func (s *StockStore) Find(_ context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	level, ok := s.levels[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &level, nil
}

func (s *StockStore) FindForUpdate(ctx context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	return s.Find(ctx, key)
}

func (s *StockStore) GetOrCreateForUpdate(_ context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level, ok := s.levels[key]; ok {
		return &level, nil
	}
	level, err := inventory.NewStockLevel(key.TenantID, key.ProductID, key.LocationID)
	if err != nil {
		return nil, err
	}
	s.levels[key] = *level
	return level, nil
}

func (s *StockStore) Save(_ context.Context, level *inventory.StockLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[level.Key()] = *level
	return nil
}

func (s *StockStore) ListPairs(_ context.Context, tenantID uuid.UUID) ([]inventory.StockKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]inventory.StockKey, 0)
	for key := range s.levels {
		if key.TenantID == tenantID {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func (s *StockStore) Create(_ context.Context, m *inventory.InventoryMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailCreate; err != nil {
		s.FailCreate = nil
		return err
	}
	s.movements = append(s.movements, *m)
	return nil
}

func (s *StockStore) SumQuantity(ctx context.Context, key inventory.StockKey) (int64, error) {
	movements, err := s.ListByPair(ctx, key, shared.Filter{})
	if err != nil {
		return 0, err
	}
	return inventory.Replay(movements), nil
}

func (s *StockStore) ListByPair(_ context.Context, key inventory.StockKey, _ shared.Filter) ([]inventory.InventoryMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.InventoryMovement, 0)
	for _, m := range s.movements {
		if m.TenantID == key.TenantID && m.ProductID == key.ProductID && m.LocationID == key.LocationID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Movements returns a copy of every recorded movement
func (s *StockStore) Movements() []inventory.InventoryMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inventory.InventoryMovement(nil), s.movements...)
}

// Quantity returns the stored quantity of a pair, 0 when absent
func (s *StockStore) Quantity(key inventory.StockKey) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[key].Quantity
}

// SetQuantity overwrites a stored quantity without recording a movement
func (s *StockStore) SetQuantity(key inventory.StockKey, quantity int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	level, ok := s.levels[key]
	if !ok {
		created, _ := inventory.NewStockLevel(key.TenantID, key.ProductID, key.LocationID)
		level = *created
	}
	level.Quantity = quantity
	s.levels[key] = level
}

// Snapshot copies the store state; Restore puts it back. Together they give
// an in-memory scope rollback semantics.
func (s *StockStore) Snapshot() (map[inventory.StockKey]inventory.StockLevel, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	levels := make(map[inventory.StockKey]inventory.StockLevel, len(s.levels))
	for k, v := range s.levels {
		levels[k] = v
	}
	return levels, len(s.movements)
}

// Restore resets the store to a Snapshot
func (s *StockStore) Restore(levels map[inventory.StockKey]inventory.StockLevel, movements int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = levels
	s.movements = s.movements[:movements]
}

// SaleStore is an in-memory sale.SaleRepository
type SaleStore struct {
	mu    sync.Mutex
	sales []sale.Sale
}

// NewSaleStore creates an empty SaleStore
func NewSaleStore() *SaleStore {
	return &SaleStore{}
}

func (s *SaleStore) Create(_ context.Context, sl *sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, *sl)
	return nil
}

func (s *SaleStore) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*sale.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sales {
		if s.sales[i].ID == id && s.sales[i].TenantID == tenantID {
			found := s.sales[i]
			return &found, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *SaleStore) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]sale.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sale.Sale, 0)
	for _, sl := range s.sales {
		if sl.TenantID == tenantID {
			out = append(out, sl)
		}
	}
	return out, nil
}

// Len returns the number of stored sales
func (s *SaleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

// Truncate drops sales stored after the first n
func (s *SaleStore) Truncate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < len(s.sales) {
		s.sales = s.sales[:n]
	}
}
