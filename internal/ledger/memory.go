package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"inventory-service/internal/models"
)

// MemoryStore implementación en memoria de TxStore, para tests y desarrollo.
// WithTx simula la transacción con copia del estado y restore si fn falla.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
}

type stockKey struct {
	itemID     int64
	locationID int64
}

type memoryState struct {
	items     map[int64]models.Item
	locations map[int64]models.Location
	suppliers map[int64]models.Supplier
	txs       []models.StockTransaction
	stock     map[stockKey]models.ItemLocation
	nextID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memoryState{
		items:     make(map[int64]models.Item),
		locations: make(map[int64]models.Location),
		suppliers: make(map[int64]models.Supplier),
		stock:     make(map[stockKey]models.ItemLocation),
	}}
}

// PutItem guarda (o reemplaza) un item. Si no trae ID se le asigna uno.
func (m *MemoryStore) PutItem(item models.Item) models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == 0 {
		item.ID = m.state.newID()
	}
	m.state.items[item.ID] = item
	return item
}

func (m *MemoryStore) PutLocation(loc models.Location) models.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loc.ID == 0 {
		loc.ID = m.state.newID()
	}
	m.state.locations[loc.ID] = loc
	return loc
}

func (m *MemoryStore) PutSupplier(sup models.Supplier) models.Supplier {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sup.ID == 0 {
		sup.ID = m.state.newID()
	}
	m.state.suppliers[sup.ID] = sup
	return sup
}

// CorruptQuantity pisa el snapshot sin pasar por el ledger
func (m *MemoryStore) CorruptQuantity(itemID, locationID int64, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.state.SetQuantity(context.Background(), itemID, locationID, qty, time.Now().UTC())
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.state.clone()
	if err := fn(&m.state); err != nil {
		m.state = backup
		return err
	}
	return nil
}

func (m *MemoryStore) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetItem(ctx, id)
}

func (m *MemoryStore) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetLocation(ctx, id)
}

func (m *MemoryStore) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetSupplier(ctx, id)
}

func (m *MemoryStore) InsertItem(ctx context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertItem(ctx, item)
}

func (m *MemoryStore) InsertTransaction(ctx context.Context, tx *models.StockTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertTransaction(ctx, tx)
}

func (m *MemoryStore) ListItemTransactions(ctx context.Context, itemID int64) ([]models.StockTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ListItemTransactions(ctx, itemID)
}

func (m *MemoryStore) GetQuantity(ctx context.Context, itemID, locationID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetQuantity(ctx, itemID, locationID)
}

func (m *MemoryStore) ListItemLocations(ctx context.Context, itemID int64) ([]models.ItemLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ListItemLocations(ctx, itemID)
}

func (m *MemoryStore) DecrementQuantity(ctx context.Context, itemID, locationID int64, qty int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DecrementQuantity(ctx, itemID, locationID, qty, at)
}

func (m *MemoryStore) IncrementQuantity(ctx context.Context, itemID, locationID int64, qty int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IncrementQuantity(ctx, itemID, locationID, qty, at)
}

func (m *MemoryStore) SetQuantity(ctx context.Context, itemID, locationID int64, qty int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SetQuantity(ctx, itemID, locationID, qty, at)
}

func (m *MemoryStore) DeleteItemLocations(ctx context.Context, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteItemLocations(ctx, itemID)
}

// =============================================================================
// estado sin lock, usado directamente dentro de WithTx
// =============================================================================

func (s *memoryState) newID() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryState) clone() memoryState {
	c := memoryState{
		items:     make(map[int64]models.Item, len(s.items)),
		locations: make(map[int64]models.Location, len(s.locations)),
		suppliers: make(map[int64]models.Supplier, len(s.suppliers)),
		txs:       append([]models.StockTransaction(nil), s.txs...),
		stock:     make(map[stockKey]models.ItemLocation, len(s.stock)),
		nextID:    s.nextID,
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	return c
}

func (s *memoryState) GetItem(_ context.Context, id int64) (*models.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, &NotFoundError{Entity: "item", ID: id}
	}
	return &item, nil
}

func (s *memoryState) GetLocation(_ context.Context, id int64) (*models.Location, error) {
	loc, ok := s.locations[id]
	if !ok {
		return nil, &NotFoundError{Entity: "location", ID: id}
	}
	return &loc, nil
}

func (s *memoryState) GetSupplier(_ context.Context, id int64) (*models.Supplier, error) {
	sup, ok := s.suppliers[id]
	if !ok {
		return nil, &NotFoundError{Entity: "supplier", ID: id}
	}
	return &sup, nil
}

func (s *memoryState) InsertItem(_ context.Context, item *models.Item) error {
	for _, existing := range s.items {
		if existing.SKU == item.SKU {
			return &ConstraintError{Constraint: "unique", Detail: "items.sku"}
		}
	}
	item.ID = s.newID()
	s.items[item.ID] = *item
	return nil
}

func (s *memoryState) InsertTransaction(_ context.Context, tx *models.StockTransaction) error {
	if _, ok := s.items[tx.ItemID]; !ok {
		return &NotFoundError{Entity: "item", ID: tx.ItemID}
	}
	for _, locID := range []*int64{tx.FromLocationID, tx.ToLocationID} {
		if locID == nil {
			continue
		}
		if _, ok := s.locations[*locID]; !ok {
			return &NotFoundError{Entity: "location", ID: *locID}
		}
	}
	if tx.SupplierID != nil {
		if _, ok := s.suppliers[*tx.SupplierID]; !ok {
			return &NotFoundError{Entity: "supplier", ID: *tx.SupplierID}
		}
	}

	tx.ID = s.newID()
	s.txs = append(s.txs, *tx)
	return nil
}

func (s *memoryState) ListItemTransactions(_ context.Context, itemID int64) ([]models.StockTransaction, error) {
	var out []models.StockTransaction
	for _, tx := range s.txs {
		if tx.ItemID == itemID {
			out = append(out, tx)
		}
	}
	sortChronological(out)
	return out, nil
}

func (s *memoryState) GetQuantity(_ context.Context, itemID, locationID int64) (int, error) {
	return s.stock[stockKey{itemID, locationID}].CurrentQuantity, nil
}

func (s *memoryState) ListItemLocations(_ context.Context, itemID int64) ([]models.ItemLocation, error) {
	out := []models.ItemLocation{}
	for k, row := range s.stock {
		if k.itemID == itemID {
			out = append(out, row)
		}
	}
	sortByLocation(out)
	return out, nil
}

func (s *memoryState) DecrementQuantity(_ context.Context, itemID, locationID int64, qty int, at time.Time) (bool, error) {
	k := stockKey{itemID, locationID}
	row, ok := s.stock[k]
	if !ok || row.CurrentQuantity < qty {
		return false, nil
	}
	row.CurrentQuantity -= qty
	row.UpdatedAt = at
	s.stock[k] = row
	return true, nil
}

func (s *memoryState) IncrementQuantity(_ context.Context, itemID, locationID int64, qty int, at time.Time) error {
	k := stockKey{itemID, locationID}
	row := s.stock[k]
	row.ItemID, row.LocationID = itemID, locationID
	row.CurrentQuantity += qty
	row.UpdatedAt = at
	s.stock[k] = row
	return nil
}

func (s *memoryState) SetQuantity(_ context.Context, itemID, locationID int64, qty int, at time.Time) error {
	s.stock[stockKey{itemID, locationID}] = models.ItemLocation{
		ItemID:          itemID,
		LocationID:      locationID,
		CurrentQuantity: qty,
		UpdatedAt:       at,
	}
	return nil
}

func (s *memoryState) DeleteItemLocations(_ context.Context, itemID int64) error {
	for k := range s.stock {
		if k.itemID == itemID {
			delete(s.stock, k)
		}
	}
	return nil
}

func sortByLocation(rows []models.ItemLocation) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].LocationID < rows[j].LocationID })
}
