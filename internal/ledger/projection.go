package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
)

// LocationRef referencia liviana a una location
type LocationRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// HistoryEntry un evento del historial de locations de un item
type HistoryEntry struct {
	TransactionID int64            `json:"transaction_id"`
	Timestamp     time.Time        `json:"timestamp"`
	Type          models.TxType    `json:"type"`
	FromLocation  *LocationRef     `json:"from_location,omitempty"`
	ToLocation    *LocationRef     `json:"to_location,omitempty"`
	Quantity      int              `json:"quantity"`
	Value         decimal.Decimal  `json:"value"`
	PreviousValue *decimal.Decimal `json:"previous_value,omitempty"`
	Memo          string           `json:"memo,omitempty"`
}

// LocationShare cantidad y valor de un item en una location
type LocationShare struct {
	Location LocationRef     `json:"location"`
	Quantity int             `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

// Placement la fila de item_locations actualizada más recientemente
type Placement struct {
	Location  LocationRef `json:"location"`
	Quantity  int         `json:"quantity"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Summary distribución actual de un item
type Summary struct {
	ItemID          int64           `json:"item_id"`
	CurrentLocation *Placement      `json:"current_location,omitempty"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	InitialValue    decimal.Decimal `json:"initial_value"`
	Distribution    []LocationShare `json:"location_distribution"`
}

// Projector arma vistas de solo lectura a partir del ledger y el snapshot
type Projector struct {
	store Store
}

func NewProjector(store Store) *Projector {
	return &Projector{store: store}
}

// LocationHistory movimientos del item, más reciente primero.
// value = quantity × unit_cost, o × costo actual del item si la fila no lo tiene.
func (p *Projector) LocationHistory(ctx context.Context, itemID int64) ([]HistoryEntry, error) {
	item, err := p.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	txs, err := p.store.ListItemTransactions(ctx, itemID)
	if err != nil {
		return nil, err
	}
	sortChronological(txs)

	names := newLocationNames(p.store)
	entries := make([]HistoryEntry, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		entry := HistoryEntry{
			TransactionID: tx.ID,
			Timestamp:     tx.CreatedAt,
			Type:          tx.Type,
			Quantity:      tx.Quantity,
			Value:         transactionValue(tx, item),
			Memo:          tx.Memo,
		}
		if tx.FromLocationID != nil {
			ref, err := names.ref(ctx, *tx.FromLocationID)
			if err != nil {
				return nil, err
			}
			entry.FromLocation = &ref
		}
		if tx.ToLocationID != nil {
			ref, err := names.ref(ctx, *tx.ToLocationID)
			if err != nil {
				return nil, err
			}
			entry.ToLocation = &ref
		}
		if i > 0 {
			prev := transactionValue(txs[i-1], item)
			entry.PreviousValue = &prev
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// LocationSummary ubicación actual, valor actual e inicial y distribución por location
func (p *Projector) LocationSummary(ctx context.Context, itemID int64) (*Summary, error) {
	item, err := p.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	rows, err := p.store.ListItemLocations(ctx, itemID)
	if err != nil {
		return nil, err
	}
	txs, err := p.store.ListItemTransactions(ctx, itemID)
	if err != nil {
		return nil, err
	}
	sortChronological(txs)

	names := newLocationNames(p.store)
	summary := &Summary{
		ItemID:       itemID,
		CurrentValue: decimal.Zero,
		InitialValue: decimal.Zero,
		Distribution: []LocationShare{},
	}

	var latest *models.ItemLocation
	for i := range rows {
		row := rows[i]
		value := item.Cost.Mul(decimal.NewFromInt(int64(row.CurrentQuantity)))
		summary.CurrentValue = summary.CurrentValue.Add(value)

		if latest == nil || row.UpdatedAt.After(latest.UpdatedAt) ||
			(row.UpdatedAt.Equal(latest.UpdatedAt) && row.LocationID > latest.LocationID) {
			latest = &rows[i]
		}

		if row.CurrentQuantity == 0 {
			continue
		}
		ref, err := names.ref(ctx, row.LocationID)
		if err != nil {
			return nil, err
		}
		summary.Distribution = append(summary.Distribution, LocationShare{
			Location: ref,
			Quantity: row.CurrentQuantity,
			Value:    value,
		})
	}

	sort.SliceStable(summary.Distribution, func(i, j int) bool {
		a, b := summary.Distribution[i], summary.Distribution[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Location.ID < b.Location.ID
	})

	if latest != nil {
		ref, err := names.ref(ctx, latest.LocationID)
		if err != nil {
			return nil, err
		}
		summary.CurrentLocation = &Placement{
			Location:  ref,
			Quantity:  latest.CurrentQuantity,
			UpdatedAt: latest.UpdatedAt,
		}
	}

	if len(txs) > 0 {
		summary.InitialValue = transactionValue(txs[0], item)
	}
	return summary, nil
}

func transactionValue(tx models.StockTransaction, item *models.Item) decimal.Decimal {
	cost := item.Cost
	if tx.UnitCost.Valid {
		cost = tx.UnitCost.Decimal
	}
	return cost.Mul(decimal.NewFromInt(int64(tx.Quantity)))
}

// locationNames resuelve nombres una sola vez por request
type locationNames struct {
	store Store
	cache map[int64]LocationRef
}

func newLocationNames(store Store) *locationNames {
	return &locationNames{store: store, cache: make(map[int64]LocationRef)}
}

func (n *locationNames) ref(ctx context.Context, id int64) (LocationRef, error) {
	if ref, ok := n.cache[id]; ok {
		return ref, nil
	}
	ref := LocationRef{ID: id}
	loc, err := n.store.GetLocation(ctx, id)
	switch {
	case err == nil:
		ref.Name = loc.Name
	case errors.Is(err, ErrNotFound):
		// se muestra solo el id
	default:
		return LocationRef{}, err
	}
	n.cache[id] = ref
	return ref, nil
}
