package ledger

import (
	"context"
	"sort"
	"time"

	"inventory-service/internal/models"
)

// Replay pliega el log de un item y devuelve la cantidad por location.
// Orden: created_at ascendente, empate por id. adjust reinicia el total de su
// location, el resto es aditivo.
func Replay(txs []models.StockTransaction) map[int64]int {
	ordered := make([]models.StockTransaction, len(txs))
	copy(ordered, txs)
	sortChronological(ordered)

	totals := make(map[int64]int)
	for _, tx := range ordered {
		switch tx.Type {
		case models.TxStockIn:
			if tx.ToLocationID != nil {
				totals[*tx.ToLocationID] += tx.Quantity
			}
		case models.TxStockOut:
			if tx.FromLocationID != nil {
				totals[*tx.FromLocationID] -= tx.Quantity
			}
		case models.TxMove:
			if tx.FromLocationID != nil {
				totals[*tx.FromLocationID] -= tx.Quantity
			}
			if tx.ToLocationID != nil {
				totals[*tx.ToLocationID] += tx.Quantity
			}
		case models.TxAdjust:
			if tx.ToLocationID != nil {
				totals[*tx.ToLocationID] = tx.Quantity
			}
		}
	}
	return totals
}

// ReplayQuantity total replayado; con locationID nil suma todas las locations
func ReplayQuantity(txs []models.StockTransaction, locationID *int64) int {
	totals := Replay(txs)
	if locationID != nil {
		return totals[*locationID]
	}
	sum := 0
	for _, q := range totals {
		sum += q
	}
	return sum
}

func sortChronological(txs []models.StockTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].ID < txs[j].ID
	})
}

// Drift diferencia entre snapshot y replay para una location
type Drift struct {
	LocationID int64 `json:"location_id"`
	Snapshot   int   `json:"snapshot"`
	Replayed   int   `json:"replayed"`
}

// Reconciler responde cuánto stock hay, por snapshot o por replay del log,
// y permite verificar o reconstruir el snapshot.
type Reconciler struct {
	store TxStore
	Now   func() time.Time
}

func NewReconciler(store TxStore) *Reconciler {
	return &Reconciler{store: store, Now: time.Now}
}

// CurrentQuantity lectura rápida desde item_locations
func (r *Reconciler) CurrentQuantity(ctx context.Context, itemID int64, locationID *int64) (int, error) {
	if _, err := r.store.GetItem(ctx, itemID); err != nil {
		return 0, err
	}
	if locationID != nil {
		if _, err := r.store.GetLocation(ctx, *locationID); err != nil {
			return 0, err
		}
		return r.store.GetQuantity(ctx, itemID, *locationID)
	}

	rows, err := r.store.ListItemLocations(ctx, itemID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, row := range rows {
		total += row.CurrentQuantity
	}
	return total, nil
}

// ReplayedQuantity calcula la cantidad desde el log sin confiar en el snapshot
func (r *Reconciler) ReplayedQuantity(ctx context.Context, itemID int64, locationID *int64) (int, error) {
	if _, err := r.store.GetItem(ctx, itemID); err != nil {
		return 0, err
	}
	txs, err := r.store.ListItemTransactions(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return ReplayQuantity(txs, locationID), nil
}

// Verify compara snapshot y replay. Devuelve solo las locations que difieren,
// ordenadas por location id; vacío significa que están de acuerdo.
func (r *Reconciler) Verify(ctx context.Context, itemID int64) ([]Drift, error) {
	if _, err := r.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	txs, err := r.store.ListItemTransactions(ctx, itemID)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.ListItemLocations(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return diff(Replay(txs), rows), nil
}

// Rebuild reescribe item_locations del item a partir del log, en una transacción
func (r *Reconciler) Rebuild(ctx context.Context, itemID int64) ([]models.ItemLocation, error) {
	at := r.Now().UTC()
	var rebuilt []models.ItemLocation

	err := r.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetItem(ctx, itemID); err != nil {
			return err
		}
		txs, err := s.ListItemTransactions(ctx, itemID)
		if err != nil {
			return err
		}
		if err := s.DeleteItemLocations(ctx, itemID); err != nil {
			return err
		}

		totals := Replay(txs)
		for _, locID := range sortedKeys(totals) {
			if err := s.SetQuantity(ctx, itemID, locID, totals[locID], at); err != nil {
				return err
			}
		}

		rebuilt, err = s.ListItemLocations(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rebuilt, nil
}

func diff(replayed map[int64]int, rows []models.ItemLocation) []Drift {
	snapshot := make(map[int64]int, len(rows))
	for _, row := range rows {
		snapshot[row.LocationID] = row.CurrentQuantity
	}

	seen := make(map[int64]int, len(replayed)+len(snapshot))
	for id := range replayed {
		seen[id] = 0
	}
	for id := range snapshot {
		seen[id] = 0
	}

	drifts := []Drift{}
	for _, id := range sortedKeys(seen) {
		if snapshot[id] != replayed[id] {
			drifts = append(drifts, Drift{LocationID: id, Snapshot: snapshot[id], Replayed: replayed[id]})
		}
	}
	return drifts
}

func sortedKeys(m map[int64]int) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
