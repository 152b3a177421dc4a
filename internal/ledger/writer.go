package ledger

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
)

// Writer registra movimientos en el ledger y mantiene el snapshot de item_locations.
// Cada escritura corre dentro de una sola transacción del store: o queda la fila
// del ledger y todos los snapshots actualizados, o no queda nada.
type Writer struct {
	store TxStore
	Now   func() time.Time
}

func NewWriter(store TxStore) *Writer {
	return &Writer{store: store, Now: time.Now}
}

// Record valida la intención y la registra.
// actor es el usuario que origina el movimiento (created_by), puede ser nil.
func (w *Writer) Record(ctx context.Context, intent Intent, actor *int64) (*models.TransactionResult, error) {
	if intent == nil {
		return nil, invalid("type", "required")
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	at := w.Now().UTC()
	var result *models.TransactionResult

	err := w.store.WithTx(ctx, func(s Store) error {
		var err error
		result, err = apply(ctx, s, intent, actor, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateItem da de alta el item y registra su stock inicial en una sola transacción.
// initial.Item se ignora: se completa con el ID asignado. Si algo falla no queda
// ni el item ni el movimiento, e item no se modifica.
func (w *Writer) CreateItem(ctx context.Context, item *models.Item, initial StockIn, actor *int64) (*models.TransactionResult, error) {
	if item == nil {
		return nil, invalid("item", "required")
	}

	at := w.Now().UTC()
	created := *item
	var result *models.TransactionResult

	err := w.store.WithTx(ctx, func(s Store) error {
		if err := s.InsertItem(ctx, &created); err != nil {
			return err
		}
		initial.Item = created.ID
		if err := initial.Validate(); err != nil {
			return err
		}

		var err error
		result, err = apply(ctx, s, initial, actor, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	*item = created
	return result, nil
}

// apply ejecuta el movimiento ya validado dentro de la transacción s
func apply(ctx context.Context, s Store, intent Intent, actor *int64, at time.Time) (*models.TransactionResult, error) {
	item, err := checkReferences(ctx, s, intent)
	if err != nil {
		return nil, err
	}

	row := intent.Transaction(at)
	row.CreatedBy = actor
	if !row.UnitCost.Valid {
		row.UnitCost = decimal.NewNullDecimal(item.Cost)
	}

	// Descuento condicional: evita la carrera leer-validar-escribir
	if from, qty, ok := source(intent); ok {
		done, err := s.DecrementQuantity(ctx, item.ID, from, qty, at)
		if err != nil {
			return nil, err
		}
		if !done {
			available, err := s.GetQuantity(ctx, item.ID, from)
			if err != nil {
				return nil, err
			}
			return nil, &InsufficientStockError{
				ItemID:     item.ID,
				LocationID: from,
				Available:  available,
				Requested:  qty,
			}
		}
	}

	if err := s.InsertTransaction(ctx, &row); err != nil {
		return nil, err
	}

	switch v := intent.(type) {
	case StockIn:
		err = s.IncrementQuantity(ctx, item.ID, v.To, v.Quantity, at)
	case Move:
		err = s.IncrementQuantity(ctx, item.ID, v.To, v.Quantity, at)
	case Adjust:
		err = s.SetQuantity(ctx, item.ID, v.Location, v.NewQuantity, at)
	}
	if err != nil {
		return nil, err
	}

	locations := touchedLocations(intent)
	snapshots := make([]models.ItemLocation, 0, len(locations))
	for _, locID := range locations {
		qty, err := s.GetQuantity(ctx, item.ID, locID)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, models.ItemLocation{
			ItemID:          item.ID,
			LocationID:      locID,
			CurrentQuantity: qty,
			UpdatedAt:       at,
		})
	}

	return &models.TransactionResult{Transaction: row, Snapshots: snapshots}, nil
}

// checkReferences verifica que item, locations y proveedor existan y estén activos
func checkReferences(ctx context.Context, s Store, intent Intent) (*models.Item, error) {
	item, err := s.GetItem(ctx, intent.ItemID())
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, invalid("item_id", fmt.Sprintf("item %d is inactive", item.ID))
	}

	for _, locID := range touchedLocations(intent) {
		loc, err := s.GetLocation(ctx, locID)
		if err != nil {
			return nil, err
		}
		if !loc.IsActive {
			return nil, invalid("location_id", fmt.Sprintf("location %d is inactive", loc.ID))
		}
	}

	if in, ok := intent.(StockIn); ok && in.Supplier != nil {
		sup, err := s.GetSupplier(ctx, *in.Supplier)
		if err != nil {
			return nil, err
		}
		if !sup.IsActive {
			return nil, invalid("supplier_id", fmt.Sprintf("supplier %d is inactive", sup.ID))
		}
	}
	return item, nil
}
