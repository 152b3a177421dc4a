package ledger

import (
	"context"
	"time"

	"inventory-service/internal/models"
)

// Store es lo que el ledger necesita del almacenamiento.
// stock_transactions es append-only: no hay Update ni Delete de movimientos.
// item_locations es un caché derivado que se puede reconstruir desde el log.
type Store interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	GetLocation(ctx context.Context, id int64) (*models.Location, error)
	GetSupplier(ctx context.Context, id int64) (*models.Supplier, error)
	// InsertItem da de alta el item y completa item.ID.
	// Se usa para el alta con stock inicial, en la misma transacción que el stock_in.
	InsertItem(ctx context.Context, item *models.Item) error

	// InsertTransaction agrega una fila al ledger y completa tx.ID
	InsertTransaction(ctx context.Context, tx *models.StockTransaction) error
	// ListItemTransactions movimientos del item en orden (created_at, id) ascendente
	ListItemTransactions(ctx context.Context, itemID int64) ([]models.StockTransaction, error)

	// GetQuantity cantidad del snapshot, 0 si no hay fila
	GetQuantity(ctx context.Context, itemID, locationID int64) (int, error)
	ListItemLocations(ctx context.Context, itemID int64) ([]models.ItemLocation, error)
	// DecrementQuantity resta qty solo si current_quantity >= qty.
	// Devuelve false si no se afectó ninguna fila.
	DecrementQuantity(ctx context.Context, itemID, locationID int64, qty int, at time.Time) (bool, error)
	// IncrementQuantity suma qty, creando la fila en 0 si no existe
	IncrementQuantity(ctx context.Context, itemID, locationID int64, qty int, at time.Time) error
	// SetQuantity fija la cantidad absoluta (upsert)
	SetQuantity(ctx context.Context, itemID, locationID int64, qty int, at time.Time) error
	DeleteItemLocations(ctx context.Context, itemID int64) error
}

// TxStore agrega soporte transaccional.
// Si fn retorna error se hace rollback, si no, commit.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
