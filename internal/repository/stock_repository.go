package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/database"
	"inventory-service/internal/ledger"
	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, created_at, item_id, tx_type, quantity, from_location_id, to_location_id,
	supplier_id, unit_cost, memo, created_by`

// StockRepository define la interfaz para el ledger, el snapshot y los reportes de stock
type StockRepository interface {
	ledger.TxStore

	// Consultas
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionWithDetails, int, error)
	StockByLocation(ctx context.Context, locationID int64) ([]models.StockWithDetails, error)
	LowStock(ctx context.Context) ([]models.LowStockItem, error)
	Dashboard(ctx context.Context) (*models.DashboardSummary, error)
}

// stockRepository implementa StockRepository.
// q es el pool o, dentro de WithTx, la transacción en curso.
type stockRepository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// NewStockRepository crea una nueva instancia del repository
func NewStockRepository(db *database.DB) StockRepository {
	return &stockRepository{db: db.DB, q: db.DB}
}

// WithTx ejecuta fn dentro de una transacción de base de datos.
// Si fn retorna error (o hace panic) se hace rollback.
func (r *stockRepository) WithTx(ctx context.Context, fn func(ledger.Store) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&stockRepository{db: r.db, q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *stockRepository) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return getItem(ctx, r.q, id)
}

func (r *stockRepository) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	return getLocation(ctx, r.q, id)
}

func (r *stockRepository) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	return getSupplier(ctx, r.q, id)
}

func (r *stockRepository) InsertItem(ctx context.Context, item *models.Item) error {
	return insertItem(ctx, r.q, item)
}

// ===== LEDGER =====

func (r *stockRepository) InsertTransaction(ctx context.Context, tx *models.StockTransaction) error {
	query := r.q.Rebind(`
		INSERT INTO stock_transactions (created_at, item_id, tx_type, quantity, from_location_id,
			to_location_id, supplier_id, unit_cost, memo, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := r.q.QueryRowxContext(ctx, query,
		tx.CreatedAt, tx.ItemID, string(tx.Type), tx.Quantity, tx.FromLocationID,
		tx.ToLocationID, tx.SupplierID, tx.UnitCost, tx.Memo, tx.CreatedBy,
	).Scan(&tx.ID)
	return translate(err, "insert transaction")
}

func (r *stockRepository) ListItemTransactions(ctx context.Context, itemID int64) ([]models.StockTransaction, error) {
	txs := []models.StockTransaction{}
	query := r.q.Rebind(`SELECT ` + transactionColumns + ` FROM stock_transactions WHERE item_id = ? ORDER BY created_at, id`)
	if err := sqlx.SelectContext(ctx, r.q, &txs, query, itemID); err != nil {
		return nil, translate(err, "list item transactions")
	}
	return txs, nil
}

// ===== SNAPSHOT =====

func (r *stockRepository) GetQuantity(ctx context.Context, itemID, locationID int64) (int, error) {
	var qty int
	query := r.q.Rebind(`SELECT current_quantity FROM item_locations WHERE item_id = ? AND location_id = ?`)
	err := sqlx.GetContext(ctx, r.q, &qty, query, itemID, locationID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, translate(err, "get quantity")
	}
	return qty, nil
}

func (r *stockRepository) ListItemLocations(ctx context.Context, itemID int64) ([]models.ItemLocation, error) {
	rows := []models.ItemLocation{}
	query := r.q.Rebind(`
		SELECT item_id, location_id, current_quantity, updated_at
		FROM item_locations WHERE item_id = ? ORDER BY location_id`)
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, itemID); err != nil {
		return nil, translate(err, "list item locations")
	}
	return rows, nil
}

// DecrementQuantity descuento condicional en una sola sentencia: la condición
// se reevalúa sobre la fila bloqueada, así dos salidas concurrentes no pueden
// dejar el snapshot negativo.
func (r *stockRepository) DecrementQuantity(ctx context.Context, itemID, locationID int64, qty int, at time.Time) (bool, error) {
	query := r.q.Rebind(`
		UPDATE item_locations
		SET current_quantity = current_quantity - ?, updated_at = ?
		WHERE item_id = ? AND location_id = ? AND current_quantity >= ?`)

	res, err := r.q.ExecContext(ctx, query, qty, at, itemID, locationID, qty)
	if err != nil {
		return false, translate(err, "decrement quantity")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(err, "decrement quantity")
	}
	return n == 1, nil
}

func (r *stockRepository) IncrementQuantity(ctx context.Context, itemID, locationID int64, qty int, at time.Time) error {
	query := r.q.Rebind(`
		INSERT INTO item_locations (item_id, location_id, current_quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (item_id, location_id) DO UPDATE SET
			current_quantity = item_locations.current_quantity + excluded.current_quantity,
			updated_at = excluded.updated_at`)

	_, err := r.q.ExecContext(ctx, query, itemID, locationID, qty, at)
	return translate(err, "increment quantity")
}

func (r *stockRepository) SetQuantity(ctx context.Context, itemID, locationID int64, qty int, at time.Time) error {
	query := r.q.Rebind(`
		INSERT INTO item_locations (item_id, location_id, current_quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (item_id, location_id) DO UPDATE SET
			current_quantity = excluded.current_quantity,
			updated_at = excluded.updated_at`)

	_, err := r.q.ExecContext(ctx, query, itemID, locationID, qty, at)
	return translate(err, "set quantity")
}

func (r *stockRepository) DeleteItemLocations(ctx context.Context, itemID int64) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM item_locations WHERE item_id = ?`), itemID)
	return translate(err, "delete item locations")
}

// ===== CONSULTAS =====

func (r *stockRepository) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]models.TransactionWithDetails, int, error) {
	conditions := []string{}
	args := []interface{}{}

	if f.ItemID != nil {
		conditions = append(conditions, "t.item_id = ?")
		args = append(args, *f.ItemID)
	}
	if f.LocationID != nil {
		conditions = append(conditions, "(t.from_location_id = ? OR t.to_location_id = ?)")
		args = append(args, *f.LocationID, *f.LocationID)
	}
	if f.Type != nil {
		conditions = append(conditions, "t.tx_type = ?")
		args = append(args, string(*f.Type))
	}
	if f.From != nil {
		conditions = append(conditions, "t.created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conditions = append(conditions, "t.created_at <= ?")
		args = append(args, f.To.UTC())
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	countQuery := r.q.Rebind("SELECT COUNT(*) FROM stock_transactions t" + whereClause)
	if err := sqlx.GetContext(ctx, r.q, &count, countQuery, args...); err != nil {
		return nil, 0, translate(err, "count transactions")
	}

	limit, offset := page(f.Limit, f.Offset)
	query := r.q.Rebind(`
		SELECT t.id, t.created_at, t.item_id, t.tx_type, t.quantity, t.from_location_id, t.to_location_id,
			t.supplier_id, t.unit_cost, t.memo, t.created_by,
			i.sku AS item_sku, i.name AS item_name,
			fl.name AS from_location_name, tl.name AS to_location_name, s.name AS supplier_name
		FROM stock_transactions t
		JOIN items i ON i.id = t.item_id
		LEFT JOIN locations fl ON fl.id = t.from_location_id
		LEFT JOIN locations tl ON tl.id = t.to_location_id
		LEFT JOIN suppliers s ON s.id = t.supplier_id` + whereClause + `
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ? OFFSET ?`)

	txs := []models.TransactionWithDetails{}
	if err := sqlx.SelectContext(ctx, r.q, &txs, query, append(args, limit, offset)...); err != nil {
		return nil, 0, translate(err, "list transactions")
	}
	return txs, count, nil
}

func (r *stockRepository) StockByLocation(ctx context.Context, locationID int64) ([]models.StockWithDetails, error) {
	query := r.q.Rebind(`
		SELECT il.item_id, il.location_id, il.current_quantity, il.updated_at,
			i.sku AS item_sku, i.name AS item_name, i.minimum_quantity, l.name AS location_name
		FROM item_locations il
		JOIN items i ON i.id = il.item_id
		JOIN locations l ON l.id = il.location_id
		WHERE il.location_id = ? AND il.current_quantity > 0
		ORDER BY i.sku`)

	stock := []models.StockWithDetails{}
	if err := sqlx.SelectContext(ctx, r.q, &stock, query, locationID); err != nil {
		return nil, translate(err, "stock by location")
	}
	return stock, nil
}

// LowStock items activos con mínimo definido cuyo total en todas las locations está en o bajo el mínimo
func (r *stockRepository) LowStock(ctx context.Context) ([]models.LowStockItem, error) {
	query := r.q.Rebind(`
		SELECT i.id AS item_id, i.sku, i.name, i.minimum_quantity,
			COALESCE(SUM(il.current_quantity), 0) AS total_quantity
		FROM items i
		LEFT JOIN item_locations il ON il.item_id = i.id
		WHERE i.is_active = ? AND i.minimum_quantity > 0
		GROUP BY i.id, i.sku, i.name, i.minimum_quantity
		HAVING COALESCE(SUM(il.current_quantity), 0) <= i.minimum_quantity
		ORDER BY total_quantity ASC, i.sku`)

	items := []models.LowStockItem{}
	if err := sqlx.SelectContext(ctx, r.q, &items, query, true); err != nil {
		return nil, translate(err, "low stock")
	}
	return items, nil
}

// Dashboard resumen general. El valor se suma en Go para no depender del
// tipo con que cada motor guarda los decimales.
func (r *stockRepository) Dashboard(ctx context.Context) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{TotalValue: decimal.Zero}

	counts := []struct {
		table string
		dest  *int
	}{
		{"items", &summary.ActiveItems},
		{"locations", &summary.ActiveLocations},
		{"suppliers", &summary.ActiveSuppliers},
	}
	for _, c := range counts {
		query := r.q.Rebind("SELECT COUNT(*) FROM " + c.table + " WHERE is_active = ?")
		if err := sqlx.GetContext(ctx, r.q, c.dest, query, true); err != nil {
			return nil, translate(err, "dashboard count "+c.table)
		}
	}

	var rows []struct {
		Quantity int             `db:"current_quantity"`
		Cost     decimal.Decimal `db:"cost"`
	}
	query := `
		SELECT il.current_quantity, i.cost
		FROM item_locations il
		JOIN items i ON i.id = il.item_id
		WHERE il.current_quantity > 0`
	if err := sqlx.SelectContext(ctx, r.q, &rows, query); err != nil {
		return nil, translate(err, "dashboard value")
	}
	for _, row := range rows {
		summary.TotalUnits += row.Quantity
		summary.TotalValue = summary.TotalValue.Add(row.Cost.Mul(decimal.NewFromInt(int64(row.Quantity))))
	}

	low, err := r.LowStock(ctx)
	if err != nil {
		return nil, err
	}
	summary.LowStockItems = len(low)
	return summary, nil
}
