package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"inventory-service/internal/database"
	"inventory-service/internal/ledger"
	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

const itemColumns = `id, sku, name, barcode, cost, price, item_type, brand, category_id,
	minimum_quantity, is_active, created_at, updated_at`

const locationColumns = `id, name, description, parent_id, is_active, created_at, updated_at`

const supplierColumns = `id, name, code, contact_name, email, phone, address, is_active, created_at, updated_at`

// CatalogRepository define la interfaz para items, categorías, locations y proveedores
type CatalogRepository interface {
	// Items
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	GetItemBySKU(ctx context.Context, sku string) (*models.Item, error)
	GetItemByBarcode(ctx context.Context, barcode string) (*models.Item, error)
	ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, int, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	SetItemActive(ctx context.Context, id int64, active bool, at time.Time) error
	SKUExists(ctx context.Context, sku string) (bool, error)

	// Categorías
	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	// Locations
	CreateLocation(ctx context.Context, l *models.Location) error
	GetLocation(ctx context.Context, id int64) (*models.Location, error)
	ListLocations(ctx context.Context, activeOnly bool) ([]models.Location, error)
	UpdateLocation(ctx context.Context, l *models.Location) error

	// Proveedores
	CreateSupplier(ctx context.Context, s *models.Supplier) error
	GetSupplier(ctx context.Context, id int64) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, activeOnly bool) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, s *models.Supplier) error
}

// catalogRepository implementa CatalogRepository sobre sqlx
type catalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository crea una nueva instancia del repository
func NewCatalogRepository(db *database.DB) CatalogRepository {
	return &catalogRepository{db: db.DB}
}

// ===== ITEMS =====

func (r *catalogRepository) CreateItem(ctx context.Context, item *models.Item) error {
	return insertItem(ctx, r.db, item)
}

func (r *catalogRepository) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return getItem(ctx, r.db, id)
}

func (r *catalogRepository) GetItemBySKU(ctx context.Context, sku string) (*models.Item, error) {
	var item models.Item
	query := r.db.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE sku = ?`)
	if err := r.db.GetContext(ctx, &item, query, sku); err != nil {
		return nil, notFound(err, "item", sku, "get item by sku")
	}
	return &item, nil
}

func (r *catalogRepository) GetItemByBarcode(ctx context.Context, barcode string) (*models.Item, error) {
	var item models.Item
	query := r.db.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE barcode = ?`)
	if err := r.db.GetContext(ctx, &item, query, barcode); err != nil {
		return nil, notFound(err, "item", barcode, "get item by barcode")
	}
	return &item, nil
}

func (r *catalogRepository) ListItems(ctx context.Context, f models.ItemFilter) ([]models.Item, int, error) {
	conditions := []string{}
	args := []interface{}{}

	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		conditions = append(conditions, "(LOWER(sku) LIKE ? OR LOWER(name) LIKE ? OR LOWER(COALESCE(barcode, '')) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if f.CategoryID != nil {
		conditions = append(conditions, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Active != nil {
		conditions = append(conditions, "is_active = ?")
		args = append(args, *f.Active)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind("SELECT COUNT(*) FROM items"+whereClause), args...); err != nil {
		return nil, 0, translate(err, "count items")
	}

	limit, offset := page(f.Limit, f.Offset)
	query := r.db.Rebind("SELECT " + itemColumns + " FROM items" + whereClause + " ORDER BY sku LIMIT ? OFFSET ?")

	items := []models.Item{}
	if err := r.db.SelectContext(ctx, &items, query, append(args, limit, offset)...); err != nil {
		return nil, 0, translate(err, "list items")
	}
	return items, count, nil
}

func (r *catalogRepository) UpdateItem(ctx context.Context, item *models.Item) error {
	query := r.db.Rebind(`
		UPDATE items SET sku = ?, name = ?, barcode = ?, cost = ?, price = ?, item_type = ?, brand = ?,
			category_id = ?, minimum_quantity = ?, is_active = ?, updated_at = ?
		WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query,
		item.SKU, item.Name, item.Barcode, item.Cost, item.Price, item.Type, item.Brand,
		item.CategoryID, item.MinimumQuantity, item.IsActive, item.UpdatedAt, item.ID,
	)
	return affected(res, err, "item", item.ID, "update item")
}

func (r *catalogRepository) SetItemActive(ctx context.Context, id int64, active bool, at time.Time) error {
	query := r.db.Rebind(`UPDATE items SET is_active = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, active, at, id)
	return affected(res, err, "item", id, "set item active")
}

func (r *catalogRepository) SKUExists(ctx context.Context, sku string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM items WHERE sku = ?`), sku); err != nil {
		return false, translate(err, "sku exists")
	}
	return n > 0, nil
}

// ===== CATEGORÍAS =====

func (r *catalogRepository) CreateCategory(ctx context.Context, c *models.Category) error {
	query := r.db.Rebind(`
		INSERT INTO categories (name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query, c.Name, c.Description, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	return translate(err, "create category")
}

func (r *catalogRepository) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	query := r.db.Rebind(`SELECT id, name, description, created_at, updated_at FROM categories WHERE id = ?`)
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, notFound(err, "category", id, "get category")
	}
	return &c, nil
}

func (r *catalogRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := r.db.SelectContext(ctx, &categories, `SELECT id, name, description, created_at, updated_at FROM categories ORDER BY name`)
	return categories, translate(err, "list categories")
}

func (r *catalogRepository) UpdateCategory(ctx context.Context, c *models.Category) error {
	query := r.db.Rebind(`UPDATE categories SET name = ?, description = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, c.Name, c.Description, c.UpdatedAt, c.ID)
	return affected(res, err, "category", c.ID, "update category")
}

func (r *catalogRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM categories WHERE id = ?`), id)
	return affected(res, err, "category", id, "delete category")
}

// ===== LOCATIONS =====

func (r *catalogRepository) CreateLocation(ctx context.Context, l *models.Location) error {
	query := r.db.Rebind(`
		INSERT INTO locations (name, description, parent_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query, l.Name, l.Description, l.ParentID, l.IsActive, l.CreatedAt, l.UpdatedAt).Scan(&l.ID)
	return translate(err, "create location")
}

func (r *catalogRepository) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	return getLocation(ctx, r.db, id)
}

func (r *catalogRepository) ListLocations(ctx context.Context, activeOnly bool) ([]models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations`
	args := []interface{}{}
	if activeOnly {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name, id`

	locations := []models.Location{}
	err := r.db.SelectContext(ctx, &locations, r.db.Rebind(query), args...)
	return locations, translate(err, "list locations")
}

func (r *catalogRepository) UpdateLocation(ctx context.Context, l *models.Location) error {
	query := r.db.Rebind(`
		UPDATE locations SET name = ?, description = ?, parent_id = ?, is_active = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, l.Name, l.Description, l.ParentID, l.IsActive, l.UpdatedAt, l.ID)
	return affected(res, err, "location", l.ID, "update location")
}

// ===== PROVEEDORES =====

func (r *catalogRepository) CreateSupplier(ctx context.Context, s *models.Supplier) error {
	query := r.db.Rebind(`
		INSERT INTO suppliers (name, code, contact_name, email, phone, address, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query,
		s.Name, s.Code, s.ContactName, s.Email, s.Phone, s.Address, s.IsActive, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	return translate(err, "create supplier")
}

func (r *catalogRepository) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	return getSupplier(ctx, r.db, id)
}

func (r *catalogRepository) ListSuppliers(ctx context.Context, activeOnly bool) ([]models.Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers`
	args := []interface{}{}
	if activeOnly {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name, id`

	suppliers := []models.Supplier{}
	err := r.db.SelectContext(ctx, &suppliers, r.db.Rebind(query), args...)
	return suppliers, translate(err, "list suppliers")
}

func (r *catalogRepository) UpdateSupplier(ctx context.Context, s *models.Supplier) error {
	query := r.db.Rebind(`
		UPDATE suppliers SET name = ?, code = ?, contact_name = ?, email = ?, phone = ?, address = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		s.Name, s.Code, s.ContactName, s.Email, s.Phone, s.Address, s.IsActive, s.UpdatedAt, s.ID,
	)
	return affected(res, err, "supplier", s.ID, "update supplier")
}

// ===== helpers compartidos con el stock repository =====

func insertItem(ctx context.Context, q sqlx.ExtContext, item *models.Item) error {
	query := q.Rebind(`
		INSERT INTO items (sku, name, barcode, cost, price, item_type, brand, category_id,
			minimum_quantity, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := q.QueryRowxContext(ctx, query,
		item.SKU, item.Name, item.Barcode, item.Cost, item.Price, item.Type, item.Brand,
		item.CategoryID, item.MinimumQuantity, item.IsActive, item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)
	return translate(err, "create item")
}

func getItem(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Item, error) {
	var item models.Item
	query := q.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &item, query, id); err != nil {
		return nil, notFound(err, "item", id, "get item")
	}
	return &item, nil
}

func getLocation(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Location, error) {
	var l models.Location
	query := q.Rebind(`SELECT ` + locationColumns + ` FROM locations WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &l, query, id); err != nil {
		return nil, notFound(err, "location", id, "get location")
	}
	return &l, nil
}

func getSupplier(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Supplier, error) {
	var s models.Supplier
	query := q.Rebind(`SELECT ` + supplierColumns + ` FROM suppliers WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &s, query, id); err != nil {
		return nil, notFound(err, "supplier", id, "get supplier")
	}
	return &s, nil
}

// affected traduce "0 filas afectadas" a NotFoundError
func affected(res sql.Result, err error, entity string, id any, op string) error {
	if err != nil {
		return translate(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, op)
	}
	if n == 0 {
		return &ledger.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
