package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/cache"
	"inventory-service/internal/ledger"
	"inventory-service/internal/models"
	"inventory-service/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Columnas del CSV de items, en el orden de exportación
var itemCSVHeader = []string{"sku", "name", "barcode", "cost", "price", "type", "brand", "minimum_quantity"}

const exportPageSize = 500

// CatalogService define la interfaz para el catálogo
type CatalogService interface {
	// Items
	CreateItem(ctx context.Context, req models.CreateItemRequest, actor Actor) (*models.Item, error)
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	GetItemByBarcode(ctx context.Context, barcode string) (*models.Item, error)
	ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, int, error)
	UpdateItem(ctx context.Context, id int64, req models.UpdateItemRequest) (*models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	DuplicateItem(ctx context.Context, id int64) (*models.Item, error)
	ImportItems(ctx context.Context, r io.Reader, actor Actor) (*models.ImportResult, error)
	ExportItems(ctx context.Context, w io.Writer) error

	// Categorías
	CreateCategory(ctx context.Context, req models.CategoryRequest) (*models.Category, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, id int64, req models.CategoryRequest) (*models.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	// Locations
	CreateLocation(ctx context.Context, req models.LocationRequest) (*models.Location, error)
	GetLocation(ctx context.Context, id int64) (*models.Location, error)
	ListLocations(ctx context.Context, activeOnly bool) ([]models.Location, error)
	UpdateLocation(ctx context.Context, id int64, req models.LocationRequest) (*models.Location, error)
	DeleteLocation(ctx context.Context, id int64) error

	// Proveedores
	CreateSupplier(ctx context.Context, req models.SupplierRequest) (*models.Supplier, error)
	GetSupplier(ctx context.Context, id int64) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, activeOnly bool) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, req models.SupplierRequest) (*models.Supplier, error)
	DeleteSupplier(ctx context.Context, id int64) error
}

type catalogService struct {
	repo      repository.CatalogRepository
	stock     StockService
	itemCache *cache.ItemCache
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCatalogService crea el servicio de catálogo. itemCache puede ser nil.
func NewCatalogService(repo repository.CatalogRepository, stock StockService, itemCache *cache.ItemCache, logger *zap.Logger) CatalogService {
	return &catalogService{
		repo:      repo,
		stock:     stock,
		itemCache: itemCache,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// ===== ITEMS =====

// CreateItem da de alta el item. Si trae cantidad inicial se registra como stock_in.
func (s *catalogService) CreateItem(ctx context.Context, req models.CreateItemRequest, actor Actor) (*models.Item, error) {
	logger := s.logger.With(
		zap.String("operation", "create_item"),
		zap.String("sku", req.SKU),
	)

	if err := checkMoney(req.Cost, req.Price); err != nil {
		return nil, err
	}
	if req.InitialQuantity > 0 {
		if req.InitialLocationID == nil {
			return nil, &ledger.ValidationError{Field: "initial_location_id", Message: "required when initial_quantity > 0"}
		}
		loc, err := s.repo.GetLocation(ctx, *req.InitialLocationID)
		if err != nil {
			return nil, err
		}
		if !loc.IsActive {
			return nil, &ledger.ValidationError{Field: "initial_location_id", Message: fmt.Sprintf("location %d is inactive", loc.ID)}
		}
	}

	now := s.now().UTC()
	item := &models.Item{
		SKU:             strings.TrimSpace(req.SKU),
		Name:            strings.TrimSpace(req.Name),
		Barcode:         cleanBarcode(req.Barcode),
		Cost:            req.Cost,
		Price:           req.Price,
		Type:            req.Type,
		Brand:           req.Brand,
		CategoryID:      req.CategoryID,
		MinimumQuantity: req.MinimumQuantity,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.InitialQuantity > 0 {
		// item y stock_in en la misma transacción: si falla el stock no queda el item
		_, err := s.stock.CreateItemWithStock(ctx, item, ledger.StockIn{
			To:       *req.InitialLocationID,
			Quantity: req.InitialQuantity,
			Memo:     "initial stock",
		}, actor)
		if err != nil {
			logger.Warn("❌ Error creando item con stock inicial", zap.Error(err))
			return nil, err
		}
	} else if err := s.repo.CreateItem(ctx, item); err != nil {
		logger.Warn("❌ Error creando item", zap.Error(err))
		return nil, err
	}

	logger.Info("✅ Item creado", zap.Int64("item_id", item.ID))
	return item, nil
}

func (s *catalogService) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return s.repo.GetItem(ctx, id)
}

// GetItemByBarcode busca primero en el caché y luego en la base
func (s *catalogService) GetItemByBarcode(ctx context.Context, barcode string) (*models.Item, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, &ledger.ValidationError{Field: "barcode", Message: "required"}
	}

	if s.itemCache != nil {
		if item, err := s.itemCache.GetByBarcode(ctx, barcode); err == nil {
			return item, nil
		}
	}

	item, err := s.repo.GetItemByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}

	if s.itemCache != nil {
		if err := s.itemCache.Set(ctx, item); err != nil {
			s.logger.Warn("No se pudo cachear el item", zap.String("barcode", barcode), zap.Error(err))
		}
	}
	return item, nil
}

func (s *catalogService) ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, int, error) {
	return s.repo.ListItems(ctx, filter)
}

func (s *catalogService) UpdateItem(ctx context.Context, id int64, req models.UpdateItemRequest) (*models.Item, error) {
	if err := checkMoney(req.Cost, req.Price); err != nil {
		return nil, err
	}

	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	oldBarcode := item.Barcode

	item.SKU = strings.TrimSpace(req.SKU)
	item.Name = strings.TrimSpace(req.Name)
	item.Barcode = cleanBarcode(req.Barcode)
	item.Cost = req.Cost
	item.Price = req.Price
	item.Type = req.Type
	item.Brand = req.Brand
	item.CategoryID = req.CategoryID
	item.MinimumQuantity = req.MinimumQuantity
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	item.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.invalidate(ctx, oldBarcode)
	s.invalidate(ctx, item.Barcode)
	return item, nil
}

// DeleteItem baja lógica: los movimientos del item siguen referenciándolo
func (s *catalogService) DeleteItem(ctx context.Context, id int64) error {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetItemActive(ctx, id, false, s.now().UTC()); err != nil {
		return err
	}
	s.invalidate(ctx, item.Barcode)

	s.logger.Info("Item desactivado", zap.String("operation", "delete_item"), zap.Int64("item_id", id))
	return nil
}

// DuplicateItem copia el item con SKU "<sku>-COPY" (o "-COPY-n"), sin barcode ni stock
func (s *catalogService) DuplicateItem(ctx context.Context, id int64) (*models.Item, error) {
	src, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	sku, err := s.nextCopySKU(ctx, src.SKU)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dup := *src
	dup.ID = 0
	dup.SKU = sku
	dup.Barcode = nil
	dup.IsActive = true
	dup.CreatedAt = now
	dup.UpdatedAt = now

	if err := s.repo.CreateItem(ctx, &dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

func (s *catalogService) nextCopySKU(ctx context.Context, sku string) (string, error) {
	base := sku + "-COPY"
	candidate := base
	for n := 2; ; n++ {
		exists, err := s.repo.SKUExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// ImportItems crea un item por fila. Las filas con error se reportan y se sigue;
// un error de lectura del archivo corta la importación (lo ya creado queda).
func (s *catalogService) ImportItems(ctx context.Context, r io.Reader, actor Actor) (*models.ImportResult, error) {
	logger := s.logger.With(zap.String("operation", "import_items"))

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		var parseErr *csv.ParseError
		switch {
		case errors.Is(err, io.EOF):
			return nil, &ledger.ValidationError{Field: "file", Message: "empty csv"}
		case errors.As(err, &parseErr):
			return nil, &ledger.ValidationError{Field: "file", Message: err.Error()}
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"sku", "name"} {
		if _, ok := columns[required]; !ok {
			return nil, &ledger.ValidationError{Field: "file", Message: "missing column " + required}
		}
	}

	result := &models.ImportResult{Items: []*models.Item{}}
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			// una fila mal formada se reporta; si falla la lectura del body se corta
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				logger.Error("❌ Importación interrumpida", zap.Int("row", row), zap.Int("created", result.Created), zap.Error(err))
				return nil, fmt.Errorf("read csv row %d: %w", row, err)
			}
			result.Errors = append(result.Errors, models.ImportRowError{Row: row, Error: err.Error()})
			continue
		}

		req, err := itemFromRecord(record, columns)
		if err == nil {
			err = s.validate.Struct(req)
		}
		if err == nil {
			var item *models.Item
			item, err = s.CreateItem(ctx, req, actor)
			if err == nil {
				result.Items = append(result.Items, item)
				result.Created++
				continue
			}
		}

		logger.Warn("Fila omitida", zap.Int("row", row), zap.String("sku", req.SKU), zap.Error(err))
		result.Errors = append(result.Errors, models.ImportRowError{Row: row, SKU: req.SKU, Error: err.Error()})
	}

	logger.Info("✅ Importación terminada",
		zap.Int("created", result.Created),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

// ExportItems escribe el catálogo completo como CSV
func (s *catalogService) ExportItems(ctx context.Context, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(itemCSVHeader); err != nil {
		return err
	}

	for offset := 0; ; offset += exportPageSize {
		items, total, err := s.repo.ListItems(ctx, models.ItemFilter{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return err
		}
		for _, item := range items {
			barcode := ""
			if item.Barcode != nil {
				barcode = *item.Barcode
			}
			record := []string{
				item.SKU, item.Name, barcode, item.Cost.String(), item.Price.String(),
				item.Type, item.Brand, strconv.Itoa(item.MinimumQuantity),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
		if len(items) == 0 || offset+len(items) >= total {
			break
		}
	}

	writer.Flush()
	return writer.Error()
}

func itemFromRecord(record []string, columns map[string]int) (models.CreateItemRequest, error) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	req := models.CreateItemRequest{
		SKU:   field("sku"),
		Name:  field("name"),
		Type:  field("type"),
		Brand: field("brand"),
	}
	if b := field("barcode"); b != "" {
		req.Barcode = &b
	}

	var err error
	if req.Cost, err = parseDecimal(field("cost")); err != nil {
		return req, &ledger.ValidationError{Field: "cost", Message: err.Error()}
	}
	if req.Price, err = parseDecimal(field("price")); err != nil {
		return req, &ledger.ValidationError{Field: "price", Message: err.Error()}
	}
	if v := field("minimum_quantity"); v != "" {
		if req.MinimumQuantity, err = strconv.Atoi(v); err != nil {
			return req, &ledger.ValidationError{Field: "minimum_quantity", Message: "must be an integer"}
		}
	}
	return req, nil
}

func parseDecimal(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

func (s *catalogService) invalidate(ctx context.Context, barcode *string) {
	if s.itemCache == nil || barcode == nil {
		return
	}
	if err := s.itemCache.Invalidate(ctx, *barcode); err != nil {
		s.logger.Warn("No se pudo invalidar el caché", zap.String("barcode", *barcode), zap.Error(err))
	}
}

// ===== CATEGORÍAS =====

func (s *catalogService) CreateCategory(ctx context.Context, req models.CategoryRequest) (*models.Category, error) {
	now := s.now().UTC()
	c := &models.Category{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *catalogService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *catalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *catalogService) UpdateCategory(ctx context.Context, id int64, req models.CategoryRequest) (*models.Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(req.Name)
	c.Description = req.Description
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory borra la categoría; sus items quedan sin categoría
func (s *catalogService) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.DeleteCategory(ctx, id)
}

// ===== LOCATIONS =====

func (s *catalogService) CreateLocation(ctx context.Context, req models.LocationRequest) (*models.Location, error) {
	if req.ParentID != nil {
		if _, err := s.repo.GetLocation(ctx, *req.ParentID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	l := &models.Location{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		ParentID:    req.ParentID,
		IsActive:    boolOr(req.IsActive, true),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateLocation(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *catalogService) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	return s.repo.GetLocation(ctx, id)
}

func (s *catalogService) ListLocations(ctx context.Context, activeOnly bool) ([]models.Location, error) {
	return s.repo.ListLocations(ctx, activeOnly)
}

func (s *catalogService) UpdateLocation(ctx context.Context, id int64, req models.LocationRequest) (*models.Location, error) {
	l, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		if err := s.checkParent(ctx, id, *req.ParentID); err != nil {
			return nil, err
		}
	}

	l.Name = strings.TrimSpace(req.Name)
	l.Description = req.Description
	l.ParentID = req.ParentID
	l.IsActive = boolOr(req.IsActive, l.IsActive)
	l.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateLocation(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// checkParent sube por la cadena de padres; si aparece id habría un ciclo
func (s *catalogService) checkParent(ctx context.Context, id, parentID int64) error {
	seen := map[int64]bool{}
	for cur := &parentID; cur != nil; {
		if *cur == id {
			return &ledger.ConflictError{Message: fmt.Sprintf("location %d cannot be nested under %d: cycle", id, parentID)}
		}
		if seen[*cur] {
			break
		}
		seen[*cur] = true

		parent, err := s.repo.GetLocation(ctx, *cur)
		if err != nil {
			return err
		}
		cur = parent.ParentID
	}
	return nil
}

// DeleteLocation baja lógica
func (s *catalogService) DeleteLocation(ctx context.Context, id int64) error {
	l, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	l.IsActive = false
	l.UpdatedAt = s.now().UTC()
	return s.repo.UpdateLocation(ctx, l)
}

// ===== PROVEEDORES =====

func (s *catalogService) CreateSupplier(ctx context.Context, req models.SupplierRequest) (*models.Supplier, error) {
	now := s.now().UTC()
	sup := &models.Supplier{
		Name:        strings.TrimSpace(req.Name),
		Code:        req.Code,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		IsActive:    boolOr(req.IsActive, true),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateSupplier(ctx, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

func (s *catalogService) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *catalogService) ListSuppliers(ctx context.Context, activeOnly bool) ([]models.Supplier, error) {
	return s.repo.ListSuppliers(ctx, activeOnly)
}

func (s *catalogService) UpdateSupplier(ctx context.Context, id int64, req models.SupplierRequest) (*models.Supplier, error) {
	sup, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	sup.Name = strings.TrimSpace(req.Name)
	sup.Code = req.Code
	sup.ContactName = req.ContactName
	sup.Email = req.Email
	sup.Phone = req.Phone
	sup.Address = req.Address
	sup.IsActive = boolOr(req.IsActive, sup.IsActive)
	sup.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateSupplier(ctx, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

// DeleteSupplier baja lógica
func (s *catalogService) DeleteSupplier(ctx context.Context, id int64) error {
	sup, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return err
	}
	sup.IsActive = false
	sup.UpdatedAt = s.now().UTC()
	return s.repo.UpdateSupplier(ctx, sup)
}

// ===== helpers =====

func checkMoney(cost, price decimal.Decimal) error {
	if cost.IsNegative() {
		return &ledger.ValidationError{Field: "cost", Message: "must not be negative"}
	}
	if price.IsNegative() {
		return &ledger.ValidationError{Field: "price", Message: "must not be negative"}
	}
	return nil
}

func cleanBarcode(b *string) *string {
	if b == nil {
		return nil
	}
	v := strings.TrimSpace(*b)
	if v == "" {
		return nil
	}
	return &v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
