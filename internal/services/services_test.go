package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"inventory-service/internal/cache"
	"inventory-service/internal/config"
	"inventory-service/internal/database"
	"inventory-service/internal/events"
	"inventory-service/internal/ledger"
	"inventory-service/internal/models"
	"inventory-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// FIXTURES
// =============================================================================

type recordingPublisher struct {
	events []events.StockEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.StockEvent) error {
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	db        *database.DB
	stock     StockService
	catalog   CatalogService
	itemCache *cache.ItemCache
	publisher *recordingPublisher
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:?_foreign_keys=on", database.PoolConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, zap.NewNop()))

	pub := &recordingPublisher{}
	itemCache := cache.NewItemCache(nil, 100, time.Minute, zap.NewNop())
	t.Cleanup(itemCache.Close)

	stock := NewStockService(repository.NewStockRepository(db), pub, zap.NewNop())
	catalog := NewCatalogService(repository.NewCatalogRepository(db), stock, itemCache, zap.NewNop())

	return &fixture{
		db:        db,
		stock:     stock,
		catalog:   catalog,
		itemCache: itemCache,
		publisher: pub,
		ctx:       context.Background(),
	}
}

func (f *fixture) location(t *testing.T, name string) *models.Location {
	t.Helper()
	loc, err := f.catalog.CreateLocation(f.ctx, models.LocationRequest{Name: name})
	require.NoError(t, err)
	return loc
}

func (f *fixture) item(t *testing.T, sku string) *models.Item {
	t.Helper()
	item, err := f.catalog.CreateItem(f.ctx, models.CreateItemRequest{
		SKU: sku, Name: "Item " + sku, Cost: decimal.NewFromInt(4), Price: decimal.NewFromInt(9),
	}, Actor{})
	require.NoError(t, err)
	return item
}

func stockIn(itemID, to int64, qty int) models.TransactionRequest {
	return models.TransactionRequest{ItemID: itemID, Type: "stock_in", Quantity: qty, ToLocationID: &to}
}

func stockOut(itemID, from int64, qty int) models.TransactionRequest {
	return models.TransactionRequest{ItemID: itemID, Type: "stock_out", Quantity: qty, FromLocationID: &from}
}

// =============================================================================
// STOCK SERVICE
// =============================================================================

func TestStockService_RecordPublishesEvent(t *testing.T) {
	f := newFixture(t)
	wh := f.location(t, "Warehouse")
	item := f.item(t, "A-1")
	user := int64(42)

	result, err := f.stock.RecordTransaction(f.ctx, stockIn(item.ID, wh.ID, 10), Actor{UserID: &user, TenantID: "acme"})
	require.NoError(t, err)

	assert.Equal(t, &user, result.Transaction.CreatedBy)
	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	assert.Equal(t, events.EventStockRecorded, event.Type)
	assert.Equal(t, "acme", event.TenantID)
	assert.Equal(t, result.Transaction.ID, event.Transaction.ID)
	assert.Equal(t, 10, event.Snapshots[0].CurrentQuantity)

	metrics := f.stock.Metrics()
	assert.Equal(t, int64(1), metrics.Recorded)
	assert.Equal(t, int64(1), metrics.ByType[models.TxStockIn])
}

func TestStockService_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	wh := f.location(t, "Warehouse")
	item := f.item(t, "A-1")

	_, err := f.stock.RecordTransaction(f.ctx, stockIn(item.ID, wh.ID, 3), Actor{})
	require.NoError(t, err)

	qty, err := f.stock.CurrentQuantity(f.ctx, item.ID, &wh.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)
}

func TestStockService_InsufficientStockCountedAndNotPublished(t *testing.T) {
	f := newFixture(t)
	wh := f.location(t, "Warehouse")
	item := f.item(t, "A-1")

	_, err := f.stock.RecordTransaction(f.ctx, stockOut(item.ID, wh.ID, 1), Actor{})

	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Shortfall())
	assert.Empty(t, f.publisher.events)

	_, err = f.stock.RecordTransaction(f.ctx, models.TransactionRequest{ItemID: item.ID, Type: "teleport", Quantity: 1}, Actor{})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	metrics := f.stock.Metrics()
	assert.Equal(t, int64(1), metrics.InsufficientStock)
	assert.Equal(t, int64(1), metrics.Rejected)
	assert.Zero(t, metrics.Recorded)
}

func TestStockService_RecordBatchIsBestEffort(t *testing.T) {
	f := newFixture(t)
	wh := f.location(t, "Warehouse")
	item := f.item(t, "A-1")

	results, failures := f.stock.RecordBatch(f.ctx, models.BatchTransactionRequest{
		Transactions: []models.TransactionRequest{
			stockIn(item.ID, wh.ID, 5),
			stockOut(item.ID, wh.ID, 9),
			stockOut(item.ID, wh.ID, 2),
		},
	}, Actor{})

	require.Len(t, results, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.Equal(t, item.ID, failures[0].ItemID)

	qty, err := f.stock.CurrentQuantity(f.ctx, item.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)
}

func TestStockService_QueriesValidateInput(t *testing.T) {
	f := newFixture(t)

	bad := models.TxType("teleport")
	_, _, err := f.stock.ListTransactions(f.ctx, models.TransactionFilter{Type: &bad})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, _, err = f.stock.ListTransactions(f.ctx, models.TransactionFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = f.stock.StockByLocation(f.ctx, 999)
	assert.True(t, ledger.IsNotFound(err))
}

func TestStockService_DashboardAndReconciliation(t *testing.T) {
	f := newFixture(t)
	wh := f.location(t, "Warehouse")
	item := f.item(t, "A-1")
	_, err := f.stock.RecordTransaction(f.ctx, stockIn(item.ID, wh.ID, 10), Actor{})
	require.NoError(t, err)

	summary, err := f.stock.Dashboard(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.TotalUnits)
	assert.True(t, decimal.NewFromInt(40).Equal(summary.TotalValue))
	assert.NotEmpty(t, summary.Timestamp)

	drift, err := f.stock.VerifySnapshot(f.ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, drift)

	rows, err := f.stock.RebuildSnapshot(f.ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].CurrentQuantity)
}

// =============================================================================
// CATALOG SERVICE
// =============================================================================

func TestCatalogService_CreateItemWithInitialStock(t *testing.T) {
	f := newFixture(t)
	wh := f.location(t, "Warehouse")

	item, err := f.catalog.CreateItem(f.ctx, models.CreateItemRequest{
		SKU: " B-1 ", Name: "Bolt", Cost: decimal.NewFromInt(2),
		InitialQuantity: 7, InitialLocationID: &wh.ID,
	}, Actor{})
	require.NoError(t, err)
	assert.Equal(t, "B-1", item.SKU)

	qty, err := f.stock.CurrentQuantity(f.ctx, item.ID, &wh.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, qty)
	require.Len(t, f.publisher.events, 1)
}

func TestCatalogService_CreateItemFailedStockLeavesNoItem(t *testing.T) {
	f := newFixture(t)
	wh := f.location(t, "Warehouse")

	failing := NewStockService(failingSnapshots{repository.NewStockRepository(f.db)}, f.publisher, zap.NewNop())
	catalog := NewCatalogService(repository.NewCatalogRepository(f.db), failing, f.itemCache, zap.NewNop())
	req := models.CreateItemRequest{SKU: "P-1", Name: "Pipe", InitialQuantity: 5, InitialLocationID: &wh.ID}

	// WHEN the initial stock write fails inside the transaction
	_, err := catalog.CreateItem(f.ctx, req, Actor{})
	require.Error(t, err)

	// THEN the item is not left behind
	_, total, err := f.catalog.ListItems(f.ctx, models.ItemFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.publisher.events)
	assert.Equal(t, int64(1), failing.Metrics().Rejected)

	// AND a resubmit is not a duplicate
	item, err := f.catalog.CreateItem(f.ctx, req, Actor{})
	require.NoError(t, err)
	qty, err := f.stock.CurrentQuantity(f.ctx, item.ID, &wh.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, qty)
}

// failingSnapshots falla al actualizar item_locations dentro de la transacción
type failingSnapshots struct {
	repository.StockRepository
}

func (r failingSnapshots) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return r.StockRepository.WithTx(ctx, func(s ledger.Store) error {
		return fn(timeoutOnIncrement{s})
	})
}

type timeoutOnIncrement struct {
	ledger.Store
}

func (timeoutOnIncrement) IncrementQuantity(context.Context, int64, int64, int, time.Time) error {
	return errors.New("statement timeout")
}

func TestCatalogService_CreateItemRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.CreateItem(f.ctx, models.CreateItemRequest{SKU: "B-1", Name: "Bolt", InitialQuantity: 3}, Actor{})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = f.catalog.CreateItem(f.ctx, models.CreateItemRequest{SKU: "B-1", Name: "Bolt", Cost: decimal.NewFromInt(-1)}, Actor{})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	f.item(t, "B-1")
	_, err = f.catalog.CreateItem(f.ctx, models.CreateItemRequest{SKU: "B-1", Name: "Again"}, Actor{})
	assert.ErrorIs(t, err, ledger.ErrConstraint)
}

func TestCatalogService_DuplicateItem(t *testing.T) {
	f := newFixture(t)
	barcode := "7801"
	src, err := f.catalog.CreateItem(f.ctx, models.CreateItemRequest{SKU: "C-1", Name: "Cable", Barcode: &barcode}, Actor{})
	require.NoError(t, err)

	first, err := f.catalog.DuplicateItem(f.ctx, src.ID)
	require.NoError(t, err)
	second, err := f.catalog.DuplicateItem(f.ctx, src.ID)
	require.NoError(t, err)

	assert.Equal(t, "C-1-COPY", first.SKU)
	assert.Equal(t, "C-1-COPY-2", second.SKU)
	assert.Nil(t, first.Barcode)
	assert.NotEqual(t, src.ID, first.ID)
}

func TestCatalogService_BarcodeLookupUsesCache(t *testing.T) {
	f := newFixture(t)
	barcode := "7802"
	item, err := f.catalog.CreateItem(f.ctx, models.CreateItemRequest{SKU: "D-1", Name: "Drill", Barcode: &barcode}, Actor{})
	require.NoError(t, err)

	got, err := f.catalog.GetItemByBarcode(f.ctx, barcode)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	_, err = f.catalog.GetItemByBarcode(f.ctx, barcode)
	require.NoError(t, err)

	stats := f.itemCache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	// WHEN the barcode changes THEN the old one no longer resolves
	newCode := "7803"
	_, err = f.catalog.UpdateItem(f.ctx, item.ID, models.UpdateItemRequest{SKU: "D-1", Name: "Drill", Barcode: &newCode})
	require.NoError(t, err)

	_, err = f.catalog.GetItemByBarcode(f.ctx, barcode)
	assert.True(t, ledger.IsNotFound(err))
}

func TestCatalogService_DeleteItemIsSoft(t *testing.T) {
	f := newFixture(t)
	wh := f.location(t, "Warehouse")
	item := f.item(t, "E-1")
	_, err := f.stock.RecordTransaction(f.ctx, stockIn(item.ID, wh.ID, 2), Actor{})
	require.NoError(t, err)

	require.NoError(t, f.catalog.DeleteItem(f.ctx, item.ID))

	got, err := f.catalog.GetItem(f.ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	history, err := f.stock.LocationHistory(f.ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = f.stock.RecordTransaction(f.ctx, stockIn(item.ID, wh.ID, 1), Actor{})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCatalogService_ImportItems(t *testing.T) {
	f := newFixture(t)
	input := strings.Join([]string{
		"sku,name,barcode,cost,price,type,brand,minimum_quantity",
		"F-1,Filter,111,1.50,3,part,Acme,2",
		"F-2,,,1,1,,,0",
		"F-3,Fan,,abc,1,,,0",
		"F-1,Duplicate,,1,1,,,0",
		"F-4,Fuse,,0.25,0.5,,,",
	}, "\n")

	result, err := f.catalog.ImportItems(f.ctx, strings.NewReader(input), Actor{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "F-3", result.Errors[1].SKU)
	assert.Equal(t, 5, result.Errors[2].Row)

	item := result.Items[0]
	assert.Equal(t, "F-1", item.SKU)
	assert.True(t, decimal.RequireFromString("1.5").Equal(item.Cost))
	assert.Equal(t, 2, item.MinimumQuantity)
}

func TestCatalogService_ImportStopsOnReadError(t *testing.T) {
	f := newFixture(t)
	reset := errors.New("connection reset")

	// el lector sigue fallando: la importación no puede quedar en loop
	input := io.MultiReader(strings.NewReader("sku,name\nA-1,Uno\n"), iotest.ErrReader(reset))
	result, err := f.catalog.ImportItems(f.ctx, input, Actor{})
	require.ErrorIs(t, err, reset)
	assert.Nil(t, result)

	// las filas anteriores al corte quedan creadas
	_, total, err := f.catalog.ListItems(f.ctx, models.ItemFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = f.catalog.ImportItems(f.ctx, iotest.ErrReader(reset), Actor{})
	assert.ErrorIs(t, err, reset)
	assert.NotErrorIs(t, err, ledger.ErrValidation)
}

func TestCatalogService_ImportRequiresColumns(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.ImportItems(f.ctx, strings.NewReader("code,title\nX,Y\n"), Actor{})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = f.catalog.ImportItems(f.ctx, strings.NewReader(""), Actor{})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCatalogService_ExportItems(t *testing.T) {
	f := newFixture(t)
	f.item(t, "G-2")
	f.item(t, "G-1")

	var buf bytes.Buffer
	require.NoError(t, f.catalog.ExportItems(f.ctx, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, itemCSVHeader, records[0])
	assert.Equal(t, "G-1", records[1][0])
	assert.Equal(t, "4", records[1][3])
}

func TestCatalogService_LocationCyclesRejected(t *testing.T) {
	f := newFixture(t)
	root := f.location(t, "Root")
	child, err := f.catalog.CreateLocation(f.ctx, models.LocationRequest{Name: "Child", ParentID: &root.ID})
	require.NoError(t, err)
	grandchild, err := f.catalog.CreateLocation(f.ctx, models.LocationRequest{Name: "Shelf", ParentID: &child.ID})
	require.NoError(t, err)

	_, err = f.catalog.UpdateLocation(f.ctx, root.ID, models.LocationRequest{Name: "Root", ParentID: &grandchild.ID})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	_, err = f.catalog.UpdateLocation(f.ctx, root.ID, models.LocationRequest{Name: "Root", ParentID: &root.ID})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	missing := int64(999)
	_, err = f.catalog.CreateLocation(f.ctx, models.LocationRequest{Name: "Orphan", ParentID: &missing})
	assert.True(t, ledger.IsNotFound(err))
}

func TestCatalogService_SoftDeletesBlockTransactions(t *testing.T) {
	f := newFixture(t)
	wh := f.location(t, "Warehouse")
	item := f.item(t, "H-1")
	sup, err := f.catalog.CreateSupplier(f.ctx, models.SupplierRequest{Name: "Acme"})
	require.NoError(t, err)

	require.NoError(t, f.catalog.DeleteSupplier(f.ctx, sup.ID))
	req := stockIn(item.ID, wh.ID, 1)
	req.SupplierID = &sup.ID
	_, err = f.stock.RecordTransaction(f.ctx, req, Actor{})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	require.NoError(t, f.catalog.DeleteLocation(f.ctx, wh.ID))
	_, err = f.stock.RecordTransaction(f.ctx, stockIn(item.ID, wh.ID, 1), Actor{})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	active, err := f.catalog.ListLocations(f.ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCatalogService_CategoryLifecycle(t *testing.T) {
	f := newFixture(t)
	cat, err := f.catalog.CreateCategory(f.ctx, models.CategoryRequest{Name: "Tools"})
	require.NoError(t, err)

	updated, err := f.catalog.UpdateCategory(f.ctx, cat.ID, models.CategoryRequest{Name: "Hand tools"})
	require.NoError(t, err)
	assert.Equal(t, "Hand tools", updated.Name)

	require.NoError(t, f.catalog.DeleteCategory(f.ctx, cat.ID))
	_, err = f.catalog.GetCategory(f.ctx, cat.ID)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// MONITORING SERVICE
// =============================================================================

func TestMonitoringService_RecordsRequests(t *testing.T) {
	f := newFixture(t)
	hub := events.NewHub(zap.NewNop())
	cfg := &config.Config{Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}}}
	svc := NewMonitoringService(zap.NewNop(), cfg, f.db, nil, f.itemCache, f.stock, hub)

	now := time.Now()
	svc.RecordRequest(models.RequestData{Endpoint: "/api/v1/items", Method: "GET", Duration: 20 * time.Millisecond, StatusCode: 200, Timestamp: now})
	svc.RecordRequest(models.RequestData{Endpoint: "/api/v1/items", Method: "GET", Duration: 40 * time.Millisecond, StatusCode: 200, Timestamp: now})
	svc.RecordRequest(models.RequestData{Endpoint: "/api/v1/transactions", Method: "POST", Duration: 2 * time.Second, StatusCode: 409, Timestamp: now})

	metrics := svc.GetMetrics(f.ctx)

	assert.Equal(t, int64(3), metrics.Requests.TotalRequests)
	assert.Equal(t, 2, metrics.Requests.Endpoints)
	assert.Equal(t, "GET /api/v1/items", metrics.Requests.TopEndpoints[0].Endpoint)
	assert.InDelta(t, 30.0, metrics.Requests.ByEndpoint["GET /api/v1/items"].AvgTimeMs, 0.001)
	assert.Equal(t, 1, metrics.Requests.SlowRequestsCount)
	assert.Equal(t, 1, metrics.Requests.ErrorsCount)
	assert.Equal(t, int64(2000), metrics.Performance.MaxResponseTimeMs)

	assert.Equal(t, "sqlite3", metrics.Database.Driver)
	assert.Equal(t, "online", metrics.Database.Status)
	assert.Equal(t, "disabled", metrics.Redis.Status)
	assert.True(t, metrics.Events.KafkaEnabled)
	assert.Equal(t, 0, metrics.Events.WebSocketClients)
}
