package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inventory-service/internal/database"
	"inventory-service/internal/ledger"
	"inventory-service/internal/models"
	"inventory-service/internal/repository"
	"inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Field   string          `json:"field"`
	Details map[string]int  `json:"details"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &ledger.ValidationError{Field: "quantity", Message: "must be > 0"}, http.StatusBadRequest},
		{"insufficient", &ledger.InsufficientStockError{Available: 1, Requested: 2}, http.StatusConflict},
		{"not found", &ledger.NotFoundError{Entity: "item", ID: int64(9)}, http.StatusNotFound},
		{"constraint", &ledger.ConstraintError{Constraint: "unique"}, http.StatusConflict},
		{"conflict", &ledger.ConflictError{Message: "cycle"}, http.StatusConflict},
		{"wrapped not found", fmt.Errorf("lookup: %w", ledger.ErrNotFound), http.StatusNotFound},
		{"other", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRespondError_InsufficientStockDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, zap.NewNop(), "No se pudo registrar el movimiento", &ledger.InsufficientStockError{
		ItemID: 1, LocationID: 2, Available: 3, Requested: 5,
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, 2, env.Details["shortfall"])
	assert.Equal(t, 3, env.Details["available"])
}

func TestBindJSON_RejectsInvalidPayloads(t *testing.T) {
	v := validator.New()
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"item_id":`},
		{"missing item", `{"type":"stock_in","quantity":1}`},
		{"unknown type", `{"item_id":1,"type":"teleport","quantity":1}`},
		{"negative quantity", `{"item_id":1,"type":"stock_in","quantity":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req models.TransactionRequest
			err := bindJSON(c, v, &req)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
}

func TestQueryTime(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?from=2025-03-01&to=2025-03-01&bad=yesterday", nil)

	from, err := queryTime(c, "from", false)
	require.NoError(t, err)
	to, err := queryTime(c, "to", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *from)
	assert.Equal(t, 2025, to.Year())
	assert.Equal(t, 23, to.Hour())

	_, err = queryTime(c, "bad", false)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// HANDLERS OVER SQLITE
// =============================================================================

type server struct {
	router  *gin.Engine
	catalog services.CatalogService
}

func newServer(t *testing.T) *server {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:?_foreign_keys=on", database.PoolConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, zap.NewNop()))

	stock := services.NewStockService(repository.NewStockRepository(db), nil, zap.NewNop())
	catalog := services.NewCatalogService(repository.NewCatalogRepository(db), stock, nil, zap.NewNop())

	sh := NewStockHandler(stock, zap.NewNop())
	ch := NewCatalogHandler(catalog, zap.NewNop())

	r := gin.New()
	r.POST("/transactions", sh.RecordTransaction)
	r.POST("/transactions/batch", sh.RecordBatch)
	r.GET("/transactions", sh.ListTransactions)
	r.GET("/items/:id/quantity", sh.GetQuantity)
	r.GET("/items/:id/history", sh.GetLocationHistory)
	r.GET("/items/:id/summary", sh.GetLocationSummary)
	r.POST("/items", ch.CreateItem)
	r.GET("/items/:id", ch.GetItem)
	r.POST("/locations", ch.CreateLocation)
	r.POST("/import/items", ch.ImportItems)
	r.GET("/export/items", ch.ExportItems)

	return &server{router: r, catalog: catalog}
}

func (s *server) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) setup(t *testing.T) (item *models.Item, warehouse, shop *models.Location) {
	t.Helper()
	ctx := context.Background()
	var err error
	warehouse, err = s.catalog.CreateLocation(ctx, models.LocationRequest{Name: "Warehouse"})
	require.NoError(t, err)
	shop, err = s.catalog.CreateLocation(ctx, models.LocationRequest{Name: "Store"})
	require.NoError(t, err)
	item, err = s.catalog.CreateItem(ctx, models.CreateItemRequest{SKU: "X-1", Name: "Item X"}, services.Actor{})
	require.NoError(t, err)
	return item, warehouse, shop
}

func TestStockHandler_ScenarioOverHTTP(t *testing.T) {
	s := newServer(t)
	item, wh, shop := s.setup(t)

	// GIVEN 10 units received at the warehouse
	w := s.do(t, http.MethodPost, "/transactions", models.TransactionRequest{
		ItemID: item.ID, Type: "stock_in", Quantity: 10, ToLocationID: &wh.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 10, created.Data.Snapshots[0].CurrentQuantity)

	// WHEN 4 are moved to the store
	w = s.do(t, http.MethodPost, "/transactions", models.TransactionRequest{
		ItemID: item.ID, Type: "move", Quantity: 4, FromLocationID: &wh.ID, ToLocationID: &shop.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// AND 5 are taken out of the store
	w = s.do(t, http.MethodPost, "/transactions", models.TransactionRequest{
		ItemID: item.ID, Type: "stock_out", Quantity: 5, FromLocationID: &shop.ID,
	})

	// THEN the write is rejected with the shortfall
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.Equal(t, 1, env.Details["shortfall"])

	w = s.do(t, http.MethodGet, fmt.Sprintf("/items/%d/quantity?location_id=%d", item.ID, shop.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var qty struct {
		Quantity int `json:"quantity"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &qty))
	assert.Equal(t, 4, qty.Quantity)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/items/%d/history", item.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []ledger.HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &history))
	require.Len(t, history.History, 2)
	assert.Equal(t, models.TxMove, history.History[0].Type)
	assert.Equal(t, "Store", history.History[0].ToLocation.Name)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/transactions?item_id=%d&type=move", item.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listed))
	assert.Equal(t, 1, listed.Total)
}

func TestStockHandler_ErrorStatuses(t *testing.T) {
	s := newServer(t)
	item, wh, _ := s.setup(t)

	w := s.do(t, http.MethodPost, "/transactions", models.TransactionRequest{
		ItemID: item.ID, Type: "stock_in", Quantity: 0, ToLocationID: &wh.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	missing := int64(999)
	w = s.do(t, http.MethodPost, "/transactions", models.TransactionRequest{
		ItemID: item.ID, Type: "stock_in", Quantity: 1, ToLocationID: &missing,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/items/abc/history", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/items/999/summary", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/transactions?from=someday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStockHandler_BatchReportsFailures(t *testing.T) {
	s := newServer(t)
	item, wh, _ := s.setup(t)

	w := s.do(t, http.MethodPost, "/transactions/batch", models.BatchTransactionRequest{
		Transactions: []models.TransactionRequest{
			{ItemID: item.ID, Type: "stock_in", Quantity: 2, ToLocationID: &wh.ID},
			{ItemID: item.ID, Type: "stock_out", Quantity: 3, FromLocationID: &wh.ID},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.BatchTransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Results, 1)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, resp.Errors[0].Index)
}

func TestCatalogHandler_CreateItemConflict(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/items", models.CreateItemRequest{SKU: "Z-1", Name: "Zip"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/items", models.CreateItemRequest{SKU: "Z-1", Name: "Zip again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/items", models.CreateItemRequest{Name: "No sku"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogHandler_ImportMultipartAndExport(t *testing.T) {
	s := newServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "items.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("sku,name,cost\nK-1,Key,2.5\nK-2,,1\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/import/items", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result models.ImportResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, 1, result.Created)
	assert.Len(t, result.Errors, 1)

	w = s.do(t, http.MethodGet, "/export/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "K-1,Key,,2.5")
}

func TestCatalogHandler_ImportRejectsOversizedBody(t *testing.T) {
	s := newServer(t)
	ch := NewCatalogHandler(s.catalog, zap.NewNop())
	ch.maxImportBytes = 64

	r := gin.New()
	r.POST("/import/items", ch.ImportItems)

	var body bytes.Buffer
	body.WriteString("sku,name\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&body, "BIG-%d,Big item %d\n", i, i)
	}

	req := httptest.NewRequest(http.MethodPost, "/import/items", &body)
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.False(t, decode(t, w).Success)
}
