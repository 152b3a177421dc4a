package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inventory-service/internal/cache"
	"inventory-service/internal/config"
	"inventory-service/internal/database"
	"inventory-service/internal/events"
	"inventory-service/internal/handlers"
	"inventory-service/internal/middleware"
	"inventory-service/internal/models"
	"inventory-service/internal/repository"
	"inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type app struct {
	router *gin.Engine
	auth   *middleware.Authenticator
}

// newApp arma el router completo sobre SQLite en memoria, igual que main
func newApp(t *testing.T, origins []string) *app {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.Open(database.DriverSQLite, ":memory:?_foreign_keys=on", database.PoolConfig{}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, logger))

	cfg := &config.Config{JWT: config.JWTConfig{Secret: "routes-secret", ExpiryHours: 1}}
	itemCache := cache.NewItemCache(nil, 100, time.Minute, logger)
	t.Cleanup(itemCache.Close)

	hub := events.NewHub(logger)
	t.Cleanup(hub.Close)

	stock := services.NewStockService(repository.NewStockRepository(db), hub, logger)
	catalog := services.NewCatalogService(repository.NewCatalogRepository(db), stock, itemCache, logger)
	monitoring := services.NewMonitoringService(logger, cfg, db, nil, itemCache, stock, hub)
	auth := middleware.NewAuthenticator(cfg.JWT, logger)

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(CORS(origins))
	SetupRoutes(router, Handlers{
		Stock:         handlers.NewStockHandler(stock, logger),
		Catalog:       handlers.NewCatalogHandler(catalog, logger),
		Monitoring:    handlers.NewMonitoringHandler(monitoring, hub, logger),
		HealthChecker: middleware.NewHealthChecker(db, nil, logger),
		Auth:          auth,
	})
	return &app{router: router, auth: auth}
}

func (a *app) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type created struct {
	Data struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

func createdID(t *testing.T, w *httptest.ResponseRecorder) int64 {
	t.Helper()
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c created
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	require.NotZero(t, c.Data.ID)
	return c.Data.ID
}

func TestRoutes_OpenEndpoints(t *testing.T) {
	a := newApp(t, nil)

	for _, path := range []string{"/", "/health", "/api/v1/monitoring/metrics", "/api/v1/monitoring/metrics/summary"} {
		w := a.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRoutes_RequireToken(t *testing.T) {
	a := newApp(t, nil)

	for _, path := range []string{"/api/v1/items", "/api/v1/transactions", "/api/v1/reports/dashboard"} {
		w := a.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRoutes_TransactionStampsActor(t *testing.T) {
	a := newApp(t, nil)
	token, err := a.auth.IssueToken(42, "acme", "admin")
	require.NoError(t, err)

	whID := createdID(t, a.do(t, http.MethodPost, "/api/v1/locations", token, models.LocationRequest{Name: "Warehouse"}))
	itemID := createdID(t, a.do(t, http.MethodPost, "/api/v1/items", token, models.CreateItemRequest{SKU: "R-1", Name: "Routed"}))

	w := a.do(t, http.MethodPost, "/api/v1/transactions", token, models.TransactionRequest{
		ItemID: itemID, Type: "stock_in", Quantity: 6, ToLocationID: &whID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Transaction.CreatedBy)
	assert.Equal(t, int64(42), *resp.Data.Transaction.CreatedBy)

	w = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/items/%d/summary", itemID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/items/%d/verify", itemID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// las métricas del ledger quedan visibles sin token
	w = a.do(t, http.MethodGet, "/api/v1/monitoring/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var metrics models.MonitoringResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
	assert.Equal(t, int64(1), metrics.Ledger.Recorded)
}

func TestRoutes_RebuildRequiresAdmin(t *testing.T) {
	a := newApp(t, nil)
	admin, err := a.auth.IssueToken(1, "acme", middleware.RoleAdmin)
	require.NoError(t, err)
	clerk, err := a.auth.IssueToken(2, "acme", "clerk")
	require.NoError(t, err)

	itemID := createdID(t, a.do(t, http.MethodPost, "/api/v1/items", clerk, models.CreateItemRequest{SKU: "R-2", Name: "Rebuilt"}))
	path := fmt.Sprintf("/api/v1/items/%d/rebuild", itemID)

	w := a.do(t, http.MethodPost, path, clerk, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, path, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCORS(t *testing.T) {
	preflight := func(a *app, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/items", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		return w
	}

	t.Run("open", func(t *testing.T) {
		w := preflight(newApp(t, []string{"*"}), "http://anywhere.test")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("restricted", func(t *testing.T) {
		a := newApp(t, []string{"http://admin.test"})

		w := preflight(a, "http://admin.test")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://admin.test", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		w = preflight(a, "http://evil.test")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
