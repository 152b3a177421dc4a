package routes

import (
	"slices"
	"time"

	"inventory-service/internal/handlers"
	"inventory-service/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers agrupa lo que necesitan las rutas
type Handlers struct {
	Stock         *handlers.StockHandler
	Catalog       *handlers.CatalogHandler
	Monitoring    *handlers.MonitoringHandler
	HealthChecker *middleware.HealthChecker
	Auth          *middleware.Authenticator
}

// CORS configura los orígenes permitidos. "*" o lista vacía abre a todos, sin cookies.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// SetupRoutes configura todas las rutas de la aplicación
func SetupRoutes(router *gin.Engine, h Handlers) {
	router.Use(h.Monitoring.RecordRequestMiddleware())

	v1 := router.Group("/api/v1")
	{
		// Monitoring sin autenticación (igual que /health)
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/metrics", h.Monitoring.GetMetrics)
			monitoring.GET("/metrics/summary", h.Monitoring.GetMetricsSummary)
			monitoring.GET("/ws", h.Monitoring.WebSocketMetrics)
		}

		api := v1.Group("", h.Auth.Middleware())

		// Ledger
		transactions := api.Group("/transactions")
		{
			transactions.POST("", h.Stock.RecordTransaction)
			transactions.POST("/batch", h.Stock.RecordBatch)
			transactions.GET("", h.Stock.ListTransactions)
		}

		items := api.Group("/items")
		{
			items.POST("", h.Catalog.CreateItem)
			items.GET("", h.Catalog.ListItems)
			items.GET("/:id", h.Catalog.GetItem)
			items.PUT("/:id", h.Catalog.UpdateItem)
			items.DELETE("/:id", h.Catalog.DeleteItem)
			items.POST("/:id/duplicate", h.Catalog.DuplicateItem)

			items.GET("/:id/quantity", h.Stock.GetQuantity)
			items.GET("/:id/history", h.Stock.GetLocationHistory)
			items.GET("/:id/summary", h.Stock.GetLocationSummary)
			items.GET("/:id/verify", h.Stock.VerifySnapshot)
			items.POST("/:id/rebuild", h.Auth.RequireRole(middleware.RoleAdmin), h.Stock.RebuildSnapshot)
		}

		locations := api.Group("/locations")
		{
			locations.POST("", h.Catalog.CreateLocation)
			locations.GET("", h.Catalog.ListLocations)
			locations.GET("/:id", h.Catalog.GetLocation)
			locations.PUT("/:id", h.Catalog.UpdateLocation)
			locations.DELETE("/:id", h.Catalog.DeleteLocation)
			locations.GET("/:id/stock", h.Stock.GetStockByLocation)
		}

		suppliers := api.Group("/suppliers")
		{
			suppliers.POST("", h.Catalog.CreateSupplier)
			suppliers.GET("", h.Catalog.ListSuppliers)
			suppliers.GET("/:id", h.Catalog.GetSupplier)
			suppliers.PUT("/:id", h.Catalog.UpdateSupplier)
			suppliers.DELETE("/:id", h.Catalog.DeleteSupplier)
		}

		categories := api.Group("/categories")
		{
			categories.POST("", h.Catalog.CreateCategory)
			categories.GET("", h.Catalog.ListCategories)
			categories.GET("/:id", h.Catalog.GetCategory)
			categories.PUT("/:id", h.Catalog.UpdateCategory)
			categories.DELETE("/:id", h.Catalog.DeleteCategory)
		}

		reports := api.Group("/reports")
		{
			reports.GET("/low-stock", h.Stock.GetLowStock)
			reports.GET("/dashboard", h.Stock.GetDashboard)
		}

		api.GET("/lookup/barcode/:code", h.Catalog.LookupBarcode)
		api.POST("/import/items", h.Catalog.ImportItems)
		api.GET("/export/items", h.Catalog.ExportItems)
		api.GET("/events/ws", h.Monitoring.StockEvents)
	}

	router.GET("/health", h.HealthChecker.HealthCheck)

	// API info en raíz
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Inventory Service API",
			"version": "1.0.0",
			"status":  "running",
			"endpoints": gin.H{
				"health":       "/health",
				"api":          "/api/v1",
				"transactions": "POST /api/v1/transactions",
				"history":      "GET /api/v1/items/:id/history",
				"summary":      "GET /api/v1/items/:id/summary",
				"events":       "GET /api/v1/events/ws",
				"monitoring":   "GET /api/v1/monitoring/metrics",
			},
		})
	})
}
