package handlers

import (
	"context"
	"net/http"
	"time"

	"inventory-service/internal/events"
	"inventory-service/internal/models"
	"inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const metricsPushInterval = 10 * time.Second

// endpoints que no se cuentan en las métricas
var unmonitoredPaths = map[string]bool{
	"/api/v1/monitoring/metrics":         true,
	"/api/v1/monitoring/metrics/summary": true,
	"/api/v1/monitoring/ws":              true,
	"/api/v1/events/ws":                  true,
	"/health":                            true,
	"/":                                  true,
}

type MonitoringHandler struct {
	monitoringService services.MonitoringService
	hub               *events.Hub
	upgrader          websocket.Upgrader
	logger            *zap.Logger
}

// NewMonitoringHandler hub puede ser nil si no hay feed de cambios
func NewMonitoringHandler(monitoringService services.MonitoringService, hub *events.Hub, logger *zap.Logger) *MonitoringHandler {
	return &MonitoringHandler{
		monitoringService: monitoringService,
		hub:               hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// GetMetrics maneja la petición HTTP para obtener métricas
func (h *MonitoringHandler) GetMetrics(c *gin.Context) {
	metrics := h.monitoringService.GetMetrics(c.Request.Context())

	h.logger.Debug("Métricas obtenidas",
		zap.String("handler", "get_metrics"),
		zap.Int64("total_requests", metrics.Requests.TotalRequests),
		zap.Int64("ledger_recorded", metrics.Ledger.Recorded))

	c.JSON(http.StatusOK, metrics)
}

// GetMetricsSummary endpoint para métricas resumidas
func (h *MonitoringHandler) GetMetricsSummary(c *gin.Context) {
	metrics := h.monitoringService.GetMetrics(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"requests": gin.H{
			"total":         metrics.Requests.TotalRequests,
			"endpoints":     metrics.Requests.Endpoints,
			"errors":        metrics.Requests.ErrorsCount,
			"slow_requests": metrics.Requests.SlowRequestsCount,
		},
		"performance": metrics.Performance,
		"ledger":      metrics.Ledger,
		"cache": gin.H{
			"hit_rate": metrics.Cache.HitRatePercentage,
			"l1_keys":  metrics.Cache.L1Keys,
		},
		"database": gin.H{
			"driver": metrics.Database.Driver,
			"open":   metrics.Database.OpenConnections,
			"status": metrics.Database.Status,
		},
		"redis": gin.H{
			"status": metrics.Redis.Status,
			"keys":   metrics.Redis.Keys,
		},
		"events":    metrics.Events,
		"timestamp": metrics.Timestamp,
	})
}

// WebSocketMetrics envía métricas cada 10 segundos por WebSocket
func (h *MonitoringHandler) WebSocketMetrics(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "websocket_metrics"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Error actualizando a WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	logger.Info("Conexión WebSocket de métricas establecida")

	ticker := time.NewTicker(metricsPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics := h.monitoringService.GetMetrics(context.Background())
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(metrics); err != nil {
				logger.Debug("Conexión WebSocket de métricas cerrada", zap.Error(err))
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// StockEvents suscribe al cliente al feed de cambios de stock
func (h *MonitoringHandler) StockEvents(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "❌ Feed de eventos no disponible",
		})
		return
	}
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		h.logger.Warn("Error actualizando a WebSocket", zap.String("handler", "stock_events"), zap.Error(err))
	}
}

// RecordRequestMiddleware middleware para registrar requests
func (h *MonitoringHandler) RecordRequestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if unmonitoredPaths[path] {
			return
		}

		h.monitoringService.RecordRequest(models.RequestData{
			Endpoint:   path,
			Method:     c.Request.Method,
			Duration:   time.Since(start),
			StatusCode: c.Writer.Status(),
			Timestamp:  time.Now(),
		})
	}
}
