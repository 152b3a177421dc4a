package middleware

import (
	"context"
	"net/http"
	"time"

	"inventory-service/internal/database"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HealthChecker struct {
	db      *database.DB
	redisDB *database.RedisDB
	logger  *zap.Logger
}

// NewHealthChecker redisDB es opcional
func NewHealthChecker(db *database.DB, redisDB *database.RedisDB, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		db:      db,
		redisDB: redisDB,
		logger:  logger,
	}
}

func (h *HealthChecker) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	services := gin.H{}

	dbStatus := "healthy"
	if err := h.db.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
		healthy = false
		h.logger.Error("Database health check failed", zap.Error(err))
	}
	stats := h.db.GetStats()
	services["database"] = gin.H{
		"status": dbStatus,
		"driver": h.db.Driver,
		"stats": gin.H{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
		},
	}

	// Redis es un caché: si falla el servicio sigue, degradado
	redisStatus := "disabled"
	if h.redisDB != nil {
		redisStatus = "healthy"
		if err := h.redisDB.Ping(ctx); err != nil {
			redisStatus = "unhealthy"
			h.logger.Warn("Redis health check failed", zap.Error(err))
		}
	}
	services["redis"] = gin.H{"status": redisStatus}

	status := "healthy"
	switch {
	case !healthy:
		status = "unhealthy"
	case redisStatus == "unhealthy":
		status = "degraded"
	}

	httpStatus := http.StatusOK
	if !healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}
