package services

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"inventory-service/internal/cache"
	"inventory-service/internal/config"
	"inventory-service/internal/database"
	"inventory-service/internal/events"
	"inventory-service/internal/models"

	"go.uber.org/zap"
)

const (
	slowRequestThreshold = time.Second
	maxTrackedRequests   = 100
	topEndpointsLimit    = 10
)

type MonitoringService interface {
	GetMetrics(ctx context.Context) *models.MonitoringResponse
	RecordRequest(data models.RequestData)
	GetCacheStats() models.CacheMetrics
	GetDatabaseStats(ctx context.Context) models.DatabaseMetrics
	GetSystemStats() models.SystemMetrics
	GetRedisStats(ctx context.Context) models.RedisMetrics
	GetEventStats() models.EventMetrics
}

type monitoringService struct {
	logger    *zap.Logger
	config    *config.Config
	db        *database.DB
	redis     *database.RedisDB
	itemCache *cache.ItemCache
	stock     StockService
	hub       *events.Hub

	// Métricas de requests
	requestsMutex sync.RWMutex
	requests      map[string]*models.EndpointMetrics
	slowRequests  []models.SlowRequest
	errors        []models.RequestError
	totalRequests int64

	startTime time.Time
}

// NewMonitoringService redis, itemCache y hub son opcionales
func NewMonitoringService(
	logger *zap.Logger,
	cfg *config.Config,
	db *database.DB,
	redis *database.RedisDB,
	itemCache *cache.ItemCache,
	stock StockService,
	hub *events.Hub,
) MonitoringService {
	return &monitoringService{
		logger:    logger,
		config:    cfg,
		db:        db,
		redis:     redis,
		itemCache: itemCache,
		stock:     stock,
		hub:       hub,
		requests:  make(map[string]*models.EndpointMetrics),
		startTime: time.Now(),
	}
}

func (s *monitoringService) RecordRequest(data models.RequestData) {
	s.requestsMutex.Lock()
	defer s.requestsMutex.Unlock()

	endpointKey := fmt.Sprintf("%s %s", data.Method, data.Endpoint)

	metrics, exists := s.requests[endpointKey]
	if !exists {
		metrics = &models.EndpointMetrics{}
		s.requests[endpointKey] = metrics
	}

	durationMs := data.Duration.Milliseconds()
	metrics.Count++
	metrics.TotalMs += durationMs
	metrics.AvgTimeMs = float64(metrics.TotalMs) / float64(metrics.Count)
	if durationMs > metrics.MaxMs {
		metrics.MaxMs = durationMs
	}
	s.totalRequests++

	if data.Duration > slowRequestThreshold {
		s.slowRequests = appendCapped(s.slowRequests, models.SlowRequest{
			Endpoint:   endpointKey,
			DurationMs: durationMs,
			Timestamp:  data.Timestamp,
		})
	}

	if data.StatusCode >= 400 {
		s.errors = appendCapped(s.errors, models.RequestError{
			Endpoint:   endpointKey,
			StatusCode: data.StatusCode,
			Timestamp:  data.Timestamp,
		})
	}
}

// appendCapped mantiene solo los últimos maxTrackedRequests elementos
func appendCapped[T any](list []T, v T) []T {
	list = append(list, v)
	if len(list) > maxTrackedRequests {
		list = list[len(list)-maxTrackedRequests:]
	}
	return list
}

func (s *monitoringService) GetMetrics(ctx context.Context) *models.MonitoringResponse {
	s.requestsMutex.RLock()
	requestMetrics := s.calculateRequestMetrics()
	performanceMetrics := s.calculatePerformanceMetrics()
	s.requestsMutex.RUnlock()

	return &models.MonitoringResponse{
		Requests:    requestMetrics,
		Performance: performanceMetrics,
		Ledger:      s.stock.Metrics(),
		Cache:       s.GetCacheStats(),
		Database:    s.GetDatabaseStats(ctx),
		System:      s.GetSystemStats(),
		Redis:       s.GetRedisStats(ctx),
		Events:      s.GetEventStats(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Version:     "1.0",
	}
}

func (s *monitoringService) calculateRequestMetrics() models.RequestMetrics {
	keys := make([]string, 0, len(s.requests))
	byEndpoint := make(map[string]models.EndpointMetrics, len(s.requests))
	for key, metrics := range s.requests {
		keys = append(keys, key)
		byEndpoint[key] = *metrics
	}

	// Ordenar por count descendente
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := s.requests[keys[i]].Count, s.requests[keys[j]].Count
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})

	topEndpoints := []models.TopEndpoint{}
	for i, key := range keys {
		if i >= topEndpointsLimit {
			break
		}
		metrics := s.requests[key]
		topEndpoints = append(topEndpoints, models.TopEndpoint{
			Endpoint:  key,
			Count:     metrics.Count,
			AvgTimeMs: fmt.Sprintf("%.2fms", metrics.AvgTimeMs),
		})
	}

	return models.RequestMetrics{
		Endpoints:         len(s.requests),
		ByEndpoint:        byEndpoint,
		SlowRequests:      append([]models.SlowRequest{}, s.slowRequests...),
		Errors:            append([]models.RequestError{}, s.errors...),
		TotalRequests:     s.totalRequests,
		SlowRequestsCount: len(s.slowRequests),
		ErrorsCount:       len(s.errors),
		TopEndpoints:      topEndpoints,
	}
}

func (s *monitoringService) calculatePerformanceMetrics() models.PerformanceMetrics {
	var totalMs, maxMs int64
	var count int
	for _, metrics := range s.requests {
		totalMs += metrics.TotalMs
		count += metrics.Count
		if metrics.MaxMs > maxMs {
			maxMs = metrics.MaxMs
		}
	}

	var avg float64
	if count > 0 {
		avg = float64(totalMs) / float64(count)
	}
	return models.PerformanceMetrics{
		AvgResponseTimeMs: avg,
		MaxResponseTimeMs: maxMs,
	}
}

func (s *monitoringService) GetCacheStats() models.CacheMetrics {
	if s.itemCache == nil {
		return models.CacheMetrics{HitRatePercentage: "0.00%"}
	}
	stats := s.itemCache.GetStats()
	return models.CacheMetrics{
		L1Keys:            stats.TotalKeys,
		HitRatePercentage: fmt.Sprintf("%.2f%%", stats.HitRate()),
		TotalHits:         stats.Hits,
		TotalMisses:       stats.Misses,
		TotalRequests:     stats.TotalRequests,
	}
}

func (s *monitoringService) GetDatabaseStats(ctx context.Context) models.DatabaseMetrics {
	stats := s.db.GetStats()

	status := "online"
	if err := s.db.PingContext(ctx); err != nil {
		status = "offline"
	}

	return models.DatabaseMetrics{
		Driver:            s.db.Driver,
		OpenConnections:   stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		MaxOpenConnection: stats.MaxOpenConnections,
		Status:            status,
	}
}

func (s *monitoringService) GetSystemStats() models.SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(s.startTime).Seconds()

	environment := "production"
	if s.config.Server.GinMode == "debug" {
		environment = "development"
	}

	return models.SystemMetrics{
		HeapAllocMB: fmt.Sprintf("%.2f", float64(m.HeapAlloc)/1024/1024),
		HeapSysMB:   fmt.Sprintf("%.2f", float64(m.HeapSys)/1024/1024),
		Goroutines:  runtime.NumGoroutine(),
		Uptime:      uptime,
		UptimeHours: fmt.Sprintf("%.2fh", uptime/3600),
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS,
		Environment: environment,
	}
}

func (s *monitoringService) GetRedisStats(ctx context.Context) models.RedisMetrics {
	if s.redis == nil {
		return models.RedisMetrics{Status: "disabled"}
	}
	if err := s.redis.Ping(ctx); err != nil {
		s.logger.Warn("Redis no responde", zap.Error(err))
		return models.RedisMetrics{Status: "offline"}
	}

	metrics := models.RedisMetrics{Connected: true, Status: "online"}
	if keys, err := s.redis.KeyCount(ctx); err == nil {
		metrics.Keys = int(keys)
	}
	if mb, err := s.redis.MemoryMB(ctx); err == nil {
		metrics.MemoryMB = fmt.Sprintf("%.2f MB", mb)
	}
	return metrics
}

func (s *monitoringService) GetEventStats() models.EventMetrics {
	metrics := models.EventMetrics{KafkaEnabled: s.config.Kafka.Enabled()}
	if s.hub != nil {
		metrics.WebSocketClients = s.hub.ClientCount()
	}
	return metrics
}
