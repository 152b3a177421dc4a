package models

import "time"

// MonitoringResponse respuesta completa del sistema de monitoring
type MonitoringResponse struct {
	Requests    RequestMetrics     `json:"requests"`
	Performance PerformanceMetrics `json:"performance"`
	Ledger      LedgerMetrics      `json:"ledger"`
	Cache       CacheMetrics       `json:"cache"`
	Database    DatabaseMetrics    `json:"database"`
	System      SystemMetrics      `json:"system"`
	Redis       RedisMetrics       `json:"redis"`
	Events      EventMetrics       `json:"events"`
	Timestamp   string             `json:"timestamp"`
	Version     string             `json:"version"`
}

// RequestMetrics métricas de requests
type RequestMetrics struct {
	Endpoints         int                        `json:"endpoints"`
	ByEndpoint        map[string]EndpointMetrics `json:"by_endpoint"`
	SlowRequests      []SlowRequest              `json:"slow_requests"`
	Errors            []RequestError             `json:"errors"`
	TotalRequests     int64                      `json:"total_requests"`
	SlowRequestsCount int                        `json:"slow_requests_count"`
	ErrorsCount       int                        `json:"errors_count"`
	TopEndpoints      []TopEndpoint              `json:"top_endpoints"`
}

// EndpointMetrics métricas por endpoint
type EndpointMetrics struct {
	Count     int     `json:"count"`
	AvgTimeMs float64 `json:"avg_time_ms"`
	TotalMs   int64   `json:"total_ms"`
	MaxMs     int64   `json:"max_ms"`
}

// SlowRequest request lento
type SlowRequest struct {
	Endpoint   string    `json:"endpoint"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// RequestError request que terminó en 4xx/5xx
type RequestError struct {
	Endpoint   string    `json:"endpoint"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// TopEndpoint endpoint más usado
type TopEndpoint struct {
	Endpoint  string `json:"endpoint"`
	Count     int    `json:"count"`
	AvgTimeMs string `json:"avg_time_ms"`
}

// PerformanceMetrics métricas de rendimiento
type PerformanceMetrics struct {
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	MaxResponseTimeMs int64   `json:"max_response_time_ms"`
}

// LedgerMetrics contadores de escrituras al ledger desde el arranque
type LedgerMetrics struct {
	Recorded          int64            `json:"recorded"`
	ByType            map[TxType]int64 `json:"by_type"`
	InsufficientStock int64            `json:"insufficient_stock"`
	Rejected          int64            `json:"rejected"`
}

// CacheMetrics métricas del caché de items
type CacheMetrics struct {
	L1Keys            int    `json:"l1_keys"`
	HitRatePercentage string `json:"hit_rate_percentage"`
	TotalHits         int64  `json:"total_hits"`
	TotalMisses       int64  `json:"total_misses"`
	TotalRequests     int64  `json:"total_requests"`
}

// DatabaseMetrics métricas del pool de conexiones
type DatabaseMetrics struct {
	Driver            string `json:"driver"`
	OpenConnections   int    `json:"open_connections"`
	InUse             int    `json:"in_use"`
	Idle              int    `json:"idle"`
	MaxOpenConnection int    `json:"max_open_connections"`
	Status            string `json:"status"`
}

// SystemMetrics métricas del proceso
type SystemMetrics struct {
	HeapAllocMB string  `json:"heap_alloc_mb"`
	HeapSysMB   string  `json:"heap_sys_mb"`
	Goroutines  int     `json:"goroutines"`
	Uptime      float64 `json:"uptime_seconds"`
	UptimeHours string  `json:"uptime_hours"`
	GoVersion   string  `json:"go_version"`
	Platform    string  `json:"platform"`
	Environment string  `json:"environment"`
}

// RedisMetrics métricas de Redis
type RedisMetrics struct {
	Connected bool   `json:"connected"`
	Keys      int    `json:"keys"`
	MemoryMB  string `json:"memory_mb"`
	Status    string `json:"status"`
}

// EventMetrics estado de la difusión de cambios
type EventMetrics struct {
	WebSocketClients int  `json:"websocket_clients"`
	KafkaEnabled     bool `json:"kafka_enabled"`
}

// RequestData datos de un request individual
type RequestData struct {
	Endpoint   string
	Method     string
	Duration   time.Duration
	StatusCode int
	Timestamp  time.Time
}
