package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"inventory-service/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss el item no está en ningún nivel del caché
var ErrCacheMiss = errors.New("item not found in cache")

// CacheStats estadísticas del caché
type CacheStats struct {
	Hits          int64
	Misses        int64
	TotalRequests int64
	TotalKeys     int
}

// HitRate porcentaje de hits sobre el total de consultas
func (s CacheStats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalRequests) * 100
}

type l1Entry struct {
	item      *models.Item
	expiresAt time.Time
}

// ItemCache caché multi-nivel de items por código de barras.
// L1 es un mapa en memoria; L2 es Redis y es opcional (client nil = solo L1).
type ItemCache struct {
	// L1 Cache: Memoria local (más rápido)
	l1Cache map[string]l1Entry
	l1Mutex sync.RWMutex

	// L2 Cache: Redis (compartido entre instancias)
	redisClient *redis.Client

	maxL1Size int
	ttl       time.Duration
	now       func() time.Time

	logger *zap.Logger

	// Estadísticas
	statsMutex sync.RWMutex
	hits       int64
	misses     int64

	stop chan struct{}
	once sync.Once
}

// NewItemCache crea el caché e inicia la limpieza periódica del L1
func NewItemCache(redisClient *redis.Client, maxL1Size int, ttl time.Duration, logger *zap.Logger) *ItemCache {
	if maxL1Size <= 0 {
		maxL1Size = 1000
	}
	ic := &ItemCache{
		l1Cache:     make(map[string]l1Entry),
		redisClient: redisClient,
		maxL1Size:   maxL1Size,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger,
		stop:        make(chan struct{}),
	}

	go ic.cleanupL1Cache(time.Minute)

	return ic
}

// Close detiene la limpieza periódica
func (ic *ItemCache) Close() {
	ic.once.Do(func() { close(ic.stop) })
}

// GetStats retorna estadísticas del caché
func (ic *ItemCache) GetStats() CacheStats {
	ic.statsMutex.RLock()
	defer ic.statsMutex.RUnlock()

	ic.l1Mutex.RLock()
	totalKeys := len(ic.l1Cache)
	ic.l1Mutex.RUnlock()

	return CacheStats{
		Hits:          ic.hits,
		Misses:        ic.misses,
		TotalRequests: ic.hits + ic.misses,
		TotalKeys:     totalKeys,
	}
}

// GetByBarcode busca un item en L1 y luego en L2. ErrCacheMiss si no está.
func (ic *ItemCache) GetByBarcode(ctx context.Context, barcode string) (*models.Item, error) {
	start := time.Now()

	if item := ic.getFromL1(barcode); item != nil {
		ic.recordHit()
		ic.logger.Debug("L1 cache hit",
			zap.String("barcode", barcode),
			zap.Duration("latency", time.Since(start)))
		return item, nil
	}

	if item, err := ic.getFromL2(ctx, barcode); err == nil && item != nil {
		// Subir a L1 para futuras consultas
		ic.setToL1(barcode, item)
		ic.recordHit()
		ic.logger.Debug("L2 cache hit",
			zap.String("barcode", barcode),
			zap.Duration("latency", time.Since(start)))
		return item, nil
	} else if err != nil && !errors.Is(err, redis.Nil) && !errors.Is(err, errNoRedis) {
		ic.logger.Warn("L2 cache read failed", zap.String("barcode", barcode), zap.Error(err))
	}

	ic.recordMiss()
	ic.logger.Debug("Cache miss",
		zap.String("barcode", barcode),
		zap.Duration("latency", time.Since(start)))

	return nil, ErrCacheMiss
}

// Set almacena el item en ambos niveles. Items sin barcode no se cachean.
func (ic *ItemCache) Set(ctx context.Context, item *models.Item) error {
	if item == nil || item.Barcode == nil || *item.Barcode == "" {
		return nil
	}
	ic.setToL1(*item.Barcode, item)
	return ic.setToL2(ctx, *item.Barcode, item)
}

// Invalidate elimina un barcode de ambos niveles
func (ic *ItemCache) Invalidate(ctx context.Context, barcode string) error {
	if barcode == "" {
		return nil
	}
	ic.l1Mutex.Lock()
	delete(ic.l1Cache, barcode)
	ic.l1Mutex.Unlock()

	if ic.redisClient == nil {
		return nil
	}
	return ic.redisClient.Del(ctx, redisKey(barcode)).Err()
}

func (ic *ItemCache) recordHit() {
	ic.statsMutex.Lock()
	ic.hits++
	ic.statsMutex.Unlock()
}

func (ic *ItemCache) recordMiss() {
	ic.statsMutex.Lock()
	ic.misses++
	ic.statsMutex.Unlock()
}

func (ic *ItemCache) getFromL1(barcode string) *models.Item {
	ic.l1Mutex.RLock()
	defer ic.l1Mutex.RUnlock()
	entry, ok := ic.l1Cache[barcode]
	if !ok || ic.now().After(entry.expiresAt) {
		return nil
	}
	return cloneItem(entry.item)
}

func (ic *ItemCache) setToL1(barcode string, item *models.Item) {
	ic.l1Mutex.Lock()
	defer ic.l1Mutex.Unlock()

	if _, exists := ic.l1Cache[barcode]; !exists && len(ic.l1Cache) >= ic.maxL1Size {
		ic.evictOldest()
	}
	ic.l1Cache[barcode] = l1Entry{item: cloneItem(item), expiresAt: ic.now().Add(ic.ttl)}
}

// cloneItem el L1 guarda y entrega copias: quien recibe un item puede modificarlo
func cloneItem(item *models.Item) *models.Item {
	cp := *item
	if item.Barcode != nil {
		barcode := *item.Barcode
		cp.Barcode = &barcode
	}
	if item.CategoryID != nil {
		categoryID := *item.CategoryID
		cp.CategoryID = &categoryID
	}
	return &cp
}

// evictOldest elimina la entrada que vence primero. Se llama con l1Mutex tomado.
func (ic *ItemCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range ic.l1Cache {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(ic.l1Cache, oldestKey)
}

var errNoRedis = errors.New("redis not configured")

func (ic *ItemCache) getFromL2(ctx context.Context, barcode string) (*models.Item, error) {
	if ic.redisClient == nil {
		return nil, errNoRedis
	}
	data, err := ic.redisClient.Get(ctx, redisKey(barcode)).Result()
	if err != nil {
		return nil, err
	}

	var item models.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (ic *ItemCache) setToL2(ctx context.Context, barcode string, item *models.Item) error {
	if ic.redisClient == nil {
		return nil
	}
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return ic.redisClient.Set(ctx, redisKey(barcode), data, ic.ttl).Err()
}

// cleanupL1Cache elimina entradas vencidas del L1 periódicamente
func (ic *ItemCache) cleanupL1Cache(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ic.stop:
			return
		case <-ticker.C:
			removed := ic.purgeExpired()
			if removed > 0 {
				ic.logger.Debug("L1 cache cleanup", zap.Int("removed", removed))
			}
		}
	}
}

func (ic *ItemCache) purgeExpired() int {
	ic.l1Mutex.Lock()
	defer ic.l1Mutex.Unlock()

	now := ic.now()
	removed := 0
	for key, entry := range ic.l1Cache {
		if now.After(entry.expiresAt) {
			delete(ic.l1Cache, key)
			removed++
		}
	}
	return removed
}

func redisKey(barcode string) string {
	return fmt.Sprintf("item:barcode:%s", barcode)
}
