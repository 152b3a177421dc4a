package cache

import (
	"context"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newL1Cache(t *testing.T, size int, ttl time.Duration) *ItemCache {
	t.Helper()
	c := NewItemCache(nil, size, ttl, zap.NewNop())
	t.Cleanup(c.Close)
	return c
}

func itemWithBarcode(id int64, barcode string) *models.Item {
	return &models.Item{ID: id, SKU: barcode, Name: "item", Barcode: &barcode}
}

func TestItemCache_HitAndMiss(t *testing.T) {
	c := newL1Cache(t, 10, time.Minute)
	ctx := context.Background()

	_, err := c.GetByBarcode(ctx, "780")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, itemWithBarcode(1, "780")))

	got, err := c.GetByBarcode(ctx, "780")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, 1, stats.TotalKeys)
	assert.InDelta(t, 50.0, stats.HitRate(), 0.001)
}

func TestItemCache_ReturnsCopies(t *testing.T) {
	c := newL1Cache(t, 10, time.Minute)
	ctx := context.Background()

	stored := itemWithBarcode(1, "780")
	require.NoError(t, c.Set(ctx, stored))
	stored.Name = "changed after set"

	first, err := c.GetByBarcode(ctx, "780")
	require.NoError(t, err)
	assert.Equal(t, "item", first.Name)

	first.Name = "changed by caller"
	*first.Barcode = "999"

	second, err := c.GetByBarcode(ctx, "780")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "item", second.Name)
	assert.Equal(t, "780", *second.Barcode)
}

func TestItemCache_Invalidate(t *testing.T) {
	c := newL1Cache(t, 10, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, itemWithBarcode(1, "780")))

	require.NoError(t, c.Invalidate(ctx, "780"))

	_, err := c.GetByBarcode(ctx, "780")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestItemCache_SkipsItemsWithoutBarcode(t *testing.T) {
	c := newL1Cache(t, 10, time.Minute)

	require.NoError(t, c.Set(context.Background(), &models.Item{ID: 3, SKU: "NB"}))

	assert.Equal(t, 0, c.GetStats().TotalKeys)
}

func TestItemCache_ExpiryAndEviction(t *testing.T) {
	c := newL1Cache(t, 2, time.Minute)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, itemWithBarcode(1, "a")))
	now = now.Add(10 * time.Second)
	require.NoError(t, c.Set(ctx, itemWithBarcode(2, "b")))
	now = now.Add(10 * time.Second)

	// WHEN a third key arrives at capacity
	require.NoError(t, c.Set(ctx, itemWithBarcode(3, "c")))

	// THEN the entry closest to expiry is evicted
	_, err := c.GetByBarcode(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.GetByBarcode(ctx, "b")
	assert.NoError(t, err)

	// WHEN the ttl elapses
	now = now.Add(2 * time.Minute)
	_, err = c.GetByBarcode(ctx, "c")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 2, c.purgeExpired())
}
