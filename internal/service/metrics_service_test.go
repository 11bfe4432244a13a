package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
)

func TestMetricsObserveImportByOutcome(t *testing.T) {
	m := NewMetricsService()
	m.ObserveImport(&models.ImportBatch{ImportedCount: 2, SkippedDuplicateCount: 1}, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.importRows.WithLabelValues(string(models.RowImported))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.importRows.WithLabelValues(string(models.RowSkippedDuplicate))))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.importRows.WithLabelValues(string(models.RowSkippedInvalid))))
}

func TestMetricsReconcileAndArchive(t *testing.T) {
	m := NewMetricsService()
	m.ObserveReconcile(true, nil)
	m.ObserveReconcile(false, nil)
	m.ObserveReconcile(false, errors.New("boom"))
	m.ObserveArchive(3, 1)
	m.ObserveRestore()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconcileDrift))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconcileRuns.WithLabelValues("error")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.archived))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.archiveFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.restoredRecipient))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveImport(&models.ImportBatch{}, time.Second)
		m.ObserveArchive(1, 0)
		m.ObserveReconcile(true, nil)
		m.RecordCacheOperation(true, time.Millisecond)
	})
}

type mapCache struct {
	data    map[string]interface{}
	failGet error
	deleted []string
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.failGet != nil {
		return c.failGet
	}
	v, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if p, ok := dest.(*string); ok {
		*p = v.(string)
	}
	return nil
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(ctx context.Context, keys ...string) error {
	c.deleted = append(c.deleted, keys...)
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deleted = append(c.deleted, pattern)
	return nil
}

func TestCacheServiceHitMissAndFailure(t *testing.T) {
	repo := &mapCache{data: map[string]interface{}{}}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	var out string
	assert.False(t, svc.Get(ctx, "k", &out))
	svc.Set(ctx, "k", "v", 0)
	assert.True(t, svc.Get(ctx, "k", &out))
	assert.Equal(t, "v", out)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))

	svc.Invalidate(ctx, "k")
	assert.False(t, svc.Get(ctx, "k", &out))

	repo.failGet = errors.New("connection refused")
	assert.False(t, svc.Get(ctx, "k", &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &mapCache{data: map[string]interface{}{}}
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	ctx := context.Background()

	svc.Set(ctx, "k", "v", 0)
	assert.Empty(t, repo.data)
	svc.InvalidatePattern(ctx, "campaign:*")
	assert.Empty(t, repo.deleted)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	var out string
	assert.False(t, nilSvc.Get(ctx, "k", &out))
}
