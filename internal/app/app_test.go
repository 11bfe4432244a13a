package app

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campaign-contacts-api/pkg/config"
)

func TestBuildWiresServicesWithoutRedis(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	cfg := &config.Config{
		Import:    config.ImportConfig{UploadDir: t.TempDir(), MaxFileSizeBytes: 1024},
		Campaigns: config.CampaignConfig{StatsCacheTTL: time.Minute},
		Reconcile: config.ReconcileConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond},
	}
	c, err := Build(cfg, sqlx.NewDb(db, "sqlmock"), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, c.Cache)
	assert.Nil(t, c.CacheStore)
	assert.False(t, c.Cache.Enabled())
	assert.NotNil(t, c.Imports)
	assert.NotNil(t, c.Archives)

	c.Start(context.Background())
	c.Close()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildWiresStatsCacheWithRedis(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	cfg := &config.Config{Import: config.ImportConfig{UploadDir: t.TempDir()}}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	c, err := Build(cfg, sqlx.NewDb(db, "sqlmock"), rdb, nil)
	require.NoError(t, err)
	require.NotNil(t, c.CacheStore)
	assert.True(t, c.Cache.Enabled())

	c.Close()
	assert.NoError(t, mock.ExpectationsWereMet())
}
