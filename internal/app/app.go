package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/campaign-contacts-api/internal/repository"
	"github.com/noah-isme/campaign-contacts-api/internal/service"
	"github.com/noah-isme/campaign-contacts-api/pkg/config"
	"github.com/noah-isme/campaign-contacts-api/pkg/jobs"
	"github.com/noah-isme/campaign-contacts-api/pkg/storage"
)

// staleUploadAge is how old a staged upload must be before startup removes it.
const staleUploadAge = time.Hour

// Container holds the wired service graph shared by the API server and the
// CLI.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Metrics *service.MetricsService
	Uploads *storage.LocalStorage
	Queue   *jobs.Queue

	// CacheStore and Cache are nil when caching is disabled.
	CacheStore *repository.CacheRepository
	Cache      *service.CacheService

	Campaigns  *service.CampaignService
	Recipients *service.RecipientService
	Imports    *service.ImportService
	Archives   *service.ArchiveService
	Reconciler *service.ReconcileService
}

// Build wires repositories and services. rdb may be nil when caching is off.
func Build(cfg *config.Config, db *sqlx.DB, rdb *redis.Client, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	uploads, err := storage.NewLocalStorage(cfg.Import.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}
	uploads.WithMaxSize(cfg.Import.MaxFileSizeBytes)

	validate := validator.New()
	metrics := service.NewMetricsService()

	recipientRepo := repository.NewRecipientRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)

	var (
		cacheStore *repository.CacheRepository
		cache      *service.CacheService
	)
	if rdb != nil {
		cacheStore = repository.NewCacheRepository(rdb)
		cache = service.NewCacheService(cacheStore, metrics, cfg.Campaigns.StatsCacheTTL, logger.Named("cache"), true)
	}

	reconciler := service.NewReconcileService(campaignRepo, cache, metrics, logger.Named("reconcile"))
	queue := jobs.NewQueue("reconcile", reconciler.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Reconcile.Workers,
		MaxRetries: cfg.Reconcile.MaxRetries,
		RetryDelay: cfg.Reconcile.RetryDelay,
		Logger:     logger,
	})
	reconciler.UseQueue(queue)

	campaigns := service.NewCampaignService(campaignRepo, recipientRepo, archiveRepo, cache, validate, logger.Named("campaigns"), service.CampaignServiceConfig{
		AllowFailedRetry: cfg.Campaigns.AllowFailedRetry,
		StatsTTL:         cfg.Campaigns.StatsCacheTTL,
	})

	return &Container{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		CacheStore: cacheStore,
		Metrics:    metrics,
		Cache:      cache,
		Uploads:    uploads,
		Queue:      queue,
		Campaigns:  campaigns,
		Recipients: service.NewRecipientService(recipientRepo, campaigns, reconciler, validate, logger.Named("recipients")),
		Imports: service.NewImportService(recipientRepo, campaigns, reconciler, uploads, metrics, validate, logger.Named("imports"), service.ImportServiceConfig{
			BackfillCampaign: cfg.Import.BackfillCampaign,
		}),
		Archives:   service.NewArchiveService(archiveRepo, recipientRepo, campaigns, reconciler, metrics, logger.Named("archives")),
		Reconciler: reconciler,
	}, nil
}

// Start launches the reconcile queue and clears stale staged uploads.
func (c *Container) Start(ctx context.Context) {
	c.Queue.Start(ctx)
	removed, err := c.Uploads.CleanupOlderThan(staleUploadAge)
	if err != nil {
		c.Logger.Warn("failed to clean staged uploads", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		c.Logger.Info("removed stale staged uploads", zap.Int("count", len(removed)))
	}
}

// Close stops the queue and releases connections.
func (c *Container) Close() {
	c.Queue.Stop()
	if c.CacheStore != nil {
		if err := c.CacheStore.Close(); err != nil {
			c.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
}
