package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	"github.com/noah-isme/campaign-contacts-api/internal/repository"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
	"github.com/noah-isme/campaign-contacts-api/pkg/jobs"
)

// ReconcileJobType tags queue jobs handled by ReconcileService.HandleJob.
const ReconcileJobType = "campaign.reconcile"

type campaignCounter interface {
	Recount(ctx context.Context, id string) (previous, current int, err error)
	ListIDs(ctx context.Context) ([]string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ReconcileService keeps campaigns.total_recipients in line with the
// recipients table. Every run is a single idempotent statement per campaign.
type ReconcileService struct {
	repo    campaignCounter
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger

	mu    sync.RWMutex
	queue jobDispatcher
}

// NewReconcileService constructs the reconciler.
func NewReconcileService(repo campaignCounter, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// UseQueue routes Schedule through a background queue. The queue is usually
// built with HandleJob as its handler, hence the late binding.
func (s *ReconcileService) UseQueue(queue jobDispatcher) {
	s.mu.Lock()
	s.queue = queue
	s.mu.Unlock()
}

// Reconcile recounts one campaign and drops its cached stats.
func (s *ReconcileService) Reconcile(ctx context.Context, campaignID string) (*models.ReconcileResult, error) {
	result, err := s.recount(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, campaignStatsKey(campaignID))
	return result, nil
}

func (s *ReconcileService) recount(ctx context.Context, campaignID string) (*models.ReconcileResult, error) {
	previous, current, err := s.repo.Recount(ctx, campaignID)
	if err != nil {
		s.metrics.ObserveReconcile(false, err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, storageError(err, "failed to reconcile campaign")
	}
	result := &models.ReconcileResult{
		CampaignID: campaignID,
		Previous:   previous,
		Current:    current,
		Drifted:    previous != current,
	}
	s.metrics.ObserveReconcile(result.Drifted, nil)
	if result.Drifted {
		s.logger.Info("campaign recipient count corrected",
			zap.String("campaign_id", campaignID),
			zap.Int("previous", previous),
			zap.Int("current", current),
		)
	}
	return result, nil
}

// ReconcileAll recounts every campaign and drops all cached stats once.
// Individual failures are collected; losing the connection or the context
// stops the pass early and returns the partial report alongside the error.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (*models.ReconcileReport, error) {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return nil, storageError(err, "failed to list campaigns")
	}
	report := &models.ReconcileReport{
		Results:  make([]models.ReconcileResult, 0, len(ids)),
		Failures: []models.ReconcileFailure{},
	}
	defer s.cache.InvalidatePattern(context.WithoutCancel(ctx), campaignStatsKeyPrefix+"*")
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, appErrors.Wrap(err, appErrors.ErrRequestTimeout.Code, appErrors.ErrRequestTimeout.Status, "reconcile interrupted")
		}
		report.Campaigns++
		result, err := s.recount(ctx, id)
		if err != nil {
			if repository.IsConnectionLost(err) {
				return report, err
			}
			report.Failures = append(report.Failures, models.ReconcileFailure{CampaignID: id, Error: err.Error()})
			continue
		}
		if result.Drifted {
			report.Drifted++
		}
		report.Results = append(report.Results, *result)
	}
	s.logger.Info("reconcile pass finished",
		zap.Int("campaigns", report.Campaigns),
		zap.Int("drifted", report.Drifted),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// Schedule requests an asynchronous recount. Without a running queue it
// recounts inline. Errors are logged only: the counter is advisory.
func (s *ReconcileService) Schedule(ctx context.Context, campaignID string) {
	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()

	if queue != nil {
		err := queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: ReconcileJobType, Key: campaignID, Payload: campaignID})
		if err == nil {
			return
		}
		s.logger.Debug("reconcile queue unavailable, running inline", zap.String("campaign_id", campaignID), zap.Error(err))
	}
	if _, err := s.Reconcile(ctx, campaignID); err != nil {
		s.logger.Warn("scheduled reconcile failed", zap.String("campaign_id", campaignID), zap.Error(err))
	}
}

// HandleJob is the queue handler. Unknown campaigns are dropped instead of
// retried.
func (s *ReconcileService) HandleJob(ctx context.Context, job jobs.Job) error {
	campaignID, ok := job.Payload.(string)
	if !ok || campaignID == "" {
		return fmt.Errorf("reconcile job %s: unexpected payload %T", job.ID, job.Payload)
	}
	_, err := s.Reconcile(ctx, campaignID)
	if errors.Is(err, appErrors.ErrNotFound) {
		s.logger.Debug("reconcile job for missing campaign dropped", zap.String("campaign_id", campaignID))
		return nil
	}
	return err
}
