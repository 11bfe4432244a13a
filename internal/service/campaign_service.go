package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	"github.com/noah-isme/campaign-contacts-api/internal/repository"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
	"github.com/noah-isme/campaign-contacts-api/pkg/logger"
)

type campaignRepository interface {
	FindByID(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, int, error)
	Create(ctx context.Context, campaign *models.Campaign) error
	UpdateContent(ctx context.Context, campaign *models.Campaign) (bool, error)
	UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (bool, error)
}

type campaignStatsSource interface {
	CountByStatus(ctx context.Context, campaignID string) ([]models.StatusCount, error)
}

type campaignArchiveCounter interface {
	CountByCampaign(ctx context.Context, campaignID string) (int, error)
}

// CreateCampaignRequest holds payload for creating a draft campaign.
type CreateCampaignRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Subject     string `json:"subject" validate:"max=500"`
	Content     string `json:"content"`
	ContentType string `json:"contentType" validate:"omitempty,oneof=text/html text/plain"`
}

// UpdateCampaignRequest holds payload for editing a draft campaign.
type UpdateCampaignRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Subject     string `json:"subject" validate:"max=500"`
	Content     string `json:"content"`
	ContentType string `json:"contentType" validate:"omitempty,oneof=text/html text/plain"`
}

// TransitionCampaignRequest asks for a status change.
type TransitionCampaignRequest struct {
	Status models.CampaignStatus `json:"status" validate:"required"`
}

// CampaignServiceConfig carries lifecycle policy.
type CampaignServiceConfig struct {
	AllowFailedRetry bool
	StatsTTL         time.Duration
}

// CampaignService owns campaign reads, draft edits and the lifecycle guard.
type CampaignService struct {
	repo       campaignRepository
	recipients campaignStatsSource
	archives   campaignArchiveCounter
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        CampaignServiceConfig
	now        func() time.Time
}

// NewCampaignService constructs the campaign service.
func NewCampaignService(repo campaignRepository, recipients campaignStatsSource, archives campaignArchiveCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg CampaignServiceConfig) *CampaignService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignService{
		repo:       repo,
		recipients: recipients,
		archives:   archives,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// AssertMutable loads the campaign and fails with CAMPAIGN_LOCKED unless it is
// a draft. The status is always read from storage.
func (s *CampaignService) AssertMutable(ctx context.Context, campaignID string) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.Mutable() {
		return nil, lockedError(campaign.ID, campaign.Status)
	}
	return campaign, nil
}

func lockedError(campaignID string, status models.CampaignStatus) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrCampaignLocked, fmt.Sprintf("campaign %s is %s; only draft campaigns can be modified", campaignID, status))
}

// Get fetches one campaign.
func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	campaign, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, storageError(err, "failed to load campaign")
	}
	return campaign, nil
}

// List returns campaigns and pagination metadata.
func (s *CampaignService) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown campaign status")
	}
	campaigns, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storageError(err, "failed to list campaigns")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return campaigns, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create stores a new draft campaign.
func (s *CampaignService) Create(ctx context.Context, req CreateCampaignRequest, actor models.Actor) (*models.Campaign, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid campaign payload")
	}
	campaign := &models.Campaign{
		Name:        req.Name,
		Subject:     req.Subject,
		Content:     req.Content,
		ContentType: contentTypeOrDefault(req.ContentType),
		Status:      models.CampaignStatusDraft,
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, storageError(err, "failed to create campaign")
	}
	logger.For(ctx, s.logger).Info("campaign created", zap.String("campaign_id", campaign.ID), zap.String("actor", actor.UserID))
	return campaign, nil
}

// UpdateContent edits a draft. The repository re-checks the status in the
// UPDATE itself, so a concurrent transition still wins.
func (s *CampaignService) UpdateContent(ctx context.Context, id string, req UpdateCampaignRequest, actor models.Actor) (*models.Campaign, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid campaign payload")
	}
	campaign, err := s.AssertMutable(ctx, id)
	if err != nil {
		return nil, err
	}
	campaign.Name = req.Name
	campaign.Subject = req.Subject
	campaign.Content = req.Content
	campaign.ContentType = contentTypeOrDefault(req.ContentType)

	updated, err := s.repo.UpdateContent(ctx, campaign)
	if err != nil {
		return nil, storageError(err, "failed to update campaign")
	}
	if !updated {
		current, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, lockedError(id, current.Status)
	}
	s.InvalidateStats(ctx, id)
	logger.For(ctx, s.logger).Info("campaign content updated", zap.String("campaign_id", id), zap.String("actor", actor.UserID))
	return campaign, nil
}

// Transition moves a campaign along the lifecycle table. It is the entry
// point for the delivery dispatcher.
func (s *CampaignService) Transition(ctx context.Context, id string, to models.CampaignStatus, actor models.Actor) (*models.Campaign, error) {
	if !to.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown campaign status %q", to))
	}
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := campaign.Status
	if !models.CanTransition(from, to, s.cfg.AllowFailedRetry) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("campaign cannot move from %s to %s", from, to))
	}
	ok, err := s.repo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return nil, storageError(err, "failed to update campaign status")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "campaign status changed concurrently; reload and retry")
	}
	campaign.Status = to
	s.InvalidateStats(ctx, id)
	logger.For(ctx, s.logger).Info("campaign status changed",
		zap.String("campaign_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor.UserID),
	)
	return campaign, nil
}

// Stats returns the cached or freshly computed dashboard summary.
func (s *CampaignService) Stats(ctx context.Context, id string) (*models.CampaignStats, error) {
	key := campaignStatsKey(id)
	var cached models.CampaignStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.recipients.CountByStatus(ctx, id)
	if err != nil {
		return nil, storageError(err, "failed to count recipients")
	}
	archived, err := s.archives.CountByCampaign(ctx, id)
	if err != nil {
		return nil, storageError(err, "failed to count archived recipients")
	}

	stats := &models.CampaignStats{
		CampaignID:      campaign.ID,
		Status:          campaign.Status,
		TotalRecipients: campaign.TotalRecipients,
		ByStatus:        make(map[string]int, len(counts)),
		Archived:        archived,
		GeneratedAt:     s.now().UTC(),
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Total
		stats.LiveRecipients += c.Total
	}
	s.cache.Set(ctx, key, stats, s.cfg.StatsTTL)
	return stats, nil
}

// InvalidateStats drops the cached stats for a campaign.
func (s *CampaignService) InvalidateStats(ctx context.Context, ids ...string) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, campaignStatsKey(id))
	}
	s.cache.Invalidate(ctx, keys...)
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return models.ContentTypeHTML
	}
	return ct
}

// storageError maps connection loss to STORAGE_ERROR and everything else to
// INTERNAL_ERROR.
func storageError(err error, message string) *appErrors.Error {
	if repository.IsConnectionLost(err) {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, message)
	}
	return appErrors.Internal(err, message)
}
