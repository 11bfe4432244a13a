package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/campaign-contacts-api/internal/importer"
	"github.com/noah-isme/campaign-contacts-api/internal/models"
	"github.com/noah-isme/campaign-contacts-api/internal/repository"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
	"github.com/noah-isme/campaign-contacts-api/pkg/logger"
)

type recipientRepository interface {
	List(ctx context.Context, filter models.RecipientFilter) ([]models.Recipient, int, error)
	FindByID(ctx context.Context, id string) (*models.Recipient, error)
	FindByEmail(ctx context.Context, email string) (*models.Recipient, error)
	Create(ctx context.Context, recipient *models.Recipient) error
	Update(ctx context.Context, recipient *models.Recipient) error
}

// CreateRecipientRequest holds payload for adding a single recipient.
type CreateRecipientRequest struct {
	Email        string            `json:"email" validate:"required,email"`
	Name         string            `json:"name" validate:"required"`
	Company      string            `json:"company"`
	DotCode      string            `json:"dotCode"`
	CustomFields map[string]string `json:"customFields"`
	CampaignID   *string           `json:"campaignId"`
}

// UpdateRecipientRequest holds payload for editing a recipient.
type UpdateRecipientRequest struct {
	Email        string            `json:"email" validate:"required,email"`
	Name         string            `json:"name" validate:"required"`
	Company      string            `json:"company"`
	DotCode      string            `json:"dotCode"`
	CustomFields map[string]string `json:"customFields"`
	CampaignID   *string           `json:"campaignId"`
}

// RecipientService handles manual recipient edits. Every write passes the
// campaign lifecycle guard for the campaign it touches.
type RecipientService struct {
	repo       recipientRepository
	campaigns  campaignGuard
	reconciler reconcileScheduler
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewRecipientService constructs the recipient service.
func NewRecipientService(repo recipientRepository, campaigns campaignGuard, reconciler reconcileScheduler, validate *validator.Validate, logger *zap.Logger) *RecipientService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipientService{repo: repo, campaigns: campaigns, reconciler: reconciler, validator: validate, logger: logger}
}

// List returns recipients and pagination metadata.
func (s *RecipientService) List(ctx context.Context, filter models.RecipientFilter) ([]models.Recipient, *models.Pagination, error) {
	recipients, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storageError(err, "failed to list recipients")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return recipients, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a recipient.
func (s *RecipientService) Get(ctx context.Context, id string) (*models.Recipient, error) {
	recipient, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, storageError(err, "failed to load recipient")
	}
	return recipient, nil
}

// Create adds one recipient after the same validation and dedup rules the
// importer applies.
func (s *RecipientService) Create(ctx context.Context, req CreateRecipientRequest, actor models.Actor) (*models.Recipient, error) {
	req.Email = importer.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recipient payload")
	}
	campaignID := emptyToNil(req.CampaignID)
	if campaignID != nil {
		if _, err := s.campaigns.AssertMutable(ctx, *campaignID); err != nil {
			return nil, err
		}
	}
	if err := s.ensureEmailFree(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	customFields, err := encodeCustomFields(req.CustomFields)
	if err != nil {
		return nil, err
	}
	recipient := &models.Recipient{
		Email:        req.Email,
		Name:         req.Name,
		Company:      strings.TrimSpace(req.Company),
		DotCode:      strings.TrimSpace(req.DotCode),
		CustomFields: customFields,
		Status:       models.RecipientStatusPending,
		CampaignID:   campaignID,
	}
	if err := s.repo.Create(ctx, recipient); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a recipient with this email already exists")
		}
		return nil, storageError(err, "failed to create recipient")
	}
	if campaignID != nil {
		s.reconciler.Schedule(context.WithoutCancel(ctx), *campaignID)
	}
	logger.For(ctx, s.logger).Info("recipient created", zap.String("recipient_id", recipient.ID), zap.String("actor", actor.UserID))
	return recipient, nil
}

// Update edits a recipient. Both the current campaign and, when it changes,
// the target campaign must be drafts.
func (s *RecipientService) Update(ctx context.Context, id string, req UpdateRecipientRequest, actor models.Actor) (*models.Recipient, error) {
	req.Email = importer.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recipient payload")
	}
	recipient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previousCampaign := recipient.CampaignID
	nextCampaign := emptyToNil(req.CampaignID)
	if previousCampaign != nil {
		if _, err := s.campaigns.AssertMutable(ctx, *previousCampaign); err != nil {
			return nil, err
		}
	}
	if nextCampaign != nil && !sameID(previousCampaign, nextCampaign) {
		if _, err := s.campaigns.AssertMutable(ctx, *nextCampaign); err != nil {
			return nil, err
		}
	}
	if req.Email != strings.ToLower(recipient.Email) {
		if err := s.ensureEmailFree(ctx, req.Email, recipient.ID); err != nil {
			return nil, err
		}
	}

	customFields, err := encodeCustomFields(req.CustomFields)
	if err != nil {
		return nil, err
	}
	recipient.Email = req.Email
	recipient.Name = req.Name
	recipient.Company = strings.TrimSpace(req.Company)
	recipient.DotCode = strings.TrimSpace(req.DotCode)
	recipient.CustomFields = customFields
	recipient.CampaignID = nextCampaign

	if err := s.repo.Update(ctx, recipient); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		case repository.IsUniqueViolation(err):
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a recipient with this email already exists")
		default:
			return nil, storageError(err, "failed to update recipient")
		}
	}
	if !sameID(previousCampaign, nextCampaign) {
		if previousCampaign != nil {
			s.reconciler.Schedule(context.WithoutCancel(ctx), *previousCampaign)
		}
		if nextCampaign != nil {
			s.reconciler.Schedule(context.WithoutCancel(ctx), *nextCampaign)
		}
	}
	logger.For(ctx, s.logger).Info("recipient updated", zap.String("recipient_id", id), zap.String("actor", actor.UserID))
	return recipient, nil
}

func (s *RecipientService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return storageError(err, "failed to check recipient email")
	case existing.ID == selfID:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrConflict, "a recipient with this email already exists")
	}
}

func encodeCustomFields(fields map[string]string) (types.JSONText, error) {
	clean := make(map[string]string, len(fields))
	for k, v := range fields {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		clean[k] = v
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid custom fields")
	}
	return types.JSONText(raw), nil
}

func emptyToNil(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
