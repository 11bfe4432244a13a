package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/campaign-contacts-api/internal/importer"
	"github.com/noah-isme/campaign-contacts-api/internal/models"
	"github.com/noah-isme/campaign-contacts-api/internal/repository"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
	"github.com/noah-isme/campaign-contacts-api/pkg/export"
	"github.com/noah-isme/campaign-contacts-api/pkg/logger"
	"github.com/noah-isme/campaign-contacts-api/pkg/spreadsheet"
	"github.com/noah-isme/campaign-contacts-api/pkg/storage"
)

// TemplateHeaders is the header row of the downloadable import template.
var TemplateHeaders = []string{"Email", "Name", "Company", "DOT"}

type importRecipientStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Recipient, error)
	Create(ctx context.Context, recipient *models.Recipient) error
	AssignCampaign(ctx context.Context, id, campaignID string) (bool, error)
}

type campaignGuard interface {
	AssertMutable(ctx context.Context, campaignID string) (*models.Campaign, error)
}

type reconcileScheduler interface {
	Schedule(ctx context.Context, campaignID string)
}

type uploadStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Path(filename string) string
	Delete(filename string) error
}

// ImportOptions parameterises one import.
type ImportOptions struct {
	CampaignID *string
	Actor      models.Actor
	Format     spreadsheet.Format
}

// ImportServiceConfig carries import policy.
type ImportServiceConfig struct {
	// BackfillCampaign assigns the target campaign to an existing recipient
	// that has none instead of only reporting the duplicate.
	BackfillCampaign bool
}

// ImportService runs uploads through reader, header resolver, normalizer and
// the dedup/persist loop.
type ImportService struct {
	recipients importRecipientStore
	campaigns  campaignGuard
	reconciler reconcileScheduler
	storage    uploadStorage
	csv        *export.CSVExporter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ImportServiceConfig
}

// NewImportService constructs the import service. storage may be nil when
// only path or reader based imports are used.
func NewImportService(recipients importRecipientStore, campaigns campaignGuard, reconciler reconcileScheduler, storage uploadStorage, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ImportServiceConfig) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		recipients: recipients,
		campaigns:  campaigns,
		reconciler: reconciler,
		storage:    storage,
		csv:        export.NewCSVExporter(),
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// ProcessUploadedFile imports a file already on disk.
func (s *ImportService) ProcessUploadedFile(ctx context.Context, path string, opts ImportOptions) (*models.ImportBatch, error) {
	if err := s.guard(ctx, opts); err != nil {
		return nil, err
	}
	rr, err := spreadsheet.OpenFile(path, opts.Format)
	if err != nil {
		return nil, openError(err)
	}
	defer rr.Close() //nolint:errcheck
	return s.run(ctx, rr, opts)
}

// Process imports from a reader. filename is only used for format sniffing.
func (s *ImportService) Process(ctx context.Context, r io.Reader, filename string, opts ImportOptions) (*models.ImportBatch, error) {
	if err := s.guard(ctx, opts); err != nil {
		return nil, err
	}
	rr, err := spreadsheet.Open(r, filename, opts.Format)
	if err != nil {
		return nil, openError(err)
	}
	defer rr.Close() //nolint:errcheck
	return s.run(ctx, rr, opts)
}

// ImportUpload stages an HTTP upload on local storage, imports it by path and
// removes the staged copy.
func (s *ImportService) ImportUpload(ctx context.Context, r io.Reader, filename string, opts ImportOptions) (*models.ImportBatch, error) {
	if s.storage == nil {
		return s.Process(ctx, r, filename, opts)
	}
	if err := s.guard(ctx, opts); err != nil {
		return nil, err
	}
	staged := uuid.NewString() + stagedExt(filename)
	if _, err := s.storage.SaveStream(staged, r); err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		}
		return nil, appErrors.Internal(err, "failed to stage upload")
	}
	defer func() {
		if err := s.storage.Delete(staged); err != nil {
			s.logger.Warn("failed to remove staged upload", zap.String("file", staged), zap.Error(err))
		}
	}()

	rr, err := spreadsheet.OpenFile(s.storage.Path(staged), opts.Format)
	if err != nil {
		return nil, openError(err)
	}
	defer rr.Close() //nolint:errcheck
	return s.run(ctx, rr, opts)
}

// stagedExt keeps a plain extension so format sniffing by name still works.
func stagedExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, r := range strings.TrimPrefix(ext, ".") {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// Template renders the CSV import template with one sample row.
func (s *ImportService) Template() ([]byte, error) {
	data := export.Dataset{
		Headers: TemplateHeaders,
		Rows: []map[string]string{{
			"Email":   "jane.doe@example.com",
			"Name":    "Jane Doe",
			"Company": "Example Freight LLC",
			"DOT":     "1234567",
		}},
	}
	content, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render import template")
	}
	return content, nil
}

func (s *ImportService) guard(ctx context.Context, opts ImportOptions) error {
	if opts.CampaignID == nil {
		return nil
	}
	_, err := s.campaigns.AssertMutable(ctx, *opts.CampaignID)
	return err
}

func (s *ImportService) run(ctx context.Context, rr spreadsheet.RowReader, opts ImportOptions) (*models.ImportBatch, error) {
	start := time.Now()
	header, err := rr.Next()
	if errors.Is(err, io.EOF) {
		return nil, appErrors.Clone(appErrors.ErrFormat, "file is empty; expected a header row")
	}
	if err != nil {
		return nil, openError(err)
	}
	columns, err := importer.ResolveHeaders(header.Cells)
	if err != nil {
		return nil, err
	}
	normalizer := importer.NewNormalizer(columns, s.validator)

	batch := &models.ImportBatch{CampaignID: opts.CampaignID, Rows: []models.ImportRowResult{}}
	seen := make(map[string]struct{})
	touched := false

	finish := func() {
		s.metrics.ObserveImport(batch, time.Since(start))
		if touched && opts.CampaignID != nil {
			s.reconciler.Schedule(context.WithoutCancel(ctx), *opts.CampaignID)
		}
		logger.For(ctx, s.logger).Info("import finished",
			zap.String("actor", opts.Actor.UserID),
			zap.Int("rows", batch.TotalRows),
			zap.Int("imported", batch.ImportedCount),
			zap.Int("skipped_duplicate", batch.SkippedDuplicateCount),
			zap.Int("skipped_invalid", batch.SkippedInvalidCount),
		)
	}

	for {
		if err := ctx.Err(); err != nil {
			finish()
			return batch, appErrors.Wrap(err, appErrors.ErrRequestTimeout.Code, appErrors.ErrRequestTimeout.Status, "import interrupted; partial results returned")
		}
		row, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			finish()
			return batch, openError(err)
		}

		result, assigned, err := s.processRow(ctx, normalizer, row, seen, opts)
		if err != nil {
			finish()
			return batch, err
		}
		if (result.Outcome == models.RowImported && opts.CampaignID != nil) || assigned {
			touched = true
		}
		batch.Record(result)
	}

	finish()
	return batch, nil
}

// processRow classifies one data row. The error return is reserved for
// failures that make the rest of the batch pointless.
func (s *ImportService) processRow(ctx context.Context, normalizer *importer.Normalizer, row spreadsheet.Row, seen map[string]struct{}, opts ImportOptions) (models.ImportRowResult, bool, error) {
	result := models.ImportRowResult{RowNumber: row.Number}

	normalized := normalizer.Normalize(row.Cells)
	result.Email = normalized.Contact.Email
	if !normalized.Valid() {
		result.Outcome = models.RowSkippedInvalid
		result.Reason = normalized.Reason
		return result, false, nil
	}
	contact := normalized.Contact

	if _, dup := seen[contact.Email]; dup {
		result.Outcome = models.RowSkippedDuplicate
		result.Reason = models.ReasonDuplicateInFile
		return result, false, nil
	}

	existing, err := s.recipients.FindByEmail(ctx, contact.Email)
	switch {
	case err == nil:
		result.Outcome = models.RowSkippedDuplicate
		result.Reason = models.ReasonDuplicateInSystem
		assigned := s.backfill(ctx, existing, opts)
		if assigned {
			result.Reason = models.ReasonBackfilledCampaign
		}
		return result, assigned, nil
	case !errors.Is(err, sql.ErrNoRows):
		if repository.IsConnectionLost(err) {
			return result, false, storageError(err, "storage connection lost during import")
		}
		result.Outcome = models.RowSkippedInvalid
		result.Reason = repository.StorageMessage(err)
		return result, false, nil
	}

	recipient := &models.Recipient{
		Email:      contact.Email,
		Name:       contact.Name,
		Company:    contact.Company,
		DotCode:    contact.DotCode,
		Status:     models.RecipientStatusPending,
		CampaignID: opts.CampaignID,
	}
	if len(contact.CustomFields) > 0 {
		raw, err := json.Marshal(contact.CustomFields)
		if err != nil {
			result.Outcome = models.RowSkippedInvalid
			result.Reason = err.Error()
			return result, false, nil
		}
		recipient.CustomFields = types.JSONText(raw)
	}
	if err := s.recipients.Create(ctx, recipient); err != nil {
		if repository.IsConnectionLost(err) {
			return result, false, storageError(err, "storage connection lost during import")
		}
		result.Outcome = models.RowSkippedInvalid
		result.Reason = repository.StorageMessage(err)
		return result, false, nil
	}
	seen[contact.Email] = struct{}{}
	result.Outcome = models.RowImported
	return result, false, nil
}

func (s *ImportService) backfill(ctx context.Context, existing *models.Recipient, opts ImportOptions) bool {
	if !s.cfg.BackfillCampaign || opts.CampaignID == nil || existing.CampaignID != nil {
		return false
	}
	assigned, err := s.recipients.AssignCampaign(ctx, existing.ID, *opts.CampaignID)
	if err != nil {
		s.logger.Warn("campaign backfill failed", zap.String("recipient_id", existing.ID), zap.Error(err))
		return false
	}
	return assigned
}

// openError maps reader failures onto API errors.
func openError(err error) error {
	var fe *spreadsheet.FormatError
	switch {
	case errors.As(err, &fe):
		return appErrors.Wrap(err, appErrors.ErrFormat.Code, appErrors.ErrFormat.Status, fe.Error())
	case errors.Is(err, os.ErrNotExist):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "upload file not found")
	default:
		return appErrors.Internal(err, "failed to read upload")
	}
}
