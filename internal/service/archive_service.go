package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	"github.com/noah-isme/campaign-contacts-api/internal/repository"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
	"github.com/noah-isme/campaign-contacts-api/pkg/export"
	"github.com/noah-isme/campaign-contacts-api/pkg/logger"
)

// Archive export formats.
const (
	ArchiveExportCSV = "csv"
	ArchiveExportPDF = "pdf"
)

const reasonCampaignLocked = "campaign is locked"

type archiveStore interface {
	ArchiveAndDelete(ctx context.Context, recipientID string, deletedBy *string) (*models.RecipientArchive, error)
	Restore(ctx context.Context, archiveID string, restoredAt time.Time) (*models.Recipient, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.RecipientArchive, error)
}

type recipientEnumerator interface {
	FindByID(ctx context.Context, id string) (*models.Recipient, error)
	ListRefs(ctx context.Context, filter models.RecipientFilter) ([]models.RecipientRef, error)
}

// ArchiveExport is a rendered archive listing.
type ArchiveExport struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ArchiveService is the only path that removes recipients. Every delete is
// preceded by an archive copy in the same transaction.
type ArchiveService struct {
	store      archiveStore
	recipients recipientEnumerator
	campaigns  campaignGuard
	reconciler reconcileScheduler
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewArchiveService constructs the archive service.
func NewArchiveService(store archiveStore, recipients recipientEnumerator, campaigns campaignGuard, reconciler reconcileScheduler, metrics *MetricsService, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{
		store:      store,
		recipients: recipients,
		campaigns:  campaigns,
		reconciler: reconciler,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// DeleteRecipient archives and removes one recipient.
func (s *ArchiveService) DeleteRecipient(ctx context.Context, recipientID string, actor models.Actor) (*models.DeleteResult, error) {
	recipient, err := s.recipients.FindByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, storageError(err, "failed to load recipient")
	}
	if recipient.CampaignID != nil {
		if _, err := s.campaigns.AssertMutable(ctx, *recipient.CampaignID); err != nil {
			return nil, err
		}
	}

	archive, err := s.store.ArchiveAndDelete(ctx, recipientID, actor.UserIDPtr())
	if err != nil {
		s.metrics.ObserveArchive(0, 1)
		var appErr *appErrors.Error
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		case errors.As(err, &appErr):
			return nil, appErr
		default:
			return nil, storageError(err, "failed to archive recipient")
		}
	}
	s.metrics.ObserveArchive(1, 0)
	if archive.CampaignID != nil {
		s.reconciler.Schedule(context.WithoutCancel(ctx), *archive.CampaignID)
	}
	logger.For(ctx, s.logger).Info("recipient archived",
		zap.String("recipient_id", recipientID),
		zap.String("archive_id", archive.ID),
		zap.String("actor", actor.UserID),
	)
	return &models.DeleteResult{RecipientID: recipientID, Archived: true, ArchiveID: archive.ID}, nil
}

// DeleteAllRecipients archives and removes every recipient matching filter.
// Rows are handled one transaction each; per-row failures are reported, not
// raised. Only enumeration failure, connection loss or cancellation fail the
// call, and the latter two still return the partial result.
func (s *ArchiveService) DeleteAllRecipients(ctx context.Context, filter models.RecipientFilter, actor models.Actor) (*models.BulkDeleteResult, error) {
	if filter.Empty() && !filter.All {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a campaign filter or all=true is required for bulk delete")
	}
	if filter.CampaignID != "" {
		if _, err := s.campaigns.AssertMutable(ctx, filter.CampaignID); err != nil {
			return nil, err
		}
	}

	refs, err := s.recipients.ListRefs(ctx, filter)
	if err != nil {
		return nil, storageError(err, "failed to enumerate recipients")
	}

	result := &models.BulkDeleteResult{Matched: len(refs), Errors: []models.RowFailure{}}
	touched := make(map[string]struct{})
	finish := func() {
		s.metrics.ObserveArchive(result.Archived, len(result.Errors))
		for id := range touched {
			s.reconciler.Schedule(context.WithoutCancel(ctx), id)
		}
		logger.For(ctx, s.logger).Info("bulk recipient delete finished",
			zap.String("actor", actor.UserID),
			zap.Int("matched", result.Matched),
			zap.Int("archived", result.Archived),
			zap.Int("failed", len(result.Errors)),
		)
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			finish()
			return result, appErrors.Wrap(err, appErrors.ErrRequestTimeout.Code, appErrors.ErrRequestTimeout.Status, "bulk delete interrupted; partial results returned")
		}
		if ref.CampaignStatus != nil && !ref.CampaignStatus.Mutable() {
			result.Errors = append(result.Errors, models.RowFailure{RecipientID: ref.ID, Email: ref.Email, Reason: reasonCampaignLocked})
			continue
		}

		archive, err := s.store.ArchiveAndDelete(ctx, ref.ID, actor.UserIDPtr())
		if err != nil {
			if repository.IsConnectionLost(err) {
				finish()
				return result, storageError(err, "storage connection lost during bulk delete")
			}
			result.Errors = append(result.Errors, models.RowFailure{RecipientID: ref.ID, Email: ref.Email, Reason: rowFailureReason(err)})
			continue
		}
		result.Archived++
		result.Deleted++
		if archive.CampaignID != nil {
			touched[*archive.CampaignID] = struct{}{}
		}
	}

	finish()
	return result, nil
}

func rowFailureReason(err error) string {
	switch {
	case errors.Is(err, appErrors.ErrCampaignLocked):
		return reasonCampaignLocked
	case errors.Is(err, sql.ErrNoRows):
		return "recipient no longer exists"
	default:
		return repository.StorageMessage(err)
	}
}

// List returns archive records.
func (s *ArchiveService) List(ctx context.Context, filter models.ArchiveFilter) ([]models.RecipientArchive, error) {
	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, storageError(err, "failed to list archived recipients")
	}
	return items, nil
}

// Restore re-creates an archived recipient. Its campaign must still be a
// draft and its email must be free.
func (s *ArchiveService) Restore(ctx context.Context, archiveID string, actor models.Actor) (*models.Recipient, error) {
	recipient, err := s.store.Restore(ctx, archiveID, s.now().UTC())
	if err != nil {
		var appErr *appErrors.Error
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive record not found")
		case repository.IsUniqueViolation(err):
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a live recipient already uses this email")
		case errors.As(err, &appErr):
			return nil, appErr
		default:
			return nil, storageError(err, "failed to restore recipient")
		}
	}
	s.metrics.ObserveRestore()
	if recipient.CampaignID != nil {
		s.reconciler.Schedule(context.WithoutCancel(ctx), *recipient.CampaignID)
	}
	logger.For(ctx, s.logger).Info("recipient restored", zap.String("archive_id", archiveID), zap.String("recipient_id", recipient.ID), zap.String("actor", actor.UserID))
	return recipient, nil
}

// Export renders archive records as CSV or PDF.
func (s *ArchiveService) Export(ctx context.Context, filter models.ArchiveFilter, format string) (*ArchiveExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ArchiveExportCSV
	}
	if format != ArchiveExportCSV && format != ArchiveExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if filter.Limit <= 0 {
		filter.Limit = 1000
	}
	items, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := archiveDataset(items)
	stamp := s.now().UTC().Format("20060102-150405")
	if format == ArchiveExportPDF {
		content, err := s.pdf.Render(data, "Archived recipients")
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render archive pdf")
		}
		return &ArchiveExport{Filename: fmt.Sprintf("recipient-archive-%s.pdf", stamp), ContentType: "application/pdf", Content: content}, nil
	}
	content, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render archive csv")
	}
	return &ArchiveExport{Filename: fmt.Sprintf("recipient-archive-%s.csv", stamp), ContentType: "text/csv", Content: content}, nil
}

var archiveExportHeaders = []string{"Email", "Name", "Company", "DOT", "Campaign", "Deleted At", "Deleted By"}

func archiveDataset(items []models.RecipientArchive) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"Email":      item.Email,
			"Name":       item.Name,
			"Company":    item.Company,
			"DOT":        item.DotCode,
			"Campaign":   derefString(item.CampaignID),
			"Deleted At": item.DeletedAt.UTC().Format(time.RFC3339),
			"Deleted By": derefString(item.DeletedBy),
		})
	}
	return export.Dataset{Headers: archiveExportHeaders, Rows: rows}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
