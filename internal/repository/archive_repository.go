package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
)

const archiveColumns = `id, recipient_id, email, name, company, dot_code, custom_fields, status, campaign_id,
       recipient_created_at, deleted_at, deleted_by, restored_at`

// ArchiveRepository persists recipient archive records and performs the
// archive-then-delete transaction.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// ArchiveAndDelete copies one recipient into recipient_archives and removes it
// in a single transaction. The recipient row is locked first and its campaign
// status is re-read under a share lock, so a campaign that left draft after
// the caller's check still blocks the delete.
func (r *ArchiveRepository) ArchiveAndDelete(ctx context.Context, recipientID string, deletedBy *string) (archive *models.RecipientArchive, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin archive transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var recipient models.Recipient
	const selectQuery = `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &recipient, selectQuery, recipientID); err != nil {
		return nil, fmt.Errorf("lock recipient: %w", err)
	}
	if recipient.CampaignID != nil {
		if err = assertCampaignMutable(ctx, tx, *recipient.CampaignID); err != nil {
			return nil, err
		}
	}

	archive = &models.RecipientArchive{
		ID:                 uuid.NewString(),
		RecipientID:        recipient.ID,
		Email:              recipient.Email,
		Name:               recipient.Name,
		Company:            recipient.Company,
		DotCode:            recipient.DotCode,
		CustomFields:       recipient.CustomFields,
		Status:             recipient.Status,
		CampaignID:         recipient.CampaignID,
		RecipientCreatedAt: recipient.CreatedAt,
		DeletedAt:          time.Now().UTC(),
		DeletedBy:          deletedBy,
	}
	const insertQuery = `INSERT INTO recipient_archives
        (id, recipient_id, email, name, company, dot_code, custom_fields, status, campaign_id, recipient_created_at, deleted_at, deleted_by)
        VALUES (:id, :recipient_id, :email, :name, :company, :dot_code, :custom_fields, :status, :campaign_id, :recipient_created_at, :deleted_at, :deleted_by)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, archive); err != nil {
		return nil, fmt.Errorf("insert recipient archive: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM recipients WHERE id = $1`, recipientID); err != nil {
		return nil, fmt.Errorf("delete recipient: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit recipient archive: %w", err)
	}
	return archive, nil
}

// Restore re-inserts an archived recipient under its original id and stamps
// restored_at on the archive record.
func (r *ArchiveRepository) Restore(ctx context.Context, archiveID string, restoredAt time.Time) (recipient *models.Recipient, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin restore transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var archive models.RecipientArchive
	const selectQuery = `SELECT ` + archiveColumns + ` FROM recipient_archives WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &archive, selectQuery, archiveID); err != nil {
		return nil, fmt.Errorf("lock recipient archive: %w", err)
	}
	if archive.RestoredAt != nil {
		err = appErrors.Clone(appErrors.ErrConflict, "archive record already restored")
		return nil, err
	}
	if archive.CampaignID != nil {
		if err = assertCampaignMutable(ctx, tx, *archive.CampaignID); err != nil {
			return nil, err
		}
	}

	recipient = &models.Recipient{
		ID:           archive.RecipientID,
		Email:        archive.Email,
		Name:         archive.Name,
		Company:      archive.Company,
		DotCode:      archive.DotCode,
		CustomFields: archive.CustomFields,
		Status:       archive.Status,
		CampaignID:   archive.CampaignID,
		CreatedAt:    archive.RecipientCreatedAt,
		UpdatedAt:    restoredAt,
	}
	const insertQuery = `INSERT INTO recipients (id, email, name, company, dot_code, custom_fields, status, campaign_id, created_at, updated_at)
        VALUES (:id, :email, :name, :company, :dot_code, :custom_fields, :status, :campaign_id, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, recipient); err != nil {
		return nil, fmt.Errorf("reinsert recipient: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE recipient_archives SET restored_at = $2 WHERE id = $1`, archiveID, restoredAt); err != nil {
		return nil, fmt.Errorf("mark archive restored: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit recipient restore: %w", err)
	}
	return recipient, nil
}

// List returns archive records, newest deletion first. Restored records are
// excluded unless asked for.
func (r *ArchiveRepository) List(ctx context.Context, filter models.ArchiveFilter) ([]models.RecipientArchive, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + archiveColumns + ` FROM recipient_archives`)
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 3)

	if !filter.IncludeRestored {
		conditions = append(conditions, "restored_at IS NULL")
	}
	if filter.CampaignID != "" {
		args = append(args, filter.CampaignID)
		conditions = append(conditions, fmt.Sprintf("campaign_id = $%d", len(args)))
	}
	if filter.Email != "" {
		args = append(args, filter.Email)
		conditions = append(conditions, fmt.Sprintf("LOWER(email) = LOWER($%d)", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY deleted_at DESC, id")

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.RecipientArchive
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list recipient archives: %w", err)
	}
	return records, nil
}

// CountByCampaign counts unrestored archive records for a campaign.
func (r *ArchiveRepository) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM recipient_archives WHERE campaign_id = $1 AND restored_at IS NULL`
	if err := r.db.GetContext(ctx, &total, query, campaignID); err != nil {
		return 0, fmt.Errorf("count recipient archives: %w", err)
	}
	return total, nil
}

func assertCampaignMutable(ctx context.Context, tx *sqlx.Tx, campaignID string) error {
	var status models.CampaignStatus
	err := tx.GetContext(ctx, &status, `SELECT status FROM campaigns WHERE id = $1 FOR SHARE`, campaignID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read campaign status: %w", err)
	}
	if !status.Mutable() {
		return appErrors.Clone(appErrors.ErrCampaignLocked, fmt.Sprintf("campaign %s is %s", campaignID, status))
	}
	return nil
}
