package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
)

const recipientColumns = `id, email, name, company, dot_code, custom_fields, status, campaign_id, created_at, updated_at`

// RecipientRepository manages persistence for recipients.
type RecipientRepository struct {
	db *sqlx.DB
}

// NewRecipientRepository constructs a RecipientRepository.
func NewRecipientRepository(db *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// FindByEmail looks a recipient up by its case-insensitive identity key.
func (r *RecipientRepository) FindByEmail(ctx context.Context, email string) (*models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var recipient models.Recipient
	if err := r.db.GetContext(ctx, &recipient, query, email); err != nil {
		return nil, err
	}
	return &recipient, nil
}

// FindByID fetches a recipient by id.
func (r *RecipientRepository) FindByID(ctx context.Context, id string) (*models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1`
	var recipient models.Recipient
	if err := r.db.GetContext(ctx, &recipient, query, id); err != nil {
		return nil, err
	}
	return &recipient, nil
}

// Create inserts one recipient in its own statement.
func (r *RecipientRepository) Create(ctx context.Context, recipient *models.Recipient) error {
	if recipient.ID == "" {
		recipient.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if recipient.CreatedAt.IsZero() {
		recipient.CreatedAt = now
	}
	recipient.UpdatedAt = now
	if recipient.Status == "" {
		recipient.Status = models.RecipientStatusPending
	}
	if len(recipient.CustomFields) == 0 {
		recipient.CustomFields = types.JSONText("{}")
	}
	const query = `INSERT INTO recipients (id, email, name, company, dot_code, custom_fields, status, campaign_id, created_at, updated_at)
        VALUES (:id, :email, :name, :company, :dot_code, :custom_fields, :status, :campaign_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, recipient); err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	return nil
}

// Update rewrites the editable columns. Status is left to delivery.
func (r *RecipientRepository) Update(ctx context.Context, recipient *models.Recipient) error {
	recipient.UpdatedAt = time.Now().UTC()
	if len(recipient.CustomFields) == 0 {
		recipient.CustomFields = types.JSONText("{}")
	}
	const query = `UPDATE recipients SET email = :email, name = :name, company = :company, dot_code = :dot_code,
        custom_fields = :custom_fields, campaign_id = :campaign_id, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, recipient)
	if err != nil {
		return fmt.Errorf("update recipient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check recipient update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AssignCampaign attaches a campaign to a recipient that has none. It reports
// false when the recipient already belonged to a campaign.
func (r *RecipientRepository) AssignCampaign(ctx context.Context, id, campaignID string) (bool, error) {
	const query = `UPDATE recipients SET campaign_id = $2, updated_at = $3 WHERE id = $1 AND campaign_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, campaignID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("assign recipient campaign: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check recipient assign rows: %w", err)
	}
	return affected > 0, nil
}

func recipientConditions(filter models.RecipientFilter, alias string) (string, []interface{}) {
	args := []interface{}{}
	conditions := []string{"1=1"}
	if filter.CampaignID != "" {
		args = append(args, filter.CampaignID)
		conditions = append(conditions, fmt.Sprintf("%scampaign_id = $%d", alias, len(args)))
	}
	if filter.Unassigned {
		conditions = append(conditions, alias+"campaign_id IS NULL")
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("%sstatus = $%d", alias, len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(LOWER(%semail) LIKE $%d OR LOWER(%sname) LIKE $%d OR LOWER(%scompany) LIKE $%d)", alias, n, alias, n, alias, n))
	}
	return strings.Join(conditions, " AND "), args
}

// List returns recipients matching the filter with the total count.
func (r *RecipientRepository) List(ctx context.Context, filter models.RecipientFilter) ([]models.Recipient, int, error) {
	where, args := recipientConditions(filter, "")

	allowedSorts := map[string]string{
		"created_at": "created_at",
		"email":      "email",
		"name":       "name",
		"company":    "company",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM recipients WHERE %s ORDER BY %s %s, id LIMIT %d OFFSET %d`, recipientColumns, where, column, order, size, offset)
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list recipients: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM recipients WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count recipients: %w", err)
	}
	return recipients, total, nil
}

// ListRefs enumerates the rows a bulk delete will walk, joined with the
// status of their campaign.
func (r *RecipientRepository) ListRefs(ctx context.Context, filter models.RecipientFilter) ([]models.RecipientRef, error) {
	where, args := recipientConditions(filter, "r.")
	query := fmt.Sprintf(`SELECT r.id, r.email, r.campaign_id, c.status AS campaign_status
        FROM recipients r LEFT JOIN campaigns c ON c.id = r.campaign_id
        WHERE %s ORDER BY r.created_at, r.id`, where)
	var refs []models.RecipientRef
	if err := r.db.SelectContext(ctx, &refs, query, args...); err != nil {
		return nil, fmt.Errorf("list recipient refs: %w", err)
	}
	return refs, nil
}

// CountByStatus groups a campaign's live recipients by delivery status.
func (r *RecipientRepository) CountByStatus(ctx context.Context, campaignID string) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS total FROM recipients WHERE campaign_id = $1 GROUP BY status ORDER BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, campaignID); err != nil {
		return nil, fmt.Errorf("count recipients by status: %w", err)
	}
	return counts, nil
}
