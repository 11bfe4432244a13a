package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
)

const campaignColumns = `id, name, subject, content, content_type, status, total_recipients, created_at, updated_at`

// CampaignRepository manages persistence for campaigns.
type CampaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository constructs a CampaignRepository.
func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// FindByID fetches a campaign by id.
func (r *CampaignRepository) FindByID(ctx context.Context, id string) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	var campaign models.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// List returns campaigns matching the filter with the total count.
func (r *CampaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(subject) LIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`, campaignColumns, where, size, (page-1)*size)
	var campaigns []models.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM campaigns WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}
	return campaigns, total, nil
}

// Create inserts a campaign.
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}
	campaign.UpdatedAt = now
	const query = `INSERT INTO campaigns (id, name, subject, content, content_type, status, total_recipients, created_at, updated_at)
        VALUES (:id, :name, :subject, :content, :content_type, :status, :total_recipients, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, campaign); err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// UpdateContent rewrites name, subject and body while the campaign is still a
// draft. It reports false when the row was not a draft at write time.
func (r *CampaignRepository) UpdateContent(ctx context.Context, campaign *models.Campaign) (bool, error) {
	campaign.UpdatedAt = time.Now().UTC()
	const query = `UPDATE campaigns SET name = $2, subject = $3, content = $4, content_type = $5, updated_at = $6
        WHERE id = $1 AND status = $7`
	res, err := r.db.ExecContext(ctx, query, campaign.ID, campaign.Name, campaign.Subject, campaign.Content, campaign.ContentType, campaign.UpdatedAt, models.CampaignStatusDraft)
	if err != nil {
		return false, fmt.Errorf("update campaign content: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check campaign update rows: %w", err)
	}
	return affected > 0, nil
}

// UpdateStatus moves a campaign from one status to another. It reports false
// when the stored status no longer equals from.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (bool, error) {
	const query = `UPDATE campaigns SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update campaign status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check campaign status rows: %w", err)
	}
	return affected > 0, nil
}

// ListIDs returns every campaign id in creation order.
func (r *CampaignRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM campaigns ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list campaign ids: %w", err)
	}
	return ids, nil
}

// Recount sets total_recipients to the live recipient count in one statement
// and returns the value before and after.
func (r *CampaignRepository) Recount(ctx context.Context, id string) (previous, current int, err error) {
	const query = `UPDATE campaigns c
        SET total_recipients = s.live,
            updated_at = CASE WHEN c.total_recipients = s.live THEN c.updated_at ELSE $2 END
        FROM (SELECT COUNT(*) AS live FROM recipients WHERE campaign_id = $1) s,
             (SELECT total_recipients AS previous FROM campaigns WHERE id = $1) p
        WHERE c.id = $1
        RETURNING p.previous, c.total_recipients`
	row := r.db.QueryRowxContext(ctx, query, id, time.Now().UTC())
	if err = row.Scan(&previous, &current); err != nil {
		return 0, 0, err
	}
	return previous, current, nil
}
