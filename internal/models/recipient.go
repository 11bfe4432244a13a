package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RecipientStatusPending is assigned on creation; the delivery subsystem owns
// every later value.
const RecipientStatusPending = "pending"

// Recipient is a contact, optionally attached to one campaign. Email holds
// the lower-cased identity key.
type Recipient struct {
	ID           string         `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	Name         string         `db:"name" json:"name"`
	Company      string         `db:"company" json:"company"`
	DotCode      string         `db:"dot_code" json:"dotCode"`
	CustomFields types.JSONText `db:"custom_fields" json:"customFields"`
	Status       string         `db:"status" json:"status"`
	CampaignID   *string        `db:"campaign_id" json:"campaignId,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

// RecipientFilter selects recipients for listing and bulk deletion. An empty
// filter with All set matches every recipient.
type RecipientFilter struct {
	CampaignID string
	Unassigned bool
	All        bool
	Search     string
	Status     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Empty reports whether no narrowing criterion is set.
func (f RecipientFilter) Empty() bool {
	return f.CampaignID == "" && !f.Unassigned && f.Search == "" && f.Status == ""
}

// RecipientRef is the minimal projection used when walking rows for bulk
// deletion. CampaignStatus is nil for unassigned recipients.
type RecipientRef struct {
	ID             string          `db:"id"`
	Email          string          `db:"email"`
	CampaignID     *string         `db:"campaign_id"`
	CampaignStatus *CampaignStatus `db:"campaign_status"`
}
