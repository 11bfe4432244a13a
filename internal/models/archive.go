package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RecipientArchive is a copy of a recipient row taken when it was deleted.
type RecipientArchive struct {
	ID                 string         `db:"id" json:"id"`
	RecipientID        string         `db:"recipient_id" json:"recipientId"`
	Email              string         `db:"email" json:"email"`
	Name               string         `db:"name" json:"name"`
	Company            string         `db:"company" json:"company"`
	DotCode            string         `db:"dot_code" json:"dotCode"`
	CustomFields       types.JSONText `db:"custom_fields" json:"customFields"`
	Status             string         `db:"status" json:"status"`
	CampaignID         *string        `db:"campaign_id" json:"campaignId,omitempty"`
	RecipientCreatedAt time.Time      `db:"recipient_created_at" json:"recipientCreatedAt"`
	DeletedAt          time.Time      `db:"deleted_at" json:"deletedAt"`
	DeletedBy          *string        `db:"deleted_by" json:"deletedBy,omitempty"`
	RestoredAt         *time.Time     `db:"restored_at" json:"restoredAt,omitempty"`
}

// ArchiveFilter narrows archive listings.
type ArchiveFilter struct {
	CampaignID      string
	Email           string
	IncludeRestored bool
	Limit           int
	Offset          int
}

// DeleteResult is returned for a single-recipient delete.
type DeleteResult struct {
	RecipientID string `json:"recipientId"`
	Archived    bool   `json:"archived"`
	ArchiveID   string `json:"archiveId,omitempty"`
}

// RowFailure names a recipient that could not be archived and why.
type RowFailure struct {
	RecipientID string `json:"recipientId"`
	Email       string `json:"email,omitempty"`
	Reason      string `json:"reason"`
}

// BulkDeleteResult summarises a delete-all request. Archived always equals
// Deleted: a row is only counted once both happened.
type BulkDeleteResult struct {
	Matched  int          `json:"matched"`
	Archived int          `json:"archived"`
	Deleted  int          `json:"deleted"`
	Errors   []RowFailure `json:"errors"`
}
