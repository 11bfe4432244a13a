package models

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// campaignTransitions is the full forward transition table. Nothing leads
// back to draft and completed has no exits.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:     {CampaignStatusSending},
	CampaignStatusSending:   {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusFailed},
	CampaignStatusPaused:    {CampaignStatusSending, CampaignStatusFailed},
	CampaignStatusCompleted: {},
	CampaignStatusFailed:    {},
}

// Valid reports whether s is a known status.
func (s CampaignStatus) Valid() bool {
	_, ok := campaignTransitions[s]
	return ok
}

// Mutable reports whether content and recipients may still change. Only
// draft qualifies; unknown values are locked.
func (s CampaignStatus) Mutable() bool {
	return s == CampaignStatusDraft
}

// CanTransition reports whether from → to is allowed. failed → sending is
// only allowed when allowFailedRetry is set.
func CanTransition(from, to CampaignStatus, allowFailedRetry bool) bool {
	if from == CampaignStatusFailed && to == CampaignStatusSending {
		return allowFailedRetry
	}
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Content types accepted for campaign bodies.
const (
	ContentTypeHTML = "text/html"
	ContentTypeText = "text/plain"
)

// Campaign is an email campaign. TotalRecipients is a cached count that the
// reconciler brings back in line with the recipients table.
type Campaign struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Subject         string         `db:"subject" json:"subject"`
	Content         string         `db:"content" json:"content"`
	ContentType     string         `db:"content_type" json:"contentType"`
	Status          CampaignStatus `db:"status" json:"status"`
	TotalRecipients int            `db:"total_recipients" json:"totalRecipients"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

// CampaignFilter narrows campaign listings.
type CampaignFilter struct {
	Status   CampaignStatus
	Search   string
	Page     int
	PageSize int
}

// CampaignStats summarises a campaign for dashboards.
type CampaignStats struct {
	CampaignID      string         `json:"campaignId"`
	Status          CampaignStatus `json:"status"`
	TotalRecipients int            `json:"totalRecipients"`
	LiveRecipients  int            `json:"liveRecipients"`
	ByStatus        map[string]int `json:"byStatus"`
	Archived        int            `json:"archived"`
	GeneratedAt     time.Time      `json:"generatedAt"`
}

// StatusCount is one row of a GROUP BY status aggregate.
type StatusCount struct {
	Status string `db:"status"`
	Total  int    `db:"total"`
}
