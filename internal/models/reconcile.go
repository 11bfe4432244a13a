package models

// ReconcileResult is the outcome of recounting one campaign.
type ReconcileResult struct {
	CampaignID string `json:"campaignId"`
	Previous   int    `json:"previous"`
	Current    int    `json:"current"`
	Drifted    bool   `json:"drifted"`
}

// ReconcileFailure names a campaign whose recount failed.
type ReconcileFailure struct {
	CampaignID string `json:"campaignId"`
	Error      string `json:"error"`
}

// ReconcileReport summarises a reconcile-all pass.
type ReconcileReport struct {
	Campaigns int                `json:"campaigns"`
	Drifted   int                `json:"drifted"`
	Results   []ReconcileResult  `json:"results"`
	Failures  []ReconcileFailure `json:"failures"`
}
