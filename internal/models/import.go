package models

// RowOutcome classifies one data row of an upload.
type RowOutcome string

const (
	RowImported         RowOutcome = "imported"
	RowSkippedDuplicate RowOutcome = "skipped_duplicate"
	RowSkippedInvalid   RowOutcome = "skipped_invalid"
)

// Per-row reasons reported back to the uploader.
const (
	ReasonMissingEmail       = "missing email"
	ReasonInvalidEmail       = "invalid email format"
	ReasonMissingName        = "missing name"
	ReasonDuplicateInFile    = "duplicate within this file"
	ReasonDuplicateInSystem  = "already exists in system"
	ReasonBackfilledCampaign = "already exists in system; assigned to campaign"
)

// ImportRowResult is the outcome of one data row.
type ImportRowResult struct {
	RowNumber int        `json:"rowNumber"`
	Email     string     `json:"email,omitempty"`
	Outcome   RowOutcome `json:"outcome"`
	Reason    string     `json:"reason,omitempty"`
}

// ImportBatch is the result of one upload. It lives only as long as the
// response that carries it.
type ImportBatch struct {
	CampaignID            *string           `json:"campaignId,omitempty"`
	TotalRows             int               `json:"totalRows"`
	ImportedCount         int               `json:"importedCount"`
	SkippedDuplicateCount int               `json:"skippedDuplicateCount"`
	SkippedInvalidCount   int               `json:"skippedInvalidCount"`
	Rows                  []ImportRowResult `json:"rows"`
}

// Record appends a row outcome and bumps the matching counter.
func (b *ImportBatch) Record(row ImportRowResult) {
	b.TotalRows++
	switch row.Outcome {
	case RowImported:
		b.ImportedCount++
	case RowSkippedDuplicate:
		b.SkippedDuplicateCount++
	default:
		b.SkippedInvalidCount++
	}
	b.Rows = append(b.Rows, row)
}
