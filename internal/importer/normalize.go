package importer

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
)

// Contact is a validated, normalized row ready for persistence.
type Contact struct {
	Email        string
	Name         string
	Company      string
	DotCode      string
	CustomFields map[string]string
}

// RowResult is either a Contact or the reason the row was rejected. A
// rejected row still carries whatever email it had, for reporting.
type RowResult struct {
	Contact Contact
	Reason  string
}

// Valid reports whether the row produced a contact.
func (r RowResult) Valid() bool {
	return r.Reason == ""
}

// Normalizer turns raw cells into contacts according to a ColumnMap.
type Normalizer struct {
	columns   ColumnMap
	validator *validator.Validate
}

// NewNormalizer builds a normalizer. A nil validator gets a fresh instance.
func NewNormalizer(columns ColumnMap, v *validator.Validate) *Normalizer {
	if v == nil {
		v = validator.New()
	}
	return &Normalizer{columns: columns, validator: v}
}

// Normalize validates one data row. Checks run email first, then name, so a
// row missing both reports the email.
func (n *Normalizer) Normalize(cells []string) RowResult {
	email := NormalizeEmail(cell(cells, n.columns.Email))
	if email == "" {
		return RowResult{Reason: models.ReasonMissingEmail}
	}
	if err := n.validator.Var(email, "email"); err != nil {
		return RowResult{Contact: Contact{Email: email}, Reason: models.ReasonInvalidEmail}
	}
	name := cell(cells, n.columns.Name)
	if name == "" {
		return RowResult{Contact: Contact{Email: email}, Reason: models.ReasonMissingName}
	}

	contact := Contact{
		Email:   email,
		Name:    name,
		Company: cell(cells, n.columns.Company),
		DotCode: cell(cells, n.columns.Dot),
	}
	for _, col := range n.columns.Custom {
		if v := cell(cells, col.Index); v != "" {
			if contact.CustomFields == nil {
				contact.CustomFields = make(map[string]string)
			}
			contact.CustomFields[col.Key] = v
		}
	}
	return RowResult{Contact: contact}
}

// NormalizeEmail returns the identity key for an address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}
