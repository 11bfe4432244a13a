package importer

import (
	"fmt"
	"strings"
	"unicode"

	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
)

// Field is a canonical recipient attribute a column can map to.
type Field string

const (
	FieldEmail   Field = "email"
	FieldDot     Field = "dot"
	FieldCompany Field = "company"
	FieldName    Field = "name"
)

type fieldAliases struct {
	field   Field
	aliases []string
	// words match only as a whole token, so short aliases do not fire inside
	// unrelated headers like "Anecdote".
	words []string
}

// resolutionOrder fixes both the claim order between fields and the alias
// priority within a field. dot and company claim before name so that headers
// such as "Company Name" or "DOT Name" do not end up as the contact name.
var resolutionOrder = []fieldAliases{
	{field: FieldEmail, aliases: []string{"email", "e-mail"}},
	{field: FieldDot, aliases: []string{"dot code", "usdot"}, words: []string{"dot"}},
	{field: FieldCompany, aliases: []string{"company", "business", "organization", "organisation"}},
	{field: FieldName, aliases: []string{"full name", "customer name", "contact name", "name"}},
}

// CustomColumn is a header that did not map to a canonical field.
type CustomColumn struct {
	Index int
	Key   string
}

// ColumnMap records which column index feeds each canonical field. A missing
// field has index -1.
type ColumnMap struct {
	Email   int
	Name    int
	Company int
	Dot     int
	Custom  []CustomColumn
}

// Has reports whether the field resolved to a column.
func (m ColumnMap) Has(f Field) bool {
	return m.Index(f) >= 0
}

// Index returns the column feeding f, or -1.
func (m ColumnMap) Index(f Field) int {
	switch f {
	case FieldEmail:
		return m.Email
	case FieldName:
		return m.Name
	case FieldCompany:
		return m.Company
	case FieldDot:
		return m.Dot
	default:
		return -1
	}
}

func (m *ColumnMap) set(f Field, idx int) {
	switch f {
	case FieldEmail:
		m.Email = idx
	case FieldName:
		m.Name = idx
	case FieldCompany:
		m.Company = idx
	case FieldDot:
		m.Dot = idx
	}
}

// ResolveHeaders maps a header row onto canonical fields. Matching is a
// case-insensitive substring test against the trimmed header, except for
// whole-word aliases which must appear as a separate token. Each column is
// claimed by at most one field; columns left over become custom fields.
func ResolveHeaders(headers []string) (ColumnMap, error) {
	m := ColumnMap{Email: -1, Name: -1, Company: -1, Dot: -1}
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	claimed := make([]bool, len(headers))

	for _, fa := range resolutionOrder {
		if idx := firstMatch(normalized, claimed, fa); idx >= 0 {
			claimed[idx] = true
			m.set(fa.field, idx)
		}
	}
	if m.Email < 0 {
		return m, appErrors.Clone(appErrors.ErrMissingRequiredColumn, "no column header matches email (expected a header containing \"email\" or \"e-mail\")")
	}

	seen := make(map[string]int)
	for i, h := range headers {
		if claimed[i] {
			continue
		}
		key := strings.TrimSpace(h)
		if key == "" {
			key = fmt.Sprintf("column_%d", i+1)
		}
		seen[key]++
		if n := seen[key]; n > 1 {
			key = fmt.Sprintf("%s_%d", key, n)
		}
		m.Custom = append(m.Custom, CustomColumn{Index: i, Key: key})
	}
	return m, nil
}

// firstMatch scans columns left to right; a column matches when any alias is
// a substring of it or any word alias is one of its tokens.
func firstMatch(headers []string, claimed []bool, fa fieldAliases) int {
	for i, h := range headers {
		if claimed[i] || h == "" {
			continue
		}
		for _, alias := range fa.aliases {
			if strings.Contains(h, alias) {
				return i
			}
		}
		if len(fa.words) > 0 && hasWord(h, fa.words) {
			return i
		}
	}
	return -1
}

func hasWord(header string, words []string) bool {
	tokens := strings.FieldsFunc(header, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}
