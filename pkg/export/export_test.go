package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderOrdersByHeaders(t *testing.T) {
	data := Dataset{
		Headers: []string{"Email", "Name"},
		Rows: []map[string]string{
			{"Name": "Alice", "Email": "alice@example.com"},
			{"Email": "bob@example.com"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Email,Name\nalice@example.com,Alice\nbob@example.com,\n", string(out))
}

func TestCSVRenderSanitizesFormulas(t *testing.T) {
	data := Dataset{Headers: []string{"Company"}, Rows: []map[string]string{{"Company": "=HYPERLINK(\"x\")"}, {"Company": "-5"}, {"Company": "Acme"}}}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Equal(t, `"'=HYPERLINK(""x"")"`, lines[1])
	assert.Equal(t, "'-5", lines[2])
	assert.Equal(t, "Acme", lines[3])

	raw, err := (&CSVExporter{}).Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n-5\n")
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	rows := make([]map[string]string, 0, 120)
	for i := 0; i < 120; i++ {
		rows = append(rows, map[string]string{"Email": "someone.with.a.really.long.address@example-company.com", "Name": "Contact"})
	}
	exporter := &PDFExporter{now: func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }}

	out, err := exporter.Render(Dataset{Headers: []string{"Email", "Name", "Company", "DOT", "Campaign", "Deleted At"}, Rows: rows}, "Archived recipients")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = exporter.Render(Dataset{}, "")
	assert.Error(t, err)
}
