package service

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
	"github.com/noah-isme/campaign-contacts-api/pkg/storage"
)

func newImportService(f *fixture, cfg ImportServiceConfig) *ImportService {
	return NewImportService(f.recipients, f.campaign, f.scheduler, nil, NewMetricsService(), nil, nil, cfg)
}

func runImport(t *testing.T, svc *ImportService, content string, opts ImportOptions) *models.ImportBatch {
	t.Helper()
	batch, err := svc.Process(context.Background(), strings.NewReader(content), "contacts.csv", opts)
	require.NoError(t, err)
	require.Equal(t, batch.TotalRows, batch.ImportedCount+batch.SkippedDuplicateCount+batch.SkippedInvalidCount)
	return batch
}

func TestImportThreeRowScenario(t *testing.T) {
	f := newFixture()
	f.db.addCampaign("c-1", models.CampaignStatusDraft, 0)
	svc := newImportService(f, ImportServiceConfig{})

	content := "Email,Name,Company\n" +
		"alice@example.com,Alice,Acme\n" +
		"bob@example.com,Bob,Beta\n" +
		"ALICE@Example.com,Alice Again,Acme\n"
	batch := runImport(t, svc, content, ImportOptions{CampaignID: strPtr("c-1")})

	assert.Equal(t, 3, batch.TotalRows)
	assert.Equal(t, 2, batch.ImportedCount)
	assert.Equal(t, 1, batch.SkippedDuplicateCount)
	assert.Equal(t, 0, batch.SkippedInvalidCount)
	assert.Equal(t, models.ImportRowResult{RowNumber: 4, Email: "alice@example.com", Outcome: models.RowSkippedDuplicate, Reason: models.ReasonDuplicateInFile}, batch.Rows[2])
	assert.Equal(t, []string{"c-1"}, f.scheduler.scheduled())
	assert.Equal(t, 2, f.db.recipientCount())
}

func TestImportIsIdempotent(t *testing.T) {
	f := newFixture()
	svc := newImportService(f, ImportServiceConfig{})
	content := "email,full name\na@x.com,A\nb@x.com,B\n"

	first := runImport(t, svc, content, ImportOptions{})
	assert.Equal(t, 2, first.ImportedCount)

	second := runImport(t, svc, content, ImportOptions{})
	assert.Equal(t, 0, second.ImportedCount)
	assert.Equal(t, 2, second.SkippedDuplicateCount)
	for _, row := range second.Rows {
		assert.Equal(t, models.ReasonDuplicateInSystem, row.Reason)
	}
	assert.Equal(t, 2, f.db.recipientCount())
}

func TestImportDedupIsCaseInsensitiveAgainstStore(t *testing.T) {
	f := newFixture()
	f.db.addRecipient("Jane@Example.COM", nil)
	svc := newImportService(f, ImportServiceConfig{})

	batch := runImport(t, svc, "Email,Name\n jane@example.com ,Jane\n", ImportOptions{})
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, models.RowSkippedDuplicate, batch.Rows[0].Outcome)
	assert.Equal(t, models.ReasonDuplicateInSystem, batch.Rows[0].Reason)
	assert.Equal(t, 1, f.db.recipientCount())
}

func TestImportFirstRowWinsWithinBatch(t *testing.T) {
	f := newFixture()
	svc := newImportService(f, ImportServiceConfig{})

	runImport(t, svc, "Email,Name\nsam@x.com,First Sam\nSAM@x.com,Second Sam\n", ImportOptions{})
	stored, err := f.recipients.FindByEmail(context.Background(), "sam@x.com")
	require.NoError(t, err)
	assert.Equal(t, "First Sam", stored.Name)
	assert.Equal(t, "sam@x.com", stored.Email)
}

func TestImportInvalidRowsAndCustomFields(t *testing.T) {
	f := newFixture()
	svc := newImportService(f, ImportServiceConfig{})

	content := "Email,Name,Region\n" +
		",No Email,West\n" +
		"broken-address,Bad,West\n" +
		"c@x.com,,East\n" +
		"d@x.com,Dee,North\n"
	batch := runImport(t, svc, content, ImportOptions{})

	require.Len(t, batch.Rows, 4)
	assert.Equal(t, models.ReasonMissingEmail, batch.Rows[0].Reason)
	assert.Equal(t, models.ReasonInvalidEmail, batch.Rows[1].Reason)
	assert.Equal(t, "broken-address", batch.Rows[1].Email)
	assert.Equal(t, models.ReasonMissingName, batch.Rows[2].Reason)
	assert.Equal(t, models.RowImported, batch.Rows[3].Outcome)
	assert.Equal(t, 3, batch.SkippedInvalidCount)

	stored, err := f.recipients.FindByEmail(context.Background(), "d@x.com")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Region":"North"}`, stored.CustomFields.String())
	assert.Empty(t, f.scheduler.scheduled())
}

func TestImportLockedCampaignIsRejectedBeforeReading(t *testing.T) {
	for _, status := range []models.CampaignStatus{models.CampaignStatusSending, models.CampaignStatusPaused, models.CampaignStatusCompleted, models.CampaignStatusFailed, "mystery"} {
		f := newFixture()
		f.db.addCampaign("c-1", status, 0)
		svc := newImportService(f, ImportServiceConfig{})

		batch, err := svc.Process(context.Background(), strings.NewReader("Email,Name\na@x.com,A\n"), "a.csv", ImportOptions{CampaignID: strPtr("c-1")})
		require.Error(t, err, status)
		assert.Nil(t, batch)
		assert.True(t, errors.Is(err, appErrors.ErrCampaignLocked), status)
		assert.Equal(t, 0, f.db.recipientCount())
	}
}

func TestImportUnknownCampaign(t *testing.T) {
	f := newFixture()
	svc := newImportService(f, ImportServiceConfig{})
	_, err := svc.Process(context.Background(), strings.NewReader("Email,Name\na@x.com,A\n"), "a.csv", ImportOptions{CampaignID: strPtr("nope")})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestImportFatalFileErrors(t *testing.T) {
	f := newFixture()
	svc := newImportService(f, ImportServiceConfig{})
	ctx := context.Background()

	batch, err := svc.Process(ctx, strings.NewReader("Name,Company\nA,Acme\n"), "a.csv", ImportOptions{})
	assert.Nil(t, batch)
	assert.True(t, errors.Is(err, appErrors.ErrMissingRequiredColumn))

	legacy := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 32)...)
	_, err = svc.Process(ctx, bytes.NewReader(legacy), "old.xls", ImportOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrFormat))

	_, err = svc.Process(ctx, strings.NewReader(""), "empty.csv", ImportOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrFormat))

	_, err = svc.ProcessUploadedFile(ctx, filepath.Join(t.TempDir(), "missing.csv"), ImportOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestImportBackfillsCampaignWhenEnabled(t *testing.T) {
	f := newFixture()
	f.db.addCampaign("c-1", models.CampaignStatusDraft, 0)
	existing := f.db.addRecipient("old@x.com", nil)
	svc := newImportService(f, ImportServiceConfig{BackfillCampaign: true})

	batch := runImport(t, svc, "Email,Name\nold@x.com,Old\n", ImportOptions{CampaignID: strPtr("c-1")})
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, models.RowSkippedDuplicate, batch.Rows[0].Outcome)
	assert.Equal(t, models.ReasonBackfilledCampaign, batch.Rows[0].Reason)
	stored, _ := f.recipients.FindByID(context.Background(), existing.ID)
	require.NotNil(t, stored.CampaignID)
	assert.Equal(t, "c-1", *stored.CampaignID)
	assert.Equal(t, []string{"c-1"}, f.scheduler.scheduled())
}

func TestImportDoesNotBackfillByDefault(t *testing.T) {
	f := newFixture()
	f.db.addCampaign("c-1", models.CampaignStatusDraft, 0)
	existing := f.db.addRecipient("old@x.com", nil)
	svc := newImportService(f, ImportServiceConfig{})

	batch := runImport(t, svc, "Email,Name\nold@x.com,Old\n", ImportOptions{CampaignID: strPtr("c-1")})
	assert.Equal(t, models.ReasonDuplicateInSystem, batch.Rows[0].Reason)
	stored, _ := f.recipients.FindByID(context.Background(), existing.ID)
	assert.Nil(t, stored.CampaignID)
	assert.Empty(t, f.scheduler.scheduled())
}

func TestImportInsertFailureIsPerRow(t *testing.T) {
	f := newFixture()
	f.recipients.createErr = func(r *models.Recipient) error {
		if r.Email == "race@x.com" {
			f.db.addRecipient("race@x.com", nil)
		}
		return nil
	}
	svc := newImportService(f, ImportServiceConfig{})

	batch := runImport(t, svc, "Email,Name\nrace@x.com,Race\nok@x.com,Ok\n", ImportOptions{})
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, models.RowSkippedInvalid, batch.Rows[0].Outcome)
	assert.Contains(t, batch.Rows[0].Reason, "duplicate key value violates unique constraint")
	assert.Equal(t, models.RowImported, batch.Rows[1].Outcome)
}

func TestImportFailedInsertDoesNotShadowLaterRows(t *testing.T) {
	f := newFixture()
	calls := 0
	f.recipients.createErr = func(r *models.Recipient) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("create recipient: %w", &pq.Error{Code: "22001", Message: "value too long for type character varying(255)"})
		}
		return nil
	}
	svc := newImportService(f, ImportServiceConfig{})

	batch := runImport(t, svc, "Email,Name\nx@x.com,Too Long\nx@x.com,Ok Name\n", ImportOptions{})
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, models.RowSkippedInvalid, batch.Rows[0].Outcome)
	assert.Equal(t, "value too long for type character varying(255)", batch.Rows[0].Reason)
	assert.Equal(t, models.RowImported, batch.Rows[1].Outcome)
	assert.Equal(t, 1, f.db.recipientCount())
}

func TestImportLookupFailureIsPerRow(t *testing.T) {
	f := newFixture()
	lookups := 0
	f.recipients.findErr = func(email string) error {
		lookups++
		if lookups == 1 {
			return fmt.Errorf("find recipient: %w", &pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"})
		}
		return nil
	}
	svc := newImportService(f, ImportServiceConfig{})

	batch := runImport(t, svc, "Email,Name\ny@x.com,First\ny@x.com,Second\nz@x.com,Zed\n", ImportOptions{})
	require.Len(t, batch.Rows, 3)
	assert.Equal(t, models.RowSkippedInvalid, batch.Rows[0].Outcome)
	assert.Equal(t, "canceling statement due to statement timeout", batch.Rows[0].Reason)
	assert.Equal(t, models.RowImported, batch.Rows[1].Outcome)
	assert.Equal(t, models.RowImported, batch.Rows[2].Outcome)
	assert.Equal(t, 2, f.db.recipientCount())
}

func TestImportLookupConnectionLossStopsBatch(t *testing.T) {
	f := newFixture()
	f.recipients.findErr = func(email string) error {
		if email == "b@x.com" {
			return fmt.Errorf("find recipient: %w", driver.ErrBadConn)
		}
		return nil
	}
	svc := newImportService(f, ImportServiceConfig{})

	batch, err := svc.Process(context.Background(), strings.NewReader("Email,Name\na@x.com,A\nb@x.com,B\nc@x.com,C\n"), "a.csv", ImportOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStorage))
	require.NotNil(t, batch)
	assert.Equal(t, 1, batch.TotalRows)
	assert.Equal(t, 1, batch.ImportedCount)
	assert.Equal(t, 1, f.db.recipientCount())
}

func TestImportConnectionLossStopsBatch(t *testing.T) {
	f := newFixture()
	calls := 0
	f.recipients.createErr = func(r *models.Recipient) error {
		calls++
		if calls == 2 {
			return fmt.Errorf("create recipient: %w", driver.ErrBadConn)
		}
		return nil
	}
	svc := newImportService(f, ImportServiceConfig{})

	batch, err := svc.Process(context.Background(), strings.NewReader("Email,Name\na@x.com,A\nb@x.com,B\nc@x.com,C\n"), "a.csv", ImportOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStorage))
	require.NotNil(t, batch)
	assert.Equal(t, 1, batch.ImportedCount)
	assert.Equal(t, 1, batch.TotalRows)
}

func TestImportCancelledReturnsPartialBatch(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.recipients.createErr = func(r *models.Recipient) error {
		cancel()
		return nil
	}
	svc := newImportService(f, ImportServiceConfig{})

	batch, err := svc.Process(ctx, strings.NewReader("Email,Name\na@x.com,A\nb@x.com,B\n"), "a.csv", ImportOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRequestTimeout))
	require.NotNil(t, batch)
	assert.Equal(t, 1, batch.TotalRows)
	assert.Equal(t, 1, batch.ImportedCount)
}

func TestImportXLSXUploadIsStagedAndRemoved(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	svc := NewImportService(f.recipients, f.campaign, f.scheduler, store, nil, nil, nil, ImportServiceConfig{})

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]interface{}{"Company Name", "Contact Name", "Email Address", "USDOT"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]interface{}{"Acme", "Ann", "ann@x.com", 998877}))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	batch, err := svc.ImportUpload(context.Background(), bytes.NewReader(buf.Bytes()), "Contacts.XLSX", ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.ImportedCount)

	stored, err := f.recipients.FindByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann", stored.Name)
	assert.Equal(t, "Acme", stored.Company)
	assert.Equal(t, "998877", stored.DotCode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImportTemplate(t *testing.T) {
	svc := newImportService(newFixture(), ImportServiceConfig{})
	content, err := svc.Template()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Email,Name,Company,DOT\n"))
	assert.Equal(t, 2, strings.Count(string(content), "\n"))
}
