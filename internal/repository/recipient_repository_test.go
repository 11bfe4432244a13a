package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var recipientRowColumns = []string{"id", "email", "name", "company", "dot_code", "custom_fields", "status", "campaign_id", "created_at", "updated_at"}

func TestRecipientRepositoryFindByEmailIsCaseInsensitive(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows(recipientRowColumns).
		AddRow("r-1", "jane@example.com", "Jane", "", "", []byte(`{}`), "pending", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM recipients WHERE LOWER(email) = LOWER($1)")).
		WithArgs("JANE@Example.com").
		WillReturnRows(rows)

	found, err := repo.FindByEmail(context.Background(), "JANE@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "r-1", found.ID)
	assert.Nil(t, found.CampaignID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM recipients WHERE LOWER(email) = LOWER($1)")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(recipientRowColumns))
	_, err = repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO recipients")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	recipient := &models.Recipient{Email: "a@x.com", Name: "A"}
	require.NoError(t, repo.Create(context.Background(), recipient))
	assert.NotEmpty(t, recipient.ID)
	assert.Equal(t, models.RecipientStatusPending, recipient.Status)
	assert.Equal(t, "{}", recipient.CustomFields.String())
	assert.False(t, recipient.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryAssignCampaignOnlyWhenUnassigned(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE recipients SET campaign_id = $2, updated_at = $3 WHERE id = $1 AND campaign_id IS NULL")).
		WithArgs("r-1", "c-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assigned, err := repo.AssignCampaign(context.Background(), "r-1", "c-1")
	require.NoError(t, err)
	assert.True(t, assigned)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE recipients SET campaign_id")).
		WithArgs("r-2", "c-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assigned, err = repo.AssignCampaign(context.Background(), "r-2", "c-1")
	require.NoError(t, err)
	assert.False(t, assigned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE recipients SET email")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), &models.Recipient{ID: "missing", Email: "a@x.com", Name: "A"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRecipientRepositoryListFiltersAndSorts(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows(recipientRowColumns).
		AddRow("r-1", "a@x.com", "A", "Acme", "", []byte(`{"Region":"West"}`), "pending", "c-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, name, company, dot_code, custom_fields, status, campaign_id, created_at, updated_at FROM recipients WHERE 1=1 AND campaign_id = $1 AND (LOWER(email) LIKE $2 OR LOWER(name) LIKE $2 OR LOWER(company) LIKE $2) ORDER BY email ASC, id LIMIT 10 OFFSET 10")).
		WithArgs("c-1", "%acme%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM recipients WHERE 1=1 AND campaign_id = $1")).
		WithArgs("c-1", "%acme%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), models.RecipientFilter{
		CampaignID: "c-1",
		Search:     "Acme",
		Page:       2,
		PageSize:   10,
		SortBy:     "email",
		SortOrder:  "asc",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 11, total)
	assert.JSONEq(t, `{"Region":"West"}`, items[0].CustomFields.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryListRejectsUnknownSort(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id LIMIT 50 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(recipientRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM recipients WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.RecipientFilter{SortBy: "email; DROP TABLE recipients", SortOrder: "sideways"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryListRefsJoinsCampaignStatus(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	rows := sqlmock.NewRows([]string{"id", "email", "campaign_id", "campaign_status"}).
		AddRow("r-1", "a@x.com", "c-1", "sending").
		AddRow("r-2", "b@x.com", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM recipients r LEFT JOIN campaigns c ON c.id = r.campaign_id")).
		WillReturnRows(rows)

	refs, err := repo.ListRefs(context.Background(), models.RecipientFilter{All: true})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.NotNil(t, refs[0].CampaignStatus)
	assert.Equal(t, models.CampaignStatusSending, *refs[0].CampaignStatus)
	assert.Nil(t, refs[1].CampaignID)
	assert.Nil(t, refs[1].CampaignStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "total"}).AddRow("pending", 4).AddRow("sent", 2))

	counts, err := repo.CountByStatus(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, []models.StatusCount{{Status: "pending", Total: 4}, {Status: "sent", Total: 2}}, counts)
}
