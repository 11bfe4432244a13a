package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
)

// memoryDB is a tiny in-memory stand-in for the three tables, shared by the
// per-table fakes below.
type memoryDB struct {
	mu         sync.Mutex
	seq        int
	recipients map[string]*models.Recipient
	order      []string
	campaigns  map[string]*models.Campaign
	archives   []models.RecipientArchive
	ops        []string
}

func newMemoryDB() *memoryDB {
	return &memoryDB{recipients: map[string]*models.Recipient{}, campaigns: map[string]*models.Campaign{}}
}

func (db *memoryDB) addCampaign(id string, status models.CampaignStatus, total int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.campaigns[id] = &models.Campaign{ID: id, Name: id, Status: status, TotalRecipients: total, CreatedAt: time.Now()}
}

func (db *memoryDB) addRecipient(email string, campaignID *string) *models.Recipient {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq++
	r := &models.Recipient{ID: fmt.Sprintf("r-%d", db.seq), Email: email, Name: "Seed", Status: models.RecipientStatusPending, CampaignID: campaignID, CustomFields: types.JSONText("{}")}
	db.recipients[r.ID] = r
	db.order = append(db.order, r.ID)
	return r
}

func (db *memoryDB) liveCount(campaignID string) int {
	n := 0
	for _, r := range db.recipients {
		if r.CampaignID != nil && *r.CampaignID == campaignID {
			n++
		}
	}
	return n
}

func (db *memoryDB) total(campaignID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.campaigns[campaignID].TotalRecipients
}

func (db *memoryDB) recipientCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.recipients)
}

func (db *memoryDB) campaignMutable(id *string) error {
	if id == nil {
		return nil
	}
	c, ok := db.campaigns[*id]
	if ok && !c.Status.Mutable() {
		return appErrors.Clone(appErrors.ErrCampaignLocked, "campaign is locked")
	}
	return nil
}

func strPtr(s string) *string { return &s }

type memRecipients struct {
	db        *memoryDB
	createErr func(r *models.Recipient) error
	findErr   func(email string) error
	creates   int
}

func (m *memRecipients) FindByEmail(ctx context.Context, email string) (*models.Recipient, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.findErr != nil {
		if err := m.findErr(email); err != nil {
			return nil, err
		}
	}
	for _, id := range m.db.order {
		if r, ok := m.db.recipients[id]; ok && strings.EqualFold(r.Email, email) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memRecipients) FindByID(ctx context.Context, id string) (*models.Recipient, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.recipients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *memRecipients) Create(ctx context.Context, recipient *models.Recipient) error {
	if m.createErr != nil {
		if err := m.createErr(recipient); err != nil {
			return err
		}
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.recipients {
		if strings.EqualFold(r.Email, recipient.Email) {
			return fmt.Errorf("create recipient: %w", &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint \"uniq_recipients_email_lower\""})
		}
	}
	m.db.seq++
	m.creates++
	recipient.ID = fmt.Sprintf("r-%d", m.db.seq)
	cp := *recipient
	m.db.recipients[cp.ID] = &cp
	m.db.order = append(m.db.order, cp.ID)
	return nil
}

func (m *memRecipients) Update(ctx context.Context, recipient *models.Recipient) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.recipients[recipient.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *recipient
	m.db.recipients[cp.ID] = &cp
	return nil
}

func (m *memRecipients) AssignCampaign(ctx context.Context, id, campaignID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.recipients[id]
	if !ok || r.CampaignID != nil {
		return false, nil
	}
	r.CampaignID = strPtr(campaignID)
	return true, nil
}

func (m *memRecipients) List(ctx context.Context, filter models.RecipientFilter) ([]models.Recipient, int, error) {
	refs, _ := m.ListRefs(ctx, filter)
	out := make([]models.Recipient, 0, len(refs))
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, ref := range refs {
		out = append(out, *m.db.recipients[ref.ID])
	}
	return out, len(out), nil
}

func (m *memRecipients) ListRefs(ctx context.Context, filter models.RecipientFilter) ([]models.RecipientRef, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var refs []models.RecipientRef
	for _, id := range m.db.order {
		r, ok := m.db.recipients[id]
		if !ok {
			continue
		}
		if filter.CampaignID != "" && (r.CampaignID == nil || *r.CampaignID != filter.CampaignID) {
			continue
		}
		if filter.Unassigned && r.CampaignID != nil {
			continue
		}
		ref := models.RecipientRef{ID: r.ID, Email: r.Email, CampaignID: r.CampaignID}
		if r.CampaignID != nil {
			if c, ok := m.db.campaigns[*r.CampaignID]; ok {
				status := c.Status
				ref.CampaignStatus = &status
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (m *memRecipients) CountByStatus(ctx context.Context, campaignID string) ([]models.StatusCount, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	counts := map[string]int{}
	for _, r := range m.db.recipients {
		if r.CampaignID != nil && *r.CampaignID == campaignID {
			counts[r.Status]++
		}
	}
	out := make([]models.StatusCount, 0, len(counts))
	for status, total := range counts {
		out = append(out, models.StatusCount{Status: status, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

type memCampaigns struct {
	db         *memoryDB
	recountErr map[string]error
	recounts   int
}

func (m *memCampaigns) FindByID(ctx context.Context, id string) (*models.Campaign, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.campaigns[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaigns) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Campaign
	for _, c := range m.db.campaigns {
		if filter.Status == "" || c.Status == filter.Status {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (m *memCampaigns) Create(ctx context.Context, campaign *models.Campaign) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.seq++
	campaign.ID = fmt.Sprintf("c-%d", m.db.seq)
	cp := *campaign
	m.db.campaigns[cp.ID] = &cp
	return nil
}

func (m *memCampaigns) UpdateContent(ctx context.Context, campaign *models.Campaign) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.campaigns[campaign.ID]
	if !ok || c.Status != models.CampaignStatusDraft {
		return false, nil
	}
	c.Name, c.Subject, c.Content, c.ContentType = campaign.Name, campaign.Subject, campaign.Content, campaign.ContentType
	return true, nil
}

func (m *memCampaigns) UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (m *memCampaigns) ListIDs(ctx context.Context) ([]string, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	ids := make([]string, 0, len(m.db.campaigns))
	for id := range m.db.campaigns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memCampaigns) Recount(ctx context.Context, id string) (int, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.recounts++
	if err := m.recountErr[id]; err != nil {
		return 0, 0, err
	}
	c, ok := m.db.campaigns[id]
	if !ok {
		return 0, 0, sql.ErrNoRows
	}
	previous := c.TotalRecipients
	c.TotalRecipients = m.db.liveCount(id)
	return previous, c.TotalRecipients, nil
}

type memArchives struct {
	db      *memoryDB
	failFor map[string]error
}

func (m *memArchives) ArchiveAndDelete(ctx context.Context, recipientID string, deletedBy *string) (*models.RecipientArchive, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err := m.failFor[recipientID]; err != nil {
		return nil, err
	}
	r, ok := m.db.recipients[recipientID]
	if !ok {
		return nil, fmt.Errorf("lock recipient: %w", sql.ErrNoRows)
	}
	if err := m.db.campaignMutable(r.CampaignID); err != nil {
		return nil, err
	}
	m.db.seq++
	archive := models.RecipientArchive{
		ID:                 fmt.Sprintf("a-%d", m.db.seq),
		RecipientID:        r.ID,
		Email:              r.Email,
		Name:               r.Name,
		Company:            r.Company,
		DotCode:            r.DotCode,
		CustomFields:       r.CustomFields,
		Status:             r.Status,
		CampaignID:         r.CampaignID,
		RecipientCreatedAt: r.CreatedAt,
		DeletedAt:          time.Now().UTC(),
		DeletedBy:          deletedBy,
	}
	m.db.archives = append(m.db.archives, archive)
	m.db.ops = append(m.db.ops, "archive:"+recipientID)
	delete(m.db.recipients, recipientID)
	m.db.ops = append(m.db.ops, "delete:"+recipientID)
	return &archive, nil
}

func (m *memArchives) Restore(ctx context.Context, archiveID string, restoredAt time.Time) (*models.Recipient, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i := range m.db.archives {
		a := &m.db.archives[i]
		if a.ID != archiveID {
			continue
		}
		if a.RestoredAt != nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "archive record already restored")
		}
		if err := m.db.campaignMutable(a.CampaignID); err != nil {
			return nil, err
		}
		for _, r := range m.db.recipients {
			if strings.EqualFold(r.Email, a.Email) {
				return nil, fmt.Errorf("reinsert recipient: %w", &pq.Error{Code: "23505", Message: "duplicate key"})
			}
		}
		r := &models.Recipient{ID: a.RecipientID, Email: a.Email, Name: a.Name, CampaignID: a.CampaignID, Status: a.Status, UpdatedAt: restoredAt}
		m.db.recipients[r.ID] = r
		m.db.order = append(m.db.order, r.ID)
		a.RestoredAt = &restoredAt
		cp := *r
		return &cp, nil
	}
	return nil, fmt.Errorf("lock recipient archive: %w", sql.ErrNoRows)
}

func (m *memArchives) List(ctx context.Context, filter models.ArchiveFilter) ([]models.RecipientArchive, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.RecipientArchive
	for _, a := range m.db.archives {
		if filter.CampaignID != "" && (a.CampaignID == nil || *a.CampaignID != filter.CampaignID) {
			continue
		}
		if !filter.IncludeRestored && a.RestoredAt != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memArchives) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	items, _ := m.List(ctx, models.ArchiveFilter{CampaignID: campaignID})
	return len(items), nil
}

// recordingScheduler captures reconcile requests.
type recordingScheduler struct {
	mu        sync.Mutex
	ids       []string
	cancelled int
}

func (r *recordingScheduler) Schedule(ctx context.Context, campaignID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, campaignID)
	if ctx.Err() != nil {
		r.cancelled++
	}
}

func (r *recordingScheduler) scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

type fixture struct {
	db         *memoryDB
	recipients *memRecipients
	campaigns  *memCampaigns
	archives   *memArchives
	scheduler  *recordingScheduler
	campaign   *CampaignService
}

func newFixture() *fixture {
	db := newMemoryDB()
	f := &fixture{
		db:         db,
		recipients: &memRecipients{db: db},
		campaigns:  &memCampaigns{db: db},
		archives:   &memArchives{db: db},
		scheduler:  &recordingScheduler{},
	}
	f.campaign = NewCampaignService(f.campaigns, f.recipients, f.archives, nil, nil, nil, CampaignServiceConfig{})
	return f
}
