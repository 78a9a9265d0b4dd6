package businessflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/drip-mailer/app/services"
	"github.com/amirphl/drip-mailer/config"
	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/repository"
)

// memStore is a tiny in-memory database shared by the fake repositories
type memStore struct {
	mu        sync.Mutex
	nextID    uint
	campaigns map[uint]*models.Campaign
	followups map[uint]*models.CampaignFollowup
	prospects map[uint]*models.Prospect
	links     []*models.CampaignProspect
	items     []*models.QueueItem

	// failInsert makes SaveInBatches fail after the delete already ran
	failInsert error
	// failMark makes MarkResult fail
	failMark error
	// failLink makes LinkProspects fail
	failLink error
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: make(map[uint]*models.Campaign),
		followups: make(map[uint]*models.CampaignFollowup),
		prospects: make(map[uint]*models.Prospect),
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memStore) addCampaign(name string, status models.ScheduleStatus) *models.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Campaign{ID: s.id(), Name: name, ScheduledStatus: status, CreatedAt: time.Now().UTC()}
	s.campaigns[c.ID] = c
	return c
}

func (s *memStore) addFollowup(campaignID uint, round int, status models.ScheduleStatus) *models.CampaignFollowup {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &models.CampaignFollowup{ID: s.id(), CampaignID: campaignID, Round: round, Name: models.FollowupName(round), ScheduledStatus: status}
	s.followups[f.ID] = f
	return f
}

func (s *memStore) addProspect(email, firstName string) *models.Prospect {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := firstName
	p := &models.Prospect{ID: s.id(), Email: email, FirstName: &name}
	s.prospects[p.ID] = p
	return p
}

func (s *memStore) link(campaignID uint, prospects ...*models.Prospect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range prospects {
		s.links = append(s.links, &models.CampaignProspect{ID: s.id(), CampaignID: campaignID, ProspectID: p.ID})
	}
}

func (s *memStore) addItem(owner models.QueueOwner, campaignID uint, to string, status models.QueueItemStatus, sendAt time.Time) *models.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := &models.QueueItem{ID: s.id(), CampaignID: campaignID, ToEmail: to, Subject: "s", Body: "b", Variant: "A", SendAt: sendAt, Status: status}
	if owner.Kind == models.OwnerKindFollowup {
		id := owner.ID
		item.FollowupID = &id
	}
	s.items = append(s.items, item)
	return item
}

func (s *memStore) itemsOf(owner models.QueueOwner) []*models.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.QueueItem
	for _, it := range s.items {
		if it.Owner() == owner {
			out = append(out, it)
		}
	}
	return out
}

type snapshot struct {
	campaigns map[uint]models.Campaign
	followups map[uint]models.CampaignFollowup
	prospects map[uint]models.Prospect
	links     []models.CampaignProspect
	items     []models.QueueItem
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		campaigns: make(map[uint]models.Campaign, len(s.campaigns)),
		followups: make(map[uint]models.CampaignFollowup, len(s.followups)),
		prospects: make(map[uint]models.Prospect, len(s.prospects)),
	}
	for id, p := range s.prospects {
		snap.prospects[id] = *p
	}
	for id, c := range s.campaigns {
		snap.campaigns[id] = *c
	}
	for id, f := range s.followups {
		snap.followups[id] = *f
	}
	for _, l := range s.links {
		snap.links = append(snap.links, *l)
	}
	for _, it := range s.items {
		snap.items = append(snap.items, *it)
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns = make(map[uint]*models.Campaign, len(snap.campaigns))
	for id, c := range snap.campaigns {
		s.campaigns[id] = &c
	}
	s.followups = make(map[uint]*models.CampaignFollowup, len(snap.followups))
	for id, f := range snap.followups {
		s.followups[id] = &f
	}
	s.prospects = make(map[uint]*models.Prospect, len(snap.prospects))
	for id, p := range snap.prospects {
		s.prospects[id] = &p
	}
	s.links = s.links[:0]
	for _, l := range snap.links {
		s.links = append(s.links, &l)
	}
	s.items = s.items[:0]
	for _, it := range snap.items {
		s.items = append(s.items, &it)
	}
}

// fakeTransactor rolls the store back when fn fails
type fakeTransactor struct{ s *memStore }

func (t fakeTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	snap := t.s.snapshot()
	if err := fn(ctx); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

type fakeCampaignRepo struct {
	repository.CampaignRepository
	s *memStore
}

func (r fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r fakeCampaignRepo) Save(_ context.Context, c *models.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.id()
	cp := *c
	r.s.campaigns[c.ID] = &cp
	return nil
}

func (r fakeCampaignRepo) Rename(_ context.Context, id uint, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.campaigns[id]; ok {
		c.Name = name
	}
	return nil
}

func (r fakeCampaignRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.campaigns, id)
	return nil
}

func (r fakeCampaignRepo) Count(_ context.Context, f models.CampaignFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, c := range r.s.campaigns {
		if f.ScheduledStatus == nil || c.ScheduledStatus == *f.ScheduledStatus {
			n++
		}
	}
	return n, nil
}

func (r fakeCampaignRepo) MarkScheduled(_ context.Context, id uint, u repository.SchedulingUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	c.ScheduledStatus = models.ScheduleStatusScheduled
	c.ScheduledCount = u.ScheduledCount
	c.IsActive = true
	c.DailyStart, c.DailyEnd = &u.DailyStart, &u.DailyEnd
	c.IntervalMinutes = &u.IntervalMinutes
	return nil
}

func (r fakeCampaignRepo) TransitionStatus(_ context.Context, id uint, from, to models.ScheduleStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.ScheduledStatus != from {
		return false, nil
	}
	c.ScheduledStatus = to
	return true, nil
}

type fakeFollowupRepo struct {
	repository.CampaignFollowupRepository
	s *memStore
}

func (r fakeFollowupRepo) ByID(_ context.Context, id uint) (*models.CampaignFollowup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.followups[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r fakeFollowupRepo) ByCampaignAndRound(_ context.Context, campaignID uint, round int) (*models.CampaignFollowup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.followups {
		if f.CampaignID == campaignID && f.Round == round {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeFollowupRepo) ListByCampaign(_ context.Context, campaignID uint) ([]*models.CampaignFollowup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.CampaignFollowup
	for _, f := range r.s.followups {
		if f.CampaignID == campaignID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out, nil
}

func (r fakeFollowupRepo) FirstOrCreate(ctx context.Context, campaignID uint, round int) (*models.CampaignFollowup, error) {
	if f, _ := r.ByCampaignAndRound(ctx, campaignID, round); f != nil {
		return f, nil
	}
	f := r.s.addFollowup(campaignID, round, models.ScheduleStatusDraft)
	cp := *f
	return &cp, nil
}

func (r fakeFollowupRepo) MarkScheduled(_ context.Context, id uint, u repository.SchedulingUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f := r.s.followups[id]
	f.ScheduledStatus = models.ScheduleStatusScheduled
	f.ScheduledCount = u.ScheduledCount
	f.DailyStart, f.DailyEnd = &u.DailyStart, &u.DailyEnd
	f.IntervalMinutes = &u.IntervalMinutes
	return nil
}

func (r fakeFollowupRepo) TransitionStatus(_ context.Context, id uint, from, to models.ScheduleStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.followups[id]
	if !ok || f.ScheduledStatus != from {
		return false, nil
	}
	f.ScheduledStatus = to
	return true, nil
}

func (r fakeFollowupRepo) ResetToDraft(_ context.Context, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.followups[id]
	if !ok || !f.ScheduledStatus.IsTerminal() {
		return false, nil
	}
	f.ScheduledStatus = models.ScheduleStatusDraft
	f.ScheduledCount = 0
	return true, nil
}

func (r fakeFollowupRepo) DeleteByCampaign(_ context.Context, campaignID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, f := range r.s.followups {
		if f.CampaignID == campaignID {
			delete(r.s.followups, id)
		}
	}
	return nil
}

type fakeProspectRepo struct {
	repository.ProspectRepository
	s *memStore
}

func (r fakeProspectRepo) ByID(_ context.Context, id uint) (*models.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r fakeProspectRepo) byEmail(email string) *models.Prospect {
	for _, p := range r.s.prospects {
		if p.Email == email {
			return p
		}
	}
	return nil
}

func (r fakeProspectRepo) ByEmail(_ context.Context, email string) (*models.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.byEmail(email)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// UpsertByEmail inserts new emails in input order and fills the set fields of existing ones
func (r fakeProspectRepo) UpsertByEmail(_ context.Context, prospects []*models.Prospect) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, in := range prospects {
		existing := r.byEmail(in.Email)
		if existing == nil {
			cp := *in
			cp.ID = r.s.id()
			r.s.prospects[cp.ID] = &cp
			continue
		}
		if in.FirstName != nil {
			existing.FirstName = in.FirstName
		}
		if in.City != nil {
			existing.City = in.City
		}
		if in.Company != nil {
			existing.Company = in.Company
		}
	}
	return nil
}

// ByEmails returns rows in id order, like the database without an ORDER BY on a fresh table
func (r fakeProspectRepo) ByEmails(_ context.Context, emails []string) ([]*models.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[e] = true
	}
	var out []*models.Prospect
	for _, p := range r.s.prospects {
		if want[p.Email] {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeProspectRepo) linked(p *models.Prospect, f models.ProspectFilter) bool {
	if f.CampaignID == nil {
		return true
	}
	for _, l := range r.s.links {
		if l.CampaignID == *f.CampaignID && l.ProspectID == p.ID {
			return true
		}
	}
	return false
}

func (r fakeProspectRepo) Count(_ context.Context, f models.ProspectFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, p := range r.s.prospects {
		if r.linked(p, f) {
			n++
		}
	}
	return n, nil
}

// ByFilter honors CampaignID only and returns the newest rows first
func (r fakeProspectRepo) ByFilter(_ context.Context, f models.ProspectFilter, _ string, limit, offset int) ([]*models.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Prospect
	for _, p := range r.s.prospects {
		if r.linked(p, f) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	out = out[min(offset, len(out)):]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeProspectRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.prospects, id)
	return nil
}

type fakeLinkRepo struct {
	repository.CampaignProspectRepository
	s *memStore
}

func (r fakeLinkRepo) ByCampaignAndProspect(_ context.Context, campaignID, prospectID uint) (*models.CampaignProspect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.links {
		if l.CampaignID == campaignID && l.ProspectID == prospectID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeLinkRepo) ListRecipients(_ context.Context, campaignID uint, eligibleOnly bool) ([]*models.CampaignProspect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.CampaignProspect
	for _, l := range r.s.links {
		if l.CampaignID != campaignID || (eligibleOnly && l.ExcludedFromFollowup) {
			continue
		}
		cp := *l
		cp.Prospect = r.s.prospects[l.ProspectID]
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeLinkRepo) MarkExcluded(_ context.Context, campaignID, prospectID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.links {
		if l.CampaignID == campaignID && l.ProspectID == prospectID && !l.ExcludedFromFollowup {
			l.ExcludedFromFollowup = true
			return true, nil
		}
	}
	return false, nil
}

func (r fakeLinkRepo) Count(_ context.Context, f models.CampaignProspectFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, l := range r.s.links {
		if f.CampaignID == nil || l.CampaignID == *f.CampaignID {
			n++
		}
	}
	return n, nil
}

func (r fakeLinkRepo) CopyLinks(_ context.Context, from, to uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, l := range append([]*models.CampaignProspect(nil), r.s.links...) {
		if l.CampaignID == from {
			r.s.links = append(r.s.links, &models.CampaignProspect{ID: r.s.id(), CampaignID: to, ProspectID: l.ProspectID})
			n++
		}
	}
	return n, nil
}

func (r fakeLinkRepo) LinkProspects(_ context.Context, campaignID uint, prospectIDs []uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failLink != nil {
		return 0, r.s.failLink
	}
	var n int64
	for _, pid := range prospectIDs {
		exists := false
		for _, l := range r.s.links {
			if l.CampaignID == campaignID && l.ProspectID == pid {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		r.s.links = append(r.s.links, &models.CampaignProspect{ID: r.s.id(), CampaignID: campaignID, ProspectID: pid})
		n++
	}
	return n, nil
}

func (r fakeLinkRepo) Unlink(_ context.Context, campaignID, prospectID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.links[:0]
	for _, l := range r.s.links {
		if l.CampaignID != campaignID || l.ProspectID != prospectID {
			kept = append(kept, l)
		}
	}
	r.s.links = kept
	return nil
}

func (r fakeLinkRepo) DeleteByProspect(_ context.Context, prospectID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.links[:0]
	for _, l := range r.s.links {
		if l.ProspectID != prospectID {
			kept = append(kept, l)
		}
	}
	r.s.links = kept
	return nil
}

func (r fakeLinkRepo) DeleteByCampaign(_ context.Context, campaignID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.links[:0]
	for _, l := range r.s.links {
		if l.CampaignID != campaignID {
			kept = append(kept, l)
		}
	}
	r.s.links = kept
	return nil
}

type fakeQueueRepo struct {
	repository.QueueItemRepository
	s *memStore
}

func (r fakeQueueRepo) SaveInBatches(_ context.Context, items []*models.QueueItem, _ int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failInsert != nil {
		return r.s.failInsert
	}
	for _, it := range items {
		it.ID = r.s.id()
		cp := *it
		r.s.items = append(r.s.items, &cp)
	}
	return nil
}

func (r fakeQueueRepo) DeletePendingByOwner(_ context.Context, owner models.QueueOwner) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed int64
	kept := r.s.items[:0]
	for _, it := range r.s.items {
		if it.Owner() == owner && it.Status == models.QueueItemStatusPending {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	r.s.items = kept
	return removed, nil
}

func (r fakeQueueRepo) DeletePendingByIDs(_ context.Context, ids []uint) ([]*models.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[uint]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var deleted []*models.QueueItem
	kept := r.s.items[:0]
	for _, it := range r.s.items {
		if want[it.ID] && it.Status == models.QueueItemStatusPending {
			cp := *it
			deleted = append(deleted, &cp)
			continue
		}
		kept = append(kept, it)
	}
	r.s.items = kept
	return deleted, nil
}

func (r fakeQueueRepo) DeleteByCampaign(_ context.Context, campaignID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.items[:0]
	for _, it := range r.s.items {
		if it.CampaignID != campaignID {
			kept = append(kept, it)
		}
	}
	r.s.items = kept
	return nil
}

func (r fakeQueueRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*models.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []*models.QueueItem
	for _, it := range r.s.items {
		if it.Status == models.QueueItemStatusPending && !it.SendAt.After(now) {
			cp := *it
			due = append(due, &cp)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].SendAt.Before(due[j].SendAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r fakeQueueRepo) MarkResult(_ context.Context, id uint, status models.QueueItemStatus, errMsg *string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMark != nil {
		return false, r.s.failMark
	}
	for _, it := range r.s.items {
		if it.ID == id && it.Status == models.QueueItemStatusPending {
			it.Status = status
			it.ErrorMessage = errMsg
			if status == models.QueueItemStatusSent {
				it.SentAt = &at
			}
			return true, nil
		}
	}
	return false, nil
}

// ByFilter honors Owner and CampaignID only; rows keep insertion order
func (r fakeQueueRepo) ByFilter(_ context.Context, f models.QueueItemFilter, _ string, limit, offset int) ([]*models.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.QueueItem
	for _, it := range r.s.items {
		if f.Owner != nil && it.Owner() != *f.Owner {
			continue
		}
		if f.CampaignID != nil && it.CampaignID != *f.CampaignID {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	if offset > 0 {
		out = out[min(offset, len(out)):]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeQueueRepo) CountByOwnerAndStatus(_ context.Context, owner models.QueueOwner, status models.QueueItemStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, it := range r.s.items {
		if it.Owner() == owner && it.Status == status {
			n++
		}
	}
	return n, nil
}

func (r fakeQueueRepo) StatusCounts(_ context.Context, owner models.QueueOwner) (*models.QueueStatusCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := &models.QueueStatusCounts{}
	for _, it := range r.s.items {
		if it.Owner() != owner {
			continue
		}
		switch it.Status {
		case models.QueueItemStatusPending:
			counts.Pending++
		case models.QueueItemStatusSent:
			counts.Sent++
		case models.QueueItemStatusFailed:
			counts.Failed++
		}
		counts.Total++
	}
	return counts, nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []services.LifecycleEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e services.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		DispatchBatchSize:      10,
		DispatchLockTTL:        time.Minute,
		ScheduleLockTTL:        time.Minute,
		InsertBatchSize:        500,
		WindowUTCOffsetMinutes: 330,
		DefaultIntervalMinutes: 5,
	}
}

// testEnv wires every flow over one memStore
type testEnv struct {
	store     *memStore
	locker    *LocalLocker
	sender    *services.MockMailSender
	publisher *recordingPublisher
	cfg       config.SchedulerConfig

	followups *FollowupFlowImpl
	queue     *QueueFlowImpl
	dispatch  *DispatchFlowImpl
	campaigns *CampaignFlowImpl
	prospects *ProspectFlowImpl
}

func newTestEnv(now time.Time) *testEnv {
	return newTestEnvWithConfig(now, testSchedulerConfig())
}

func newTestEnvWithConfig(now time.Time, cfg config.SchedulerConfig) *testEnv {
	s := newMemStore()
	campaignRepo := fakeCampaignRepo{s: s}
	followupRepo := fakeFollowupRepo{s: s}
	linkRepo := fakeLinkRepo{s: s}
	prospectRepo := fakeProspectRepo{s: s}
	queueRepo := fakeQueueRepo{s: s}
	tx := fakeTransactor{s: s}
	locker := NewLocalLocker()
	sender := services.NewMockMailSender()
	publisher := &recordingPublisher{}
	clock := func() time.Time { return now }

	followups := NewFollowupFlow(campaignRepo, followupRepo, linkRepo, queueRepo, tx, cfg).(*FollowupFlowImpl)

	queue := NewQueueFlow(campaignRepo, followupRepo, linkRepo, queueRepo, tx, followups, locker, publisher, cfg).(*QueueFlowImpl)
	queue.now = clock

	dispatch := NewDispatchFlow(campaignRepo, followupRepo, queueRepo, sender, locker, publisher, cfg, config.EmailConfig{Timeout: time.Second}).(*DispatchFlowImpl)
	dispatch.now = clock

	campaigns := NewCampaignFlow(campaignRepo, followupRepo, linkRepo, prospectRepo, queueRepo, tx, cfg).(*CampaignFlowImpl)
	campaigns.now = clock

	prospects := NewProspectFlow(campaignRepo, prospectRepo, linkRepo, tx).(*ProspectFlowImpl)

	return &testEnv{
		store:     s,
		locker:    locker,
		sender:    sender,
		publisher: publisher,
		cfg:       cfg,
		followups: followups,
		queue:     queue,
		dispatch:  dispatch,
		campaigns: campaigns,
		prospects: prospects,
	}
}
