// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/drip-mailer/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// Transactor runs a function inside a single unit of work
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// SchedulingUpdate carries the fields written when an owner is (re)scheduled
type SchedulingUpdate struct {
	ScheduledCount  int
	DailyStart      string
	DailyEnd        string
	IntervalMinutes int
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Rename(ctx context.Context, id uint, name string) error
	Delete(ctx context.Context, id uint) error
	MarkScheduled(ctx context.Context, id uint, update SchedulingUpdate) error
	// TransitionStatus moves the campaign to "to" only while it is in "from".
	// It reports whether a row changed.
	TransitionStatus(ctx context.Context, id uint, from, to models.ScheduleStatus) (bool, error)
}

// CampaignFollowupRepository defines operations for follow-up rounds
type CampaignFollowupRepository interface {
	Repository[models.CampaignFollowup, models.CampaignFollowupFilter]
	ByCampaignAndRound(ctx context.Context, campaignID uint, round int) (*models.CampaignFollowup, error)
	ListByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignFollowup, error)
	// FirstOrCreate returns the round, creating a draft when missing.
	FirstOrCreate(ctx context.Context, campaignID uint, round int) (*models.CampaignFollowup, error)
	MarkScheduled(ctx context.Context, id uint, update SchedulingUpdate) error
	TransitionStatus(ctx context.Context, id uint, from, to models.ScheduleStatus) (bool, error)
	// ResetToDraft moves a completed or cancelled round back to draft and clears its count.
	ResetToDraft(ctx context.Context, id uint) (bool, error)
	DeleteByCampaign(ctx context.Context, campaignID uint) error
}

// ProspectRepository defines operations for prospects
type ProspectRepository interface {
	Repository[models.Prospect, models.ProspectFilter]
	ByEmail(ctx context.Context, email string) (*models.Prospect, error)
	// UpsertByEmail inserts prospects or updates the non-empty fields of existing ones.
	UpsertByEmail(ctx context.Context, prospects []*models.Prospect) error
	ByEmails(ctx context.Context, emails []string) ([]*models.Prospect, error)
	Delete(ctx context.Context, id uint) error
}

// CampaignProspectRepository defines operations for campaign/prospect links
type CampaignProspectRepository interface {
	Repository[models.CampaignProspect, models.CampaignProspectFilter]
	ByCampaignAndProspect(ctx context.Context, campaignID, prospectID uint) (*models.CampaignProspect, error)
	// LinkProspects links prospects to a campaign, ignoring links that already exist.
	LinkProspects(ctx context.Context, campaignID uint, prospectIDs []uint) (int64, error)
	Unlink(ctx context.Context, campaignID, prospectID uint) error
	// ListRecipients returns linked prospects in link order; eligibleOnly drops excluded ones.
	ListRecipients(ctx context.Context, campaignID uint, eligibleOnly bool) ([]*models.CampaignProspect, error)
	MarkExcluded(ctx context.Context, campaignID, prospectID uint) (bool, error)
	DeleteByCampaign(ctx context.Context, campaignID uint) error
	DeleteByProspect(ctx context.Context, prospectID uint) error
	CopyLinks(ctx context.Context, fromCampaignID, toCampaignID uint) (int64, error)
}

// QueueItemRepository defines the queue store
type QueueItemRepository interface {
	Repository[models.QueueItem, models.QueueItemFilter]
	// SaveInBatches inserts items in chunks of batchSize rows.
	SaveInBatches(ctx context.Context, items []*models.QueueItem, batchSize int) error
	DeletePendingByOwner(ctx context.Context, owner models.QueueOwner) (int64, error)
	DeleteByCampaign(ctx context.Context, campaignID uint) error
	// DeletePendingByIDs deletes the pending rows among ids and returns them; settled rows are kept.
	DeletePendingByIDs(ctx context.Context, ids []uint) ([]*models.QueueItem, error)
	// ListDue returns pending items with send_at <= now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.QueueItem, error)
	// MarkResult sets a terminal status on a pending item. It reports whether a row changed.
	MarkResult(ctx context.Context, id uint, status models.QueueItemStatus, errMsg *string, at time.Time) (bool, error)
	CountByOwnerAndStatus(ctx context.Context, owner models.QueueOwner, status models.QueueItemStatus) (int64, error)
	StatusCounts(ctx context.Context, owner models.QueueOwner) (*models.QueueStatusCounts, error)
	CountSentSince(ctx context.Context, since time.Time) (int64, error)
}
