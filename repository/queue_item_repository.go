package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/drip-mailer/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueueItemRepositoryImpl implements QueueItemRepository
type QueueItemRepositoryImpl struct {
	*BaseRepository[models.QueueItem, models.QueueItemFilter]
}

func NewQueueItemRepository(db *gorm.DB) QueueItemRepository {
	return &QueueItemRepositoryImpl{
		BaseRepository: NewBaseRepository[models.QueueItem, models.QueueItemFilter](db),
	}
}

// ownerScope restricts a query to one round: campaign rows exclude follow-up rows
func ownerScope(db *gorm.DB, owner models.QueueOwner) *gorm.DB {
	if owner.Kind == models.OwnerKindFollowup {
		return db.Where("followup_id = ?", owner.ID)
	}
	return db.Where("campaign_id = ? AND followup_id IS NULL", owner.ID)
}

func (r *QueueItemRepositoryImpl) SaveInBatches(ctx context.Context, items []*models.QueueItem, batchSize int) error {
	return r.saveInBatches(ctx, items, batchSize)
}

func (r *QueueItemRepositoryImpl) DeletePendingByOwner(ctx context.Context, owner models.QueueOwner) (int64, error) {
	db := r.getDB(ctx)

	res := ownerScope(db, owner).
		Where("status = ?", models.QueueItemStatusPending).
		Delete(&models.QueueItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete pending queue items of %s: %w", owner, res.Error)
	}

	return res.RowsAffected, nil
}

func (r *QueueItemRepositoryImpl) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)

	if err := db.Where("campaign_id = ?", campaignID).Delete(&models.QueueItem{}).Error; err != nil {
		return fmt.Errorf("failed to delete queue items of campaign %d: %w", campaignID, err)
	}

	return nil
}

// DeletePendingByIDs deletes the pending rows among ids and returns them
func (r *QueueItemRepositoryImpl) DeletePendingByIDs(ctx context.Context, ids []uint) ([]*models.QueueItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)

	var deleted []*models.QueueItem
	err := db.Clauses(clause.Returning{}).
		Where("id = ANY(?) AND status = ?", toInt64Array(ids), models.QueueItemStatusPending).
		Delete(&deleted).Error
	if err != nil {
		return nil, fmt.Errorf("failed to delete queue items: %w", err)
	}

	return deleted, nil
}

func (r *QueueItemRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.QueueItem, error) {
	status := models.QueueItemStatusPending
	filter := models.QueueItemFilter{Status: &status, DueBefore: &now}
	items, err := r.ByFilter(ctx, filter, "send_at ASC, id ASC", limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list due queue items: %w", err)
	}
	return items, nil
}

func (r *QueueItemRepositoryImpl) MarkResult(ctx context.Context, id uint, status models.QueueItemStatus, errMsg *string, at time.Time) (bool, error) {
	db := r.getDB(ctx)

	updates := map[string]any{
		"status":        status,
		"error_message": errMsg,
		"updated_at":    at,
	}
	if status == models.QueueItemStatusSent {
		updates["sent_at"] = at
	}

	res := db.Model(&models.QueueItem{}).
		Where("id = ? AND status = ?", id, models.QueueItemStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark queue item %d %s: %w", id, status, res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (r *QueueItemRepositoryImpl) CountByOwnerAndStatus(ctx context.Context, owner models.QueueOwner, status models.QueueItemStatus) (int64, error) {
	filter := models.QueueItemFilter{Owner: &owner, Status: &status}
	return r.Count(ctx, filter)
}

func (r *QueueItemRepositoryImpl) StatusCounts(ctx context.Context, owner models.QueueOwner) (*models.QueueStatusCounts, error) {
	db := r.getDB(ctx)

	var rows []struct {
		Status models.QueueItemStatus
		Total  int64
	}
	err := ownerScope(db.Model(&models.QueueItem{}), owner).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items of %s: %w", owner, err)
	}

	counts := &models.QueueStatusCounts{}
	for _, row := range rows {
		switch row.Status {
		case models.QueueItemStatusPending:
			counts.Pending = row.Total
		case models.QueueItemStatusSent:
			counts.Sent = row.Total
		case models.QueueItemStatusFailed:
			counts.Failed = row.Total
		}
		counts.Total += row.Total
	}

	return counts, nil
}

func (r *QueueItemRepositoryImpl) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.QueueItem{}).
		Where("status = ? AND sent_at >= ?", models.QueueItemStatusSent, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sent queue items: %w", err)
	}

	return count, nil
}

func (r *QueueItemRepositoryImpl) applyFilter(db *gorm.DB, f models.QueueItemFilter) *gorm.DB {
	if len(f.IDs) > 0 {
		db = db.Where("id = ANY(?)", f.IDs)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.Owner != nil {
		db = ownerScope(db, *f.Owner)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.ToEmail != nil {
		db = db.Where("to_email = ?", models.NormalizeEmail(*f.ToEmail))
	}
	if f.Variant != nil {
		db = db.Where("variant = ?", *f.Variant)
	}
	if f.DueBefore != nil {
		db = db.Where("send_at <= ?", *f.DueBefore)
	}
	return db
}

func (r *QueueItemRepositoryImpl) ByFilter(ctx context.Context, filter models.QueueItemFilter, orderBy string, limit, offset int) ([]*models.QueueItem, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.QueueItem{}), filter), orderBy, limit, offset)

	var rows []*models.QueueItem
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *QueueItemRepositoryImpl) Count(ctx context.Context, filter models.QueueItemFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.QueueItem{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *QueueItemRepositoryImpl) Exists(ctx context.Context, filter models.QueueItemFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func toInt64Array(ids []uint) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}
