package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements CampaignRepository
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by its UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaign models.Campaign
	err := db.Where("uuid = ?", id).Last(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign by uuid: %w", err)
	}

	return &campaign, nil
}

// Rename changes the campaign name
func (r *CampaignRepositoryImpl) Rename(ctx context.Context, id uint, name string) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"name":       name,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to rename campaign: %w", err)
	}

	return nil
}

// Delete removes the campaign row
func (r *CampaignRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db := r.getDB(ctx)

	if err := db.Delete(&models.Campaign{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	return nil
}

// MarkScheduled flips the campaign to scheduled and records what was scheduled
func (r *CampaignRepositoryImpl) MarkScheduled(ctx context.Context, id uint, update SchedulingUpdate) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"scheduled_status": models.ScheduleStatusScheduled,
			"scheduled_count":  update.ScheduledCount,
			"is_active":        true,
			"daily_start":      update.DailyStart,
			"daily_end":        update.DailyEnd,
			"interval_minutes": update.IntervalMinutes,
			"updated_at":       utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark campaign scheduled: %w", err)
	}

	return nil
}

// TransitionStatus moves the campaign between statuses with a conditional update
func (r *CampaignRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from, to models.ScheduleStatus) (bool, error) {
	db := r.getDB(ctx)

	updates := map[string]any{
		"scheduled_status": to,
		"updated_at":       utils.UTCNow(),
	}
	if to == models.ScheduleStatusCancelled {
		updates["is_active"] = false
	}

	res := db.Model(&models.Campaign{}).
		Where("id = ? AND scheduled_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update campaign status: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		db = db.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.ScheduledStatus != nil {
		db = db.Where("scheduled_status = ?", *filter.ScheduledStatus)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}
	return db
}

// ByFilter retrieves campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.Campaign{}), filter), orderBy, limit, offset)

	var campaigns []*models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaigns by filter: %w", err)
	}

	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Campaign{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	return count, nil
}

// Exists checks if any campaign matches the filter
func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
