package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignFollowupRepositoryImpl implements CampaignFollowupRepository
type CampaignFollowupRepositoryImpl struct {
	*BaseRepository[models.CampaignFollowup, models.CampaignFollowupFilter]
}

func NewCampaignFollowupRepository(db *gorm.DB) CampaignFollowupRepository {
	return &CampaignFollowupRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignFollowup, models.CampaignFollowupFilter](db),
	}
}

func (r *CampaignFollowupRepositoryImpl) ByCampaignAndRound(ctx context.Context, campaignID uint, round int) (*models.CampaignFollowup, error) {
	db := r.getDB(ctx)

	var row models.CampaignFollowup
	err := db.Where("campaign_id = ? AND round = ?", campaignID, round).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find follow-up round: %w", err)
	}

	return &row, nil
}

func (r *CampaignFollowupRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignFollowup, error) {
	filter := models.CampaignFollowupFilter{CampaignID: &campaignID}
	return r.ByFilter(ctx, filter, "round ASC", 0, 0)
}

// FirstOrCreate inserts a draft round unless one exists, then reads it back
func (r *CampaignFollowupRepositoryImpl) FirstOrCreate(ctx context.Context, campaignID uint, round int) (*models.CampaignFollowup, error) {
	row := &models.CampaignFollowup{
		CampaignID: campaignID,
		Round:      round,
		Name:       models.FollowupName(round),
	}

	err := r.write(ctx, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "round"}},
			DoNothing: true,
		}).Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create follow-up round: %w", err)
	}

	return r.ByCampaignAndRound(ctx, campaignID, round)
}

func (r *CampaignFollowupRepositoryImpl) MarkScheduled(ctx context.Context, id uint, update SchedulingUpdate) error {
	db := r.getDB(ctx)

	err := db.Model(&models.CampaignFollowup{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"scheduled_status": models.ScheduleStatusScheduled,
			"scheduled_count":  update.ScheduledCount,
			"daily_start":      update.DailyStart,
			"daily_end":        update.DailyEnd,
			"interval_minutes": update.IntervalMinutes,
			"updated_at":       utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark follow-up scheduled: %w", err)
	}

	return nil
}

func (r *CampaignFollowupRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from, to models.ScheduleStatus) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.CampaignFollowup{}).
		Where("id = ? AND scheduled_status = ?", id, from).
		Updates(map[string]any{
			"scheduled_status": to,
			"updated_at":       utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update follow-up status: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (r *CampaignFollowupRepositoryImpl) ResetToDraft(ctx context.Context, id uint) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.CampaignFollowup{}).
		Where("id = ? AND scheduled_status IN ?", id, []models.ScheduleStatus{
			models.ScheduleStatusCompleted,
			models.ScheduleStatusCancelled,
		}).
		Updates(map[string]any{
			"scheduled_status": models.ScheduleStatusDraft,
			"scheduled_count":  0,
			"updated_at":       utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reset follow-up: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (r *CampaignFollowupRepositoryImpl) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)

	if err := db.Where("campaign_id = ?", campaignID).Delete(&models.CampaignFollowup{}).Error; err != nil {
		return fmt.Errorf("failed to delete follow-ups: %w", err)
	}

	return nil
}

func (r *CampaignFollowupRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignFollowupFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.Round != nil {
		db = db.Where("round = ?", *f.Round)
	}
	if f.ScheduledStatus != nil {
		db = db.Where("scheduled_status = ?", *f.ScheduledStatus)
	}
	return db
}

func (r *CampaignFollowupRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFollowupFilter, orderBy string, limit, offset int) ([]*models.CampaignFollowup, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.CampaignFollowup{}), filter), orderBy, limit, offset)

	var rows []*models.CampaignFollowup
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignFollowupRepositoryImpl) Count(ctx context.Context, filter models.CampaignFollowupFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.CampaignFollowup{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignFollowupRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFollowupFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
