package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/drip-mailer/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignProspectRepositoryImpl implements CampaignProspectRepository
type CampaignProspectRepositoryImpl struct {
	*BaseRepository[models.CampaignProspect, models.CampaignProspectFilter]
}

func NewCampaignProspectRepository(db *gorm.DB) CampaignProspectRepository {
	return &CampaignProspectRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignProspect, models.CampaignProspectFilter](db),
	}
}

func (r *CampaignProspectRepositoryImpl) ByCampaignAndProspect(ctx context.Context, campaignID, prospectID uint) (*models.CampaignProspect, error) {
	db := r.getDB(ctx)

	var row models.CampaignProspect
	err := db.Where("campaign_id = ? AND prospect_id = ?", campaignID, prospectID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign prospect: %w", err)
	}

	return &row, nil
}

func (r *CampaignProspectRepositoryImpl) LinkProspects(ctx context.Context, campaignID uint, prospectIDs []uint) (int64, error) {
	if len(prospectIDs) == 0 {
		return 0, nil
	}

	rows := make([]*models.CampaignProspect, 0, len(prospectIDs))
	for _, id := range prospectIDs {
		rows = append(rows, &models.CampaignProspect{CampaignID: campaignID, ProspectID: id})
	}

	var linked int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "prospect_id"}},
			DoNothing: true,
		}).CreateInBatches(rows, 500)
		if res.Error != nil {
			return fmt.Errorf("failed to link prospects: %w", res.Error)
		}
		linked = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	return linked, nil
}

func (r *CampaignProspectRepositoryImpl) Unlink(ctx context.Context, campaignID, prospectID uint) error {
	db := r.getDB(ctx)

	err := db.Where("campaign_id = ? AND prospect_id = ?", campaignID, prospectID).
		Delete(&models.CampaignProspect{}).Error
	if err != nil {
		return fmt.Errorf("failed to unlink prospect: %w", err)
	}

	return nil
}

func (r *CampaignProspectRepositoryImpl) ListRecipients(ctx context.Context, campaignID uint, eligibleOnly bool) ([]*models.CampaignProspect, error) {
	db := r.getDB(ctx)

	query := db.Preload("Prospect").Where("campaign_id = ?", campaignID)
	if eligibleOnly {
		query = query.Where("excluded_from_followup = ?", false)
	}

	var rows []*models.CampaignProspect
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaign recipients: %w", err)
	}

	return rows, nil
}

// MarkExcluded sets the one-way exclusion flag; it reports false when the link was already excluded
func (r *CampaignProspectRepositoryImpl) MarkExcluded(ctx context.Context, campaignID, prospectID uint) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.CampaignProspect{}).
		Where("campaign_id = ? AND prospect_id = ? AND excluded_from_followup = ?", campaignID, prospectID, false).
		Update("excluded_from_followup", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to exclude prospect: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (r *CampaignProspectRepositoryImpl) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)

	if err := db.Where("campaign_id = ?", campaignID).Delete(&models.CampaignProspect{}).Error; err != nil {
		return fmt.Errorf("failed to delete campaign prospects: %w", err)
	}

	return nil
}

func (r *CampaignProspectRepositoryImpl) DeleteByProspect(ctx context.Context, prospectID uint) error {
	db := r.getDB(ctx)

	if err := db.Where("prospect_id = ?", prospectID).Delete(&models.CampaignProspect{}).Error; err != nil {
		return fmt.Errorf("failed to delete prospect links: %w", err)
	}

	return nil
}

// CopyLinks duplicates every link of one campaign onto another; exclusion flags start fresh
func (r *CampaignProspectRepositoryImpl) CopyLinks(ctx context.Context, fromCampaignID, toCampaignID uint) (int64, error) {
	db := r.getDB(ctx)

	res := db.Exec(`
		INSERT INTO campaign_prospects (campaign_id, prospect_id, excluded_from_followup, created_at)
		SELECT ?, prospect_id, false, CURRENT_TIMESTAMP AT TIME ZONE 'UTC'
		FROM campaign_prospects
		WHERE campaign_id = ?
		ORDER BY id ASC
		ON CONFLICT (campaign_id, prospect_id) DO NOTHING`, toCampaignID, fromCampaignID)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to copy campaign prospects: %w", res.Error)
	}

	return res.RowsAffected, nil
}

func (r *CampaignProspectRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignProspectFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.ProspectID != nil {
		db = db.Where("prospect_id = ?", *f.ProspectID)
	}
	if f.ExcludedFromFollowup != nil {
		db = db.Where("excluded_from_followup = ?", *f.ExcludedFromFollowup)
	}
	return db
}

func (r *CampaignProspectRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignProspectFilter, orderBy string, limit, offset int) ([]*models.CampaignProspect, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.CampaignProspect{}).Preload("Prospect"), filter), orderBy, limit, offset)

	var rows []*models.CampaignProspect
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignProspectRepositoryImpl) Count(ctx context.Context, filter models.CampaignProspectFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.CampaignProspect{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignProspectRepositoryImpl) Exists(ctx context.Context, filter models.CampaignProspectFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
