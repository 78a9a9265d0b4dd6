package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/drip-mailer/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProspectRepositoryImpl implements ProspectRepository
type ProspectRepositoryImpl struct {
	*BaseRepository[models.Prospect, models.ProspectFilter]
}

func NewProspectRepository(db *gorm.DB) ProspectRepository {
	return &ProspectRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Prospect, models.ProspectFilter](db),
	}
}

func (r *ProspectRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Prospect, error) {
	db := r.getDB(ctx)

	var row models.Prospect
	err := db.Where("email = ?", models.NormalizeEmail(email)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find prospect by email: %w", err)
	}

	return &row, nil
}

func (r *ProspectRepositoryImpl) ByEmails(ctx context.Context, emails []string) ([]*models.Prospect, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)

	var rows []*models.Prospect
	if err := db.Where("email IN ?", emails).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find prospects by email: %w", err)
	}

	return rows, nil
}

// upsertColumns are refreshed from the import unless the import left them empty
var upsertColumns = []string{"first_name", "business_name", "company", "city", "state", "phone", "overall_score", "is_safe_to_send"}

func (r *ProspectRepositoryImpl) UpsertByEmail(ctx context.Context, prospects []*models.Prospect) error {
	if len(prospects) == 0 {
		return nil
	}

	set := make(clause.Set, 0, len(upsertColumns)+1)
	for _, col := range upsertColumns {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr(fmt.Sprintf("COALESCE(EXCLUDED.%s, prospects.%s)", col, col)),
		})
	}
	set = append(set, clause.Assignment{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("CURRENT_TIMESTAMP AT TIME ZONE 'UTC'")})

	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: set,
		}).CreateInBatches(prospects, 500).Error
		if err != nil {
			return fmt.Errorf("failed to upsert prospects: %w", err)
		}
		return nil
	})
}

func (r *ProspectRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db := r.getDB(ctx)

	if err := db.Delete(&models.Prospect{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete prospect: %w", err)
	}

	return nil
}

func (r *ProspectRepositoryImpl) applyFilter(db *gorm.DB, f models.ProspectFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("prospects.id = ?", *f.ID)
	}
	if f.Email != nil {
		db = db.Where("prospects.email = ?", models.NormalizeEmail(*f.Email))
	}
	if f.Search != nil && *f.Search != "" {
		like := "%" + *f.Search + "%"
		db = db.Where("prospects.email ILIKE ? OR prospects.first_name ILIKE ? OR prospects.company ILIKE ? OR prospects.business_name ILIKE ?", like, like, like, like)
	}
	if f.CampaignID != nil {
		db = db.Joins("JOIN campaign_prospects ON campaign_prospects.prospect_id = prospects.id").
			Where("campaign_prospects.campaign_id = ?", *f.CampaignID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("prospects.created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("prospects.created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ProspectRepositoryImpl) ByFilter(ctx context.Context, filter models.ProspectFilter, orderBy string, limit, offset int) ([]*models.Prospect, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.Prospect{}), filter), orderBy, limit, offset)

	var rows []*models.Prospect
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ProspectRepositoryImpl) Count(ctx context.Context, filter models.ProspectFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Prospect{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ProspectRepositoryImpl) Exists(ctx context.Context, filter models.ProspectFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
