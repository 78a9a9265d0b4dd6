package models

import (
	"time"

	"github.com/amirphl/drip-mailer/utils"
	"gorm.io/gorm"
)

// CampaignProspect links a prospect to a campaign
type CampaignProspect struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	CampaignID           uint      `gorm:"not null;uniqueIndex:uk_campaign_prospects_pair;index:idx_campaign_prospects_campaign_id" json:"campaign_id"`
	ProspectID           uint      `gorm:"not null;uniqueIndex:uk_campaign_prospects_pair" json:"prospect_id"`
	ExcludedFromFollowup bool      `gorm:"not null;default:false" json:"excluded_from_followup"`
	CreatedAt            time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Prospect *Prospect `gorm:"foreignKey:ProspectID;references:ID" json:"prospect,omitempty"`
}

// TableName returns the table name for the model
func (CampaignProspect) TableName() string {
	return "campaign_prospects"
}

// BeforeCreate is called before creating a new record
func (cp *CampaignProspect) BeforeCreate(tx *gorm.DB) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = utils.UTCNow()
	}
	return nil
}

// CampaignProspectFilter represents filter criteria for campaign prospect links
type CampaignProspectFilter struct {
	ID                   *uint
	CampaignID           *uint
	ProspectID           *uint
	ExcludedFromFollowup *bool
}
