package models

import (
	"fmt"
	"time"

	"github.com/amirphl/drip-mailer/utils"
	"gorm.io/gorm"
)

const (
	FollowupRoundFirst  = 1
	FollowupRoundSecond = 2
)

// ValidFollowupRound reports whether round is one of the supported follow-up rounds
func ValidFollowupRound(round int) bool {
	return round == FollowupRoundFirst || round == FollowupRoundSecond
}

// CampaignFollowup is one follow-up round of a campaign; it mirrors the campaign's scheduling fields
type CampaignFollowup struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CampaignID      uint           `gorm:"not null;uniqueIndex:uk_campaign_followups_campaign_round" json:"campaign_id"`
	Round           int            `gorm:"not null;uniqueIndex:uk_campaign_followups_campaign_round;check:chk_campaign_followups_round,round IN (1,2)" json:"round"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	ScheduledStatus ScheduleStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_campaign_followups_scheduled_status" json:"scheduled_status"`
	ScheduledCount  int            `gorm:"not null;default:0" json:"scheduled_count"`
	DailyStart      *string        `gorm:"size:5" json:"daily_start,omitempty"`
	DailyEnd        *string        `gorm:"size:5" json:"daily_end,omitempty"`
	IntervalMinutes *int           `json:"interval_minutes,omitempty"`
	CreatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (CampaignFollowup) TableName() string {
	return "campaign_followups"
}

// BeforeCreate is called before creating a new record
func (f *CampaignFollowup) BeforeCreate(tx *gorm.DB) error {
	if f.ScheduledStatus == "" {
		f.ScheduledStatus = ScheduleStatusDraft
	}
	if f.Name == "" {
		f.Name = FollowupName(f.Round)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (f *CampaignFollowup) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	f.UpdatedAt = &now
	return nil
}

// Owner returns the queue owner reference of the round
func (f *CampaignFollowup) Owner() QueueOwner {
	return FollowupOwner(f.ID)
}

// FollowupName is the default name of a lazily created round
func FollowupName(round int) string {
	return fmt.Sprintf("Follow-Up %d", round)
}

// CampaignFollowupFilter represents filter criteria for follow-up rounds
type CampaignFollowupFilter struct {
	ID              *uint
	CampaignID      *uint
	Round           *int
	ScheduledStatus *ScheduleStatus
}
