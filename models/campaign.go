package models

import (
	"time"

	"github.com/amirphl/drip-mailer/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Campaign represents an email campaign in the database
type Campaign struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	IsActive        bool           `gorm:"not null;default:false" json:"is_active"`
	ScheduledStatus ScheduleStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_campaigns_scheduled_status" json:"scheduled_status"`
	ScheduledCount  int            `gorm:"not null;default:0" json:"scheduled_count"`
	DailyStart      *string        `gorm:"size:5" json:"daily_start,omitempty"`
	DailyEnd        *string        `gorm:"size:5" json:"daily_end,omitempty"`
	IntervalMinutes *int           `json:"interval_minutes,omitempty"`
	CreatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Followups []CampaignFollowup `gorm:"foreignKey:CampaignID" json:"followups,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.ScheduledStatus == "" {
		c.ScheduledStatus = ScheduleStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// Owner returns the queue owner reference of the campaign's primary round
func (c *Campaign) Owner() QueueOwner {
	return CampaignOwner(c.ID)
}

// GetStatusDisplayName returns the label shown on campaign lists
func (c *Campaign) GetStatusDisplayName() string {
	if c.ScheduledStatus == ScheduleStatusDraft && c.IsActive {
		return "Active"
	}
	return c.ScheduledStatus.DisplayName()
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID              *uint           `json:"id,omitempty"`
	UUID            *uuid.UUID      `json:"uuid,omitempty"`
	Name            *string         `json:"name,omitempty"`
	IsActive        *bool           `json:"is_active,omitempty"`
	ScheduledStatus *ScheduleStatus `json:"scheduled_status,omitempty"`
	CreatedAfter    *time.Time      `json:"created_after,omitempty"`
	CreatedBefore   *time.Time      `json:"created_before,omitempty"`
}
