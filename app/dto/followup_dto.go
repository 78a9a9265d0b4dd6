package dto

import "time"

// FollowupItem is a follow-up round in API responses
type FollowupItem struct {
	ID              uint       `json:"id"`
	CampaignID      uint       `json:"campaign_id"`
	Round           int        `json:"round"`
	Name            string     `json:"name"`
	ScheduledStatus string     `json:"scheduled_status"`
	ScheduledCount  int        `json:"scheduled_count"`
	DailyStart      *string    `json:"daily_start,omitempty"`
	DailyEnd        *string    `json:"daily_end,omitempty"`
	IntervalMinutes *int       `json:"interval_minutes,omitempty"`
	Locked          bool       `json:"locked"`
	Stats           QueueStats `json:"stats"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// ListFollowupsResponse lists both rounds of a campaign
type ListFollowupsResponse struct {
	CampaignID        uint           `json:"campaign_id"`
	CampaignCompleted bool           `json:"campaign_completed"`
	EligibleCount     int            `json:"eligible_count"`
	Followups         []FollowupItem `json:"followups"`
}

// ExcludeProspectResponse reports an exclusion
type ExcludeProspectResponse struct {
	Message  string `json:"message"`
	Excluded bool   `json:"excluded"`
}
