package dto

import (
	"time"
)

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// RenameCampaignRequest represents the request to rename an existing campaign
type RenameCampaignRequest struct {
	CampaignID uint   `json:"-"`
	Name       string `json:"name" validate:"required,max=255"`
}

// ListCampaignsRequest represents filters for listing campaigns
type ListCampaignsRequest struct {
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Name     *string `json:"name,omitempty"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled completed cancelled"`
}

// CampaignItem is a campaign in API responses
type CampaignItem struct {
	ID              uint        `json:"id"`
	UUID            string      `json:"uuid"`
	Name            string      `json:"name"`
	IsActive        bool        `json:"is_active"`
	ScheduledStatus string      `json:"scheduled_status"`
	StatusLabel     string      `json:"status_label"`
	ScheduledCount  int         `json:"scheduled_count"`
	DailyStart      *string     `json:"daily_start,omitempty"`
	DailyEnd        *string     `json:"daily_end,omitempty"`
	IntervalMinutes *int        `json:"interval_minutes,omitempty"`
	ProspectCount   int64       `json:"prospect_count"`
	Stats           *QueueStats `json:"stats,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       *time.Time  `json:"updated_at,omitempty"`
}

// ListCampaignsResponse represents a page of campaigns
type ListCampaignsResponse struct {
	Items      []CampaignItem `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// Pagination describes the page returned by list endpoints
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// DeleteCampaignResponse represents the response to a campaign deletion
type DeleteCampaignResponse struct {
	Message string `json:"message"`
}

// DuplicateCampaignResponse represents the copy created from a campaign
type DuplicateCampaignResponse struct {
	Campaign      CampaignItem `json:"campaign"`
	ProspectCount int64        `json:"prospect_count"`
}

// QueueStats aggregates queue item statuses of one owner
type QueueStats struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Total   int64 `json:"total"`
}

// RoundAnalytics is the queue breakdown of one follow-up round
type RoundAnalytics struct {
	Round           int        `json:"round"`
	FollowupID      uint       `json:"followup_id"`
	ScheduledStatus string     `json:"scheduled_status"`
	Stats           QueueStats `json:"stats"`
}

// CampaignAnalyticsResponse is the queue breakdown of a campaign and its follow-ups
type CampaignAnalyticsResponse struct {
	CampaignID      uint             `json:"campaign_id"`
	ScheduledStatus string           `json:"scheduled_status"`
	Campaign        QueueStats       `json:"campaign"`
	Followups       []RoundAnalytics `json:"followups"`
}

// DashboardResponse holds the headline counters
type DashboardResponse struct {
	Campaigns          int64 `json:"campaigns"`
	ScheduledCampaigns int64 `json:"scheduled_campaigns"`
	Prospects          int64 `json:"prospects"`
	PendingEmails      int64 `json:"pending_emails"`
	SentToday          int64 `json:"sent_today"`
}
