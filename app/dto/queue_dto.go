package dto

import "time"

// ListEmailsRequest represents filters for listing queued emails
type ListEmailsRequest struct {
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	CampaignID *uint   `json:"campaign_id,omitempty"`
	FollowupID *uint   `json:"followup_id,omitempty"`
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=pending sent failed"`
	ToEmail    *string `json:"to_email,omitempty"`
}

// EmailItem is a queued email in API responses
type EmailItem struct {
	ID           uint       `json:"id"`
	CampaignID   uint       `json:"campaign_id"`
	FollowupID   *uint      `json:"followup_id,omitempty"`
	ToEmail      string     `json:"to_email"`
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	Variant      string     `json:"variant"`
	SendAt       time.Time  `json:"send_at"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

// ListEmailsResponse represents a page of queued emails
type ListEmailsResponse struct {
	Items      []EmailItem `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// DeleteEmailsRequest removes pending emails by id
type DeleteEmailsRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,max=1000"`
}

// DeleteEmailsResponse reports how many pending emails were removed
// and how many owners completed because nothing was left to send
type DeleteEmailsResponse struct {
	Deleted   int64 `json:"deleted"`
	Completed int   `json:"completed"`
}
