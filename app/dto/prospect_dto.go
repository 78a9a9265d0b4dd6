package dto

import "time"

// ProspectInput is one imported contact row
type ProspectInput struct {
	Email        string  `json:"email" validate:"required,email"`
	FirstName    *string `json:"first_name,omitempty"`
	BusinessName *string `json:"business_name,omitempty"`
	Company      *string `json:"company,omitempty"`
	City         *string `json:"city,omitempty"`
	State        *string `json:"state,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	OverallScore *int    `json:"overall_score,omitempty"`
	IsSafeToSend *bool   `json:"is_safe_to_send,omitempty"`
}

// ImportProspectsRequest upserts prospects by email and optionally links them to a campaign
type ImportProspectsRequest struct {
	CampaignID *uint           `json:"campaign_id,omitempty"`
	Prospects  []ProspectInput `json:"prospects" validate:"required,min=1,max=10000,dive"`
}

// ImportProspectsResponse reports an import
type ImportProspectsResponse struct {
	Imported int   `json:"imported"`
	Skipped  int   `json:"skipped"`
	Linked   int64 `json:"linked"`
}

// ListProspectsRequest represents filters for listing prospects
type ListProspectsRequest struct {
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	Search     *string `json:"search,omitempty"`
	CampaignID *uint   `json:"campaign_id,omitempty"`
}

// ProspectItem is a prospect in API responses
type ProspectItem struct {
	ID                   uint      `json:"id"`
	Email                string    `json:"email"`
	FirstName            *string   `json:"first_name,omitempty"`
	BusinessName         *string   `json:"business_name,omitempty"`
	Company              *string   `json:"company,omitempty"`
	City                 *string   `json:"city,omitempty"`
	State                *string   `json:"state,omitempty"`
	Phone                *string   `json:"phone,omitempty"`
	OverallScore         *int      `json:"overall_score,omitempty"`
	IsSafeToSend         *bool     `json:"is_safe_to_send,omitempty"`
	ExcludedFromFollowup *bool     `json:"excluded_from_followup,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// ListProspectsResponse represents a page of prospects
type ListProspectsResponse struct {
	Items      []ProspectItem `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// LinkProspectsRequest attaches existing prospects to a campaign
type LinkProspectsRequest struct {
	CampaignID  uint   `json:"-"`
	ProspectIDs []uint `json:"prospect_ids" validate:"required,min=1,max=10000"`
}

// LinkProspectsResponse reports how many new links were created
type LinkProspectsResponse struct {
	Linked int64 `json:"linked"`
}

// DeleteProspectResponse represents the response to a prospect deletion
type DeleteProspectResponse struct {
	Message string `json:"message"`
}
