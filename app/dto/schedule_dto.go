package dto

import "time"

// VariantInput is one message alternative submitted by the composer
type VariantInput struct {
	ID      string `json:"id" validate:"omitempty,oneof=A B C"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// ScheduleRequest represents the request to schedule a campaign or a follow-up round
type ScheduleRequest struct {
	CampaignID      uint           `json:"-"`
	Round           int            `json:"-"`
	Variants        []VariantInput `json:"variants" validate:"required,min=1,max=3,dive"`
	DailyStart      string         `json:"daily_start" validate:"required"`
	DailyEnd        string         `json:"daily_end" validate:"required"`
	IntervalMinutes int            `json:"interval_minutes"`
}

// ScheduleResponse reports what was queued
type ScheduleResponse struct {
	Scheduled    int        `json:"scheduled"`
	FirstSendAt  *time.Time `json:"first_send_at,omitempty"`
	LastSendAt   *time.Time `json:"last_send_at,omitempty"`
	VariantsUsed int        `json:"variants_used"`
	Replaced     int64      `json:"replaced"`
}

// CancelResponse reports a cancelled owner
type CancelResponse struct {
	Message string `json:"message"`
	Removed int64  `json:"removed"`
}

// DispatchResponse reports one dispatch tick
type DispatchResponse struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}
