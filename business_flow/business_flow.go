// Package businessflow contains the core business logic: send-time scheduling, the queue lifecycle and follow-up gating
package businessflow

import (
	"context"

	"github.com/amirphl/drip-mailer/app/dto"
	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/repository"
	"github.com/sirupsen/logrus"
)

const RequestIDKey = "X-Request-ID"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ClientMetadata holds caller information attached to the logs of mutating operations
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// LogFields returns the metadata as logrus fields; a nil receiver yields an empty set
func (cm *ClientMetadata) LogFields() logrus.Fields {
	if cm == nil {
		return logrus.Fields{}
	}
	return logrus.Fields{
		"ip":         cm.IPAddress,
		"user_agent": cm.UserAgent,
		"request_id": cm.RequestID,
	}
}

func getCampaign(ctx context.Context, repo repository.CampaignRepository, id uint) (*models.Campaign, error) {
	campaign, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

// normalizePage clamps list paging to sane bounds
func normalizePage(page, pageSize int) (int, int) {
	page = max(1, page)
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func newPagination(total int64, page, pageSize int) dto.Pagination {
	return dto.Pagination{
		Total:      total,
		Page:       page,
		Limit:      pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

// ToQueueStats converts repository counts to the API shape
func ToQueueStats(c *models.QueueStatusCounts) dto.QueueStats {
	if c == nil {
		return dto.QueueStats{}
	}
	return dto.QueueStats{
		Pending: c.Pending,
		Sent:    c.Sent,
		Failed:  c.Failed,
		Total:   c.Total,
	}
}

// ToCampaignItem converts a campaign model to its API representation
func ToCampaignItem(c *models.Campaign) dto.CampaignItem {
	return dto.CampaignItem{
		ID:              c.ID,
		UUID:            c.UUID.String(),
		Name:            c.Name,
		IsActive:        c.IsActive,
		ScheduledStatus: c.ScheduledStatus.String(),
		StatusLabel:     c.GetStatusDisplayName(),
		ScheduledCount:  c.ScheduledCount,
		DailyStart:      c.DailyStart,
		DailyEnd:        c.DailyEnd,
		IntervalMinutes: c.IntervalMinutes,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// ToFollowupItem converts a follow-up round to its API representation
func ToFollowupItem(f *models.CampaignFollowup, locked bool, stats dto.QueueStats) dto.FollowupItem {
	return dto.FollowupItem{
		ID:              f.ID,
		CampaignID:      f.CampaignID,
		Round:           f.Round,
		Name:            f.Name,
		ScheduledStatus: f.ScheduledStatus.String(),
		ScheduledCount:  f.ScheduledCount,
		DailyStart:      f.DailyStart,
		DailyEnd:        f.DailyEnd,
		IntervalMinutes: f.IntervalMinutes,
		Locked:          locked,
		Stats:           stats,
		UpdatedAt:       f.UpdatedAt,
	}
}

// ToProspectItem converts a prospect, and its campaign link when given, to its API representation
func ToProspectItem(p *models.Prospect, link *models.CampaignProspect) dto.ProspectItem {
	item := dto.ProspectItem{
		ID:           p.ID,
		Email:        p.Email,
		FirstName:    p.FirstName,
		BusinessName: p.BusinessName,
		Company:      p.Company,
		City:         p.City,
		State:        p.State,
		Phone:        p.Phone,
		OverallScore: p.OverallScore,
		IsSafeToSend: p.IsSafeToSend,
		CreatedAt:    p.CreatedAt,
	}
	if link != nil {
		excluded := link.ExcludedFromFollowup
		item.ExcludedFromFollowup = &excluded
	}
	return item
}

// ToEmailItem converts a queue item to its API representation
func ToEmailItem(q *models.QueueItem) dto.EmailItem {
	return dto.EmailItem{
		ID:           q.ID,
		CampaignID:   q.CampaignID,
		FollowupID:   q.FollowupID,
		ToEmail:      q.ToEmail,
		Subject:      q.Subject,
		Body:         q.Body,
		Variant:      q.Variant,
		SendAt:       q.SendAt,
		Status:       string(q.Status),
		ErrorMessage: q.ErrorMessage,
		SentAt:       q.SentAt,
	}
}
