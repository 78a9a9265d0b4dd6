package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/drip-mailer/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// QueueItemStatus enumerates the delivery status of a queued email
type QueueItemStatus string

const (
	QueueItemStatusPending QueueItemStatus = "pending"
	QueueItemStatusSent    QueueItemStatus = "sent"
	QueueItemStatusFailed  QueueItemStatus = "failed"
)

// Valid checks if the status is valid
func (s QueueItemStatus) Valid() bool {
	switch s {
	case QueueItemStatusPending, QueueItemStatusSent, QueueItemStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the item left the pending state
func (s QueueItemStatus) IsTerminal() bool {
	return s == QueueItemStatusSent || s == QueueItemStatusFailed
}

// Scan implements the sql.Scanner interface for QueueItemStatus
func (s *QueueItemStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = QueueItemStatus(v)
	case []byte:
		*s = QueueItemStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into QueueItemStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for QueueItemStatus
func (s QueueItemStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid QueueItemStatus: %s", s)
	}
	return string(s), nil
}

// OwnerKind tells which entity a queue item is scheduled against
type OwnerKind string

const (
	OwnerKindCampaign OwnerKind = "campaign"
	OwnerKindFollowup OwnerKind = "followup"
)

// QueueOwner identifies a campaign or a follow-up round
type QueueOwner struct {
	Kind OwnerKind `json:"kind"`
	ID   uint      `json:"id"`
}

func CampaignOwner(id uint) QueueOwner { return QueueOwner{Kind: OwnerKindCampaign, ID: id} }
func FollowupOwner(id uint) QueueOwner { return QueueOwner{Kind: OwnerKindFollowup, ID: id} }

func (o QueueOwner) String() string {
	return fmt.Sprintf("%s:%d", o.Kind, o.ID)
}

// QueueItem is one rendered email waiting for (or done with) delivery.
// FollowupID is set for follow-up rounds; CampaignID is always set.
type QueueItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CampaignID   uint            `gorm:"not null;index:idx_queue_items_campaign_id" json:"campaign_id"`
	FollowupID   *uint           `gorm:"index:idx_queue_items_followup_id" json:"followup_id,omitempty"`
	ToEmail      string          `gorm:"size:255;not null" json:"to_email"`
	Subject      string          `gorm:"type:text;not null" json:"subject"`
	Body         string          `gorm:"type:text;not null" json:"body"`
	Variant      string          `gorm:"size:1;not null" json:"variant"`
	SendAt       time.Time       `gorm:"not null;index:idx_queue_items_status_send_at,priority:2" json:"send_at"`
	Status       QueueItemStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_queue_items_status_send_at,priority:1" json:"status"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	CreatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (QueueItem) TableName() string {
	return "queue_items"
}

// BeforeCreate is called before creating a new record
func (q *QueueItem) BeforeCreate(tx *gorm.DB) error {
	if q.Status == "" {
		q.Status = QueueItemStatusPending
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Owner returns the campaign or follow-up the item is scheduled against
func (q *QueueItem) Owner() QueueOwner {
	if q.FollowupID != nil {
		return FollowupOwner(*q.FollowupID)
	}
	return CampaignOwner(q.CampaignID)
}

// QueueItemFilter represents filter criteria for queue items.
// Owner narrows to a single round: a campaign owner excludes follow-up rows.
type QueueItemFilter struct {
	IDs        pq.Int64Array
	CampaignID *uint
	Owner      *QueueOwner
	Status     *QueueItemStatus
	ToEmail    *string
	Variant    *string
	DueBefore  *time.Time
}

// QueueStatusCounts aggregates item statuses of one owner
type QueueStatusCounts struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Total   int64 `json:"total"`
}
