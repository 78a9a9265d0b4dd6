package models

import (
	"strings"
	"time"

	"github.com/amirphl/drip-mailer/utils"
	"gorm.io/gorm"
)

// Prospect is a contact shared across campaigns, unique by email
type Prospect struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:255;not null;uniqueIndex:uk_prospects_email" json:"email"`
	FirstName    *string    `gorm:"size:255" json:"first_name,omitempty"`
	BusinessName *string    `gorm:"size:255" json:"business_name,omitempty"`
	Company      *string    `gorm:"size:255" json:"company,omitempty"`
	City         *string    `gorm:"size:255" json:"city,omitempty"`
	State        *string    `gorm:"size:255" json:"state,omitempty"`
	Phone        *string    `gorm:"size:50" json:"phone,omitempty"`
	OverallScore *int       `json:"overall_score,omitempty"`
	IsSafeToSend *bool      `json:"is_safe_to_send,omitempty"`
	CreatedAt    time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Prospect) TableName() string {
	return "prospects"
}

// BeforeCreate is called before creating a new record
func (p *Prospect) BeforeCreate(tx *gorm.DB) error {
	p.Email = NormalizeEmail(p.Email)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (p *Prospect) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	p.UpdatedAt = &now
	return nil
}

// TemplateFields returns the placeholder values available to message templates
func (p *Prospect) TemplateFields() map[string]string {
	return map[string]string{
		"first_name":    deref(p.FirstName),
		"business_name": deref(p.BusinessName),
		"company":       deref(p.Company),
		"city":          deref(p.City),
		"state":         deref(p.State),
		"phone":         deref(p.Phone),
		"email":         p.Email,
	}
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ProspectFilter represents filter criteria for prospects
type ProspectFilter struct {
	ID            *uint
	Email         *string
	Search        *string
	CampaignID    *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
