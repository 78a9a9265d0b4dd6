package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCampaign creates a draft campaign
func (tf *TestFixtures) CreateTestCampaign(name string) (*models.Campaign, error) {
	campaign := &models.Campaign{
		Name:            name,
		ScheduledStatus: models.ScheduleStatusDraft,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestProspect creates a prospect with a random address
func (tf *TestFixtures) CreateTestProspect(firstName string) (*models.Prospect, error) {
	prospect := &models.Prospect{
		Email:        fmt.Sprintf("%s.%d@example.com", firstName, rand.Intn(100000000)),
		FirstName:    utils.ToPtr(firstName),
		BusinessName: utils.ToPtr("Acme"),
		City:         utils.ToPtr("Pune"),
	}
	if err := tf.DB.DB.Create(prospect).Error; err != nil {
		return nil, fmt.Errorf("failed to create test prospect: %w", err)
	}
	return prospect, nil
}

// CreateLinkedProspects creates n prospects and links them to the campaign in order
func (tf *TestFixtures) CreateLinkedProspects(campaignID uint, n int) ([]*models.Prospect, error) {
	prospects := make([]*models.Prospect, 0, n)
	for i := 0; i < n; i++ {
		p, err := tf.CreateTestProspect(fmt.Sprintf("prospect%d", i+1))
		if err != nil {
			return nil, err
		}
		link := &models.CampaignProspect{CampaignID: campaignID, ProspectID: p.ID}
		if err := tf.DB.DB.Create(link).Error; err != nil {
			return nil, fmt.Errorf("failed to link prospect %d: %w", p.ID, err)
		}
		prospects = append(prospects, p)
	}
	return prospects, nil
}

// CreateTestQueueItem creates a queue item for the owner due at sendAt
func (tf *TestFixtures) CreateTestQueueItem(campaignID uint, followupID *uint, to string, status models.QueueItemStatus, sendAt time.Time) (*models.QueueItem, error) {
	item := &models.QueueItem{
		CampaignID: campaignID,
		FollowupID: followupID,
		ToEmail:    to,
		Subject:    "Hello",
		Body:       "Body",
		Variant:    "A",
		SendAt:     sendAt,
		Status:     status,
	}
	if err := tf.DB.DB.Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to create test queue item: %w", err)
	}
	return item, nil
}
