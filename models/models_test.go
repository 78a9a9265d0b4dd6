package models_test

import (
	"testing"

	"github.com/amirphl/drip-mailer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleStatus(t *testing.T) {
	all := []models.ScheduleStatus{
		models.ScheduleStatusDraft,
		models.ScheduleStatusScheduled,
		models.ScheduleStatusCompleted,
		models.ScheduleStatusCancelled,
	}

	t.Run("Valid", func(t *testing.T) {
		for _, s := range all {
			assert.True(t, s.Valid(), s)
		}
		assert.False(t, models.ScheduleStatus("running").Valid())
		assert.False(t, models.ScheduleStatus("").Valid())
	})

	t.Run("IsTerminal", func(t *testing.T) {
		assert.False(t, models.ScheduleStatusDraft.IsTerminal())
		assert.False(t, models.ScheduleStatusScheduled.IsTerminal())
		assert.True(t, models.ScheduleStatusCompleted.IsTerminal())
		assert.True(t, models.ScheduleStatusCancelled.IsTerminal())
	})

	t.Run("CanTransitionTo", func(t *testing.T) {
		allowed := map[models.ScheduleStatus][]models.ScheduleStatus{
			models.ScheduleStatusDraft:     {models.ScheduleStatusScheduled},
			models.ScheduleStatusScheduled: {models.ScheduleStatusScheduled, models.ScheduleStatusCompleted, models.ScheduleStatusCancelled},
			models.ScheduleStatusCompleted: {models.ScheduleStatusScheduled, models.ScheduleStatusDraft},
			models.ScheduleStatusCancelled: {models.ScheduleStatusScheduled, models.ScheduleStatusDraft},
		}

		for _, from := range all {
			for _, to := range all {
				want := false
				for _, ok := range allowed[from] {
					if ok == to {
						want = true
					}
				}
				assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
		assert.False(t, models.ScheduleStatusScheduled.CanTransitionTo("paused"))
	})

	t.Run("Scan and Value", func(t *testing.T) {
		var s models.ScheduleStatus
		require.NoError(t, s.Scan([]byte("completed")))
		assert.Equal(t, models.ScheduleStatusCompleted, s)
		require.NoError(t, s.Scan("cancelled"))
		assert.Equal(t, models.ScheduleStatusCancelled, s)
		require.NoError(t, s.Scan(nil))
		assert.Equal(t, models.ScheduleStatus(""), s)
		assert.Error(t, s.Scan(42))

		v, err := models.ScheduleStatusScheduled.Value()
		require.NoError(t, err)
		assert.Equal(t, "scheduled", v)
		_, err = models.ScheduleStatus("bogus").Value()
		assert.Error(t, err)
	})
}

func TestQueueItem(t *testing.T) {
	t.Run("Owner", func(t *testing.T) {
		item := &models.QueueItem{CampaignID: 4}
		assert.Equal(t, models.CampaignOwner(4), item.Owner())

		followupID := uint(9)
		item.FollowupID = &followupID
		assert.Equal(t, models.FollowupOwner(9), item.Owner())
		assert.Equal(t, "followup:9", item.Owner().String())
		assert.Equal(t, "campaign:4", models.CampaignOwner(4).String())
	})

	t.Run("Status", func(t *testing.T) {
		assert.False(t, models.QueueItemStatusPending.IsTerminal())
		assert.True(t, models.QueueItemStatusSent.IsTerminal())
		assert.True(t, models.QueueItemStatusFailed.IsTerminal())

		v, err := models.QueueItemStatusFailed.Value()
		require.NoError(t, err)
		assert.Equal(t, "failed", v)
		_, err = models.QueueItemStatus("bounced").Value()
		assert.Error(t, err)

		var s models.QueueItemStatus
		require.NoError(t, s.Scan([]byte("sent")))
		assert.Equal(t, models.QueueItemStatusSent, s)
	})

	t.Run("TableName", func(t *testing.T) {
		assert.Equal(t, "queue_items", models.QueueItem{}.TableName())
		assert.Equal(t, "campaigns", models.Campaign{}.TableName())
		assert.Equal(t, "campaign_followups", models.CampaignFollowup{}.TableName())
		assert.Equal(t, "campaign_prospects", models.CampaignProspect{}.TableName())
		assert.Equal(t, "prospects", models.Prospect{}.TableName())
	})
}

func TestCampaignOwners(t *testing.T) {
	c := &models.Campaign{ID: 3}
	f := &models.CampaignFollowup{ID: 5, CampaignID: 3, Round: 2}
	assert.Equal(t, models.CampaignOwner(3), c.Owner())
	assert.Equal(t, models.FollowupOwner(5), f.Owner())

	assert.True(t, models.ValidFollowupRound(1))
	assert.True(t, models.ValidFollowupRound(2))
	assert.False(t, models.ValidFollowupRound(0))
	assert.False(t, models.ValidFollowupRound(3))
	assert.Equal(t, "Follow-Up 2", models.FollowupName(2))
}

func TestProspect(t *testing.T) {
	assert.Equal(t, "ann@example.com", models.NormalizeEmail("  Ann@Example.COM "))

	first, city := "Ann", "Pune"
	p := &models.Prospect{Email: "ann@example.com", FirstName: &first, City: &city}
	fields := p.TemplateFields()
	assert.Equal(t, "Ann", fields["first_name"])
	assert.Equal(t, "Pune", fields["city"])
	assert.Equal(t, "", fields["business_name"])
	assert.Equal(t, "ann@example.com", fields["email"])
}
