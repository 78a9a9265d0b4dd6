package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/amirphl/drip-mailer/app/dto"
	"github.com/amirphl/drip-mailer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCampaignLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create requires a name and starts as an inactive draft", func(t *testing.T) {
		env := newTestEnv(testNow())

		_, err := env.campaigns.CreateCampaign(ctx, &dto.CreateCampaignRequest{Name: "   "}, nil)
		assert.ErrorIs(t, err, ErrCampaignNameRequired)

		item, err := env.campaigns.CreateCampaign(ctx, &dto.CreateCampaignRequest{Name: " Spring outreach "}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Spring outreach", item.Name)
		assert.Equal(t, "draft", item.ScheduledStatus)
		assert.False(t, item.IsActive)
	})

	t.Run("rename", func(t *testing.T) {
		env := newTestEnv(testNow())
		c := env.store.addCampaign("Old", models.ScheduleStatusDraft)

		item, err := env.campaigns.RenameCampaign(ctx, &dto.RenameCampaignRequest{CampaignID: c.ID, Name: "New"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "New", item.Name)
		assert.Equal(t, "New", campaignState(t, env, c.ID).Name)

		_, err = env.campaigns.RenameCampaign(ctx, &dto.RenameCampaignRequest{CampaignID: 999, Name: "x"}, nil)
		assert.True(t, IsCampaignNotFound(err))
	})

	t.Run("delete removes queue, links and follow-ups in any status", func(t *testing.T) {
		env := newTestEnv(testNow())
		c, _ := seedCampaign(env, models.ScheduleStatusScheduled, 2)
		other, _ := seedCampaign(env, models.ScheduleStatusDraft, 1)
		round := env.store.addFollowup(c.ID, 1, models.ScheduleStatusScheduled)
		env.store.addItem(c.Owner(), c.ID, "a@example.com", models.QueueItemStatusSent, testNow())
		env.store.addItem(round.Owner(), c.ID, "a@example.com", models.QueueItemStatusPending, testNow())
		env.store.addItem(other.Owner(), other.ID, "b@example.com", models.QueueItemStatusPending, testNow())

		_, err := env.campaigns.DeleteCampaign(ctx, c.ID, nil)
		require.NoError(t, err)

		assert.NotContains(t, env.store.campaigns, c.ID)
		assert.NotContains(t, env.store.followups, round.ID)
		assert.Empty(t, env.store.itemsOf(c.Owner()))
		assert.Empty(t, env.store.itemsOf(round.Owner()))
		assert.Len(t, env.store.itemsOf(other.Owner()), 1)
		for _, l := range env.store.links {
			assert.NotEqual(t, c.ID, l.CampaignID)
		}
	})

	t.Run("duplicate copies prospects only", func(t *testing.T) {
		env := newTestEnv(testNow())
		c, _ := seedCampaign(env, models.ScheduleStatusCompleted, 3)
		env.store.addFollowup(c.ID, 1, models.ScheduleStatusCompleted)
		env.store.addItem(c.Owner(), c.ID, "a@example.com", models.QueueItemStatusSent, testNow())

		resp, err := env.campaigns.DuplicateCampaign(ctx, c.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.ProspectCount)
		assert.Equal(t, "Launch (copy)", resp.Campaign.Name)
		assert.Equal(t, "draft", resp.Campaign.ScheduledStatus)
		assert.False(t, resp.Campaign.IsActive)

		copyID := resp.Campaign.ID
		assert.Empty(t, env.store.itemsOf(models.CampaignOwner(copyID)))
		assert.Nil(t, followupState(t, env, copyID, 1))

		links, err := fakeLinkRepo{s: env.store}.ListRecipients(ctx, copyID, false)
		require.NoError(t, err)
		assert.Len(t, links, 3)
	})

	t.Run("analytics per round", func(t *testing.T) {
		env := newTestEnv(testNow())
		c := env.store.addCampaign("Launch", models.ScheduleStatusCompleted)
		round := env.store.addFollowup(c.ID, 1, models.ScheduleStatusScheduled)
		env.store.addItem(c.Owner(), c.ID, "a@example.com", models.QueueItemStatusSent, testNow())
		env.store.addItem(c.Owner(), c.ID, "b@example.com", models.QueueItemStatusFailed, testNow())
		env.store.addItem(round.Owner(), c.ID, "a@example.com", models.QueueItemStatusPending, testNow())

		resp, err := env.campaigns.GetAnalytics(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, dto.QueueStats{Sent: 1, Failed: 1, Total: 2}, resp.Campaign)
		require.Len(t, resp.Followups, 1)
		assert.Equal(t, round.ID, resp.Followups[0].FollowupID)
		assert.Equal(t, dto.QueueStats{Pending: 1, Total: 1}, resp.Followups[0].Stats)
	})
}

func TestExportQueue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(testNow())
	c := env.store.addCampaign("Launch", models.ScheduleStatusScheduled)
	round := env.store.addFollowup(c.ID, 1, models.ScheduleStatusScheduled)
	env.store.addItem(c.Owner(), c.ID, "a@example.com", models.QueueItemStatusSent, testNow())
	env.store.addItem(c.Owner(), c.ID, "b@example.com", models.QueueItemStatusPending, testNow().Add(time.Hour))
	env.store.addItem(round.Owner(), c.ID, "a@example.com", models.QueueItemStatusPending, testNow())

	filename, data, err := env.campaigns.ExportQueue(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "campaign_1_queue.xlsx", filename)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	assert.Equal(t, []string{"Campaign", models.FollowupName(1)}, xl.GetSheetList())

	rows, err := xl.GetRows("Campaign")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "to_email", rows[0][1])
	assert.Equal(t, "a@example.com", rows[1][1])
	assert.Equal(t, "sent", rows[1][4])
	assert.Equal(t, "pending", rows[2][4])

	rows, err = xl.GetRows(models.FollowupName(1))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
