package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/drip-mailer/app/dto"
	"github.com/amirphl/drip-mailer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prospectInputs(emails ...string) []dto.ProspectInput {
	out := make([]dto.ProspectInput, 0, len(emails))
	for _, e := range emails {
		out = append(out, dto.ProspectInput{Email: e})
	}
	return out
}

func recipientEmails(t *testing.T, env *testEnv, campaignID uint) []string {
	t.Helper()
	links, err := fakeLinkRepo{s: env.store}.ListRecipients(context.Background(), campaignID, false)
	require.NoError(t, err)
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Prospect.Email)
	}
	return out
}

func prospectCount(t *testing.T, env *testEnv) int64 {
	t.Helper()
	n, err := fakeProspectRepo{s: env.store}.Count(context.Background(), models.ProspectFilter{})
	require.NoError(t, err)
	return n
}

func TestImportProspects(t *testing.T) {
	ctx := context.Background()

	t.Run("links in import order and counts skipped rows", func(t *testing.T) {
		env := newTestEnv(testNow())
		c := env.store.addCampaign("Launch", models.ScheduleStatusDraft)
		known := env.store.addProspect("zed@example.com", "Zed")

		req := &dto.ImportProspectsRequest{
			CampaignID: &c.ID,
			Prospects: prospectInputs(
				" Amy@Example.com ",
				"amy@example.com",
				"not-an-email",
				"zed@example.com",
				"bob@example.com",
			),
		}
		resp, err := env.prospects.ImportProspects(ctx, req, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Imported)
		assert.Equal(t, 2, resp.Skipped)
		assert.Equal(t, int64(3), resp.Linked)
		assert.Equal(t, int64(3), prospectCount(t, env))

		assert.Equal(t, []string{"amy@example.com", "zed@example.com", "bob@example.com"}, recipientEmails(t, env, c.ID))

		stored, err := fakeProspectRepo{s: env.store}.ByID(ctx, known.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.FirstName)
		assert.Equal(t, "Zed", *stored.FirstName, "an empty import field keeps the stored value")

		// link order decides the variant each recipient gets
		_, err = env.queue.ScheduleCampaign(ctx, scheduleRequest(c.ID), nil)
		require.NoError(t, err)
		items := env.store.itemsOf(c.Owner())
		require.Len(t, items, 3)
		assert.Equal(t, "amy@example.com", items[0].ToEmail)
		assert.Equal(t, "zed@example.com", items[1].ToEmail)
		assert.Equal(t, "bob@example.com", items[2].ToEmail)
		assert.Equal(t, "B", items[2].Variant)
	})

	t.Run("re-import creates no new links", func(t *testing.T) {
		env := newTestEnv(testNow())
		c := env.store.addCampaign("Launch", models.ScheduleStatusDraft)
		req := &dto.ImportProspectsRequest{CampaignID: &c.ID, Prospects: prospectInputs("a@example.com", "b@example.com")}

		_, err := env.prospects.ImportProspects(ctx, req, nil)
		require.NoError(t, err)
		resp, err := env.prospects.ImportProspects(ctx, req, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Imported)
		assert.Equal(t, int64(0), resp.Linked)
		assert.Len(t, recipientEmails(t, env, c.ID), 2)
		assert.Equal(t, int64(2), prospectCount(t, env))
	})

	t.Run("without a campaign nothing is linked", func(t *testing.T) {
		env := newTestEnv(testNow())
		resp, err := env.prospects.ImportProspects(ctx, &dto.ImportProspectsRequest{Prospects: prospectInputs("a@example.com")}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Imported)
		assert.Equal(t, int64(0), resp.Linked)
		assert.Empty(t, env.store.links)
	})

	t.Run("only invalid rows", func(t *testing.T) {
		env := newTestEnv(testNow())
		resp, err := env.prospects.ImportProspects(ctx, &dto.ImportProspectsRequest{Prospects: prospectInputs("", "@example.com")}, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Imported)
		assert.Equal(t, 2, resp.Skipped)
		assert.Equal(t, int64(0), prospectCount(t, env))
	})

	t.Run("link failure rolls back the upsert", func(t *testing.T) {
		env := newTestEnv(testNow())
		c := env.store.addCampaign("Launch", models.ScheduleStatusDraft)
		env.store.failLink = errors.New("connection reset")

		_, err := env.prospects.ImportProspects(ctx, &dto.ImportProspectsRequest{CampaignID: &c.ID, Prospects: prospectInputs("a@example.com")}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, env.store.failLink)
		assert.Equal(t, int64(0), prospectCount(t, env))
		assert.Empty(t, recipientEmails(t, env, c.ID))
	})

	t.Run("unknown campaign imports nothing", func(t *testing.T) {
		env := newTestEnv(testNow())
		missing := uint(404)
		_, err := env.prospects.ImportProspects(ctx, &dto.ImportProspectsRequest{CampaignID: &missing, Prospects: prospectInputs("a@example.com")}, nil)
		assert.True(t, IsCampaignNotFound(err))
		assert.Equal(t, int64(0), prospectCount(t, env))
	})

	t.Run("empty request", func(t *testing.T) {
		env := newTestEnv(testNow())
		_, err := env.prospects.ImportProspects(ctx, &dto.ImportProspectsRequest{}, nil)
		assert.ErrorIs(t, err, ErrNoProspectsProvided)
	})
}

func TestLinkProspects(t *testing.T) {
	ctx := context.Background()

	t.Run("appends new links in request order", func(t *testing.T) {
		env := newTestEnv(testNow())
		c, prospects := seedCampaign(env, models.ScheduleStatusDraft, 1)
		second := env.store.addProspect("x@example.com", "X")
		third := env.store.addProspect("y@example.com", "Y")

		resp, err := env.prospects.LinkProspects(ctx, &dto.LinkProspectsRequest{
			CampaignID:  c.ID,
			ProspectIDs: []uint{third.ID, prospects[0].ID, second.ID},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.Linked)
		assert.Equal(t, []string{"p1@example.com", "y@example.com", "x@example.com"}, recipientEmails(t, env, c.ID))
	})

	t.Run("unknown campaign", func(t *testing.T) {
		env := newTestEnv(testNow())
		p := env.store.addProspect("x@example.com", "X")
		_, err := env.prospects.LinkProspects(ctx, &dto.LinkProspectsRequest{CampaignID: 404, ProspectIDs: []uint{p.ID}}, nil)
		assert.True(t, IsCampaignNotFound(err))
		assert.Empty(t, env.store.links)
	})

	t.Run("no ids", func(t *testing.T) {
		env := newTestEnv(testNow())
		c := env.store.addCampaign("Launch", models.ScheduleStatusDraft)
		_, err := env.prospects.LinkProspects(ctx, &dto.LinkProspectsRequest{CampaignID: c.ID}, nil)
		assert.ErrorIs(t, err, ErrNoProspectsProvided)
	})
}

func TestUnlinkProspect(t *testing.T) {
	ctx := context.Background()

	t.Run("unlinked prospect is left out of the next schedule", func(t *testing.T) {
		env := newTestEnv(testNow())
		c, prospects := seedCampaign(env, models.ScheduleStatusDraft, 3)

		require.NoError(t, env.prospects.UnlinkProspect(ctx, c.ID, prospects[1].ID, nil))
		assert.Equal(t, []string{"p1@example.com", "p3@example.com"}, recipientEmails(t, env, c.ID))

		resp, err := env.queue.ScheduleCampaign(ctx, scheduleRequest(c.ID), nil)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Scheduled)
		for _, it := range env.store.itemsOf(c.Owner()) {
			assert.NotEqual(t, prospects[1].Email, it.ToEmail)
		}
	})

	t.Run("prospect not linked to the campaign", func(t *testing.T) {
		env := newTestEnv(testNow())
		c, _ := seedCampaign(env, models.ScheduleStatusDraft, 1)
		stranger := env.store.addProspect("x@example.com", "X")

		err := env.prospects.UnlinkProspect(ctx, c.ID, stranger.ID, nil)
		assert.ErrorIs(t, err, ErrCampaignProspectNotFound)
		assert.True(t, IsProspectNotFound(err))
	})
}

func TestDeleteProspect(t *testing.T) {
	ctx := context.Background()

	t.Run("drops the prospect and every link but keeps queued emails", func(t *testing.T) {
		env := newTestEnv(testNow())
		c, prospects := seedCampaign(env, models.ScheduleStatusScheduled, 2)
		other := env.store.addCampaign("Other", models.ScheduleStatusDraft)
		env.store.link(other.ID, prospects[0])
		queued := env.store.addItem(c.Owner(), c.ID, prospects[0].Email, models.QueueItemStatusPending, testNow())

		resp, err := env.prospects.DeleteProspect(ctx, prospects[0].ID, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Message)

		gone, err := fakeProspectRepo{s: env.store}.ByID(ctx, prospects[0].ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
		assert.Equal(t, []string{"p2@example.com"}, recipientEmails(t, env, c.ID))
		assert.Empty(t, recipientEmails(t, env, other.ID))

		items := env.store.itemsOf(c.Owner())
		require.Len(t, items, 1)
		assert.Equal(t, queued.ID, items[0].ID)
	})

	t.Run("missing prospect", func(t *testing.T) {
		env := newTestEnv(testNow())
		_, err := env.prospects.DeleteProspect(ctx, 404, nil)
		assert.ErrorIs(t, err, ErrProspectNotFound)
	})
}

func TestListProspects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(testNow())
	c, prospects := seedCampaign(env, models.ScheduleStatusCompleted, 2)
	env.store.addProspect("unlinked@example.com", "U")
	_, err := fakeLinkRepo{s: env.store}.MarkExcluded(ctx, c.ID, prospects[0].ID)
	require.NoError(t, err)

	resp, err := env.prospects.ListProspects(ctx, &dto.ListProspectsRequest{CampaignID: &c.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Pagination.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, prospects[1].ID, resp.Items[0].ID)
	require.NotNil(t, resp.Items[1].ExcludedFromFollowup)
	assert.True(t, *resp.Items[1].ExcludedFromFollowup)
	require.NotNil(t, resp.Items[0].ExcludedFromFollowup)
	assert.False(t, *resp.Items[0].ExcludedFromFollowup)

	all, err := env.prospects.ListProspects(ctx, &dto.ListProspectsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Pagination.Total)
	assert.Nil(t, all.Items[0].ExcludedFromFollowup)
}
