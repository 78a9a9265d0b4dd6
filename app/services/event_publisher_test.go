package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/amirphl/drip-mailer/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleEvent(t *testing.T) {
	e := NewLifecycleEvent(EventOwnerScheduled, "followup", 7, 3, 120)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, EventOwnerScheduled, e.Type)
	assert.Equal(t, uint(7), e.OwnerID)
	assert.Equal(t, uint(3), e.CampaignID)
	assert.False(t, e.OccurredAt.IsZero())
	assert.NotEqual(t, e.ID, NewLifecycleEvent(EventOwnerScheduled, "followup", 7, 3, 120).ID)

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "owner.scheduled", decoded["type"])
	assert.Equal(t, "followup", decoded["owner_kind"])
	assert.EqualValues(t, 120, decoded["count"])
}

func TestNewEventPublisherDisabled(t *testing.T) {
	p, err := NewEventPublisher(config.BrokerConfig{Enabled: false, URL: "amqp://nowhere"})
	require.NoError(t, err)
	assert.IsType(t, NoopEventPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), NewLifecycleEvent(EventOwnerCompleted, "campaign", 1, 1, 0)))
	assert.NoError(t, p.Close())
}
