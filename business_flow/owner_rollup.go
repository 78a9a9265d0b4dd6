package businessflow

import (
	"context"

	"github.com/amirphl/drip-mailer/app/services"
	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/repository"
	"github.com/sirupsen/logrus"
)

// touchedOwner is an owner whose pending emails changed in the current operation
type touchedOwner struct {
	owner      models.QueueOwner
	campaignID uint
}

// distinctOwners returns the owners of items in first-seen order
func distinctOwners(items []*models.QueueItem) []touchedOwner {
	var owners []touchedOwner
	seen := make(map[models.QueueOwner]bool)
	for _, item := range items {
		owner := item.Owner()
		if seen[owner] {
			continue
		}
		seen[owner] = true
		owners = append(owners, touchedOwner{owner: owner, campaignID: item.CampaignID})
	}
	return owners
}

// ownerRollup moves scheduled owners whose queue drained to completed
type ownerRollup struct {
	campaignRepo repository.CampaignRepository
	followupRepo repository.CampaignFollowupRepository
	queueRepo    repository.QueueItemRepository
	publisher    services.EventPublisher
}

// completeDrained rolls up every owner and reports how many completed.
// A failing owner is logged and skipped.
func (r ownerRollup) completeDrained(ctx context.Context, owners []touchedOwner) int {
	completed := 0
	for _, t := range owners {
		ok, err := r.completeIfDrained(ctx, t)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"owner": t.owner.String(),
				"error": err.Error(),
			}).Error("failed to roll up owner status")
			captureError(err, map[string]string{"owner": t.owner.String()})
			continue
		}
		if ok {
			completed++
		}
	}
	return completed
}

// completeIfDrained moves a scheduled owner with no pending items to completed.
// The transition is conditional, so an owner that is not scheduled is left alone.
func (r ownerRollup) completeIfDrained(ctx context.Context, t touchedOwner) (bool, error) {
	pending, err := r.queueRepo.CountByOwnerAndStatus(ctx, t.owner, models.QueueItemStatusPending)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}

	var changed bool
	switch t.owner.Kind {
	case models.OwnerKindFollowup:
		changed, err = r.followupRepo.TransitionStatus(ctx, t.owner.ID, models.ScheduleStatusScheduled, models.ScheduleStatusCompleted)
	default:
		changed, err = r.campaignRepo.TransitionStatus(ctx, t.owner.ID, models.ScheduleStatusScheduled, models.ScheduleStatusCompleted)
	}
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	ownersCompletedTotal.WithLabelValues(string(t.owner.Kind)).Inc()
	logrus.WithField("owner", t.owner.String()).Info("owner completed")

	event := services.NewLifecycleEvent(services.EventOwnerCompleted, string(t.owner.Kind), t.owner.ID, t.campaignID, 0)
	if err := r.publisher.Publish(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"owner": t.owner.String(),
			"error": err.Error(),
		}).Warn("failed to publish lifecycle event")
	}

	return true, nil
}
