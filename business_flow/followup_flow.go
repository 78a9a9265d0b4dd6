package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/drip-mailer/app/dto"
	"github.com/amirphl/drip-mailer/config"
	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/repository"
	"github.com/sirupsen/logrus"
)

// FollowupFlow gates and manages the two follow-up rounds of a campaign
type FollowupFlow interface {
	EnsureFollowup(ctx context.Context, campaignID uint, round int) (*models.CampaignFollowup, error)
	CanSchedule(ctx context.Context, campaignID uint, round int) error
	ListFollowups(ctx context.Context, campaignID uint) (*dto.ListFollowupsResponse, error)
	ExcludeProspect(ctx context.Context, campaignID, prospectID uint, metadata *ClientMetadata) (*dto.ExcludeProspectResponse, error)
	ResetFollowup(ctx context.Context, campaignID uint, round int, metadata *ClientMetadata) (*dto.FollowupItem, error)
	ListEligibleProspects(ctx context.Context, campaignID uint) ([]*models.CampaignProspect, error)
}

// FollowupFlowImpl implements FollowupFlow
type FollowupFlowImpl struct {
	campaignRepo         repository.CampaignRepository
	followupRepo         repository.CampaignFollowupRepository
	campaignProspectRepo repository.CampaignProspectRepository
	queueRepo            repository.QueueItemRepository
	tx                   repository.Transactor
	schedulerConfig      config.SchedulerConfig
}

func NewFollowupFlow(
	campaignRepo repository.CampaignRepository,
	followupRepo repository.CampaignFollowupRepository,
	campaignProspectRepo repository.CampaignProspectRepository,
	queueRepo repository.QueueItemRepository,
	tx repository.Transactor,
	schedulerConfig config.SchedulerConfig,
) FollowupFlow {
	return &FollowupFlowImpl{
		campaignRepo:         campaignRepo,
		followupRepo:         followupRepo,
		campaignProspectRepo: campaignProspectRepo,
		queueRepo:            queueRepo,
		tx:                   tx,
		schedulerConfig:      schedulerConfig,
	}
}

// RoundLocked reports whether a round may not be scheduled yet.
// Round 1 is always open; round 2 opens once round 1 exists and is completed.
func RoundLocked(round int, previous *models.CampaignFollowup) bool {
	if round <= models.FollowupRoundFirst {
		return false
	}
	return previous == nil || previous.ScheduledStatus != models.ScheduleStatusCompleted
}

// EnsureFollowup returns the round, creating it as a draft on first use
func (f *FollowupFlowImpl) EnsureFollowup(ctx context.Context, campaignID uint, round int) (*models.CampaignFollowup, error) {
	if !models.ValidFollowupRound(round) {
		return nil, ErrInvalidFollowupRound
	}
	if _, err := getCampaign(ctx, f.campaignRepo, campaignID); err != nil {
		return nil, err
	}

	followup, err := f.followupRepo.FirstOrCreate(ctx, campaignID, round)
	if err != nil {
		return nil, NewBusinessError("FOLLOWUP_CREATE_FAILED", "Failed to create follow-up", err)
	}
	if followup == nil {
		return nil, ErrFollowupNotFound
	}

	return followup, nil
}

func (f *FollowupFlowImpl) CanSchedule(ctx context.Context, campaignID uint, round int) error {
	if !models.ValidFollowupRound(round) {
		return ErrInvalidFollowupRound
	}
	if round == models.FollowupRoundFirst {
		return nil
	}

	previous, err := f.followupRepo.ByCampaignAndRound(ctx, campaignID, round-1)
	if err != nil {
		return NewBusinessError("FOLLOWUP_LOOKUP_FAILED", "Failed to lookup previous follow-up", err)
	}
	if RoundLocked(round, previous) {
		return ErrFollowupLocked
	}

	return nil
}

// ListFollowups returns both rounds; a round that was never touched is reported as a draft with id 0
func (f *FollowupFlowImpl) ListFollowups(ctx context.Context, campaignID uint) (*dto.ListFollowupsResponse, error) {
	campaign, err := getCampaign(ctx, f.campaignRepo, campaignID)
	if err != nil {
		return nil, err
	}

	rows, err := f.followupRepo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("FOLLOWUP_LIST_FAILED", "Failed to list follow-ups", err)
	}
	byRound := make(map[int]*models.CampaignFollowup, len(rows))
	for _, row := range rows {
		byRound[row.Round] = row
	}

	eligible, err := f.campaignProspectRepo.ListRecipients(ctx, campaignID, true)
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LIST_FAILED", "Failed to list eligible prospects", err)
	}

	resp := &dto.ListFollowupsResponse{
		CampaignID:        campaignID,
		CampaignCompleted: campaign.ScheduledStatus == models.ScheduleStatusCompleted,
		EligibleCount:     len(eligible),
		Followups:         make([]dto.FollowupItem, 0, models.FollowupRoundSecond),
	}

	for round := models.FollowupRoundFirst; round <= models.FollowupRoundSecond; round++ {
		row, ok := byRound[round]
		stats := dto.QueueStats{}
		if ok {
			counts, err := f.queueRepo.StatusCounts(ctx, row.Owner())
			if err != nil {
				return nil, NewBusinessError("QUEUE_STATS_FAILED", "Failed to count follow-up emails", err)
			}
			stats = ToQueueStats(counts)
		} else {
			row = &models.CampaignFollowup{
				CampaignID:      campaignID,
				Round:           round,
				Name:            models.FollowupName(round),
				ScheduledStatus: models.ScheduleStatusDraft,
			}
		}
		locked := RoundLocked(round, byRound[round-1])
		resp.Followups = append(resp.Followups, ToFollowupItem(row, locked, stats))
	}

	return resp, nil
}

// ExcludeProspect removes a prospect from every future follow-up of the campaign.
// The flag never flips back.
func (f *FollowupFlowImpl) ExcludeProspect(ctx context.Context, campaignID, prospectID uint, metadata *ClientMetadata) (*dto.ExcludeProspectResponse, error) {
	campaign, err := getCampaign(ctx, f.campaignRepo, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.ScheduledStatus != models.ScheduleStatusCompleted {
		return nil, ErrCampaignNotCompleted
	}

	link, err := f.campaignProspectRepo.ByCampaignAndProspect(ctx, campaignID, prospectID)
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LOOKUP_FAILED", "Failed to lookup campaign prospect", err)
	}
	if link == nil {
		return nil, ErrCampaignProspectNotFound
	}
	if link.ExcludedFromFollowup {
		return &dto.ExcludeProspectResponse{Message: "Prospect already excluded", Excluded: true}, nil
	}

	if _, err := f.campaignProspectRepo.MarkExcluded(ctx, campaignID, prospectID); err != nil {
		return nil, NewBusinessError("PROSPECT_EXCLUDE_FAILED", "Failed to exclude prospect", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"prospect_id": prospectID,
	}).Info("prospect excluded from follow-ups")

	return &dto.ExcludeProspectResponse{Message: "Prospect excluded from follow-ups", Excluded: true}, nil
}

// ResetFollowup returns a completed or cancelled round to draft so it can be composed again
func (f *FollowupFlowImpl) ResetFollowup(ctx context.Context, campaignID uint, round int, metadata *ClientMetadata) (*dto.FollowupItem, error) {
	if !models.ValidFollowupRound(round) {
		return nil, ErrInvalidFollowupRound
	}
	if _, err := getCampaign(ctx, f.campaignRepo, campaignID); err != nil {
		return nil, err
	}

	followup, err := f.followupRepo.ByCampaignAndRound(ctx, campaignID, round)
	if err != nil {
		return nil, NewBusinessError("FOLLOWUP_LOOKUP_FAILED", "Failed to lookup follow-up", err)
	}
	if followup == nil {
		return nil, ErrFollowupNotFound
	}
	if !followup.ScheduledStatus.CanTransitionTo(models.ScheduleStatusDraft) {
		return nil, ErrFollowupNotResettable
	}

	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := f.followupRepo.ResetToDraft(txCtx, followup.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrFollowupNotResettable
		}

		if round == models.FollowupRoundFirst && f.schedulerConfig.FollowupResetRelocksNextRound {
			return f.relockNextRound(txCtx, campaignID)
		}
		return nil
	})
	if err != nil {
		if IsStateConflict(err) {
			return nil, err
		}
		return nil, NewBusinessError("FOLLOWUP_RESET_FAILED", "Failed to reset follow-up", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"round":       round,
	}).Info("follow-up reset to draft")

	followup.ScheduledStatus = models.ScheduleStatusDraft
	followup.ScheduledCount = 0
	counts, err := f.queueRepo.StatusCounts(ctx, followup.Owner())
	if err != nil {
		return nil, NewBusinessError("QUEUE_STATS_FAILED", "Failed to count follow-up emails", err)
	}
	item := ToFollowupItem(followup, false, ToQueueStats(counts))

	return &item, nil
}

// relockNextRound drops round 2's pending emails and returns it to draft
func (f *FollowupFlowImpl) relockNextRound(ctx context.Context, campaignID uint) error {
	next, err := f.followupRepo.ByCampaignAndRound(ctx, campaignID, models.FollowupRoundSecond)
	if err != nil {
		return err
	}
	if next == nil || next.ScheduledStatus == models.ScheduleStatusDraft {
		return nil
	}

	removed, err := f.queueRepo.DeletePendingByOwner(ctx, next.Owner())
	if err != nil {
		return err
	}
	if next.ScheduledStatus == models.ScheduleStatusScheduled {
		if _, err := f.followupRepo.TransitionStatus(ctx, next.ID, models.ScheduleStatusScheduled, models.ScheduleStatusCancelled); err != nil {
			return err
		}
	}
	if _, err := f.followupRepo.ResetToDraft(ctx, next.ID); err != nil {
		return fmt.Errorf("failed to relock round %d: %w", models.FollowupRoundSecond, err)
	}

	logrus.WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"followup_id": next.ID,
		"removed":     removed,
	}).Info("next follow-up round relocked")

	return nil
}

func (f *FollowupFlowImpl) ListEligibleProspects(ctx context.Context, campaignID uint) ([]*models.CampaignProspect, error) {
	if _, err := getCampaign(ctx, f.campaignRepo, campaignID); err != nil {
		return nil, err
	}

	links, err := f.campaignProspectRepo.ListRecipients(ctx, campaignID, true)
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LIST_FAILED", "Failed to list eligible prospects", err)
	}
	return links, nil
}
