package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/drip-mailer/app/dto"
	"github.com/amirphl/drip-mailer/app/services"
	"github.com/amirphl/drip-mailer/config"
	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/repository"
	"github.com/amirphl/drip-mailer/utils"
	"github.com/sirupsen/logrus"
)

// QueueFlow builds, replaces and cancels the email queue of campaigns and follow-up rounds
type QueueFlow interface {
	ScheduleCampaign(ctx context.Context, req *dto.ScheduleRequest, metadata *ClientMetadata) (*dto.ScheduleResponse, error)
	ScheduleFollowup(ctx context.Context, req *dto.ScheduleRequest, metadata *ClientMetadata) (*dto.ScheduleResponse, error)
	CancelCampaign(ctx context.Context, campaignID uint, metadata *ClientMetadata) (*dto.CancelResponse, error)
	CancelFollowup(ctx context.Context, campaignID uint, round int, metadata *ClientMetadata) (*dto.CancelResponse, error)
	ListEmails(ctx context.Context, req *dto.ListEmailsRequest) (*dto.ListEmailsResponse, error)
	DeleteEmails(ctx context.Context, req *dto.DeleteEmailsRequest, metadata *ClientMetadata) (*dto.DeleteEmailsResponse, error)
}

// QueueFlowImpl implements QueueFlow
type QueueFlowImpl struct {
	campaignRepo         repository.CampaignRepository
	followupRepo         repository.CampaignFollowupRepository
	campaignProspectRepo repository.CampaignProspectRepository
	queueRepo            repository.QueueItemRepository
	tx                   repository.Transactor
	followups            FollowupFlow
	locker               Locker
	calculator           *SendTimeCalculator
	publisher            services.EventPublisher
	rollup               ownerRollup
	schedulerConfig      config.SchedulerConfig
	now                  func() time.Time
}

func NewQueueFlow(
	campaignRepo repository.CampaignRepository,
	followupRepo repository.CampaignFollowupRepository,
	campaignProspectRepo repository.CampaignProspectRepository,
	queueRepo repository.QueueItemRepository,
	tx repository.Transactor,
	followups FollowupFlow,
	locker Locker,
	publisher services.EventPublisher,
	schedulerConfig config.SchedulerConfig,
) QueueFlow {
	return &QueueFlowImpl{
		campaignRepo:         campaignRepo,
		followupRepo:         followupRepo,
		campaignProspectRepo: campaignProspectRepo,
		queueRepo:            queueRepo,
		tx:                   tx,
		followups:            followups,
		locker:               locker,
		calculator:           NewSendTimeCalculator(schedulerConfig.WindowOffset()),
		publisher:            publisher,
		rollup: ownerRollup{
			campaignRepo: campaignRepo,
			followupRepo: followupRepo,
			queueRepo:    queueRepo,
			publisher:    publisher,
		},
		schedulerConfig: schedulerConfig,
		now:             utils.UTCNow,
	}
}

// schedulePlan is a validated schedule request for one owner
type schedulePlan struct {
	owner      models.QueueOwner
	status     models.ScheduleStatus
	campaignID uint
	recipients []Recipient
	variants   []Variant
	window     SendWindow
	interval   int
}

// ScheduleCampaign queues one email per linked prospect, replacing the campaign's pending emails
func (q *QueueFlowImpl) ScheduleCampaign(ctx context.Context, req *dto.ScheduleRequest, metadata *ClientMetadata) (*dto.ScheduleResponse, error) {
	variants, window, err := validateScheduleInput(req)
	if err != nil {
		return nil, err
	}

	campaign, err := getCampaign(ctx, q.campaignRepo, req.CampaignID)
	if err != nil {
		return nil, err
	}

	links, err := q.campaignProspectRepo.ListRecipients(ctx, campaign.ID, false)
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LIST_FAILED", "Failed to list campaign prospects", err)
	}
	recipients := toRecipients(links)
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	plan := schedulePlan{
		owner:      campaign.Owner(),
		status:     campaign.ScheduledStatus,
		campaignID: campaign.ID,
		recipients: recipients,
		variants:   variants,
		window:     window,
		interval:   req.IntervalMinutes,
	}
	return q.schedule(ctx, plan, metadata)
}

// ScheduleFollowup queues one email per eligible prospect for a follow-up round
func (q *QueueFlowImpl) ScheduleFollowup(ctx context.Context, req *dto.ScheduleRequest, metadata *ClientMetadata) (*dto.ScheduleResponse, error) {
	if !models.ValidFollowupRound(req.Round) {
		return nil, ErrInvalidFollowupRound
	}
	variants, window, err := validateScheduleInput(req)
	if err != nil {
		return nil, err
	}

	campaign, err := getCampaign(ctx, q.campaignRepo, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if err := q.followups.CanSchedule(ctx, campaign.ID, req.Round); err != nil {
		return nil, err
	}

	links, err := q.campaignProspectRepo.ListRecipients(ctx, campaign.ID, true)
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LIST_FAILED", "Failed to list eligible prospects", err)
	}
	recipients := toRecipients(links)
	if len(recipients) == 0 {
		return nil, ErrNoEligibleProspects
	}

	followup, err := q.followups.EnsureFollowup(ctx, campaign.ID, req.Round)
	if err != nil {
		return nil, err
	}

	plan := schedulePlan{
		owner:      followup.Owner(),
		status:     followup.ScheduledStatus,
		campaignID: campaign.ID,
		recipients: recipients,
		variants:   variants,
		window:     window,
		interval:   req.IntervalMinutes,
	}
	return q.schedule(ctx, plan, metadata)
}

// schedule replaces the owner's pending emails with a freshly computed batch.
// Delete, insert and the owner update commit together.
func (q *QueueFlowImpl) schedule(ctx context.Context, plan schedulePlan, metadata *ClientMetadata) (*dto.ScheduleResponse, error) {
	if !plan.status.CanTransitionTo(models.ScheduleStatusScheduled) {
		return nil, ErrInvalidStatusTransition
	}

	release, ok, err := q.locker.TryLock(ctx, scheduleLockKey(plan.owner.String()), q.schedulerConfig.ScheduleLockTTL)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_LOCK_FAILED", "Failed to acquire schedule lock", err)
	}
	if !ok {
		return nil, ErrScheduleInProgress
	}
	defer release()

	assignments := AssignVariants(plan.recipients, plan.variants)
	sendTimes := q.calculator.ComputeSendTimes(len(assignments), plan.window, plan.interval, q.now())
	items := BuildQueueItems(plan.owner, plan.campaignID, assignments, sendTimes)

	var replaced int64
	err = q.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		replaced, err = q.queueRepo.DeletePendingByOwner(txCtx, plan.owner)
		if err != nil {
			return err
		}

		if err := q.queueRepo.SaveInBatches(txCtx, items, q.schedulerConfig.InsertBatchSize); err != nil {
			return err
		}

		update := repository.SchedulingUpdate{
			ScheduledCount:  len(items),
			DailyStart:      plan.window.Start.String(),
			DailyEnd:        plan.window.End.String(),
			IntervalMinutes: plan.interval,
		}
		if plan.owner.Kind == models.OwnerKindFollowup {
			return q.followupRepo.MarkScheduled(txCtx, plan.owner.ID, update)
		}
		return q.campaignRepo.MarkScheduled(txCtx, plan.owner.ID, update)
	})
	if err != nil {
		logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
			"owner": plan.owner.String(),
			"error": err.Error(),
		}).Error("schedule failed")
		return nil, NewBusinessError("SCHEDULE_FAILED", "Failed to schedule emails", err)
	}

	queueItemsScheduledTotal.WithLabelValues(string(plan.owner.Kind)).Add(float64(len(items)))
	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"owner":     plan.owner.String(),
		"scheduled": len(items),
		"replaced":  replaced,
		"window":    plan.window.String(),
		"interval":  plan.interval,
	}).Info("emails scheduled")

	q.publish(ctx, services.EventOwnerScheduled, plan.owner, plan.campaignID, len(items))

	resp := &dto.ScheduleResponse{
		Scheduled:    len(items),
		VariantsUsed: len(plan.variants),
		Replaced:     replaced,
	}
	if len(sendTimes) > 0 {
		first, last := sendTimes[0], sendTimes[len(sendTimes)-1]
		resp.FirstSendAt = &first
		resp.LastSendAt = &last
	}

	return resp, nil
}

// BuildQueueItems renders one pending item per assignment, pairing it with the send time at the same position
func BuildQueueItems(owner models.QueueOwner, campaignID uint, assignments []VariantAssignment, sendTimes []time.Time) []*models.QueueItem {
	n := min(len(assignments), len(sendTimes))
	items := make([]*models.QueueItem, 0, n)

	var followupID *uint
	if owner.Kind == models.OwnerKindFollowup {
		id := owner.ID
		followupID = &id
	}

	for i := 0; i < n; i++ {
		a := assignments[i]
		items = append(items, &models.QueueItem{
			CampaignID: campaignID,
			FollowupID: followupID,
			ToEmail:    a.Recipient.Email,
			Subject:    RenderTemplate(a.Variant.Subject, a.Recipient.Fields),
			Body:       RenderTemplate(a.Variant.Body, a.Recipient.Fields),
			Variant:    a.Variant.ID,
			SendAt:     sendTimes[i],
			Status:     models.QueueItemStatusPending,
		})
	}

	return items
}

// CancelCampaign drops the campaign's pending emails; sent and failed ones stay
func (q *QueueFlowImpl) CancelCampaign(ctx context.Context, campaignID uint, metadata *ClientMetadata) (*dto.CancelResponse, error) {
	campaign, err := getCampaign(ctx, q.campaignRepo, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.ScheduledStatus.CanTransitionTo(models.ScheduleStatusCancelled) {
		return nil, ErrOwnerNotScheduled
	}

	return q.cancel(ctx, campaign.Owner(), campaign.ID, func(txCtx context.Context) (bool, error) {
		return q.campaignRepo.TransitionStatus(txCtx, campaign.ID, models.ScheduleStatusScheduled, models.ScheduleStatusCancelled)
	}, metadata)
}

// CancelFollowup drops a round's pending emails; sent and failed ones stay
func (q *QueueFlowImpl) CancelFollowup(ctx context.Context, campaignID uint, round int, metadata *ClientMetadata) (*dto.CancelResponse, error) {
	if !models.ValidFollowupRound(round) {
		return nil, ErrInvalidFollowupRound
	}
	if _, err := getCampaign(ctx, q.campaignRepo, campaignID); err != nil {
		return nil, err
	}

	followup, err := q.followupRepo.ByCampaignAndRound(ctx, campaignID, round)
	if err != nil {
		return nil, NewBusinessError("FOLLOWUP_LOOKUP_FAILED", "Failed to lookup follow-up", err)
	}
	if followup == nil {
		return nil, ErrFollowupNotFound
	}
	if !followup.ScheduledStatus.CanTransitionTo(models.ScheduleStatusCancelled) {
		return nil, ErrOwnerNotScheduled
	}

	return q.cancel(ctx, followup.Owner(), campaignID, func(txCtx context.Context) (bool, error) {
		return q.followupRepo.TransitionStatus(txCtx, followup.ID, models.ScheduleStatusScheduled, models.ScheduleStatusCancelled)
	}, metadata)
}

func (q *QueueFlowImpl) cancel(
	ctx context.Context,
	owner models.QueueOwner,
	campaignID uint,
	transition func(context.Context) (bool, error),
	metadata *ClientMetadata,
) (*dto.CancelResponse, error) {
	release, ok, err := q.locker.TryLock(ctx, scheduleLockKey(owner.String()), q.schedulerConfig.ScheduleLockTTL)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_LOCK_FAILED", "Failed to acquire schedule lock", err)
	}
	if !ok {
		return nil, ErrScheduleInProgress
	}
	defer release()

	var removed int64
	err = q.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		removed, err = q.queueRepo.DeletePendingByOwner(txCtx, owner)
		if err != nil {
			return err
		}

		changed, err := transition(txCtx)
		if err != nil {
			return err
		}
		// the dispatcher completed the owner after our status check
		if !changed {
			return ErrOwnerNotScheduled
		}
		return nil
	})
	if err != nil {
		if IsStateConflict(err) {
			return nil, err
		}
		return nil, NewBusinessError("CANCEL_FAILED", "Failed to cancel emails", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"owner":   owner.String(),
		"removed": removed,
	}).Info("schedule cancelled")

	q.publish(ctx, services.EventOwnerCancelled, owner, campaignID, int(removed))

	return &dto.CancelResponse{
		Message: "Scheduled emails cancelled",
		Removed: removed,
	}, nil
}

func (q *QueueFlowImpl) ListEmails(ctx context.Context, req *dto.ListEmailsRequest) (*dto.ListEmailsResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	filter := models.QueueItemFilter{
		CampaignID: req.CampaignID,
		ToEmail:    req.ToEmail,
	}
	if req.FollowupID != nil {
		owner := models.FollowupOwner(*req.FollowupID)
		filter.Owner = &owner
	}
	if req.Status != nil {
		status := models.QueueItemStatus(*req.Status)
		filter.Status = &status
	}

	total, err := q.queueRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("EMAIL_LIST_FAILED", "Failed to count emails", err)
	}
	rows, err := q.queueRepo.ByFilter(ctx, filter, "send_at ASC, id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("EMAIL_LIST_FAILED", "Failed to list emails", err)
	}

	items := make([]dto.EmailItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToEmailItem(row))
	}

	return &dto.ListEmailsResponse{
		Items:      items,
		Pagination: newPagination(total, page, pageSize),
	}, nil
}

// DeleteEmails removes pending emails by id; sent and failed ones are kept.
// An owner left without pending emails is completed right away, since no dispatch tick will see it again.
func (q *QueueFlowImpl) DeleteEmails(ctx context.Context, req *dto.DeleteEmailsRequest, metadata *ClientMetadata) (*dto.DeleteEmailsResponse, error) {
	if len(req.IDs) == 0 {
		return &dto.DeleteEmailsResponse{}, nil
	}

	deleted, err := q.queueRepo.DeletePendingByIDs(ctx, req.IDs)
	if err != nil {
		return nil, NewBusinessError("EMAIL_DELETE_FAILED", "Failed to delete emails", err)
	}

	completed := q.rollup.completeDrained(ctx, distinctOwners(deleted))

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"requested": len(req.IDs),
		"deleted":   len(deleted),
		"completed": completed,
	}).Info("pending emails deleted")

	return &dto.DeleteEmailsResponse{Deleted: int64(len(deleted)), Completed: completed}, nil
}

func (q *QueueFlowImpl) publish(ctx context.Context, eventType string, owner models.QueueOwner, campaignID uint, count int) {
	event := services.NewLifecycleEvent(eventType, string(owner.Kind), owner.ID, campaignID, count)
	if err := q.publisher.Publish(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"event": eventType,
			"owner": owner.String(),
			"error": err.Error(),
		}).Warn("failed to publish lifecycle event")
	}
}

// validateScheduleInput checks variants, window and interval before anything is read or written
func validateScheduleInput(req *dto.ScheduleRequest) ([]Variant, SendWindow, error) {
	if len(req.Variants) == 0 {
		return nil, SendWindow{}, ErrVariantsRequired
	}
	if len(req.Variants) > MaxVariants {
		return nil, SendWindow{}, ErrTooManyVariants
	}

	variants := make([]Variant, 0, len(req.Variants))
	seen := make(map[string]bool, len(req.Variants))
	for i, v := range req.Variants {
		if strings.TrimSpace(v.Subject) == "" || strings.TrimSpace(v.Body) == "" {
			return nil, SendWindow{}, ErrIncompleteVariant
		}
		id := strings.ToUpper(strings.TrimSpace(v.ID))
		if id == "" {
			id = VariantLetter(i)
		}
		if seen[id] {
			return nil, SendWindow{}, ErrDuplicateVariant
		}
		seen[id] = true
		variants = append(variants, Variant{ID: id, Subject: v.Subject, Body: v.Body})
	}

	window, err := ParseSendWindow(req.DailyStart, req.DailyEnd)
	if err != nil {
		return nil, SendWindow{}, err
	}

	if req.IntervalMinutes < 1 {
		return nil, SendWindow{}, ErrInvalidInterval
	}

	return variants, window, nil
}

// toRecipients keeps link order; links whose prospect row is gone are skipped
func toRecipients(links []*models.CampaignProspect) []Recipient {
	out := make([]Recipient, 0, len(links))
	for _, link := range links {
		if link.Prospect == nil {
			continue
		}
		out = append(out, Recipient{
			Email:  link.Prospect.Email,
			Fields: link.Prospect.TemplateFields(),
		})
	}
	return out
}
