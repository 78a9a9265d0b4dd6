package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/drip-mailer/app/services"
	"github.com/amirphl/drip-mailer/config"
	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/repository"
	"github.com/amirphl/drip-mailer/utils"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

const defaultDispatchBatchSize = 10

// DispatchResult summarizes one tick
type DispatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// DispatchFlow delivers due emails and completes owners whose queue drained
type DispatchFlow interface {
	DispatchTick(ctx context.Context) (*DispatchResult, error)
}

// DispatchFlowImpl implements DispatchFlow
type DispatchFlowImpl struct {
	queueRepo       repository.QueueItemRepository
	rollup          ownerRollup
	sender          services.MailSender
	locker          Locker
	publisher       services.EventPublisher
	schedulerConfig config.SchedulerConfig
	sendTimeout     time.Duration
	now             func() time.Time
}

func NewDispatchFlow(
	campaignRepo repository.CampaignRepository,
	followupRepo repository.CampaignFollowupRepository,
	queueRepo repository.QueueItemRepository,
	sender services.MailSender,
	locker Locker,
	publisher services.EventPublisher,
	schedulerConfig config.SchedulerConfig,
	emailConfig config.EmailConfig,
) DispatchFlow {
	return &DispatchFlowImpl{
		queueRepo: queueRepo,
		rollup: ownerRollup{
			campaignRepo: campaignRepo,
			followupRepo: followupRepo,
			queueRepo:    queueRepo,
			publisher:    publisher,
		},
		sender:          sender,
		locker:          locker,
		publisher:       publisher,
		schedulerConfig: schedulerConfig,
		sendTimeout:     emailConfig.Timeout,
		now:             utils.UTCNow,
	}
}

// DispatchTick sends up to one batch of due emails. Only one tick runs at a time;
// a tick that cannot claim the dispatch lock returns ErrDispatchInProgress without side effects.
func (d *DispatchFlowImpl) DispatchTick(ctx context.Context) (*DispatchResult, error) {
	release, ok, err := d.locker.TryLock(ctx, dispatchLockKey, d.schedulerConfig.DispatchLockTTL)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_LOCK_FAILED", "Failed to acquire dispatch lock", err)
	}
	if !ok {
		dispatchTicksSkipped.Inc()
		return nil, ErrDispatchInProgress
	}
	defer release()

	start := time.Now()
	defer func() { dispatchTickDuration.Observe(time.Since(start).Seconds()) }()

	limit := d.schedulerConfig.DispatchBatchSize
	if limit <= 0 {
		limit = defaultDispatchBatchSize
	}

	due, err := d.queueRepo.ListDue(ctx, d.now(), limit)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_FETCH_FAILED", "Failed to fetch due emails", err)
	}

	result := &DispatchResult{}
	for _, item := range due {
		result.Processed++
		if d.deliver(ctx, item) {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	result.Completed = d.rollup.completeDrained(ctx, distinctOwners(due))

	if result.Processed > 0 {
		logrus.WithFields(logrus.Fields{
			"processed": result.Processed,
			"sent":      result.Sent,
			"failed":    result.Failed,
			"completed": result.Completed,
		}).Info("dispatch tick finished")
	}

	return result, nil
}

// deliver sends one item and records the outcome. It reports whether the email went out and was recorded as sent.
func (d *DispatchFlowImpl) deliver(ctx context.Context, item *models.QueueItem) bool {
	sendCtx := ctx
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	sendErr := d.sender.Send(sendCtx, services.MailMessage{
		To:      item.ToEmail,
		Subject: item.Subject,
		Body:    item.Body,
	})

	status := models.QueueItemStatusSent
	var errMsg *string
	if sendErr != nil {
		status = models.QueueItemStatusFailed
		msg := sendErr.Error()
		errMsg = &msg
	}

	changed, err := d.queueRepo.MarkResult(ctx, item.ID, status, errMsg, d.now())
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"queue_item_id": item.ID,
			"status":        status,
			"error":         err.Error(),
		}).Error("failed to record delivery result")
		captureError(err, map[string]string{"queue_item_id": fmt.Sprint(item.ID)})
		dispatchEmailsTotal.WithLabelValues(string(models.QueueItemStatusFailed)).Inc()
		return false
	}
	if !changed {
		// cancelled or deleted while we were sending; the provider may already have accepted it
		logrus.WithFields(logrus.Fields{
			"queue_item_id": item.ID,
			"owner":         item.Owner().String(),
			"to":            item.ToEmail,
			"status":        status,
		}).Warn("queue item left pending state during delivery")
	}

	dispatchEmailsTotal.WithLabelValues(string(status)).Inc()
	if sendErr != nil {
		logrus.WithFields(logrus.Fields{
			"queue_item_id": item.ID,
			"to":            item.ToEmail,
			"error":         sendErr.Error(),
		}).Warn("email delivery failed")
		return false
	}

	return true
}

func captureError(err error, tags map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}
