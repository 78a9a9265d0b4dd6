// Package scheduler runs the periodic dispatch loop
package scheduler

import (
	"context"
	"sync"
	"time"

	businessflow "github.com/amirphl/drip-mailer/business_flow"
	"github.com/sirupsen/logrus"
)

const defaultDispatchInterval = 2 * time.Minute

// Dispatcher is the part of DispatchFlow the scheduler drives
type Dispatcher interface {
	DispatchTick(ctx context.Context) (*businessflow.DispatchResult, error)
}

// DispatchScheduler triggers a dispatch tick on a fixed interval
type DispatchScheduler struct {
	dispatcher Dispatcher
	interval   time.Duration
	logger     *logrus.Entry
}

func NewDispatchScheduler(dispatcher Dispatcher, interval time.Duration) *DispatchScheduler {
	if interval <= 0 {
		interval = defaultDispatchInterval
	}

	return &DispatchScheduler{
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logrus.WithField("component", "dispatch_scheduler"),
	}
}

// Start launches the loop in a background goroutine and returns a stop function
// that cancels the loop and waits for an in-flight tick to return.
func (s *DispatchScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.WithField("interval", s.interval.String()).Info("dispatch scheduler started")
		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("dispatch scheduler stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

func (s *DispatchScheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("dispatch tick panicked")
		}
	}()

	result, err := s.dispatcher.DispatchTick(ctx)
	if err != nil {
		if businessflow.IsDispatchInProgress(err) {
			s.logger.Debug("dispatch tick skipped, another tick is running")
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.logger.WithError(err).Error("dispatch tick failed")
		return
	}

	if result.Processed > 0 {
		s.logger.WithFields(logrus.Fields{
			"processed": result.Processed,
			"sent":      result.Sent,
			"failed":    result.Failed,
			"completed": result.Completed,
		}).Debug("dispatch tick done")
	}
}
