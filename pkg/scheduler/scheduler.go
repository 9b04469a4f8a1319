// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultBatchSize bounds the sections handled per run
const DefaultBatchSize = 50

// Backfiller generates missing narratives and reports how many it wrote
type Backfiller interface {
	BackfillNarratives(ctx context.Context, limit int) (int, error)
}

// Scheduler periodically backfills missing narratives
type Scheduler struct {
	job       Backfiller
	interval  time.Duration
	batchSize int
	timeout   time.Duration
	logger    *zap.Logger

	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewScheduler creates a new scheduler running every intervalMinutes
func NewScheduler(job Backfiller, intervalMinutes int, logger *zap.Logger) *Scheduler {
	return newScheduler(job, time.Duration(intervalMinutes)*time.Minute, logger)
}

func newScheduler(job Backfiller, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		job:       job,
		interval:  interval,
		batchSize: DefaultBatchSize,
		timeout:   interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running pass to finish
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
		<-s.done
	})
}

// RunOnce performs a single backfill pass
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.job.BackfillNarratives(ctx, s.batchSize)
	if err != nil {
		s.logger.Warn("narrative backfill failed", zap.Error(err), zap.Int("generated", n))
		return
	}
	if n > 0 {
		s.logger.Debug("narrative backfill pass", zap.Int("generated", n))
	}
}
