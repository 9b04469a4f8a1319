// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingJob struct {
	mu     sync.Mutex
	calls  int
	limits []int
	err    error
}

func (j *countingJob) BackfillNarratives(ctx context.Context, limit int) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	j.limits = append(j.limits, limit)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("missing deadline")
	}
	return 1, j.err
}

func (j *countingJob) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func TestNewScheduler(t *testing.T) {
	s := NewScheduler(&countingJob{}, 15, nil)
	assert.Equal(t, 15*time.Minute, s.interval)
	assert.Equal(t, DefaultBatchSize, s.batchSize)
	assert.NotNil(t, s.logger)
}

func TestRunOnce(t *testing.T) {
	job := &countingJob{}
	s := newScheduler(job, time.Minute, nil)

	s.RunOnce()

	assert.Equal(t, 1, job.Calls())
	assert.Equal(t, []int{DefaultBatchSize}, job.limits)
}

func TestRunOnce_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	job := &countingJob{err: errors.New("generator down")}
	s := newScheduler(job, time.Minute, zap.New(core))

	s.RunOnce()

	entries := logs.FilterMessage("narrative backfill failed").All()
	assert.Len(t, entries, 1)
}

func TestStartStop(t *testing.T) {
	job := &countingJob{}
	s := newScheduler(job, 10*time.Millisecond, nil)

	s.Start()
	assert.Eventually(t, func() bool { return job.Calls() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	calls := job.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, job.Calls())

	// Stop is idempotent
	s.Stop()
}
