package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-learner-go/pkg/logger"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Execute(context.Context) error {
	j.runs.Add(1)
	return j.err
}

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) SweepIdle(ttl time.Duration) int {
	args := m.Called(ttl)
	return args.Int(0)
}

func TestSchedulerRunsJobsOnInterval(t *testing.T) {
	s := NewScheduler(logger.Discard())
	job := &countingJob{}
	s.AddJob(job, 5*time.Millisecond)

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, time.Millisecond)
	s.Stop()

	stopped := job.runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, job.runs.Load())
}

func TestSchedulerSurvivesFailingJob(t *testing.T) {
	s := NewScheduler(logger.Discard())
	job := &countingJob{err: errors.New("boom")}
	s.AddJob(job, 5*time.Millisecond)

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestRunOnce(t *testing.T) {
	s := NewScheduler(logger.Discard())
	job := &countingJob{}
	s.AddJob(job, time.Hour)

	require.NoError(t, s.RunOnce("counting"))
	assert.EqualValues(t, 1, job.runs.Load())

	assert.ErrorIs(t, s.RunOnce("missing"), ErrUnknownJob)
}

func TestSchedulerIgnoresNonPositiveInterval(t *testing.T) {
	s := NewScheduler(logger.Discard())
	s.AddJob(&countingJob{}, 0)

	assert.ErrorIs(t, s.RunOnce("counting"), ErrUnknownJob)
	s.Start()
	s.Stop()
}

type panickingJob struct{ runs atomic.Int32 }

func (j *panickingJob) Name() string { return "panicking" }

func (j *panickingJob) Execute(context.Context) error {
	j.runs.Add(1)
	panic("boom")
}

func TestSchedulerRecoversFromPanic(t *testing.T) {
	s := NewScheduler(logger.Discard())
	job := &panickingJob{}
	s.AddJob(job, 5*time.Millisecond)

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestSessionSweepJob(t *testing.T) {
	sweeper := &mockSweeper{}
	sweeper.On("SweepIdle", 30*time.Minute).Return(2).Once()

	job := NewSessionSweepJob(sweeper, 30*time.Minute, logger.Discard())
	assert.Equal(t, "session_sweep", job.Name())
	require.NoError(t, job.Execute(context.Background()))

	sweeper.AssertExpectations(t)
}

func TestSessionSweepJobHonoursCancellation(t *testing.T) {
	sweeper := &mockSweeper{}
	job := NewSessionSweepJob(sweeper, time.Minute, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, job.Execute(ctx), context.Canceled)
	sweeper.AssertNotCalled(t, "SweepIdle", mock.Anything)
}
