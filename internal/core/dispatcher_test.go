package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboniq/internal/metrics"
	"carboniq/pkg/models"
)

type recordingProcessor struct {
	mu       sync.Mutex
	seen     map[string][]string
	calls    map[string]int
	failures map[string]error
	failN    int
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{
		seen:     map[string][]string{},
		calls:    map[string]int{},
		failures: map[string]error{},
	}
}

func (p *recordingProcessor) ProcessReport(_ context.Context, ev models.ReportCreated) (*models.ProcessResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[ev.SourceReportID]++
	if err, ok := p.failures[ev.SourceReportID]; ok && p.calls[ev.SourceReportID] <= p.failN {
		return nil, err
	}
	p.seen[ev.UserID] = append(p.seen[ev.UserID], ev.SourceReportID)
	return &models.ProcessResult{}, nil
}

func (p *recordingProcessor) snapshot(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen[userID]...)
}

func (p *recordingProcessor) callCount(reportID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[reportID]
}

func TestDispatcher_PreservesPerUserOrder(t *testing.T) {
	proc := newRecordingProcessor()
	d := NewDispatcher(proc, DispatcherConfig{Workers: 4, QueueSize: 1000})
	d.Start(context.Background())

	var want = map[string][]string{}
	for i := 0; i < 40; i++ {
		for _, user := range []string{"alice", "bob", "carol"} {
			id := fmt.Sprintf("%s-%02d", user, i)
			require.NoError(t, d.Submit(report(user, id, testDay)))
			want[user] = append(want[user], id)
		}
	}
	d.Stop()

	for user, ids := range want {
		assert.Equal(t, ids, proc.snapshot(user), user)
	}
	assert.Zero(t, d.Depth())
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	proc := newRecordingProcessor()
	proc.failures["r1"] = errors.New("connection reset")
	proc.failN = 2

	d := NewDispatcher(proc, DispatcherConfig{Workers: 1, MaxAttempts: 3, RetryBackoff: time.Millisecond})
	d.Start(context.Background())
	require.NoError(t, d.Submit(report("alice", "r1", testDay)))
	d.Stop()

	assert.Equal(t, 3, proc.callCount("r1"))
	assert.Equal(t, []string{"r1"}, proc.snapshot("alice"))
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	proc := newRecordingProcessor()
	proc.failures["r1"] = errors.New("database down")
	proc.failN = 10

	deadBefore := testutil.ToFloat64(metrics.DeadLetters)
	d := NewDispatcher(proc, DispatcherConfig{Workers: 1, MaxAttempts: 2, RetryBackoff: time.Millisecond})
	d.Start(context.Background())
	require.NoError(t, d.Submit(report("alice", "r1", testDay)))
	require.NoError(t, d.Submit(report("alice", "r2", testDay)))
	d.Stop()

	assert.Equal(t, deadBefore+1, testutil.ToFloat64(metrics.DeadLetters))
	assert.Equal(t, 2, proc.callCount("r1"))
	assert.Equal(t, []string{"r2"}, proc.snapshot("alice"))
}

func TestDispatcher_DoesNotRetryInvalidInput(t *testing.T) {
	proc := newRecordingProcessor()
	proc.failures["r1"] = fmt.Errorf("%w: bad waste type", models.ErrInvalidInput)
	proc.failN = 10

	d := NewDispatcher(proc, DispatcherConfig{Workers: 1, MaxAttempts: 5, RetryBackoff: time.Millisecond})
	d.Start(context.Background())
	require.NoError(t, d.Submit(report("alice", "r1", testDay)))
	d.Stop()

	assert.Equal(t, 1, proc.callCount("r1"))
}

func TestDispatcher_Submit(t *testing.T) {
	proc := newRecordingProcessor()
	d := NewDispatcher(proc, DispatcherConfig{Workers: 1, QueueSize: 1})

	err := d.Submit(models.ReportCreated{UserID: "alice"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	// nothing drains the queue before Start
	require.NoError(t, d.Submit(report("alice", "r1", testDay)))
	assert.Equal(t, 1, d.Depth())
	assert.ErrorIs(t, d.Submit(report("alice", "r2", testDay)), models.ErrQueueFull)

	d.Stop()
	assert.ErrorIs(t, d.Submit(report("alice", "r3", testDay)), models.ErrQueueFull)
	d.Stop()
}

type panickingProcessor struct {
	*recordingProcessor
	panicked atomic.Bool
}

func (p *panickingProcessor) ProcessReport(ctx context.Context, ev models.ReportCreated) (*models.ProcessResult, error) {
	if ev.SourceReportID == "r1" && p.panicked.CompareAndSwap(false, true) {
		p.mu.Lock()
		p.calls[ev.SourceReportID]++
		p.mu.Unlock()
		panic("nil stats row")
	}
	return p.recordingProcessor.ProcessReport(ctx, ev)
}

func TestDispatcher_SurvivesProcessorPanic(t *testing.T) {
	proc := &panickingProcessor{recordingProcessor: newRecordingProcessor()}
	d := NewDispatcher(proc, DispatcherConfig{Workers: 1, QueueSize: 16, MaxAttempts: 2, RetryBackoff: time.Millisecond})
	d.Start(context.Background())

	require.NoError(t, d.Submit(report("alice", "r1", testDay)))
	require.NoError(t, d.Submit(report("alice", "r2", testDay)))
	require.NoError(t, d.Submit(report("alice", "r3", testDay)))

	require.Eventually(t, func() bool { return d.Depth() == 0 }, time.Second, 5*time.Millisecond)
	for i := 4; i < 10; i++ {
		require.NoError(t, d.Submit(report("alice", fmt.Sprintf("r%d", i), testDay)))
	}
	d.Stop()

	assert.Equal(t, 2, proc.callCount("r1"))
	assert.Equal(t, []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9"}, proc.snapshot("alice"))
	assert.Zero(t, d.Depth())
}
