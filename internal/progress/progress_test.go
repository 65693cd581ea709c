package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	updates []Update
	tools   []ToolExecution
}

func (s *captureSink) SendExecutionUpdate(_ context.Context, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
	return nil
}

func (s *captureSink) SendToolExecutionUpdate(_ context.Context, _ string, t ToolExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, t)
	return nil
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0, 10))
	assert.Equal(t, 50, Percent(5, 10))
	assert.Equal(t, 100, Percent(10, 10))
	assert.Equal(t, 100, Percent(15, 10), "never exceeds 100")
	assert.Equal(t, 0, Percent(3, 0), "unknown total yields 0")
	assert.Equal(t, 0, Percent(-1, 10))
}

func TestTrackerLifecycle(t *testing.T) {
	sink := &captureSink{}
	ctx := context.Background()
	tr := NewTracker("exec-1", 4, sink, nil)

	tr.Start(ctx)
	tr.Step(ctx, 1)
	tr.Step(ctx, 2)
	tr.Complete(ctx)

	require.Len(t, sink.updates, 4)
	assert.Equal(t, StatusRunning, sink.updates[0].Status)
	assert.Equal(t, 0, sink.updates[0].Progress)
	assert.Equal(t, 25, sink.updates[1].Progress)
	assert.Equal(t, 75, sink.updates[2].Progress)
	assert.Equal(t, StatusCompleted, sink.updates[3].Status)
	assert.Equal(t, 100, sink.updates[3].Progress)
	for _, u := range sink.updates {
		assert.Equal(t, "exec-1", u.ExecutionID)
	}
}

func TestTrackerFailKeepsProgress(t *testing.T) {
	sink := &captureSink{}
	ctx := context.Background()
	tr := NewTracker("exec-2", 4, sink, nil)

	tr.Start(ctx)
	tr.Step(ctx, 1)
	tr.Fail(ctx, "provider unreachable")

	last := sink.updates[len(sink.updates)-1]
	assert.Equal(t, StatusFailed, last.Status)
	assert.Equal(t, 25, last.Progress)
	assert.Equal(t, "provider unreachable", last.Error)
}

func TestTrackerToolUpdates(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker("exec-3", 1, sink, nil)

	tr.Tool(context.Background(), ToolExecution{Tool: "search", Status: StatusCompleted, DurationMS: 12})

	require.Len(t, sink.tools, 1)
	assert.Equal(t, "search", sink.tools[0].Tool)
}

func TestTrackerNilSinkIsSafe(t *testing.T) {
	tr := NewTracker("exec-4", 2, nil, nil)
	ctx := context.Background()
	tr.Start(ctx)
	tr.Step(ctx, 1)
	tr.Complete(ctx)
	assert.Equal(t, 100, tr.Snapshot().Progress)
}
