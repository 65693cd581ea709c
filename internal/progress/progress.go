// Package progress tracks long-running executions (extraction runs,
// ingestions, takeoffs) and pushes status updates to a sink. Delivery
// is best-effort at-most-once; a lost update is repaired by the next
// one.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status of an execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Update is one execution status push.
type Update struct {
	ExecutionID string `json:"execution_id"`
	Status      Status `json:"status"`
	// Progress is a percentage in [0, 100].
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// ToolExecution reports one tool call inside an execution.
type ToolExecution struct {
	Tool       string `json:"tool"`
	Status     Status `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Sink receives execution updates, grouped by execution id.
type Sink interface {
	SendExecutionUpdate(ctx context.Context, update Update) error
	SendToolExecutionUpdate(ctx context.Context, executionID string, tool ToolExecution) error
}

// Percent computes a bounded progress percentage from step counts.
// Zero or negative totals yield 0.
func Percent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	pct := 100 * completed / total
	if pct > 100 {
		return 100
	}
	return pct
}

// Tracker tracks the step counts of one execution and pushes updates
// through a sink. Safe for concurrent use.
type Tracker struct {
	executionID string
	sink        Sink
	logger      *slog.Logger

	mu        sync.Mutex
	status    Status
	total     int
	completed int
	started   time.Time
}

// NewTracker starts tracking an execution with a known step total.
func NewTracker(executionID string, total int, sink Sink, logger *slog.Logger) *Tracker {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		executionID: executionID,
		sink:        sink,
		logger:      logger,
		status:      StatusPending,
		total:       total,
		started:     time.Now(),
	}
}

// Start marks the execution running and pushes the initial update.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	t.status = StatusRunning
	t.mu.Unlock()
	t.push(ctx, "")
}

// Step records completed steps and pushes the new percentage.
func (t *Tracker) Step(ctx context.Context, n int) {
	t.mu.Lock()
	t.completed += n
	t.mu.Unlock()
	t.push(ctx, "")
}

// Complete marks the execution finished at 100 percent.
func (t *Tracker) Complete(ctx context.Context) {
	t.mu.Lock()
	t.status = StatusCompleted
	t.completed = t.total
	t.mu.Unlock()
	t.push(ctx, "")
}

// Fail marks the execution failed, keeping the last progress value.
func (t *Tracker) Fail(ctx context.Context, errMsg string) {
	t.mu.Lock()
	t.status = StatusFailed
	t.mu.Unlock()
	t.push(ctx, errMsg)
}

// Cancel marks the execution cancelled.
func (t *Tracker) Cancel(ctx context.Context) {
	t.mu.Lock()
	t.status = StatusCancelled
	t.mu.Unlock()
	t.push(ctx, "")
}

// Tool reports one tool call under this execution.
func (t *Tracker) Tool(ctx context.Context, tool ToolExecution) {
	if err := t.sink.SendToolExecutionUpdate(ctx, t.executionID, tool); err != nil {
		t.logger.Debug("tool update dropped",
			slog.String("execution_id", t.executionID),
			slog.String("error", err.Error()))
	}
}

// Snapshot returns the current update without pushing it.
func (t *Tracker) Snapshot() Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Update{
		ExecutionID: t.executionID,
		Status:      t.status,
		Progress:    Percent(t.completed, t.total),
	}
}

func (t *Tracker) push(ctx context.Context, errMsg string) {
	update := t.Snapshot()
	update.Error = errMsg
	if err := t.sink.SendExecutionUpdate(ctx, update); err != nil {
		// At-most-once delivery: a dropped update is not retried.
		t.logger.Debug("execution update dropped",
			slog.String("execution_id", t.executionID),
			slog.String("error", err.Error()))
	}
}

// NopSink discards all updates.
type NopSink struct{}

func (NopSink) SendExecutionUpdate(context.Context, Update) error { return nil }
func (NopSink) SendToolExecutionUpdate(context.Context, string, ToolExecution) error {
	return nil
}

// LogSink writes updates to the structured log. It is the default
// sink for CLI runs, where no push channel exists.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) SendExecutionUpdate(_ context.Context, u Update) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		slog.String("execution_id", u.ExecutionID),
		slog.String("status", string(u.Status)),
		slog.Int("progress", u.Progress),
	}
	if u.Error != "" {
		attrs = append(attrs, slog.String("error", u.Error))
	}
	logger.Info("execution update", attrs...)
	return nil
}

func (s LogSink) SendToolExecutionUpdate(_ context.Context, executionID string, tool ToolExecution) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("tool execution",
		slog.String("execution_id", executionID),
		slog.String("tool", tool.Tool),
		slog.String("status", string(tool.Status)),
		slog.Int64("duration_ms", tool.DurationMS))
	return nil
}

var (
	_ Sink = NopSink{}
	_ Sink = LogSink{}
)
