package notify

import (
	"context"
	"log/slog"

	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/scheduler"
)

// Sink accepts user-facing notifications. Enqueue never fails the caller.
type Sink interface {
	Enqueue(ctx context.Context, req models.NotificationRequest)
}

// QueueSink hands notifications to the task scheduler for asynchronous delivery.
type QueueSink struct {
	scheduler scheduler.Scheduler
}

// NewQueueSink creates a QueueSink.
func NewQueueSink(s scheduler.Scheduler) *QueueSink {
	return &QueueSink{scheduler: s}
}

// Make sure we conform to the interface
var _ Sink = (*QueueSink)(nil)

// Enqueue schedules a notify task. Failures are logged and dropped.
func (q *QueueSink) Enqueue(ctx context.Context, req models.NotificationRequest) {
	task := &scheduler.Task{Kind: scheduler.TaskNotify, Notification: &req}
	if err := q.scheduler.Schedule(ctx, task); err != nil {
		slog.Error("failed to enqueue notification", "userId", req.UserId, "kind", req.Kind, "error", err)
	}
}
