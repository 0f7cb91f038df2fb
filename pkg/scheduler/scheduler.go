package scheduler

import (
	"context"

	"github.com/chris/token-purchases/pkg/models"
)

// TaskKind identifies the side effect a task performs.
type TaskKind string

const (
	TaskNotify        TaskKind = "notify"
	TaskAppendHistory TaskKind = "append_history"
)

// Task is a unit of deferred work that runs after a reconciliation commit.
type Task struct {
	Kind         TaskKind                      `json:"kind"`
	Notification *models.NotificationRequest   `json:"notification,omitempty"`
	History      *models.PurchaseHistoryRecord `json:"history,omitempty"`
}

// Scheduler defines the interface for a component that schedules a task for later processing.
type Scheduler interface {
	// Schedule enqueues a task for asynchronous processing.
	Schedule(ctx context.Context, task *Task) error
}

// Handler executes a task. A returned error means the task should be retried.
type Handler interface {
	Handle(ctx context.Context, task *Task) error
}
