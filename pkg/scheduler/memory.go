package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrQueueFull is returned by MemoryScheduler.Schedule when the buffer has no room.
var ErrQueueFull = errors.New("task queue is full")

// MemoryScheduler is an in-process Scheduler for local runs. Tasks are buffered in a channel and
// handled by Run with exponential backoff between attempts.
type MemoryScheduler struct {
	tasks           chan *Task
	handler         Handler
	MaxTries        uint
	InitialInterval time.Duration
}

// NewMemoryScheduler creates a MemoryScheduler with room for buffer pending tasks.
func NewMemoryScheduler(handler Handler, buffer int) *MemoryScheduler {
	return &MemoryScheduler{
		tasks:           make(chan *Task, buffer),
		handler:         handler,
		MaxTries:        5,
		InitialInterval: 500 * time.Millisecond,
	}
}

// Make sure we conform to the interface
var _ Scheduler = (*MemoryScheduler)(nil)

// Schedule never blocks: a full buffer is reported as ErrQueueFull.
func (s *MemoryScheduler) Schedule(ctx context.Context, task *Task) error {
	select {
	case s.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Run handles tasks until ctx is cancelled.
func (s *MemoryScheduler) Run(ctx context.Context) {
	slog.Info("task worker started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("task worker stopped")
			return
		case task := <-s.tasks:
			s.process(ctx, task)
		}
	}
}

func (s *MemoryScheduler) process(ctx context.Context, task *Task) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialInterval

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		if err := s.handler.Handle(ctx, task); err != nil {
			slog.Warn("task attempt failed", "kind", task.Kind, "attempt", attempts, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.MaxTries))
	if err != nil {
		slog.Error("task dropped after retries", "kind", task.Kind, "attempts", attempts, "error", err)
	}
}
