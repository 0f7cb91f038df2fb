package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris/token-purchases/pkg/scheduler"
	"github.com/chris/token-purchases/pkg/storage"
	"github.com/chris/token-purchases/pkg/websockets"
)

// Processor executes the side-effect tasks scheduled after reconciliation.
type Processor struct {
	History   storage.HistoryWriter
	Publisher websockets.Publisher
}

// NewProcessor creates a Processor.
func NewProcessor(history storage.HistoryWriter, publisher websockets.Publisher) *Processor {
	return &Processor{History: history, Publisher: publisher}
}

// Make sure we conform to the interface
var _ scheduler.Handler = (*Processor)(nil)

// Handle runs one task. Errors are returned so the queue retries the task.
func (p *Processor) Handle(ctx context.Context, task *scheduler.Task) error {
	switch task.Kind {
	case scheduler.TaskAppendHistory:
		if task.History == nil {
			slog.Error("append_history task without record, dropping")
			return nil
		}
		err := p.History.AppendHistory(ctx, task.History)
		if errors.Is(err, storage.ErrHistoryExists) {
			slog.Info("history already recorded", "transactionId", task.History.TransactionId)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		slog.Info("history recorded", "transactionId", task.History.TransactionId)
		return nil

	case scheduler.TaskNotify:
		if task.Notification == nil {
			slog.Error("notify task without notification, dropping")
			return nil
		}
		msg := websockets.MessageFromNotification(task.Notification)
		if err := p.Publisher.Publish(ctx, task.Notification.UserId, msg); err != nil {
			return fmt.Errorf("failed to publish notification: %w", err)
		}
		return nil

	default:
		slog.Warn("unknown task kind, dropping", "kind", task.Kind)
		return nil
	}
}
