package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/token-purchases/pkg/bootstrap"
	"github.com/chris/token-purchases/pkg/config"
	"github.com/chris/token-purchases/pkg/scheduler"
)

var processor scheduler.Handler

func init() {
	cfg := config.Load()
	slog.SetDefault(cfg.NewLogger(os.Stdout))

	// Initialize dependencies once per container.
	s, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		slog.Error("failed to wire services", "error", err)
		os.Exit(1)
	}
	processor = s.Processor
}

// HandleRequest runs the follow-up tasks the reconciliation engine queued: history appends and
// user notifications. Failed records are reported back so SQS redelivers only those.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		logger := slog.With("messageId", message.MessageId)

		task, err := scheduler.DecodeTask(message.Body)
		if err != nil {
			// A body that cannot be decoded will never succeed; drop it rather than loop on it.
			logger.Error("failed to decode task, dropping message", "error", err)
			continue
		}

		if err := processor.Handle(ctx, task); err != nil {
			logger.Error("task failed", "kind", task.Kind, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: message.MessageId,
			})
			continue
		}
		logger.Info("task processed", "kind", task.Kind)
	}
	return resp, nil
}

func main() {
	lambda.Start(HandleRequest)
}
