// Package bootstrap builds the service's dependency graph from configuration. Every binary wires
// the same store, gateway client and reconciliation engine through here.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/token-purchases/pkg/config"
	"github.com/chris/token-purchases/pkg/eventcache"
	"github.com/chris/token-purchases/pkg/gateway"
	"github.com/chris/token-purchases/pkg/metrics"
	"github.com/chris/token-purchases/pkg/notify"
	"github.com/chris/token-purchases/pkg/reconcile"
	"github.com/chris/token-purchases/pkg/scheduler"
	"github.com/chris/token-purchases/pkg/storage"
	dydbstore "github.com/chris/token-purchases/pkg/storage/dynamodb"
	"github.com/chris/token-purchases/pkg/storage/memory"
	"github.com/chris/token-purchases/pkg/websockets"
	"github.com/chris/token-purchases/pkg/worker"
	"github.com/prometheus/client_golang/prometheus"
)

const localQueueBuffer = 256

// Services is the wired dependency graph.
type Services struct {
	Config    config.Config
	Store     storage.Storage
	Gateway   *gateway.StripeClient
	Scheduler scheduler.Scheduler
	Engine    *reconcile.Engine
	Metrics   *metrics.Metrics
	Publisher websockets.Publisher
	Processor *worker.Processor
	Cache     *eventcache.Cache

	// Set only with the memory backend: the local task worker and websocket hub.
	LocalQueue *scheduler.MemoryScheduler
	Hub        *websockets.Hub

	AWS *aws.Config
}

// New wires the services for cfg. registerer may be nil to skip metrics.
func New(ctx context.Context, cfg config.Config, registerer prometheus.Registerer) (*Services, error) {
	s := &Services{Config: cfg}
	if registerer != nil {
		s.Metrics = metrics.New(registerer, cfg.Environment)
	}

	s.Gateway = gateway.NewStripeClient(gateway.StripeConfig{
		BaseURL:       cfg.Gateway.BaseURL,
		APIKey:        cfg.Gateway.APIKey,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
	})

	switch cfg.StorageBackend {
	case config.BackendMemory:
		store := memory.New()
		s.Store = store
		s.Hub = websockets.NewHub()
		s.Publisher = s.Hub
		s.Processor = worker.NewProcessor(store, s.Publisher)
		s.LocalQueue = scheduler.NewMemoryScheduler(s.Processor, localQueueBuffer)
		s.Scheduler = s.LocalQueue
	case config.BackendDynamoDB:
		if err := s.wireAWS(ctx, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if cfg.RedisAddr != "" {
		client, err := eventcache.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		s.Cache = eventcache.New(client, cfg.EventCacheTTL)
	}

	s.Engine = reconcile.NewEngine(reconcile.Dependencies{
		Store:     s.Store,
		History:   s.Store,
		Orphans:   s.Store,
		Scheduler: s.Scheduler,
		Sink:      notify.NewQueueSink(s.Scheduler),
		Metrics:   s.Metrics,
		Timeout:   cfg.ApplyTimeout,
	})
	return s, nil
}

func (s *Services) wireAWS(ctx context.Context, cfg config.Config) error {
	if err := cfg.ValidateDynamoDB(); err != nil {
		return err
	}
	if cfg.SQSQueueURL == "" {
		return fmt.Errorf("SQS_QUEUE_URL environment variable not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("unable to load SDK config: %w", err)
	}
	s.AWS = &awsCfg

	store := dydbstore.New(dynamodb.NewFromConfig(awsCfg), dydbstore.TableNames{
		Accounts:     cfg.Tables.Accounts,
		Transactions: cfg.Tables.Transactions,
		History:      cfg.Tables.History,
		Orphans:      cfg.Tables.Orphans,
		Connections:  cfg.Tables.Connections,
	})
	s.Store = store
	s.Scheduler = scheduler.NewSQSScheduler(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL)

	if cfg.WebsocketAPIEndpoint != "" {
		client := websockets.NewAPIGatewayClient(awsCfg, cfg.WebsocketAPIEndpoint)
		s.Publisher = websockets.NewPublisher(store, store, client)
	} else {
		slog.Warn("WEBSOCKET_API_ENDPOINT not set, notifications will only be logged")
		s.Publisher = &websockets.NoOpPublisher{}
	}
	s.Processor = worker.NewProcessor(store, s.Publisher)
	return nil
}
