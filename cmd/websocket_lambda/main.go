package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/token-purchases/pkg/bootstrap"
	"github.com/chris/token-purchases/pkg/config"
	wshandlers "github.com/chris/token-purchases/pkg/handlers/websockets"
)

var handler *wshandlers.Handler

func init() {
	cfg := config.Load()
	slog.SetDefault(cfg.NewLogger(os.Stdout))

	s, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		slog.Error("failed to wire services", "error", err)
		os.Exit(1)
	}
	handler = wshandlers.NewHandler(s.Store, nil)
}

// HandleRequest routes API Gateway WebSocket events by route key.
func HandleRequest(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch request.RequestContext.RouteKey {
	case "$connect":
		return handler.HandleConnect(ctx, request)
	case "$disconnect":
		return handler.HandleDisconnect(ctx, request)
	case "$default":
		return handler.HandleDefault(ctx, request)
	default:
		slog.Warn("unknown route", "routeKey", request.RequestContext.RouteKey)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}
}

func main() {
	lambda.Start(HandleRequest)
}
