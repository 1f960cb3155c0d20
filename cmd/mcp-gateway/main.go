package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-gateway-go/pkg/config"
	"github.com/vikashloomba/mcp-gateway-go/pkg/eventbus"
	mcpgateway "github.com/vikashloomba/mcp-gateway-go/pkg/mcp-gateway"
	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.Level()}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatalf("%v", err)
	}
}

// run serves the gateway until ctx is cancelled. It returns instead of exiting
// so deferred cleanup, including the event bus flush, always runs.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	gatewayOpts := &mcpgateway.Options{
		Addr:                  cfg.Addr,
		Path:                  cfg.MCPPath,
		DisableMCP:            !cfg.MCPEnabled,
		RegistryBackend:       cfg.Registry,
		Strategy:              cfg.Strategy,
		BalanceListOperations: cfg.BalanceLists,
		HistoryCapacity:       cfg.HistoryCapacity,
		CORSOrigins:           cfg.CORSOrigins,
		RouterRPS:             cfg.RouterRPS,
		RouterBurst:           cfg.RouterBurst,
		Logger:                logger,
		Streamable: mcp.StreamableHTTPOptions{
			JSONResponse: true,
		},
		Manager: &mcpmgr.Options{
			ClientName:     cfg.ClientName,
			ConnectTimeout: cfg.ConnectTimeout,
			CallTimeout:    cfg.CallTimeout,
			LogJSONRPC:     cfg.LogJSONRPC,
		},
	}

	if cfg.NATSURL != "" {
		publisher, err := eventbus.NewPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer publisher.Close()
		logger.Info("event bus ready", "subject", cfg.NATSSubject, "connected", publisher.IsConnected())
		gatewayOpts.Publisher = publisher
	}

	gateway, err := mcpgateway.NewGateway(gatewayOpts)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	gwOptions := gateway.Options()
	if gwOptions.DisableMCP {
		logger.Info("gateway starting", "addr", gwOptions.Addr, "strategy", gateway.Router().StrategyName())
	} else {
		logger.Info("gateway starting", "addr", gwOptions.Addr, "mcp", gwOptions.Path, "strategy", gateway.Router().StrategyName())
	}
	serveErr := gateway.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = gateway.Shutdown(shutdownCtx)

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return fmt.Errorf("gateway server stopped: %w", serveErr)
	}
	return nil
}
