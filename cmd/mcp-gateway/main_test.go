package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"

	"github.com/vikashloomba/mcp-gateway-go/pkg/config"
)

func TestRunClosesEventBusOnServeError(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded nats server")
	}
	srv := natstest.RunRandClientPortServer()
	t.Cleanup(srv.Shutdown)

	cfg, err := config.FromEnv(func(string) string { return "" })
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	cfg.Addr = "127.0.0.1:-1"
	cfg.NATSURL = srv.ClientURL()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := run(context.Background(), cfg, logger); err == nil {
		t.Fatalf("run with an unusable address returned nil")
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.NumClients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("event bus connection still open after run returned (%d clients)", srv.NumClients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
