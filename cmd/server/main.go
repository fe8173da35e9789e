package main

import (
	"context"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/roomrelay/internal/metrics"
	"github.com/Tyrowin/roomrelay/internal/relay"
	"github.com/Tyrowin/roomrelay/internal/server"
)

func main() {
	cfg, err := server.LoadConfig(".env")
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := server.NewLogger(cfg.Env)
	logger.Info("starting room relay", "env", cfg.Env, "port", cfg.Port)

	m := metrics.New()
	hub := relay.NewHub(
		relay.WithLogger(logger),
		relay.WithMetrics(m),
		relay.WithSingleRoom(cfg.SingleRoomPerConnection),
	)

	srv := server.New(cfg, hub, m, logger)
	if err := srv.Start(); err != nil {
		logger.Error("server start failed", "err", err)
		os.Exit(1)
	}

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"relay-server": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				return srv.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("room relay exited", "code", exitCode)
	os.Exit(exitCode)
}
