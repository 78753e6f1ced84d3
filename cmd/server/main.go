package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"frost/internal/platform/config"
	"frost/internal/platform/httpserver"
	"frost/internal/platform/logger"
	"frost/internal/transport/tcp"
)

// main loads configuration, wires the policy store and runs its listeners
// until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "frost: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	g, ctx := errgroup.WithContext(ctx)
	for _, worker := range app.workers {
		g.Go(func() error {
			return ignoreCanceled(worker(ctx))
		})
	}

	if port := cfg.Server.TCP.ListeningPort; port > 0 {
		opts := []tcp.Option{tcp.WithLogger(log)}
		if app.limiter != nil {
			opts = append(opts, tcp.WithRateLimiter(app.limiter))
		}
		server := tcp.NewServer(app.service, opts...)
		g.Go(func() error {
			return server.ListenAndServe(ctx, ":"+strconv.Itoa(port))
		})
	}

	srv := httpserver.New(cfg.Server.HTTP.Addr, app.router)
	g.Go(func() error {
		log.InfoContext(ctx, "starting frost",
			"http_addr", cfg.Server.HTTP.Addr,
			"tcp_port", cfg.Server.TCP.ListeningPort,
			"ledger", cfg.Ledger.Backend,
			"fold_mode", app.service.FoldMode().String(),
		)
		return httpserver.Run(ctx, srv, cfg.Server.HTTP.ShutdownTimeout)
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
