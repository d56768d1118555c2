package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/desertthunder/stackr/internal/server"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted, then drains in-flight builds.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}

	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := cmd.Int("port")
	if port == 0 {
		port = r.config.Server.Port
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	buildTimeout := shared.Duration(r.config.Build.Timeout, 2*time.Minute)
	handler := server.NewStackHandler(engine, buildTimeout, r.config.Build.MaxPerSeed, r.logger)
	router := server.NewAPIRouter(handler, r.logger)
	srv := server.New(addr, router, buildTimeout)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("api listening", "addr", addr, "routes", len(router.Patterns()))
		r.logger.Debug("registered routes", "patterns", router.Patterns())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down", "grace", buildTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
