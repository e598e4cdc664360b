// Package app provides application lifecycle management for the robot server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/hospital-robot-server/internal/config"
	"github.com/stacklok/hospital-robot-server/internal/sink"
)

// RobotApp encapsulates all components needed to run the robot API server
// It provides lifecycle management and graceful shutdown capabilities
type RobotApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start runs the HTTP server and, for connection-oriented sinks, the sink
// connection loop. It blocks until the server stops or either part fails.
func (app *RobotApp) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(listener)
}

// Serve is Start on an existing listener
func (app *RobotApp) Serve(listener net.Listener) error {
	g, ctx := errgroup.WithContext(app.ctx)

	if runner, ok := app.components.Sink.(sink.Runner); ok {
		g.Go(func() error {
			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("sink %s failed: %w", app.components.Sink.Name(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("Server listening", "address", listener.Addr().String())
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Stop gracefully stops the application with the given timeout.
// Pending reversions are cancelled, observers are disconnected, the sink
// loop ends and the HTTP server drains.
func (app *RobotApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	app.components.Coordinator.Stop()

	// Cancel the application context
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if err := app.components.Sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sink: %w", err))
	}

	if app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *RobotApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *RobotApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired components
func (app *RobotApp) Components() *AppComponents {
	return app.components
}
