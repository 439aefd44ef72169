// Package app assembles the dashboard service and runs it until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"crypto-trading-dashboard/internal/config"
	"crypto-trading-dashboard/internal/dashboard"
	"crypto-trading-dashboard/internal/docstore"
	"crypto-trading-dashboard/internal/exchange"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// App holds the long-running components.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Server  *echo.Echo
	Store   *docstore.GormStore
	Manager *dashboard.Manager
	Syncer  *exchange.Syncer
}

// Run serves HTTP, follows auth events and runs the exchange sync until ctx is done,
// then shuts everything down in reverse order.
func (a *App) Run(ctx context.Context) error {
	a.Manager.Start(ctx)
	if err := a.Syncer.Start(); err != nil {
		return fmt.Errorf("failed to start exchange sync: %w", err)
	}

	addr := fmt.Sprintf(":%d", a.Config.Server.Port)
	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting web server", zap.String("address", addr))
		if err := a.Server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("Shutdown signal received, gracefully shutting down...")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("web server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownGrace())
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("Web server shutdown incomplete", zap.Error(err))
	}
	a.Syncer.Stop()
	a.Manager.Close()
	a.Store.Close()

	a.Logger.Info("Dashboard has been shut down.")
	return runErr
}
