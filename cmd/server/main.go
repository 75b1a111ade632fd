package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/umarkhanovv/roadwatch/internal/app"
	"github.com/umarkhanovv/roadwatch/internal/config"
	"github.com/umarkhanovv/roadwatch/internal/logging"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logging.New(logging.LevelError).Error("Failed to initialize application", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- application.Run(ctx)
	}()

	select {
	case <-sigChan:
		application.Logger.Info("Shutting down...")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			application.Logger.Error("HTTP server error", logging.WithField("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("Shutdown error", logging.WithField("error", err.Error()))
	}
	application.Logger.Info("Server stopped")
}
