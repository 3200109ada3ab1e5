package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/app"
	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger(cfg.App))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to build application", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           engine.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Scheduler.Enabled {
		g.Go(func() error {
			return engine.Scheduler.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
