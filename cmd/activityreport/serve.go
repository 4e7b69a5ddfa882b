package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httphandler "github.com/ericfisherdev/activityreport/internal/adapter/driving/http"
	"github.com/ericfisherdev/activityreport/internal/application"
	"github.com/ericfisherdev/activityreport/internal/config"
)

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports and cache maintenance over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	}
	cmd.Flags().String("listen-addr", "", "address to listen on")
	cmd.Flags().String("sweep-schedule", "", "cron spec of the expired-entry sweep")
	_ = v.BindPFlag(config.KeyListenAddr, cmd.Flags().Lookup("listen-addr"))
	_ = v.BindPFlag(config.KeySweepSchedule, cmd.Flags().Lookup("sweep-schedule"))
	return cmd
}

func serve(parent context.Context, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, v)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	sweeper, err := application.NewCacheSweeper(a.cache, a.cfg.SweepSchedule, slog.Default())
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	handler := httphandler.NewHandler(a.reports, a.cache, slog.Default())
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           httphandler.NewRouter(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", a.cfg.ListenAddr, "provider", a.cfg.Provider, "sweep_schedule", a.cfg.SweepSchedule)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
