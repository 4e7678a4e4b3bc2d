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

	"github.com/S1riyS/os-course-lab-4/networkfs/internal/config"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/handler"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/models"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/remote"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/repository"
	"github.com/S1riyS/os-course-lab-4/networkfs/internal/service"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging/slogext"
	"github.com/S1riyS/os-course-lab-4/networkfs/pkg/logging/slogpretty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := pflag.String("config", "configs/config.yaml", "path to the YAML config; empty reads the environment only")
	mountpoint := pflag.String("mountpoint", "", "directory to mount at, overrides mount.mountpoint")
	pflag.Parse()

	cfg := config.MustLoad(*configPath)
	if *mountpoint != "" {
		cfg.Mount.Mountpoint = *mountpoint
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Root context
	ctx := logging.MakeContextWithLogger(context.Background(), logger)

	if err := run(ctx, cfg); err != nil {
		logger.Error("networkfs stopped", slogext.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.GetLoggerFromContext(ctx)

	if cfg.Mount.Mountpoint == "" {
		return errors.New("no mountpoint given")
	}

	// Dependencies
	caller, err := remote.NewHTTPCaller(cfg.Remote, nil)
	if err != nil {
		return err
	}
	caller = remote.NewMetricsCaller(caller)

	session := models.NewSession(cfg.Remote.Token)
	fs := service.NewFileSystemService(session, caller)
	files := service.NewOpenFileService(fs, repository.NewHandleRepository(), cfg.Remote.MaxFileSize.Int())
	h := handler.NewHandler(ctx, session, fs, files, handler.OptionsFromConfig(cfg.Mount))

	server, err := handler.NewServer(h, cfg.Mount)
	if err != nil {
		return err
	}
	logger.Info("Mounted",
		slog.String("mountpoint", cfg.Mount.Mountpoint),
		slog.String("remote", cfg.Remote.BaseURL),
		slog.String("max_file_size", cfg.Remote.MaxFileSize.String()),
	)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(sigCtx)

	// Closed when Serve returns, which also happens after an unmount from
	// outside.
	served := make(chan struct{})

	g.Go(func() error {
		server.Serve()
		close(served)
		stop()
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		select {
		case <-served:
			return nil
		default:
		}

		logger.Info("Unmounting", slog.String("mountpoint", cfg.Mount.Mountpoint))
		if err := server.Unmount(); err != nil {
			logger.Warn("Unmount failed", slogext.Err(err))
		}
		return nil
	})

	if addr := cfg.Metrics.ListenAddress; addr != "" {
		metrics := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Serving metrics", slog.String("address", addr))
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metrics.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	// A no-op when the server has already delivered it.
	h.OnUnmount()
	return err
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := logging.ParseLevel(cfg.Level)

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: level,
		},
	}

	prettyHandler := opts.NewPrettyHandler(os.Stderr)

	return slog.New(prettyHandler)
}
