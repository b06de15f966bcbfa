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

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/streetlift/meet-engine/internal/app"
	"github.com/streetlift/meet-engine/internal/config"
	"github.com/streetlift/meet-engine/internal/observability"
	"github.com/streetlift/meet-engine/internal/platform/logging"
	"github.com/streetlift/meet-engine/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "meetd",
		Usage: "realtime engine for streetlifting meets",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the realtime service",
				Action: serveAction,
			},
			{
				Name:  "initdb",
				Usage: "create the local schema (and the archive schema with --archive)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "archive", Usage: "also apply the remote archive schema"},
				},
				Action: initdbAction,
			},
			{
				Name:   "seed",
				Usage:  "populate the local store with a demonstration meet",
				Action: seedAction,
			},
			{
				Name:      "sync",
				Usage:     "upload a finished meet to the remote archive",
				ArgsUsage: "<meet_code>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "re-upload even if the meet is already archived"},
				},
				Action: syncAction,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfigAndLogger() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel(cfg),
	}))

	return cfg, logger, nil
}

func slogLevel(cfg config.Config) slog.Level {
	switch cfg.LogLevel {
	case logging.LevelDebug:
		return slog.LevelDebug
	case logging.LevelWarn:
		return slog.LevelWarn
	case logging.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func serveAction(c *cli.Context) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx := c.Context

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		return cli.Exit(err.Error(), 1)
	}

	if shutdown, err := observability.InitUptrace(cfg, nil); err != nil {
		logger.Warn("uptrace init failed", "error", err)
	} else {
		application.AddTeardown(shutdown)
	}
	if stop, err := observability.InitPyroscope(cfg, logger); err != nil {
		logger.Warn("pyroscope init failed", "error", err)
	} else {
		application.AddTeardown(func(context.Context) error { return stop() })
	}
	pprofSrv, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Warn("pprof init failed", "error", err)
	} else if pprofSrv != nil {
		application.AddTeardown(func(ctx context.Context) error {
			return observability.StopPprofServer(pprofSrv, logger, 5*time.Second)
		})
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.HTTPAddr)
		if err := application.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-signalCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return cli.Exit(err.Error(), 1)
	}

	logger.Info("meetd stopped")
	return nil
}

func initdbAction(c *cli.Context) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := app.InitLocalSchema(cfg, logger); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.Bool("archive") {
		if err := app.InitArchiveSchema(cfg, logger); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	return nil
}

func seedAction(c *cli.Context) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := app.SeedLocal(c.Context, cfg, logger); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

func syncAction(c *cli.Context) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	meetCode := c.Args().First()
	if meetCode == "" {
		return cli.Exit("usage: meetd sync <meet_code>", 1)
	}

	report, err := app.RunSync(c.Context, cfg, logger, meetCode, c.Bool("force"))
	if err != nil {
		if errors.Is(err, usecase.ErrAlreadySynced) {
			return cli.Exit(err.Error(), 2)
		}
		return cli.Exit(err.Error(), 1)
	}

	logger.Info("sync complete",
		"meet_code", report.MeetCode,
		"athletes", report.AthletesUploaded,
		"results", report.ResultsInserted,
		"records_promoted", report.RecordsPromoted,
	)
	return nil
}
