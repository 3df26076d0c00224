package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mbox-ediscovery/cmd"
	"github.com/dhcgn/mbox-ediscovery/config"
	"github.com/dhcgn/mbox-ediscovery/locate"
	"github.com/dhcgn/mbox-ediscovery/progress"
	"github.com/dhcgn/mbox-ediscovery/report"
	"github.com/dhcgn/mbox-ediscovery/runner"
	"github.com/dhcgn/mbox-ediscovery/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "mbox-ediscovery",
		Short:        "Search mbox archives for terms and export the matching messages",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting mbox-ediscovery", "root", cfg.Root, "terms", cfg.Terms, "format", cfg.Format)

			rep, err := run(c.Context(), cfg, logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.OutOrStdout(), "Found and extracted %d matching emails in %.2f seconds.\n", rep.Matches, rep.Elapsed.Seconds())
			fmt.Fprintf(c.OutOrStdout(), "Output: %s\n", rep.OutputDir)
			if len(rep.Errors) > 0 {
				fmt.Fprintf(c.OutOrStdout(), "%d errors recorded in %s\n", len(rep.Errors), filepath.Join(rep.OutputDir, report.ErrorLogName))
			}
			return nil
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
	rootCmd.AddCommand(cmd.NewScanCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) (report.Report, error) {
	r, err := runner.New(ctx, cfg, logger)
	if err != nil {
		return report.Report{}, fmt.Errorf("runner.New: %w", err)
	}

	if cfg.Progress {
		total, err := locate.Count(cfg.Root)
		if err != nil {
			return report.Report{}, err
		}
		progress.NewProgressReporter(r, progress.New(total, true))
	} else {
		stats.NewReporter(r, logger)
	}

	return r.Start()
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}
	if cfg.Progress && cfg.LogLevel == "info" {
		// keep the terminal for the progress bar
		level.Set(slog.LevelWarn)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("mbox-ediscovery-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler), cleanup, nil
}
