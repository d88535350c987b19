package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/metar-display/internal/config"
	"github.com/couchcryptid/metar-display/internal/device"
	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the display",
	Long: `Boot the display: join the stored network and page the station's reports,
or serve the configuration portal when no network is configured or the join
fails. The process exits with status 3 after a hardware reset.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDevice(cmd.Context(), (*device.Machine).Run)
	},
}

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Boot straight into the configuration portal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDevice(cmd.Context(), (*device.Machine).Provision)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [STATION]",
	Short: "Fetch and print the wrapped reports once",
	Long: `Fetch the METAR and TAF for STATION (default: the stored station) and print
them as they would appear on the display, one row per line.`,
	Example: `  metar-display fetch KJFK
  API_BASE_URL=http://localhost:8081 metar-display fetch ZYTX`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

var wrapWidth int

var wrapCmd = &cobra.Command{
	Use:   "wrap TEXT...",
	Short: "Word-wrap text to display rows",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if wrapWidth <= 0 {
			return fmt.Errorf("--width must be positive, got %d", wrapWidth)
		}
		for _, line := range domain.Wrap(strings.Join(args, " "), wrapWidth) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	wrapCmd.Flags().IntVar(&wrapWidth, "width", domain.LineWidth, "Characters per row")
}

func runDevice(parent context.Context, entry func(*device.Machine, context.Context) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	a, err := newApp(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.ops != nil {
		go func() {
			if err := a.ops.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server error", "error", err)
			}
		}()
	}

	err = entry(a.machine, ctx)

	if a.ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if serr := a.ops.Shutdown(shutdownCtx); serr != nil {
			logger.Error("ops server shutdown error", "error", serr)
		}
	}

	switch {
	case errors.Is(err, device.ErrReset):
		logger.Info("exiting for reset")
		return err
	case ctx.Err() != nil:
		logger.Info("shutdown complete")
		return nil
	default:
		return err
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	st := newStore(cfg, logger)
	var station string
	if len(args) == 1 {
		station = strings.ToUpper(strings.TrimSpace(args[0]))
	} else {
		dc, err := st.LoadConfig()
		if err != nil {
			return fmt.Errorf("load device config: %w", err)
		}
		station = dc.StationID
	}

	cache := newCache(cfg, st, domain.NewWallClock(nil), metrics, logger)
	reports := cache.Fetch(cmd.Context(), station)
	if !reports.Any() {
		return fmt.Errorf("no reports for %s", station)
	}
	for _, line := range domain.ComposeLines(reports, domain.LineWidth) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
