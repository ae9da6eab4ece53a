package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/locator/internal/control"
	"github.com/vietddude/locator/internal/core/domain"
)

var (
	locateTimeout    time.Duration
	locateAccuracy   float64
	locateRetries    int
	locateBackground bool
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Acquire the current position once and print it as JSON",
	Run:   runLocate,
}

func init() {
	locateCmd.Flags().DurationVar(&locateTimeout, "timeout", 0, "overall deadline (default from config)")
	locateCmd.Flags().Float64Var(&locateAccuracy, "accuracy", 0, "early-accept threshold in meters (default from config)")
	locateCmd.Flags().IntVar(&locateRetries, "retries", -1, "additional attempts (default from config)")
	locateCmd.Flags().BoolVar(&locateBackground, "background", false, "also request background permission")
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	app, err := control.NewLocator(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize Locator", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	var opts []domain.Option
	if locateTimeout > 0 {
		opts = append(opts, domain.WithTimeout(locateTimeout))
	}
	if locateAccuracy > 0 {
		opts = append(opts, domain.WithAcceptableAccuracy(locateAccuracy))
	}
	if locateRetries >= 0 {
		opts = append(opts, domain.WithRetryCount(locateRetries))
	}
	if locateBackground {
		opts = append(opts, domain.WithRequestBackground(true))
	}

	loc, err := app.Service().GetCurrentLocation(ctx, opts...)
	if err != nil {
		var le *domain.LocationError
		if errors.As(err, &le) && le.Prompt != "" {
			fmt.Fprintln(os.Stderr, le.Prompt)
		}
		slog.Error("Failed to get location", "kind", domain.KindOf(err).String(), "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(loc)
}
