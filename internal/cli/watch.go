package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/locator/internal/control"
	"github.com/vietddude/locator/internal/core/domain"
)

var watchHighAccuracy bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream position updates as JSON lines until interrupted",
	Run:   runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchHighAccuracy, "high-accuracy", true, "use the precise provider")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	app, err := control.NewLocator(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize Locator", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	h := app.Service().WatchPosition(
		func(loc domain.Location) { _ = enc.Encode(loc) },
		func(err error) { slog.Warn("Watch error", "kind", domain.KindOf(err).String(), "error", err) },
		watchHighAccuracy,
	)
	slog.Info("Watching position", "handle", h, "high_accuracy", watchHighAccuracy)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-app.Service().WatchDone(h):
		slog.Warn("Watch ended", "handle", h)
	}

	app.Service().ClearWatch(h)
	if err := app.Stop(ctx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
