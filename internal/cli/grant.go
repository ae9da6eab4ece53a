package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/locator/internal/core/config"
	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/infra/storage/postgres"
)

var grantCmd = &cobra.Command{
	Use:   "grant [kind] [true|false]",
	Short: "Override a stored location permission for the configured device",
	Args:  cobra.ExactArgs(2),
	Run:   runGrant,
}

func init() {
	rootCmd.AddCommand(grantCmd)
}

func runGrant(cmd *cobra.Command, args []string) {
	kind, err := domain.ParsePermissionKind(args[0])
	if err != nil {
		fmt.Printf("Invalid permission: %v\n", err)
		os.Exit(1)
	}
	granted, err := strconv.ParseBool(args[1])
	if err != nil {
		fmt.Printf("Invalid value: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Permissions.Type != "postgres" {
		fmt.Println("grant requires permissions.type: postgres")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	repo := postgres.NewPermissionRepo(db, cfg.Permissions.DeviceID)
	if err := repo.Set(ctx, kind, granted); err != nil {
		slog.Error("Failed to set permission", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully set %s permission for %s to %t\n", kind, cfg.Permissions.DeviceID, granted)
}
