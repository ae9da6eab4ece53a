package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/locator/internal/core/config"
	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the location permission grants of the configured device",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var permissionKinds = []domain.PermissionKind{
	domain.PermissionFine,
	domain.PermissionCoarse,
	domain.PermissionBackground,
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	grants := make(map[domain.PermissionKind]bool, len(permissionKinds))
	source := "static"

	if cfg.Permissions.Type == "postgres" {
		ctx := context.Background()
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = db.Close()
		}()

		repo := postgres.NewPermissionRepo(db, cfg.Permissions.DeviceID)
		for _, kind := range permissionKinds {
			granted, err := repo.Check(ctx, kind)
			if err != nil {
				slog.Error("Failed to check permission", "kind", kind, "error", err)
				os.Exit(1)
			}
			grants[kind] = granted
		}
		source = "postgres:" + cfg.Permissions.DeviceID
	} else {
		for _, kind := range permissionKinds {
			grants[kind] = cfg.Permissions.Grants[string(kind)]
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintf(w, "SOURCE\t%s\n", source)
	_, _ = fmt.Fprintln(w, "PERMISSION\tGRANTED")
	for _, kind := range permissionKinds {
		_, _ = fmt.Fprintf(w, "%s\t%t\n", kind, grants[kind])
	}
	_ = w.Flush()
}
