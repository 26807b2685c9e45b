package cmd

import (
	"arxivshorts/internal/adapter/outbound/localstore"
	"arxivshorts/internal/adapter/outbound/repository"
	"arxivshorts/internal/config"
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// newMigrateCmd creates and returns the migrate command.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply or roll back the schema of the configured store.

The postgres store uses the embedded SQL migrations. The sqlite store is
migrated in place by "migrate up"; firestore needs no schema.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrateUp(cmd.Context(), GetConfig())
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("invalid steps %q: %w", args[0], err)
					}
					steps = n
				}
				return withMigrator(GetConfig(), func(m *repository.Migrator) error { return m.Down(steps) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(GetConfig(), func(m *repository.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func migrateUp(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		if ctx == nil {
			ctx = context.Background()
		}
		db, err := localstore.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer func() { _ = localstore.Close(db) }()
		return localstore.Migrate(ctx, db)
	case config.StoreDriverFirestore:
		return nil
	default:
		return withMigrator(cfg, func(m *repository.Migrator) error { return m.Up() })
	}
}

func withMigrator(cfg *config.Config, fn func(*repository.Migrator) error) error {
	if cfg.Store.Driver != config.StoreDriverPostgres {
		return fmt.Errorf("store driver %q has no versioned migrations", cfg.Store.Driver)
	}
	m, err := repository.NewMigrator(cfg.Database.MigrationURL())
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newMigrateCmd())
}
