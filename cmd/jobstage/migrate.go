package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobstage/internal/config"
	"github.com/jonathan/jobstage/internal/db"
	"github.com/jonathan/jobstage/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status]",
	Short: "Apply or roll back database schema migrations",
	Long: `Manage the staged_postings and jobs schema.

  up      apply all pending migrations (default)
  down    roll back the most recent migration
  status  list migrations and whether each is applied`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}

	cfg, err := loadConfig(config.StorePostgres)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	migrator := db.NewMigrator(database, logger)
	out := cmd.OutOrStdout()

	switch direction {
	case "up":
		n, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "applied %d migration(s)\n", n)
	case "down":
		rolled, err := migrator.Down(ctx)
		if err != nil {
			return err
		}
		if !rolled {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		fmt.Fprintln(out, "rolled back 1 migration")
	case "status":
		applied, err := migrator.Applied(ctx)
		if err != nil {
			return err
		}
		for _, mig := range db.Migrations {
			status := "pending"
			if at, ok := applied[mig.Version]; ok {
				status = "applied " + at.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%3d  %-40s %s\n", mig.Version, mig.Description, status)
		}
	default:
		return fmt.Errorf("unknown migrate direction %q (want up, down or status)", direction)
	}
	return nil
}
