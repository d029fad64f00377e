package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/config"
	"github.com/investly/investly/internal/database"
	"github.com/investly/investly/internal/dbinfo"
	"github.com/investly/investly/internal/logger"
	"github.com/investly/investly/internal/maintenance"
	"github.com/investly/investly/internal/models"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Component(logger.GetLogger(), "dbtool")

	rootCmd := &cobra.Command{
		Use:           "dbtool",
		Short:         "Investly database maintenance",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete all users and their data (plans are kept)",
		Run: func(cmd *cobra.Command, args []string) {
			withDB(cfg, log, func(db *gorm.DB) error {
				counts, err := maintenance.Cleanup(cmd.Context(), db, log)
				if err != nil {
					return err
				}
				for _, c := range counts {
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d rows deleted\n", c.Table, c.Deleted)
				}
				return nil
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "setup",
		Short: "Seed the default plans and the admin account",
		Run: func(cmd *cobra.Command, args []string) {
			withDB(cfg, log, func(db *gorm.DB) error {
				result, err := maintenance.Setup(cmd.Context(), db, maintenance.AdminAccount{
					Email:    cfg.Admin.Email,
					Password: cfg.Admin.Password,
					Name:     cfg.Admin.Name,
				}, log)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plans created: %d\nAdmin created: %t\n", result.PlansCreated, result.AdminCreated)
				return nil
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show database backend, size and row counts",
		Run: func(cmd *cobra.Command, args []string) {
			withDB(cfg, log, func(db *gorm.DB) error {
				info, err := dbinfo.Inspect(cmd.Context(), db)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database: %s %s (%.1f MiB)\n", info.Dialect, info.Version, float64(info.SizeBytes)/(1<<20))
				for _, t := range info.Tables {
					fmt.Fprintf(out, "%-16s %d rows\n", t.Table, t.Rows)
				}
				return nil
			})
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withDB opens and migrates the database, runs fn and closes the database.
// Any failure is fatal: it is logged, the database is closed and the process exits with status 1.
func withDB(cfg *config.Config, log zerolog.Logger, fn func(db *gorm.DB) error) {
	db, err := database.Open(cfg.Database.URL, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		os.Exit(1)
	}

	if err := models.AutoMigrate(db); err != nil {
		fail(db, log, err, "Failed to migrate database")
	}
	if err := fn(db); err != nil {
		fail(db, log, err, "Maintenance failed")
	}

	if err := database.Close(db); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
		os.Exit(1)
	}
}

func fail(db *gorm.DB, log zerolog.Logger, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	if closeErr := database.Close(db); closeErr != nil {
		log.Error().Err(closeErr).Msg("Failed to close database")
	}
	os.Exit(1)
}
