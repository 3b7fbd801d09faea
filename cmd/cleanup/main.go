package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/config"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/files"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/logging"
)

func main() {
	var (
		dryRun    bool
		grace     time.Duration
		retainFor time.Duration
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:           "cleanup",
		Short:         "Remove stale staging files and uploaded files that no patient_files row references",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel, cfg.LogFormat)

			if !cmd.Flags().Changed("grace") {
				grace = cfg.OrphanGracePeriod
			}
			if !cmd.Flags().Changed("retain-for") {
				retainFor = cfg.RetainedFilesTTL
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			database, err := db.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			storage, err := files.NewStorage(cfg.UploadDir)
			if err != nil {
				return err
			}

			res, err := files.NewSweeper(storage, database, files.SweepPolicy{
				Grace:     grace,
				Retain:    cfg.FilesCascadePolicy == config.CascadeRetainFiles,
				RetainFor: retainFor,
			}).Sweep(ctx, dryRun)
			if err != nil {
				return err
			}
			log.Info().
				Int("scanned", res.Scanned).
				Int("orphans", len(res.Orphans)).
				Int("staged", len(res.Staged)).
				Int("removed", res.Removed).
				Bool("dry_run", dryRun).
				Msg("cleanup job finished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list orphaned files without removing them")
	cmd.Flags().DurationVar(&grace, "grace", files.DefaultGracePeriod, "skip files modified more recently than this")
	cmd.Flags().DurationVar(&retainFor, "retain-for", 0, "under the retain policy, keep unreferenced files this long (0 keeps them)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall job timeout")

	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("cleanup failed")
		os.Exit(1)
	}
}
