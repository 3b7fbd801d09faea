package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/catalog"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/config"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/files"
	apphttp "github.com/WailSalutem-Health-Care/clinic-service/internal/http"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/logging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/metrics"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinic-service",
		Short:         "Clinic records API: patients, visits, prescriptions and files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// setup loads the configuration, configures logging and opens the database.
func setup(ctx context.Context) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	database, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, database, nil
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, database, err := setup(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			applied, err := db.Migrate(ctx, database)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info().Int("applied", applied).Msg("migrations complete")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the medicine, lab test and imaging study catalog from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, database, err := setup(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if file == "" {
				file = cfg.CatalogFile
			}
			c, err := catalog.LoadFile(file)
			if err != nil {
				return err
			}

			svc := catalog.NewService(catalog.NewRepository(database), db.NewTransactor(database, cfg.DBTxTimeout))
			res, err := svc.Seed(ctx, c)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			log.Info().
				Str("file", file).
				Int("medicines", res.Medicines).
				Int("lab_tests", res.LabTests).
				Int("imaging_studies", res.ImagingStudies).
				Msg("catalog loaded")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog file (defaults to CATALOG_FILE)")
	return cmd
}

func runServer(migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, database, err := setup(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	provider, err := telemetry.InitProvider(ctx, telemetry.LoadConfig())
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize OpenTelemetry, continuing without it")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		provider.Shutdown(shutdownCtx)
	}()

	appMetrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize business metrics")
	}

	if err := metrics.RegisterDBStats(database); err != nil {
		log.Warn().Err(err).Msg("failed to register database pool metrics")
	}

	if migrate {
		applied, err := db.Migrate(ctx, database)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info().Int("applied", applied).Msg("migrations complete")
	}

	publisher, err := messaging.New(cfg.RabbitMQURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to RabbitMQ, domain events disabled")
		publisher = messaging.NopPublisher{}
	}
	defer publisher.Close()

	storage, err := files.NewStorage(cfg.UploadDir)
	if err != nil {
		return err
	}

	router := apphttp.SetupRouter(apphttp.Dependencies{
		DB:        database,
		Config:    cfg,
		Publisher: publisher,
		Metrics:   appMetrics,
		Storage:   storage,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apphttp.CORSMiddleware(cfg.Origins())(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("upload_dir", storage.Root()).
			Str("files_cascade_policy", cfg.FilesCascadePolicy).
			Msg("clinic-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
