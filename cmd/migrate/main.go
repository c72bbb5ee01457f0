package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/finearr/finearr/internal/config"
	"github.com/finearr/finearr/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	var (
		dbURL          string
		migrationsPath string
		direction      string
		steps          int
		force          int
	)

	flag.StringVar(&dbURL, "db", "", "Database URL (defaults to the database section of the finearr configuration)")
	flag.StringVar(&migrationsPath, "path", "./migrations", "Path to migrations directory")
	flag.StringVar(&direction, "direction", "up", "Migration direction: up, down or version")
	flag.IntVar(&steps, "steps", 0, "Number of steps to migrate (0 means all)")
	flag.IntVar(&force, "force", -1, "Force the schema version and clear the dirty flag")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if dbURL == "" {
		dbURL = cfg.Database.URL()
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), dbURL)
	if err != nil {
		logger.Log.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	defer m.Close()

	if err := run(m, direction, steps, force); err != nil {
		logger.Log.Error("Migration failed", zap.String("direction", direction), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Log.Info("Documents schema has no version")
	case err != nil:
		logger.Log.Fatal("Failed to get migration version", zap.Error(err))
	default:
		logger.Log.Info("Documents schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
}

func run(m *migrate.Migrate, direction string, steps, force int) error {
	if force >= 0 {
		return m.Force(force)
	}

	var err error
	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		return nil
	default:
		return fmt.Errorf("invalid direction %q (must be up, down or version)", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Log.Info("No migrations to apply")
		return nil
	}
	return err
}
