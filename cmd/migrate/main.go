// Command migrate applies or rolls back the columnar store's schema using
// golang-migrate, reading the same ColumnarStore.DSN the server loads and
// the checked-in SQL files under internal/migrations/.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/chatify/chatify/internal/config"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps to apply (0 = all)")
	sourcePath := flag.String("source", "internal/migrations", "path to migration SQL files")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", *sourcePath), cfg.ColumnarStore.DSN)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize migrator")
	}
	defer m.Close()

	if err := run(m, *direction, *steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.WithError(err).Fatal("migration failed")
	}

	logger.WithFields(logrus.Fields{"direction": *direction, "steps": *steps}).Info("migration complete")
}

func run(m *migrate.Migrate, direction string, steps int) error {
	if steps != 0 {
		if direction == "down" {
			steps = -steps
		}
		return m.Steps(steps)
	}
	switch direction {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	default:
		fmt.Fprintf(os.Stderr, "unknown direction %q, want \"up\" or \"down\"\n", direction)
		os.Exit(2)
		return nil
	}
}
