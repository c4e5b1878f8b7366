package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	factdomain "github.com/kpiflow/incento/internal/fact/domain"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
	rundomain "github.com/kpiflow/incento/internal/run/domain"
	ruledomain "github.com/kpiflow/incento/internal/rule/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded schema so the service is usable out of
// the box on a fresh postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the models. Used for the sqlite and
// mysql dialects where the versioned postgres migrations do not apply.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&indicatordomain.Indicator{},
		&factdomain.Fact{},
		&ruledomain.Rule{},
		&ruledomain.Tier{},
		&ruledomain.Condition{},
		&rundomain.CalculationRun{},
		&rundomain.ResultRow{},
	)
}
