// Package migration creates the schema on startup so the service is usable
// out of the box for local and self-hosted environments.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/erp"
	submissiondomain "github.com/smallbiznis/invois/internal/submission/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL migrations. Postgres only; the other
// dialects go through AutoMigrate.
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

// AutoMigrate creates the schema through gorm for sqlite and mysql.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&erp.Party{},
		&erp.Invoice{},
		&erp.InvoiceLine{},
		&credentialdomain.Credential{},
		&submissiondomain.SubmissionRecord{},
		&submissiondomain.SubmissionLine{},
		&submissiondomain.AttemptLog{},
	)
}
