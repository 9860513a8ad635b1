// Package migrate applies the embedded SQL migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"modelplane/authcore/internal/db"
)

// ErrNoChange is returned when the database is already at the target version.
// Callers decide whether that counts as success; cmd/migrate treats it so.
var ErrNoChange = migrate.ErrNoChange

// Run steps the schema in the given direction, "up" or "down". ErrNoChange is
// surfaced, not swallowed, so callers can distinguish "applied" from
// "already there".
func Run(dsn, direction string) error {
	if dsn == "" {
		return errors.New("migrate: database DSN is empty")
	}

	var step func(*migrate.Migrate) error
	switch direction {
	case "up":
		step = (*migrate.Migrate).Up
	case "down":
		step = (*migrate.Migrate).Down
	default:
		return fmt.Errorf("migrate: direction must be up or down, got %q", direction)
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	return step(m)
}
