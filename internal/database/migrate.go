package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded SQL migrations to the database identified by
// the connection parameters.  It is idempotent: an up-to-date schema is not
// an error.  Run it before Open so repositories always see the full schema.
func Migrate(user, pass, host, port, name string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	// golang-migrate's mysql driver expects the DSN prefixed with "mysql://".
	migrator, err := migrate.NewWithSourceInstance("iofs", source, "mysql://"+DSN(user, pass, host, port, name))
	if err != nil {
		return fmt.Errorf("prepare migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
