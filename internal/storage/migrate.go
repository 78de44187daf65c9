package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations of one database.
type Migrator struct {
	name   string
	m      *migrate.Migrate
	closer func() error
}

// NewMigrator wraps an opened migrate database driver. dbName labels logs.
func NewMigrator(dbName string, files fs.FS, dir string, driver database.Driver) (*Migrator, error) {
	src, err := iofs.New(files, dir)
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return &Migrator{name: dbName, m: m}, nil
}

// NewURLMigrator opens the database itself from a migrate-style URL.
func NewURLMigrator(dbName string, files fs.FS, dir, url string) (*Migrator, error) {
	src, err := iofs.New(files, dir)
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return &Migrator{name: dbName, m: m}, nil
}

// NewSQLiteMigrator migrates the database file at dbPath. It uses its own
// connection since closing the migrator closes the driver's database.
func NewSQLiteMigrator(dbPath string) (*Migrator, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}
	mg, err := NewMigrator("sqlite", migrationsFS, "migrations", driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	mg.closer = db.Close
	return mg, nil
}

// Up applies every pending migration. No pending migration is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run %s migrations: %w", mg.name, err)
	}
	mg.logVersion()
	return nil
}

// Steps applies n migrations, rolling back when n is negative.
func (mg *Migrator) Steps(n int) error {
	if err := mg.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("step %s migrations by %d: %w", mg.name, n, err)
	}
	mg.logVersion()
	return nil
}

// Version reports the applied version; zero means none.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (mg *Migrator) logVersion() {
	if version, dirty, err := mg.Version(); err == nil {
		slog.Debug("Schema ready", "database", mg.name, "version", version, "dirty", dirty)
	}
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	var closeErr error
	if mg.closer != nil {
		closeErr = mg.closer()
	}
	return errors.Join(srcErr, dbErr, closeErr)
}

// RunMigrations brings the SQLite database at dbPath up to date.
func RunMigrations(dbPath string) error {
	mg, err := NewSQLiteMigrator(dbPath)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
