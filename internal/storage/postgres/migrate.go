package postgres

import (
	"embed"
	"strings"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"

	"fintrack/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationURL rewrites a postgres:// URL to the scheme the pgx/v5 migrate
// driver registers.
func migrationURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

// NewMigrator migrates the database at databaseURL.
func NewMigrator(databaseURL string) (*storage.Migrator, error) {
	return storage.NewURLMigrator("postgres", migrationsFS, "migrations", migrationURL(databaseURL))
}

func RunMigrations(databaseURL string) error {
	mg, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
