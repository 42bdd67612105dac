package store

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func migrationSource() *migrate.EmbedFileSystemMigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{FileSystem: migrationFS, Root: "migrations"}
}

// Migrations lists the embedded migration ids in apply order.
func Migrations() ([]string, error) {
	found, err := migrationSource().FindMigrations()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(found))
	for _, m := range found {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Migrate applies every embedded migration not yet recorded. The pool is
// borrowed through database/sql for the migrator and is left open.
func Migrate(pool *pgxpool.Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	applied, err := migrate.Exec(db, "postgres", migrationSource(), migrate.Up)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("migrations applied", slog.Int("count", applied))
	return nil
}
