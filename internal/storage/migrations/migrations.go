// migrations содержит SQL-миграции хранилища и их применение через goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Up применяет все миграции для диалекта ("postgres" или "sqlite").
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	const op = "storage.migrations.Up"

	var (
		gd  goose.Dialect
		dir string
	)
	switch dialect {
	case "postgres":
		gd, dir = goose.DialectPostgres, "postgres"
	case "sqlite":
		gd, dir = goose.DialectSQLite3, "sqlite"
	default:
		return fmt.Errorf("%s: unknown dialect %q", op, dialect)
	}

	sub, err := fs.Sub(files, dir)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	provider, err := goose.NewProvider(gd, db, sub)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
