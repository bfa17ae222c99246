package persistent

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andreyxaxa/Photo-Pipeline/internal/repo/persistent/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded schema through goose over a short-lived
// database/sql connection; the pgx pool stays untouched.
func RunMigrations(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("persistent - RunMigrations - sql.Open: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("persistent - RunMigrations - goose.SetDialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("persistent - RunMigrations - goose.UpContext: %w", err)
	}

	return nil
}
