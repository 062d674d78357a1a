package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// gooseDialect maps the gorm dialector onto the goose dialect the schema
// files are applied with.
func gooseDialect(db *gorm.DB) (goose.Dialect, error) {
	switch name := db.Dialector.Name(); name {
	case DriverSQLite:
		return goose.DialectSQLite3, nil
	case DriverPostgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("no migrations for %q databases", name)
	}
}

func newMigrator(db *gorm.DB) (*goose.Provider, error) {
	dialect, err := gooseDialect(db)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	schema, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(dialect, sqlDB, schema)
}

// RunMigrations brings the metadata schema up to date.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	p, err := newMigrator(db)
	if err != nil {
		return err
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrate metadata schema: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied and the newest known schema version.
func SchemaVersion(ctx context.Context, db *gorm.DB) (current, latest int64, err error) {
	p, err := newMigrator(db)
	if err != nil {
		return 0, 0, err
	}
	if current, err = p.GetDBVersion(ctx); err != nil {
		return 0, 0, err
	}
	sources := p.ListSources()
	if n := len(sources); n > 0 {
		latest = sources[n-1].Version
	}
	return current, latest, nil
}
