package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

const migrationTable = "schema_migrations"

// goose keeps its settings in package globals
var migrateMu sync.Mutex

func (db *DB) migrate(ctx context.Context) error {
	dir := "migrations/sqlite"
	if db.dialect == DriverPostgres {
		dir = "migrations/postgres"
	}
	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&gooseLoggerAdapter{db.log})
	goose.SetTableName(migrationTable)

	if err := goose.SetDialect(db.dialect); err != nil {
		return errors.Join(ErrSetDialect, err)
	}
	if err := goose.UpContext(ctx, db.conn, "."); err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}
	return nil
}

type gooseLoggerAdapter struct {
	log zerolog.Logger
}

func (g *gooseLoggerAdapter) Printf(format string, args ...any) {
	g.log.Debug().Msg(fmt.Sprintf(format, args...))
}

// Fatalf only logs; goose returns the error to the caller
func (g *gooseLoggerAdapter) Fatalf(format string, args ...any) {
	g.log.Error().Msg(fmt.Sprintf(format, args...))
}
