package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// sqlDialect is the only dialect the SQL files are written for. sqlite
// databases get their schema from AutoMigrateModels instead.
const sqlDialect = "postgres"

var (
	errNoDB  = errors.New("migrate: sql db is required")
	errNoDir = errors.New("migrate: migrations dir is required")
)

func prepare(db *sql.DB, dir string) error {
	switch {
	case db == nil:
		return errNoDB
	case dir == "":
		return errNoDir
	}
	if err := goose.SetDialect(sqlDialect); err != nil {
		return fmt.Errorf("goose dialect %s: %w", sqlDialect, err)
	}
	return nil
}

// Run hands command (up, down, status, ...) to goose against dir.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if err := prepare(db, dir); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema to targetVersion, a migration timestamp
// prefix such as 20260301090200. Already being there is not an error.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	target, err := parseVersion(targetVersion)
	if err != nil {
		return err
	}
	if err := prepare(db, dir); err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current == target {
		return nil
	}

	step := "up-to"
	if current < target {
		err = goose.UpToContext(ctx, db, dir, target)
	} else {
		step = "down-to"
		err = goose.DownToContext(ctx, db, dir, target)
	}
	if err != nil {
		return fmt.Errorf("goose %s %d: %w", step, target, err)
	}
	return nil
}

func parseVersion(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("migrate: target version is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("migrate: version %q is not a migration timestamp", raw)
	}
	return v, nil
}
