// Package migrate applies the goose SQL migrations that define the grocer
// schema.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Runner wraps a goose provider bound to one database and migration set.
type Runner struct {
	provider *goose.Provider
}

// NewRunner uses the embedded migrations when fsys is nil. The schema uses
// Postgres enum types and partial indexes, so only Postgres is supported.
func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	if fsys == nil {
		fsys = Migrations()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Result is one applied or reverted migration.
type Result struct {
	Version   int64
	Path      string
	Direction string
}

func toResults(in []*goose.MigrationResult) []Result {
	out := make([]Result, 0, len(in))
	for _, r := range in {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Result{Version: r.Source.Version, Path: r.Source.Path, Direction: r.Direction})
	}
	return out
}

func (r *Runner) Up(ctx context.Context) ([]Result, error) {
	res, err := r.provider.Up(ctx)
	return toResults(res), err
}

// Down reverts only the most recent migration.
func (r *Runner) Down(ctx context.Context) ([]Result, error) {
	res, err := r.provider.Down(ctx)
	return toResults([]*goose.MigrationResult{res}), err
}

// To migrates up or down until target is the current version.
func (r *Runner) To(ctx context.Context, target int64) ([]Result, error) {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	var res []*goose.MigrationResult
	switch {
	case target > current:
		res, err = r.provider.UpTo(ctx, target)
	case target < current:
		res, err = r.provider.DownTo(ctx, target)
	}
	return toResults(res), err
}

// Status lists every known migration with whether it has been applied.
func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return r.provider.Status(ctx)
}
