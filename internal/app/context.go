package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"reactango/internal/db"
	"reactango/internal/engine"
	"reactango/internal/logging"
	"reactango/internal/migrate"
)

// Env is an opened, migrated workspace.
type Env struct {
	Workspace string
	DB        *sql.DB
	Engine    engine.Engine
}

// Close releases the database handle.
func (e *Env) Close() error {
	if e == nil || e.DB == nil {
		return nil
	}
	return e.DB.Close()
}

// Open prepares the workspace database, applies pending migrations and builds
// the engine on top of it.
func Open(ctx context.Context, workspace string, logger *slog.Logger) (*Env, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	applied, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	for _, m := range applied {
		logger.Info("applied migration", "version", m.Version, "name", m.Name)
	}
	return &Env{
		Workspace: workspace,
		DB:        conn,
		Engine:    engine.New(conn),
	}, nil
}

// With opens the workspace, runs fn and closes it again.
func With(ctx context.Context, workspace string, logger *slog.Logger, fn func(context.Context, *Env) error) error {
	env, err := Open(ctx, workspace, logger)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}
