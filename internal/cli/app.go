package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"choirsync/internal/config"
	"choirsync/internal/engine"
	"choirsync/internal/mirror"
	"choirsync/internal/projection"
	"choirsync/internal/queue"
	"choirsync/internal/remote"
)

// remoteMode selects the remote store a command runs against.
type remoteMode int

const (
	// remoteLive connects to the configured MongoDB remote. Falls back
	// to local-only when no remote is configured.
	remoteLive remoteMode = iota
	// remoteLocal uses an in-memory remote; writes stay on this machine.
	remoteLocal
	// remoteNone marks the remote unreachable so every read comes from
	// the mirror. Used by read-only commands.
	remoteNone
)

// App is the assembled application: mirror, queue, remote, engine and
// state projection.
type App struct {
	Mirror *mirror.Store
	Queue  *queue.Queue
	Engine *engine.Engine
	State  *projection.State

	mongo *remote.MongoStore // nil unless connected to a live remote
}

// openApp builds the application from configuration.
func openApp(cfg *config.Config, mode remoteMode) (*App, error) {
	if dir := filepath.Dir(cfg.Mirror); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create mirror directory: %w", err)
		}
	}
	m, err := mirror.Open(cfg.Mirror)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}

	var (
		store  remote.Store
		status remote.Status
		mongo  *remote.MongoStore
	)
	switch {
	case mode == remoteLive && cfg.Remote.URI != "":
		mongo, err = remote.NewMongoStore(cfg.Remote.URI, cfg.Remote.Database)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("connect remote: %w", err)
		}
		store, status = mongo, mongo
	case mode == remoteNone:
		mem := remote.NewMemoryStore()
		mem.SetOnline(false)
		store, status = mem, mem
	default:
		if mode == remoteLive {
			slog.Info("no remote configured, running local-only")
		}
		mem := remote.NewMemoryStore()
		store, status = mem, mem
	}

	q := queue.Open(m)

	var opts []engine.Option
	if cfg.DrainInterval.Std() > 0 {
		opts = append(opts, engine.WithDrainInterval(cfg.DrainInterval.Std()))
	}
	eng := engine.New(m, q, store, status, opts...)

	state := projection.New(eng, m, projection.WithIDPrefix(cfg.IDPrefix))

	return &App{
		Mirror: m,
		Queue:  q,
		Engine: eng,
		State:  state,
		mongo:  mongo,
	}, nil
}

// Close tears down the engine, the remote connection and the mirror.
func (a *App) Close(ctx context.Context) {
	a.Engine.Stop()
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			slog.Warn("closing remote connection", "error", err)
		}
	}
	if err := a.Mirror.Close(); err != nil {
		slog.Warn("closing mirror", "error", err)
	}
}

// Live reports whether the app is connected to a real remote.
func (a *App) Live() bool { return a.mongo != nil }

// Mongo returns the live remote store, or nil.
func (a *App) Mongo() *remote.MongoStore { return a.mongo }
