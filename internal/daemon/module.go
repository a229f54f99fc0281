// Package daemon composes the session daemon: stores, presence, the
// gateway server and their lifecycle.
package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/blob"
	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/config"
	"github.com/matheus3301/parley/internal/docstore"
	"github.com/matheus3301/parley/internal/docstore/localstore"
	"github.com/matheus3301/parley/internal/gateway"
	"github.com/matheus3301/parley/internal/identity"
	"github.com/matheus3301/parley/internal/lock"
	"github.com/matheus3301/parley/internal/logging"
	"github.com/matheus3301/parley/internal/realtime"
	"github.com/matheus3301/parley/internal/session"
	"github.com/matheus3301/parley/internal/status"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRealtime,
			provideBlobStore,
			provideIdentity,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		logger.Warn("config not loaded, using defaults", zap.Error(err))
		return &config.Config{}
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (docstore.Store, error) {
	dbPath := session.StorePath(p.SessionName)
	db, err := localstore.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRealtime() realtime.Store {
	return realtime.NewMemory()
}

func provideBlobStore(p Params) (blob.Store, error) {
	return blob.NewFS(session.BlobDir(p.SessionName))
}

func provideIdentity(cfg *config.Config, logger *zap.Logger) identity.Provider {
	return identity.NewTokenProvider(cfg.IdentitySecret, logger)
}

func provideServer(cfg *config.Config, logger *zap.Logger, b *bus.Bus, docs docstore.Store, rt realtime.Store, auth identity.Provider, blobs blob.Store, machine *status.Machine) *gateway.Server {
	return gateway.NewServer(cfg, logger, b, docs, rt, auth, blobs, machine)
}

func registerLifecycle(lc fx.Lifecycle, srv *gateway.Server, lk *lock.Lock, machine *status.Machine, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Listen(); err != nil {
					logger.Error("gateway server error", zap.Error(err))
					_ = machine.Transition(status.Error)
				}
			}()
			logger.Info("gateway listening", zap.String("addr", cfg.Addr()))

			// No session until a client presents a token.
			_ = machine.Transition(status.AuthRequired)
			return nil
		},
		OnStop: func(_ context.Context) error {
			if err := srv.Shutdown(); err != nil {
				logger.Warn("gateway shutdown error", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
