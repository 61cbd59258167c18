// Package core wires configuration, storage, the engine, delivery, and the
// RPC surface into one startable unit.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RexForge/quantum-habits/internal/config"
	"github.com/RexForge/quantum-habits/internal/engine"
	"github.com/RexForge/quantum-habits/internal/eventbus"
	"github.com/RexForge/quantum-habits/internal/gateway"
	"github.com/RexForge/quantum-habits/internal/ledger"
	"github.com/RexForge/quantum-habits/internal/runtime/supervisor"
	"github.com/RexForge/quantum-habits/internal/server"
	"github.com/RexForge/quantum-habits/internal/store"
	"github.com/RexForge/quantum-habits/internal/wake"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	sup *supervisor.Supervisor
	bus *eventbus.Bus
	st  store.Store
	wk  *wake.CronScheduler
	eng *engine.Engine
	rpc *server.RPCServer
}

// NewApp loads the config and constructs every service. Nothing runs yet;
// Start spins up the loops.
func NewApp(cfgPath, version string) (*App, error) {
	cfgMgr := config.NewManager(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgMgr.SetLogger(log.With(logx.String("component", "config")))

	st, err := store.Open(store.Config{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
	}, log.With(logx.String("component", "store")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	gw, err := buildGateway(cfg.Delivery, log)
	if err != nil {
		st.Close()
		logSvc.Close()
		return nil, err
	}

	scan, grace, snooze, err := cfg.Engine.Durations()
	if err != nil {
		st.Close()
		logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	wk := wake.NewCron(log.With(logx.String("component", "wake")))

	engOpts := []engine.Option{
		engine.WithBus(bus),
		engine.WithWake(wk),
	}
	if cfg.Ledger.Path != "" {
		led, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			st.Close()
			logSvc.Close()
			return nil, err
		}
		engOpts = append(engOpts, engine.WithLedger(led))
	}
	eng := engine.New(engine.Config{
		ScanInterval:   scan,
		GraceWindow:    grace,
		SnoozeDuration: snooze,
		ExactAlarms:    cfg.Engine.ExactAlarms,
	}, st, gw, log.With(logx.String("component", "engine")), engOpts...)

	app := &App{
		cfgMgr: cfgMgr,
		logSvc: logSvc,
		log:    log,
		bus:    bus,
		st:     st,
		wk:     wk,
		eng:    eng,
	}
	if cfg.RPC.Enabled {
		app.rpc = server.New(server.Config{
			Listen:  cfg.RPC.Listen,
			Token:   cfg.RPC.Token,
			Version: version,
		}, eng, log.With(logx.String("component", "rpc")))
	}
	return app, nil
}

func buildGateway(cfg config.DeliveryConfig, log logx.Logger) (gateway.Gateway, error) {
	switch cfg.Driver {
	case "", "log":
		return gateway.NewLog(log.With(logx.String("component", "delivery"))), nil
	case "telegram":
		return gateway.NewTelegram(gateway.TelegramConfig{
			Token:     cfg.Telegram.Token,
			ChatID:    cfg.Telegram.ChatID,
			RateLimit: cfg.Telegram.RateLimit,
			Burst:     cfg.Telegram.Burst,
		}, log.With(logx.String("component", "delivery")))
	default:
		return nil, fmt.Errorf("unknown delivery driver %q", cfg.Driver)
	}
}

// Start brings up the scan loop, config watcher, and RPC listener.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("component", "supervisor"))))

	if err := a.eng.Start(a.wk); err != nil {
		return err
	}
	a.wk.Start()

	a.sup.GoRestart("config.watch", a.cfgMgr.Watch)
	a.sup.Go0("config.apply", a.applyConfigUpdates)
	if a.rpc != nil {
		a.sup.Go("rpc.serve", a.rpc.Serve)
	}

	a.log.Info("habitd started")
	return nil
}

// applyConfigUpdates hot-applies the reloadable subset of the config. Only
// logging is live today; storage, engine, and delivery changes need a restart.
func (a *App) applyConfigUpdates(ctx context.Context) {
	updates := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(updates)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok || cfg == nil {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.ConsoleEnabled(),
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
		}
	}
}

// Stop shuts everything down in reverse start order.
func (a *App) Stop(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	var firstErr error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.wk.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	a.bus.Close()
	if err := a.st.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	a.log.Info("habitd stopped")
	a.logSvc.Close()
	return firstErr
}

// Engine exposes the engine for embedding callers.
func (a *App) Engine() *engine.Engine { return a.eng }

// Bus exposes the event bus for embedding callers.
func (a *App) Bus() *eventbus.Bus { return a.bus }
