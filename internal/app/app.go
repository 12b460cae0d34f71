// Package app wires configuration, logging, storage, and the monitor
// service into one process.
package app

import (
	"context"
	"sync"
	"sync/atomic"

	"bagwatch/internal/activity"
	"bagwatch/internal/catalog"
	"bagwatch/internal/config"
	"bagwatch/internal/dispatch"
	"bagwatch/internal/monitor"
	"bagwatch/internal/observability/pprof"
	"bagwatch/internal/policy"
	"bagwatch/internal/snapshot"
	"bagwatch/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	store    snapshot.Store
	activity activity.Log
	sender   *switchableNotifier

	coord *monitor.Coordinator
	svc   *monitor.Service
	prof  *pprof.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// switchableNotifier lets a config reload swap the dispatcher (recipient,
// pacing, credentials) without rebuilding the coordinator that holds it.
type switchableNotifier struct {
	d atomic.Pointer[dispatch.Dispatcher]
}

func (s *switchableNotifier) swap(d *dispatch.Dispatcher) { s.d.Store(d) }

func (s *switchableNotifier) Send(ctx context.Context, alerts []policy.Alert) []dispatch.Outcome {
	return s.d.Load().Send(ctx, alerts)
}

func (s *switchableNotifier) Notify(ctx context.Context, body string) error {
	return s.d.Load().Notify(ctx, body)
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	store, err := snapshot.NewFileStore(cfg.Snapshot.Path)
	if err != nil {
		return nil, err
	}

	act, err := activity.Open(activity.Config{
		Driver:      cfg.Activity.Driver,
		Path:        cfg.Activity.Path,
		MaxEntries:  cfg.Activity.MaxEntries,
		SummaryPath: cfg.Activity.SummaryPath,
		Timezone:    cfg.Schedule.Timezone,
	}, log.With(logx.String("comp", "activity")))
	if err != nil {
		return nil, err
	}

	timeout, err := config.ParseDurationField("catalog.timeout", cfg.Catalog.Timeout)
	if err != nil {
		return nil, err
	}
	source := catalog.NewHTTPSource(catalog.HTTPConfig{
		URL:     cfg.Catalog.URL,
		Timeout: timeout,
	}, log.With(logx.String("comp", "catalog")))

	sender := &switchableNotifier{}
	d, err := buildDispatcher(cfg, log)
	if err != nil {
		return nil, err
	}
	sender.swap(d)

	coord := monitor.NewCoordinator(source, store, sender, act, log.With(logx.String("comp", "monitor")))
	coord.Apply(mapSettings(cfg))

	svcCfg, err := mapServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	svc := monitor.NewService(svcCfg, coord, sender, act, log.With(logx.String("comp", "monitor")))

	prof := pprof.New(pprof.Config{
		Enabled: cfg.Pprof.Enabled,
		Addr:    cfg.Pprof.Addr,
		Token:   cfg.Pprof.Token,
	}, log.With(logx.String("comp", "pprof")))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		store:    store,
		activity: act,
		sender:   sender,
		coord:    coord,
		svc:      svc,
		prof:     prof,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		// Structural checks already ran; reject reloads the running services
		// cannot map.
		_, err := mapServiceConfig(cfg)
		return err
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							cfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(runCtx, cfg)
			}
		}
	}()

	if a.prof.Enabled() {
		if err := a.prof.Start(runCtx); err != nil {
			return err
		}
	}

	return a.svc.Start(runCtx)
}

func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	d, err := buildDispatcher(cfg, a.log)
	if err != nil {
		a.log.Warn("reload: dispatcher rebuild failed", logx.Err(err))
	} else {
		a.sender.swap(d)
	}

	a.coord.Apply(mapSettings(cfg))

	svcCfg, err := mapServiceConfig(cfg)
	if err != nil {
		a.log.Warn("reload: trigger config rejected", logx.Err(err))
	} else if err := a.svc.Apply(ctx, svcCfg); err != nil {
		a.log.Warn("reload: trigger apply failed", logx.Err(err))
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	a.svc.Stop()
	a.prof.Stop(ctx)
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if err := a.activity.Close(); err != nil {
		a.log.Warn("activity close failed", logx.Err(err))
	}
	a.log.Info("shutdown complete")
	return a.logs.Close()
}
