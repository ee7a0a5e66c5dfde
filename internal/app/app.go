package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"ytnotify/internal/config"
	"ytnotify/internal/eventbus"
	"ytnotify/internal/metrics"
	"ytnotify/internal/observability/statusd"
	"ytnotify/internal/runtime/supervisor"
	"ytnotify/internal/task/scheduler"
	"ytnotify/internal/watcher"
	logx "ytnotify/pkg/logx"
	"ytnotify/pkg/systemd"
)

// App is the long-running daemon: the core plus the poller, the status
// server, metrics, config hot reload and sd_notify.
type App struct {
	cfgm    *config.Manager
	cfg     *config.Config // owned by the config.reload goroutine after Start
	channel string

	log  logx.Logger
	logs *logx.Service
	bus  *eventbus.MemBus

	reg *prom.Registry
	rec *metrics.Recorder

	core   *Core
	poller *scheduler.Poller
	status *statusd.Server

	sup        *supervisor.Supervisor
	pollerDone chan struct{}
}

func New(ctx context.Context, cfgm *config.Manager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The adapter is built before the log service because the Telegram log
	// sink sends through it.
	bootLog := logx.NewConsole("INFO")
	ad, err := newAdapter(cfg, bootLog)
	if err != nil {
		return nil, err
	}

	lc, logTarget := mapLogConfig(cfg)
	tgEnabled := lc.Telegram.Enabled
	lc.Telegram.Enabled = false // set the target first, then enable via Apply
	logSvc, log := logx.New(lc, ad)
	logSvc.SetTelegramTarget(logTarget)
	lc.Telegram.Enabled = tgEnabled
	logSvc.Apply(lc)

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(sc, log)
	if err != nil {
		return nil, err
	}
	core, err := buildCore(ctx, cfg, log, bus, store, ad)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		cfg:     cfg,
		channel: cfg.YouTube.ChannelID,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		core:    core,
	}

	a.poller, err = scheduler.New(mapSchedulerConfig(cfg), core.Watcher, scheduler.Hooks{
		Primed:   a.onPrimed,
		Draining: a.onDraining,
	}, log)
	if err != nil {
		_ = core.Close()
		return nil, err
	}

	var metricsHandler http.Handler
	if cfg.MetricsEnabled() {
		a.reg = prom.NewRegistry()
		a.rec = metrics.NewRecorder(a.reg)
		metricsHandler = metrics.Handler(a.reg)
	}
	if cfg.StatusEnabled() {
		a.status = statusd.New(mapStatusConfig(cfg), a.report, metricsHandler, log)
	}

	a.log.Info("app initialized",
		logx.String("channel", cfg.YouTube.ChannelID),
		logx.String("schedule", a.poller.Snapshot().Schedule),
		logx.String("storage", sc.Driver),
		logx.Bool("status", a.status != nil),
		logx.Bool("metrics", a.rec != nil),
	)
	return a, nil
}

// Core exposes the detect-and-notify stack (tests, status).
func (a *App) Core() *Core { return a.core }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return fmt.Errorf("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.pollerDone = make(chan struct{})
	a.sup.Go("poller", func(c context.Context) error {
		defer close(a.pollerDone)
		return a.poller.Run(c)
	})

	if a.rec != nil {
		a.sup.Go("metrics", func(c context.Context) error { return a.rec.Consume(c, a.bus) })
	}
	if a.status != nil {
		a.sup.GoRestart("statusd", a.status.Run,
			supervisor.WithRestartBackoff(time.Second, 30*time.Second),
			supervisor.WithMaxRestarts(10),
		)
	}
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return systemd.Watchdog(c, func() bool { return a.poller.Lifecycle() != scheduler.Stopped })
	})

	if a.cfgm != nil && a.cfgm.Path() != "" {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.sup.Go("config.watch", a.cfgm.Watch)

		ch := a.cfgm.Subscribe(1)
		a.sup.Go("config.reload", func(c context.Context) error {
			defer a.cfgm.Unsubscribe(ch)
			for {
				select {
				case <-c.Done():
					return nil
				case next, ok := <-ch:
					if !ok {
						return nil
					}
					a.applyConfig(next)
				}
			}
		})
	}

	a.log.Info("started")
	return nil
}

// applyConfig applies the hot-reloadable sections of a reloaded config and
// warns about the rest.
func (a *App) applyConfig(next *config.Config) {
	prev := a.cfg
	a.cfg = next
	for _, section := range config.ChangedSections(prev, next) {
		if !config.HotReloadable(section) {
			a.log.Warn("config section changed; restart required", logx.String("section", section))
			continue
		}
		switch section {
		case "logging":
			lc, target := mapLogConfig(next)
			a.logs.SetTelegramTarget(target)
			a.logs.Apply(lc)
			a.log.Info("logging reconfigured", logx.String("level", lc.Level))
		}
	}
}

func (a *App) onPrimed(res watcher.Result) {
	sent, err := systemd.Ready()
	if err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	_, _ = systemd.Status(fmt.Sprintf("watching %s; priming: %s", a.channel, res.Outcome))
}

func (a *App) onDraining() {
	if _, err := systemd.Stopping(); err != nil {
		a.log.Warn("sd_notify stopping failed", logx.Err(err))
	}
}

func (a *App) report() statusd.Report {
	st := a.core.Watcher.Status()
	rep := statusd.Report{
		Initialized: st.Initialized,
		LastOutcome: string(st.LastOutcome),
		LastCycleAt: timePtr(st.LastCycleAt),
	}
	if st.LastVideoID != "" {
		id := st.LastVideoID
		rep.LastVideo = &id
	}
	if a.poller != nil {
		snap := a.poller.Snapshot()
		rep.Lifecycle = snap.Lifecycle.String()
		rep.NextCheckAt = timePtr(snap.Next)
	}
	return rep
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.core.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancelling the run context starts the poller drain.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				max = min(max, time.Until(dl))
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// The in-flight cycle is never cancelled; its transport timeouts bound it.
	step("poller", 90*time.Second, func(c context.Context) error {
		select {
		case <-a.pollerDone:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 2*time.Second, func(context.Context) error { return a.core.Close() })

	a.log.Info("stopped", logx.String("reason", string(reason)))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
