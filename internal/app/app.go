// Package app builds the engine from a config file and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/config"
	"github.com/MarkStefanovic/ketl-sub000/internal/observability/api"
	"github.com/MarkStefanovic/ketl-sub000/internal/observability/metrics"
	"github.com/MarkStefanovic/ketl-sub000/internal/runtime/supervisor"
	"github.com/MarkStefanovic/ketl-sub000/internal/storage"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/engine"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/queue"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/scheduler"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

type apiConfig = api.Config

type App struct {
	cfgm     *config.ConfigManager
	settings config.EngineSettings
	catalog  Catalog

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	queue    *queue.JobQueue
	statuses *state.Statuses
	results  *state.Results
	sched    *scheduler.Scheduler
	runner   *engine.Runner
	metrics  *metrics.Metrics
	api      *api.Server

	sup *supervisor.Supervisor
	// sinks outlives sup so the statuses published while the engine winds
	// down still reach storage.
	sinks      *supervisor.Supervisor
	closeSinks func()
}

// New loads cfgPath and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Engine.Resolve()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(cfg.Logging.LoggerConfig(), nil)
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgm:     cfgm,
		settings: settings,
		log:      log,
		logs:     logs,
		queue:    queue.New(),
		statuses: state.NewStatuses(),
		results:  state.NewResults(settings.ResultHistory),
		metrics:  metrics.New(),
	}

	// Storage (optional)
	if sc, enabled, err := mapStorageConfig(cfg, settings.ResultHistory); err != nil {
		_ = logs.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, logs.Logger())
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		a.store = st
		logs.SetSink(storage.LogSink(st))
		logs.Apply(cfg.Logging.LoggerConfig())
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	cat, err := ResolveJobs(cfg, settings.ValidationPolicy, logs.Logger())
	if err != nil {
		a.closeOutputs()
		return nil, err
	}
	if !cat.OK() {
		log.Warn("invalid jobs skipped", logx.Strings("jobs", cat.Skipped), logx.String("report", cat.Report()))
	}
	a.catalog = cat

	for _, j := range cat.Jobs {
		a.statuses.Initial(j.Name())
	}
	if a.store != nil {
		seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		n, err := storage.SeedResults(seedCtx, a.store, a.results)
		cancel()
		if err != nil {
			log.Warn("loading stored results failed", logx.Err(err))
		} else if n > 0 {
			log.Info("stored results loaded", logx.Int("results", n))
		}
	}

	a.sched = scheduler.New(scheduler.Config{
		MaxSimultaneousJobs: settings.MaxSimultaneousJobs,
		ScanFrequency:       settings.ScanFrequency,
	}, cat.Jobs, a.queue, a.statuses, a.results, logs.Logger(), scheduler.WithAdmitHook(a.metrics.Admitted))
	for _, name := range cat.Disabled {
		a.sched.SetEnabled(name, false)
	}

	a.runner = engine.New(engine.Config{Workers: settings.MaxSimultaneousJobs}, a.queue, a.statuses, a.results, logs.Logger())

	a.api = api.NewServer(mapAPIConfig(cfg), api.Deps{
		Catalog:  a.sched,
		Runner:   a.runner,
		Queue:    a.queue,
		Statuses: a.statuses,
		Results:  a.results,
		Metrics:  a.metrics.Handler(),
		Health:   a.Err,
	}, logs.Logger())

	return a, nil
}

func (a *App) Catalog() Catalog { return a.catalog }

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
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	buf := a.settings.StreamBuffer

	// Subscribe every consumer before the engine starts so no event is missed.
	results, unsubResults := a.results.Changes().Subscribe(buf)
	snapshots, unsubSnapshots := a.statuses.Snapshots().Subscribe(buf)
	queued, unsubQueue := a.queue.Contents().Subscribe(buf)
	a.sup.Go("metrics.feed", func(c context.Context) error {
		defer unsubResults()
		defer unsubSnapshots()
		defer unsubQueue()
		return a.metrics.Feed(c, results, snapshots, queued)
	})

	a.sinks = supervisor.New(context.WithoutCancel(ctx), supervisor.WithLogger(a.log))
	a.closeSinks = func() {}
	if a.store != nil {
		statusCh, unsubStatus := a.statuses.Changes().Subscribe(buf)
		resultCh, unsubResult := a.results.Changes().Subscribe(buf)
		a.closeSinks = func() {
			unsubStatus()
			unsubResult()
		}
		a.sinks.Go("storage.statuses", func(c context.Context) error {
			return storage.PumpStatuses(c, a.store, statusCh, a.log)
		})
		a.sinks.Go("storage.results", func(c context.Context) error {
			return storage.PumpResults(c, a.store, resultCh, a.log)
		})
	}

	a.runner.Start(a.sup)
	a.sup.GoRestart("scheduler", time.Second, 30*time.Second, a.sched.Run)

	if a.api.Enabled() {
		a.api.Start(a.sup.Context())
	}

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return config.Validate(cfg) })
	updates, unsubUpdates := a.cfgm.Updates().Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer unsubUpdates()
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return c.Err()
			case next, ok := <-updates:
				if !ok {
					return nil
				}
				a.applyReload(c, last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.Int("jobs", len(a.catalog.Jobs)),
		logx.Strings("disabled", a.catalog.Disabled),
		logx.Int("workers", a.settings.MaxSimultaneousJobs),
	)
	return nil
}

// applyReload applies what can change live and warns about the rest.
func (a *App) applyReload(ctx context.Context, oldCfg, newCfg *config.Config) {
	plan := config.PlanReload(oldCfg, newCfg)
	if plan.Empty() {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Debug("config change summary", plan.Fields()...)

	if plan.LoggingChanged {
		a.logs.Apply(newCfg.Logging.LoggerConfig())
	}
	for name, on := range plan.Enabled {
		if !a.sched.SetEnabled(name, on) {
			a.log.Warn("enable flag changed for a job that is not scheduled", logx.String("job", name))
			continue
		}
		a.log.Info("job enablement changed", logx.String("job", name), logx.Bool("enabled", on))
	}
	if plan.APIChanged {
		a.api.Reconfigure(ctx, mapAPIConfig(newCfg))
	}
	if len(plan.Ignored) > 0 {
		a.log.Warn("config sections changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(plan.Ignored, ",")))
	}
	a.log.Info("config reloaded", plan.Fields()...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeOutputs()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("api", 2*time.Second, func(c context.Context) error { a.api.Stop(c); return nil })
	// Cancelling the supervisor stops the scheduler and cancels in-flight
	// jobs, each of which publishes a Cancelled status.
	step("supervisor", 5*time.Second, a.sup.Stop)
	// Closing the subscriptions lets the pumps write the backlog and return.
	a.closeSinks()
	step("sinks", 3*time.Second, func(c context.Context) error {
		err := a.sinks.Wait(c)
		if err != nil {
			_ = a.sinks.Stop(c)
		}
		return err
	})

	a.log.Info("stopped")
	a.closeOutputs()
	return errors.Join(errs...)
}

// closeOutputs stops the log sink before closing the store it writes to.
func (a *App) closeOutputs() {
	if a.logs != nil {
		_ = a.logs.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
}
