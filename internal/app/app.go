package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"azkarbot/internal/broadcast"
	"azkarbot/internal/config"
	"azkarbot/internal/content"
	"azkarbot/internal/eventbus"
	"azkarbot/internal/groups"
	"azkarbot/internal/observability/ops"
	"azkarbot/internal/prayer"
	rtsup "azkarbot/internal/runtime/supervisor"
	"azkarbot/internal/storage"
	"azkarbot/internal/task/scheduler"
	kit "azkarbot/internal/transport"
	telegram "azkarbot/internal/transport/telegram/adapter"
	"azkarbot/internal/transport/telegram/poller"
	"azkarbot/internal/transport/telegram/router"
	logx "azkarbot/pkg/logx"
)

// ErrFatal marks startup failures the process must exit on.
var ErrFatal = errors.New("fatal")

type App struct {
	cfgm *config.ConfigManager
	res  *config.Resolved
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store    storage.GroupStore
	registry *groups.Registry
	texts    *content.Texts
	adapter  *telegram.Adapter
	bot      kit.BotIdentity

	push    *broadcast.Service
	sched   *scheduler.Service
	prayers *prayer.Manager
	router  *router.Dispatcher
	poller  *poller.Poller
	ops     *ops.Server

	bus     *eventbus.Bus
	tracker *eventbus.Tracker

	startedAt time.Time
}

// New loads configuration and wires every component. It performs network
// I/O: the group store is loaded and the bot token is validated.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	res, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, fmt.Errorf("%w: BOT_TOKEN is not set", ErrFatal)
	}

	// The admin sink has no transport until the adapter exists.
	logs, root := logx.New(logConfig(cfg.Logging), nil, 0)
	log := root.With(logx.String("comp", "app"))

	a := &App{
		cfgm:      cfgm,
		res:       res,
		log:       log,
		logs:      logs,
		bus:       eventbus.New(),
		tracker:   eventbus.NewTracker(),
		startedAt: time.Now(),
	}
	if err := a.wire(ctx, cfg, root); err != nil {
		logs.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, cfg *config.Config, root logx.Logger) error {
	res := a.res

	store, err := storage.Open(ctx, storageConfig(cfg.Storage, res), root)
	if err != nil {
		return fmt.Errorf("open group store: %w", err)
	}
	a.store = store

	reg, err := groups.Load(ctx, store, root)
	if err != nil {
		// Writes are held back until a retry in Start reads the store.
		a.log.Error("group store load failed; retrying in background", logx.Err(err))
	}
	a.registry = reg

	textsPath := filepath.Join(cfg.Content.Root, cfg.Content.TextsFile)
	if err := content.EnsureLayout(cfg.Content.Root, textsPath); err != nil {
		a.log.Warn("content layout incomplete", logx.Err(err))
	}
	a.texts = content.NewTexts(textsPath)
	picker := content.NewDirPicker(cfg.Content.Root)

	ad, err := telegram.New(telegram.Config{
		Token:  cfg.Telegram.Token,
		APIURL: cfg.Telegram.APIURL,
		Retry:  kit.DefaultRetryPolicy(),
	}, root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFatal, err)
	}
	a.adapter = ad

	meCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	me, err := ad.GetMe(meCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: token validation: %v", ErrFatal, err)
	}
	a.bot = me
	a.log.Info("bot identity confirmed", logx.String("username", me.Username), logx.Int64("id", me.ID))
	a.logs.SetSender(ad, cfg.Telegram.AdminID)

	a.push = broadcast.New(broadcast.Config{
		ChannelURL:  cfg.Broadcast.ChannelURL,
		RatePerSec:  cfg.Broadcast.RatePerSec,
		SendTimeout: res.SendTimeout,
	}, ad, reg, picker, a.texts, root)
	a.push.SetEvents(a.bus)

	a.sched = scheduler.New(root)

	a.prayers = prayer.NewManager(prayer.Config{
		Location:     res.Location,
		AlertLead:    res.AlertLead,
		AfterDelay:   res.AfterDelay,
		MisfireGrace: res.PushGrace,
	}, prayer.NewAladhan(prayer.AladhanConfig{
		BaseURL: cfg.Prayer.APIURL,
		City:    cfg.Prayer.City,
		Country: cfg.Prayer.Country,
		Method:  cfg.Prayer.Method,
		Timeout: res.PrayerTimeout,
	}, nil), a.sched, prayerPusher{a.push}, root)
	a.prayers.SetEvents(a.bus)

	a.router = router.New(router.Config{
		AdminID:       cfg.Telegram.AdminID,
		BotUsername:   me.Username,
		Location:      res.Location,
		StartKeyboard: startKeyboard(cfg.Telegram, me.Username),
	}, router.Deps{
		Client:   ad,
		Registry: reg,
		Welcomer: a.push,
		Texts:    a.texts,
		Jobs:     a.sched,
		Prayers:  a.prayers,
	}, root)

	a.poller = poller.New(poller.Config{
		Limit:   res.PollLimit,
		Timeout: res.PollTimeout,
	}, ad, a.router, root)

	if cfg.Ops.Enabled {
		a.ops = ops.New(ops.Config{Addr: cfg.Ops.Addr, Pprof: cfg.Ops.Pprof, Token: cfg.Ops.Token}, a.health, root)
	}
	return nil
}

// Start installs the jobs and launches the long-running loops. It returns
// once everything is running.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(false))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := cfg.Resolve()
		return err
	})

	events, unsub := a.bus.Subscribe(64)
	a.sup.Go0("events.track", func(ctx context.Context) {
		defer unsub()
		a.tracker.Run(ctx, events)
	})

	if err := installJobs(a.sched, a.jobDeps(), a.res, time.Now()); err != nil {
		return err
	}
	a.sched.Start(a.sup.Context())

	if a.ops != nil {
		if err := a.ops.Start(a.sup.Context()); err != nil {
			a.log.Error("ops server not started", logx.Err(err))
		}
	}

	if !a.registry.Loaded() {
		retryGroupLoad(a.sup, a.registry, groupLoadBackoff, a.log)
	}

	a.sup.Go("poller", a.poller.Run)
	a.sup.GoRestart("config.watch", a.cfgm.Watch, rtsup.WithRestartBackoff(time.Second, time.Minute))
	a.sup.Go0("config.reload", a.reloadLoop)

	a.log.Info("app started",
		logx.Int("groups", a.registry.Len()),
		logx.Int("jobs", a.sched.Len()),
		logx.String("tz", a.res.Location.String()),
	)
	return nil
}

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) jobDeps() jobDeps {
	return jobDeps{push: a.push, prayers: a.prayers, registry: a.registry, jobs: a.sched, log: a.log}
}

func (a *App) health() ops.Health {
	h := ops.Health{
		StartedAt:  a.startedAt,
		Groups:     a.registry.Len(),
		Jobs:       a.sched.Len(),
		PollCursor: a.poller.Cursor(),
		PollErrors: a.poller.Streak(),
		LastEvents: a.tracker.Last(),
	}
	if a.sup != nil {
		h.Goroutines = a.sup.Counters().Active
	}
	if h.PollErrors >= 5 {
		h.Status = "degraded"
	}
	return h
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// The poller finishes its current event; no new poll is issued.
	a.poller.Stop()
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok && time.Until(dl) < max {
				max = time.Until(dl)
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
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
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 5*time.Second, a.sched.Stop)
	step("ops", time.Second, func(c context.Context) error {
		if a.ops == nil {
			return nil
		}
		return a.ops.Stop(c)
	})
	// Covers the in-flight long-poll, which is not canceled.
	step("supervisor", a.res.PollTimeout+15*time.Second, a.sup.Wait)
	step("groups.flush", 10*time.Second, a.registry.Flush)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped", logx.Int("groups", a.registry.Len()))
	return a.logs.Close()
}

const groupLoadBackoff = 2 * time.Second

// retryGroupLoad reads the group store until it succeeds, backing off
// between failures.
func retryGroupLoad(sup *rtsup.Supervisor, reg *groups.Registry, backoff time.Duration, log logx.Logger) {
	sup.GoRestart("groups.load", func(ctx context.Context) error {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := reg.Reload(loadCtx); err != nil {
			return err
		}
		log.Info("group store recovered", logx.Int("groups", reg.Len()))
		return nil
	}, rtsup.WithRestartBackoff(backoff, 2*time.Minute))
}

// prayerPusher drops the per-push reports the prayer manager has no use for.
type prayerPusher struct{ s *broadcast.Service }

func (p prayerPusher) Alert(ctx context.Context, text string) error {
	_, err := p.s.Alert(ctx, text)
	return err
}

func (p prayerPusher) AfterPrayer(ctx context.Context) error {
	_, err := p.s.AfterPrayer(ctx)
	return err
}
