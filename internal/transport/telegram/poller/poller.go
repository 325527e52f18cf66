// Package poller drives the getUpdates long-poll loop.
//
// Events are handed to the Handler strictly in arrival order and the cursor
// moves past an event only after its handler returned, so a crash replays
// from the first unfinished event (at-least-once delivery).
package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"azkarbot/internal/metrics"
	kit "azkarbot/internal/transport"
	logx "azkarbot/pkg/logx"
)

type Handler interface {
	Handle(ctx context.Context, up kit.Update) error
}

type HandlerFunc func(ctx context.Context, up kit.Update) error

func (f HandlerFunc) Handle(ctx context.Context, up kit.Update) error { return f(ctx, up) }

type Config struct {
	Limit   int
	Timeout time.Duration

	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Threshold is the error streak length at which backoff turns exponential.
	Threshold     int
	ConflictDelay time.Duration
	IdleDelay     time.Duration
}

func (c *Config) setDefaults() {
	if c.Limit <= 0 {
		c.Limit = 50
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.ConflictDelay <= 0 {
		c.ConflictDelay = 10 * time.Second
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = time.Second
	}
}

// BackoffDelay is the wait after a failed poll given the current streak:
// the base delay below threshold, else base*2^streak capped at max.
func BackoffDelay(streak int, base, max time.Duration, threshold int) time.Duration {
	if streak < threshold {
		return base
	}
	if streak >= 62 {
		return max
	}
	d := base * time.Duration(int64(1)<<streak)
	if d <= 0 || d > max {
		return max
	}
	return d
}

type Poller struct {
	cfg Config
	src kit.UpdateSource
	h   Handler
	log logx.Logger

	cursor   atomic.Int64
	streak   atomic.Int64
	stopping atomic.Bool

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, src kit.UpdateSource, h Handler, log logx.Logger) *Poller {
	cfg.setDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{
		cfg:   cfg,
		src:   src,
		h:     h,
		log:   log.With(logx.String("comp", "poller")),
		sleep: kit.SleepContext,
	}
}

// Cursor is the offset the next poll will request.
func (p *Poller) Cursor() int64 { return p.cursor.Load() }

// SetCursor seeds the cursor, e.g. from a previous run.
func (p *Poller) SetCursor(v int64) {
	p.cursor.Store(v)
	metrics.PollCursor.Set(float64(v))
}

// Streak is the current run of failed polls.
func (p *Poller) Streak() int { return int(p.streak.Load()) }

// Stop asks the loop to return after the current event or request. It does
// not interrupt an in-flight long-poll.
func (p *Poller) Stop() { p.stopping.Store(true) }

func (p *Poller) stopped(ctx context.Context) bool {
	return p.stopping.Load() || ctx.Err() != nil
}

// Run polls until Stop is called or ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("polling started", logx.Int64("cursor", p.Cursor()))
	defer p.log.Info("polling stopped", logx.Int64("cursor", p.Cursor()))

	for !p.stopped(ctx) {
		delay := p.pollOnce(ctx)
		if p.stopped(ctx) {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			break
		}
	}
	return nil
}

// pollOnce performs one request, dispatches the batch and returns how long
// to wait before the next request.
func (p *Poller) pollOnce(ctx context.Context) time.Duration {
	// The request outlives cancellation; it ends when the server answers or
	// the adapter's own deadline passes.
	ups, err := p.src.GetUpdates(context.WithoutCancel(ctx), p.Cursor(), p.cfg.Limit, p.cfg.Timeout)
	if err != nil {
		return p.onError(err)
	}

	p.streak.Store(0)
	metrics.PollConsecutiveErrors.Set(0)

	for _, up := range ups {
		if p.stopped(ctx) {
			break
		}
		p.dispatch(ctx, up)
		p.SetCursor(up.ID + 1)
	}
	return p.cfg.IdleDelay
}

func (p *Poller) onError(err error) time.Duration {
	streak := int(p.streak.Add(1))
	class := kit.Classify(err)
	metrics.PollErrors.WithLabelValues(string(class)).Inc()
	metrics.PollConsecutiveErrors.Set(float64(streak))

	delay := BackoffDelay(streak, p.cfg.BaseDelay, p.cfg.MaxDelay, p.cfg.Threshold)
	switch {
	case errors.Is(err, kit.ErrConflict):
		// A fixed wait; the streak still counts the conflict.
		delay = p.cfg.ConflictDelay
		p.log.Warn("another instance is polling; waiting", logx.Int("streak", streak), logx.Duration("delay", delay))
	case class == kit.ClassAuth:
		p.log.Error("poll unauthorized; check the bot token", logx.Int("streak", streak), logx.Duration("delay", delay), logx.Err(err))
	case streak >= p.cfg.Threshold:
		p.log.Warn("poll failing repeatedly", logx.Int("streak", streak), logx.Duration("delay", delay), logx.Err(err))
	default:
		p.log.Debug("poll failed", logx.String("class", string(class)), logx.Int("streak", streak), logx.Err(err))
	}
	return delay
}

func (p *Poller) dispatch(ctx context.Context, up kit.Update) {
	if up.Kind == "" {
		return
	}
	metrics.UpdatesHandled.WithLabelValues(string(up.Kind)).Inc()
	if err := handleIsolated(ctx, p.h, up); err != nil {
		p.log.Error("update handler failed", logx.Int64("update_id", up.ID), logx.String("kind", string(up.Kind)), logx.Err(err))
	}
}

func handleIsolated(ctx context.Context, h Handler, up kit.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h.Handle(ctx, up)
}
