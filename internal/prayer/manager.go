package prayer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"azkarbot/internal/eventbus"
	"azkarbot/internal/task/scheduler"
	"azkarbot/internal/transport"
	logx "azkarbot/pkg/logx"
)

// JobPrefix marks per-day prayer jobs. The recurring recompute job must not use it.
const JobPrefix = "prayer:"

// Scheduler is the slice of the job table the manager reconciles.
type Scheduler interface {
	Schedule(job scheduler.Job) error
	Cancel(id string) bool
	List() []scheduler.JobInfo
}

// Pusher delivers the prayer-related pushes.
type Pusher interface {
	Alert(ctx context.Context, text string) error
	AfterPrayer(ctx context.Context) error
}

type Config struct {
	Location     *time.Location
	AlertLead    time.Duration
	AfterDelay   time.Duration
	MisfireGrace time.Duration
	Attempts     int
	// BackoffUnit scales the 2^attempt wait between fetch attempts.
	BackoffUnit time.Duration
}

type Manager struct {
	cfg    Config
	source Source
	sched  Scheduler
	push   Pusher
	events eventbus.Publisher
	log    logx.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewManager(cfg Config, source Source, sched Scheduler, push Pusher, log logx.Logger) *Manager {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.AlertLead <= 0 {
		cfg.AlertLead = 5 * time.Minute
	}
	if cfg.AfterDelay <= 0 {
		cfg.AfterDelay = 20 * time.Minute
	}
	if cfg.MisfireGrace <= 0 {
		cfg.MisfireGrace = 5 * time.Minute
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		cfg:    cfg,
		source: source,
		sched:  sched,
		push:   push,
		log:    log.With(logx.String("comp", "prayer")),
		now:    time.Now,
		sleep:  transport.SleepContext,
	}
}

type plannedJob struct {
	id     string
	prayer Name
	at     time.Time
	run    func(ctx context.Context) error
}

// SetEvents publishes a prayers.planned event after each reconcile.
func (m *Manager) SetEvents(p eventbus.Publisher) { m.events = p }

// Recompute fetches today's timings and reconciles the per-day prayer jobs.
// On fetch failure the installed jobs are left as they are.
func (m *Manager) Recompute(ctx context.Context) error {
	now := m.now().In(m.cfg.Location)

	set, err := m.fetch(ctx, now)
	if err != nil {
		m.log.Error("prayer times unavailable; keeping current jobs", logx.Err(err))
		return err
	}

	desired := m.plan(set, now)
	want := make(map[string]struct{}, len(desired))
	for _, p := range desired {
		want[p.id] = struct{}{}
	}

	canceled := 0
	for _, j := range m.sched.List() {
		if !strings.HasPrefix(j.ID, JobPrefix) {
			continue
		}
		if _, ok := want[j.ID]; !ok && m.sched.Cancel(j.ID) {
			canceled++
		}
	}

	installed := 0
	for _, p := range desired {
		err := m.sched.Schedule(scheduler.Job{
			ID:           p.id,
			Trigger:      scheduler.At(p.at),
			Run:          p.run,
			MisfireGrace: m.cfg.MisfireGrace,
		})
		if err != nil {
			m.log.Error("schedule prayer job failed", logx.String("job", p.id), logx.Err(err))
			continue
		}
		installed++
		m.log.Debug("prayer job installed", logx.String("job", p.id), logx.Time("at", p.at))
	}

	m.log.Info("prayer jobs reconciled",
		logx.String("date", now.Format("2006-01-02")),
		logx.String("timings", formatSet(set)),
		logx.Int("installed", installed),
		logx.Int("canceled", canceled),
	)
	if m.events != nil {
		m.events.Publish(eventbus.Event{Type: eventbus.TypePrayersPlanned, Data: set})
	}
	return nil
}

func (m *Manager) fetch(ctx context.Context, now time.Time) (Set, error) {
	var lastErr error
	for attempt := 0; attempt < m.cfg.Attempts; attempt++ {
		set, err := m.source.Fetch(ctx, now)
		if err == nil {
			if err = set.Validate(); err == nil {
				return set, nil
			}
		}
		lastErr = err
		m.log.Warn("fetch prayer times failed", logx.Int("attempt", attempt+1), logx.Err(err))
		if attempt == m.cfg.Attempts-1 {
			break
		}
		if err := m.sleep(ctx, m.cfg.BackoffUnit<<attempt); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("fetch prayer times: %d attempts: %w", m.cfg.Attempts, lastErr)
}

// plan computes the desired jobs for set relative to now. Each prayer is
// handled on its own; no ordering between the five is assumed.
func (m *Manager) plan(set Set, now time.Time) []plannedJob {
	var out []plannedJob
	for _, name := range Names {
		clk, ok := set[name]
		if !ok {
			continue
		}
		at := clk.On(now, m.cfg.Location)
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		day := at.Format("20060102")

		name := name
		if alertAt := at.Add(-m.cfg.AlertLead); alertAt.After(now) {
			out = append(out, plannedJob{
				id:     JobPrefix + "alert:" + string(name) + ":" + day,
				prayer: name,
				at:     alertAt,
				run:    func(ctx context.Context) error { return m.push.Alert(ctx, AlertText(name)) },
			})
		}
		if afterAt := at.Add(m.cfg.AfterDelay); afterAt.After(now) {
			out = append(out, plannedJob{
				id:     JobPrefix + "after:" + string(name) + ":" + day,
				prayer: name,
				at:     afterAt,
				run:    m.push.AfterPrayer,
			})
		}
	}
	return out
}

func formatSet(s Set) string {
	parts := make([]string, 0, len(Names))
	for _, n := range Names {
		if c, ok := s[n]; ok {
			parts = append(parts, string(n)+"="+c.String())
		}
	}
	return strings.Join(parts, " ")
}
