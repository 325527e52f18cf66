package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"azkarbot/internal/broadcast"
	"azkarbot/internal/config"
	"azkarbot/internal/task/scheduler"
	logx "azkarbot/pkg/logx"
)

// Recurring job ids. Per-day prayer jobs are owned by the prayer manager.
const (
	JobRotation        = "rotation"
	JobWarmStart       = "rotation.warmstart"
	JobPrayerRecompute = "prayer.recompute"
	JobPrayerBootstrap = "prayer.bootstrap"
	JobHeartbeat       = "heartbeat"
)

type jobTable interface {
	Schedule(job scheduler.Job) error
}

type pushes interface {
	Rotate(ctx context.Context) (broadcast.Report, error)
	Morning(ctx context.Context) (broadcast.Report, error)
	Evening(ctx context.Context) (broadcast.Report, error)
}

type recomputer interface {
	Recompute(ctx context.Context) error
}

type counter interface {
	Len() int
}

type jobDeps struct {
	push     pushes
	prayers  recomputer
	registry counter
	jobs     counter
	log      logx.Logger
}

// installJobs registers every recurring job plus the two startup one-shots.
func installJobs(sched jobTable, d jobDeps, res *config.Resolved, now time.Time) error {
	report := func(fn func(context.Context) (broadcast.Report, error)) func(context.Context) error {
		return func(ctx context.Context) error {
			_, err := fn(ctx)
			return err
		}
	}

	jobs := []scheduler.Job{
		{ID: JobRotation, Trigger: scheduler.Every(res.RotationEvery), Run: report(d.push.Rotate), MisfireGrace: res.RotationGrace},
		// Possibly overlaps the first interval run when the warm start is
		// close to the rotation period.
		{ID: JobWarmStart, Trigger: scheduler.At(now.Add(res.WarmStart)), Run: report(d.push.Rotate), MisfireGrace: res.RotationGrace},
		{ID: JobPrayerBootstrap, Trigger: scheduler.At(now), Run: d.prayers.Recompute, MisfireGrace: res.PushGrace},
		{ID: JobHeartbeat, Trigger: scheduler.Every(res.Heartbeat), Run: d.heartbeat},
	}

	recompute, err := scheduler.Daily(res.RecomputeAt.Hour, res.RecomputeAt.Minute, res.Location)
	if err != nil {
		return err
	}
	jobs = append(jobs, scheduler.Job{ID: JobPrayerRecompute, Trigger: recompute, Run: d.prayers.Recompute, MisfireGrace: res.PushGrace})

	slots := []struct {
		prefix string
		clocks []config.Clock
		run    func(context.Context) (broadcast.Report, error)
	}{
		{"azkar.morning", res.MorningSlots, d.push.Morning},
		{"azkar.evening", res.EveningSlots, d.push.Evening},
	}
	for _, s := range slots {
		for i, c := range s.clocks {
			trig, err := scheduler.Daily(c.Hour, c.Minute, res.Location)
			if err != nil {
				return fmt.Errorf("%s slot %d: %w", s.prefix, i, err)
			}
			jobs = append(jobs, scheduler.Job{
				ID:           fmt.Sprintf("%s.%d", s.prefix, i),
				Trigger:      trig,
				Run:          report(s.run),
				MisfireGrace: res.PushGrace,
			})
		}
	}

	var errs []error
	for _, j := range jobs {
		j.Timeout = res.JobTimeout
		if err := sched.Schedule(j); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d jobDeps) heartbeat(context.Context) error {
	d.log.Info("alive", logx.Int("groups", d.registry.Len()), logx.Int("jobs", d.jobs.Len()))
	return nil
}
