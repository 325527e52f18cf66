package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resolved holds the parsed, defaulted values the app wires components with.
type Resolved struct {
	Location *time.Location

	PollTimeout time.Duration
	PollLimit   int

	RotationEvery time.Duration
	WarmStart     time.Duration
	RotationGrace time.Duration
	PushGrace     time.Duration
	Heartbeat     time.Duration
	JobTimeout    time.Duration
	MorningSlots  []Clock
	EveningSlots  []Clock

	RecomputeAt   Clock
	AlertLead     time.Duration
	AfterDelay    time.Duration
	PrayerTimeout time.Duration

	SendTimeout time.Duration
	BusyTimeout time.Duration
}

// Resolve validates c and converts its strings into typed values.
// Every problem is reported, not just the first.
func (c *Config) Resolve() (*Resolved, error) {
	def := Defaults()
	r := &Resolved{}
	var errs []error

	dur := func(path, raw, fallback string) time.Duration {
		d, err := ParseDurationField(path, raw)
		if err != nil {
			errs = append(errs, err)
			return 0
		}
		if d == 0 {
			d, _ = time.ParseDuration(fallback)
		}
		return d
	}

	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" {
		tz = def.Scheduler.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	r.Location = loc

	r.PollTimeout = dur("telegram.poll_timeout", c.Telegram.PollTimeout, def.Telegram.PollTimeout)
	r.PollLimit = c.Telegram.PollLimit
	if r.PollLimit <= 0 || r.PollLimit > 100 {
		r.PollLimit = def.Telegram.PollLimit
	}

	r.RotationEvery = dur("scheduler.rotation_every", c.Scheduler.RotationEvery, def.Scheduler.RotationEvery)
	r.WarmStart = dur("scheduler.warm_start", c.Scheduler.WarmStart, def.Scheduler.WarmStart)
	r.RotationGrace = dur("scheduler.rotation_grace", c.Scheduler.RotationGrace, def.Scheduler.RotationGrace)
	r.PushGrace = dur("scheduler.push_grace", c.Scheduler.PushGrace, def.Scheduler.PushGrace)
	r.Heartbeat = dur("scheduler.heartbeat", c.Scheduler.Heartbeat, def.Scheduler.Heartbeat)
	r.JobTimeout = dur("scheduler.job_timeout", c.Scheduler.JobTimeout, "10m")

	morning, evening := c.Scheduler.MorningSlots, c.Scheduler.EveningSlots
	if morning == nil {
		morning = def.Scheduler.MorningSlots
	}
	if evening == nil {
		evening = def.Scheduler.EveningSlots
	}
	if r.MorningSlots, err = parseSlots("scheduler.morning_slots", morning); err != nil {
		errs = append(errs, err)
	}
	if r.EveningSlots, err = parseSlots("scheduler.evening_slots", evening); err != nil {
		errs = append(errs, err)
	}

	at := c.Prayer.Recompute
	if strings.TrimSpace(at) == "" {
		at = def.Prayer.Recompute
	}
	if r.RecomputeAt, err = ParseClockField("prayer.recompute", at); err != nil {
		errs = append(errs, err)
	}
	r.AlertLead = dur("prayer.alert_lead", c.Prayer.AlertLead, def.Prayer.AlertLead)
	r.AfterDelay = dur("prayer.after_delay", c.Prayer.AfterDelay, def.Prayer.AfterDelay)
	r.PrayerTimeout = dur("prayer.timeout", c.Prayer.Timeout, "15s")

	r.SendTimeout = dur("broadcast.send_timeout", c.Broadcast.SendTimeout, "60s")
	r.BusyTimeout = dur("storage.busy_timeout", c.Storage.BusyTimeout, "5s")

	if c.Ops.Enabled && c.Ops.Pprof && !isLoopback(c.Ops.Addr) && strings.TrimSpace(c.Ops.Token) == "" {
		errs = append(errs, errors.New("ops: pprof on a non-loopback address requires ops.token"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func isLoopback(addr string) bool {
	addr = strings.TrimSpace(addr)
	return addr == "" || strings.HasPrefix(addr, "127.") || strings.HasPrefix(addr, "localhost:") || strings.HasPrefix(addr, "[::1]:")
}
