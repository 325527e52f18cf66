package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger computes fire times. Implementations are pure.
type Trigger interface {
	// First returns the initial fire time for a job installed at installedAt.
	First(installedAt time.Time) time.Time
	// Next returns the fire time following the occurrence due at prev,
	// skipping every occurrence at or before now. Zero means done.
	Next(prev, now time.Time) time.Time
	Kind() string
	String() string
}

// IntervalTrigger fires every Period starting at install time: T+P, T+2P, ...
type IntervalTrigger struct {
	Period time.Duration
}

func Every(period time.Duration) IntervalTrigger { return IntervalTrigger{Period: period} }

func (t IntervalTrigger) First(installedAt time.Time) time.Time { return installedAt.Add(t.Period) }

func (t IntervalTrigger) Next(prev, now time.Time) time.Time {
	if t.Period <= 0 {
		return time.Time{}
	}
	next := prev.Add(t.Period)
	if next.After(now) {
		return next
	}
	// Jump over every elapsed period at once; stays on the T+n*P grid.
	n := now.Sub(prev)/t.Period + 1
	next = prev.Add(n * t.Period)
	for !next.After(now) {
		next = next.Add(t.Period)
	}
	return next
}

func (t IntervalTrigger) Kind() string   { return "interval" }
func (t IntervalTrigger) String() string { return "every " + t.Period.String() }

// CronTrigger fires on a robfig/cron schedule evaluated in a fixed timezone.
type CronTrigger struct {
	expr  string
	sched cron.Schedule
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cron parses a cron expression evaluated in loc (nil means local time).
func Cron(expr string, loc *time.Location) (CronTrigger, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return CronTrigger{}, fmt.Errorf("cron expression required")
	}
	full := expr
	if loc != nil && !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
		full = "CRON_TZ=" + loc.String() + " " + expr
	}
	sched, err := cronParser.Parse(full)
	if err != nil {
		return CronTrigger{}, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return CronTrigger{expr: full, sched: sched}, nil
}

// Daily fires once per day at hour:minute wall-clock time in loc.
func Daily(hour, minute int, loc *time.Location) (CronTrigger, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return CronTrigger{}, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return Cron(fmt.Sprintf("%d %d * * *", minute, hour), loc)
}

func (t CronTrigger) First(installedAt time.Time) time.Time { return t.sched.Next(installedAt) }

func (t CronTrigger) Next(prev, now time.Time) time.Time {
	from := prev
	if now.After(from) {
		from = now
	}
	return t.sched.Next(from)
}

func (t CronTrigger) Kind() string   { return "cron" }
func (t CronTrigger) String() string { return t.expr }

// DateTrigger fires exactly once at At.
type DateTrigger struct {
	At time.Time
}

func At(t time.Time) DateTrigger { return DateTrigger{At: t} }

func (t DateTrigger) First(time.Time) time.Time     { return t.At }
func (t DateTrigger) Next(_, _ time.Time) time.Time { return time.Time{} }
func (t DateTrigger) Kind() string                  { return "date" }
func (t DateTrigger) String() string                { return "at " + t.At.Format(time.RFC3339) }

var reClock = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})`)

// ParseClock parses a wall-clock "HH:MM" prefix, tolerating trailing text
// such as "04:32 (EET)".
func ParseClock(s string) (hour, minute int, err error) {
	m := reClock.FindStringSubmatch(s)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	return hour, minute, nil
}
