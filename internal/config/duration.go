package config

import (
	"fmt"
	"strings"
	"time"

	"azkarbot/internal/task/scheduler"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// Clock is an "HH:MM" time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func ParseClockField(path, raw string) (Clock, error) {
	h, m, err := scheduler.ParseClock(strings.TrimSpace(raw))
	if err != nil {
		return Clock{}, fmt.Errorf("%s: %w", path, err)
	}
	return Clock{Hour: h, Minute: m}, nil
}

func parseSlots(path string, raw []string) ([]Clock, error) {
	out := make([]Clock, 0, len(raw))
	for i, r := range raw {
		c, err := ParseClockField(fmt.Sprintf("%s[%d]", path, i), r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
