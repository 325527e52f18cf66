package prayer

import (
	"context"
	"fmt"
	"time"
)

type Name string

const (
	Fajr    Name = "Fajr"
	Dhuhr   Name = "Dhuhr"
	Asr     Name = "Asr"
	Maghrib Name = "Maghrib"
	Isha    Name = "Isha"
)

// Names lists the five daily prayers.
var Names = []Name{Fajr, Dhuhr, Asr, Maghrib, Isha}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// On combines the clock with the calendar day of d, in loc.
func (c Clock) On(d time.Time, loc *time.Location) time.Time {
	d = d.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// Set holds one day's timings.
type Set map[Name]Clock

// Validate reports a missing prayer.
func (s Set) Validate() error {
	for _, n := range Names {
		if _, ok := s[n]; !ok {
			return fmt.Errorf("timings missing %s", n)
		}
	}
	return nil
}

// Source fetches the timings for the calendar day of date.
type Source interface {
	Fetch(ctx context.Context, date time.Time) (Set, error)
}
