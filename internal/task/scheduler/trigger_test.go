package scheduler

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("tzdata for %s unavailable: %v", name, err)
	}
	return loc
}

func TestIntervalTriggerStaysOnGrid(t *testing.T) {
	t.Parallel()

	T := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	P := 5 * time.Minute
	tr := Every(P)

	next := tr.First(T)
	for n := 1; n <= 10; n++ {
		if want := T.Add(time.Duration(n) * P); !next.Equal(want) {
			t.Fatalf("fire %d at %v want %v", n, next, want)
		}
		// A slow callback finishing mid-period does not shift the grid.
		now := next.Add(P / 3)
		next = tr.Next(next, now)
	}
}

func TestIntervalTriggerSkipsElapsedPeriods(t *testing.T) {
	t.Parallel()

	T := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	tr := Every(time.Minute)

	cases := []struct {
		prev, now, want time.Time
	}{
		{T, T, T.Add(time.Minute)},
		{T, T.Add(30 * time.Second), T.Add(time.Minute)},
		{T, T.Add(time.Minute), T.Add(2 * time.Minute)},
		{T, T.Add(10*time.Minute + time.Second), T.Add(11 * time.Minute)},
	}
	for _, tc := range cases {
		if got := tr.Next(tc.prev, tc.now); !got.Equal(tc.want) {
			t.Fatalf("Next(%v,%v)=%v want %v", tc.prev, tc.now, got, tc.want)
		}
	}
}

func TestDailyTriggerUsesFixedZone(t *testing.T) {
	t.Parallel()

	cairo := mustLoc(t, "Africa/Cairo")
	tr, err := Daily(0, 5, cairo)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}

	installed := time.Date(2026, 10, 16, 10, 0, 0, 0, cairo)
	first := tr.First(installed)
	if want := time.Date(2026, 10, 17, 0, 5, 0, 0, cairo); !first.Equal(want) {
		t.Fatalf("first=%v want %v", first, want)
	}
	// Evaluated from a UTC "now", the slot is still 00:05 Cairo time.
	second := tr.Next(first, first.Add(time.Second).UTC())
	if want := time.Date(2026, 10, 18, 0, 5, 0, 0, cairo); !second.Equal(want) {
		t.Fatalf("second=%v want %v", second, want)
	}
}

func TestDailyTriggerRejectsBadClock(t *testing.T) {
	t.Parallel()

	if _, err := Daily(24, 0, time.UTC); err == nil {
		t.Fatalf("expected error for hour 24")
	}
	if _, err := Cron("not a cron", time.UTC); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDateTriggerFiresOnce(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	tr := At(at)
	if got := tr.First(at.Add(-time.Hour)); !got.Equal(at) {
		t.Fatalf("first=%v", got)
	}
	if got := tr.Next(at, at); !got.IsZero() {
		t.Fatalf("next=%v want zero", got)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		h, m   int
		wantOK bool
	}{
		{"05:30", 5, 30, true},
		{"4:07", 4, 7, true},
		{"04:32 (EET)", 4, 32, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"noon", 0, 0, false},
	}
	for _, tc := range cases {
		h, m, err := ParseClock(tc.in)
		if tc.wantOK != (err == nil) {
			t.Fatalf("ParseClock(%q) err=%v", tc.in, err)
		}
		if tc.wantOK && (h != tc.h || m != tc.m) {
			t.Fatalf("ParseClock(%q)=%d:%d want %d:%d", tc.in, h, m, tc.h, tc.m)
		}
	}
}
