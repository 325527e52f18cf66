package prayer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAladhanFetch(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"status":"OK","data":{"timings":{
			"Fajr":"04:30 (EET)","Sunrise":"05:55","Dhuhr":"11:45","Asr":"15:00",
			"Maghrib":"17:20","Isha":"18:40","Midnight":"23:45"}}}`))
	}))
	t.Cleanup(srv.Close)

	a := NewAladhan(AladhanConfig{BaseURL: srv.URL, City: "cairo", Country: "egypt", Method: 8}, srv.Client())
	set, err := a.Fetch(context.Background(), time.Date(2026, 10, 16, 0, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/v1/timingsByCity/16-10-2026" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery != "city=cairo&country=egypt&method=8" {
		t.Fatalf("query = %q", gotQuery)
	}
	if set[Fajr] != (Clock{4, 30}) || set[Isha] != (Clock{18, 40}) {
		t.Fatalf("set = %v", set)
	}
	if len(set) != 5 {
		t.Fatalf("len(set) = %d, want 5", len(set))
	}
}

func TestAladhanFetchFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusBadGateway, `oops`},
		{"api code", http.StatusOK, `{"code":400,"status":"Bad Request","data":{}}`},
		{"missing prayer", http.StatusOK, `{"code":200,"data":{"timings":{"Fajr":"04:30"}}}`},
		{"bad clock", http.StatusOK, `{"code":200,"data":{"timings":{"Fajr":"4h","Dhuhr":"11:45","Asr":"15:00","Maghrib":"17:20","Isha":"18:40"}}}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			a := NewAladhan(AladhanConfig{BaseURL: srv.URL, City: "cairo", Country: "egypt", Method: 8}, srv.Client())
			if _, err := a.Fetch(context.Background(), time.Now()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
