package ops

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"azkarbot/internal/metrics"
	logx "azkarbot/pkg/logx"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := New(Config{}, func() Health { return Health{Groups: 3, Jobs: 12, PollCursor: 77} }, logx.Nop())
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var h Health
	if err := json.Unmarshal(rr.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "ok" || h.Groups != 3 || h.Jobs != 12 || h.PollCursor != 77 {
		t.Fatalf("health = %+v", h)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics.Groups.Set(5)
	s := New(Config{}, nil, logx.Nop())
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "azkarbot_groups") {
		t.Fatalf("metrics = %d %q", rr.Code, rr.Body.String())
	}
}

func TestPprofRoutes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		cfg    Config
		target string
		auth   string
		want   int
	}{
		{"disabled", Config{}, "/debug/pprof/", "", http.StatusNotFound},
		{"open", Config{Pprof: true}, "/debug/pprof/", "", http.StatusOK},
		{"token missing", Config{Pprof: true, Token: "s3cret"}, "/debug/pprof/", "", http.StatusUnauthorized},
		{"token header", Config{Pprof: true, Token: "s3cret"}, "/debug/pprof/", "Bearer s3cret", http.StatusOK},
		{"token query", Config{Pprof: true, Token: "s3cret"}, "/debug/pprof/?token=s3cret", "", http.StatusOK},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rr := httptest.NewRecorder()
			New(tc.cfg, nil, logx.Nop()).Handler().ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestStartRefusesPublicPprofWithoutToken(t *testing.T) {
	t.Parallel()

	s := New(Config{Addr: "0.0.0.0:0", Pprof: true}, nil, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		_ = s.Stop(context.Background())
		t.Fatalf("expected refusal")
	}
}

func TestStartServeStop(t *testing.T) {
	t.Parallel()

	s := New(Config{Addr: "127.0.0.1:0"}, nil, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Fatalf("body = %s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
