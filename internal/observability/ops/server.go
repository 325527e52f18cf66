// Package ops serves the local operations endpoints: prometheus metrics, a
// JSON health document and, when enabled, net/http/pprof.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rtsup "azkarbot/internal/runtime/supervisor"
	logx "azkarbot/pkg/logx"
)

const DefaultAddr = "127.0.0.1:9090"

type Config struct {
	Addr  string
	Pprof bool
	// Token guards pprof; required when Addr is not loopback.
	Token string
}

// Health is the /healthz body.
type Health struct {
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	Groups     int       `json:"groups"`
	Jobs       int       `json:"jobs"`
	PollCursor int64     `json:"poll_cursor"`
	PollErrors int       `json:"poll_consecutive_errors"`
	Goroutines int64     `json:"supervised_goroutines"`

	// LastEvents maps event keys such as "push.done:rotation" to their last time.
	LastEvents map[string]time.Time `json:"last_events,omitempty"`
}

type HealthFunc func() Health

type Server struct {
	mu     sync.Mutex
	cfg    Config
	health HealthFunc
	log    logx.Logger

	ln  net.Listener
	srv *http.Server
	sup *rtsup.Supervisor
}

func New(cfg Config, health HealthFunc, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, health: health, log: log.With(logx.String("comp", "ops"))}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.serveHealth)
	if s.cfg.Pprof {
		r.Group(func(r chi.Router) {
			r.Use(bearer(s.cfg.Token))
			r.Mount("/debug", middleware.Profiler())
		})
	}
	return r
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	h := Health{Status: "ok"}
	if s.health != nil {
		h = s.health()
		if h.Status == "" {
			h.Status = "ok"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h)
}

// Start listens on the configured address and serves under a restart loop.
// A listen failure is logged; the bot keeps running without ops endpoints.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return nil
	}
	if s.cfg.Pprof && s.cfg.Token == "" && !isLoopbackAddr(s.cfg.Addr) {
		return errors.New("ops: pprof on a non-loopback address requires a token")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(s.log), rtsup.WithCancelOnError(false))

	srv := s.srv
	s.sup.Go("ops.serve", func(ctx context.Context) error {
		err := srv.Serve(ln)
		if ctx.Err() != nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	s.log.Info("ops server started", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", s.cfg.Pprof))
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, sup := s.srv, s.sup
	s.srv, s.sup, s.ln = nil, nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	sup.Cancel()
	_ = sup.Wait(ctx)
	s.log.Info("ops server stopped")
	return err
}

func bearer(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Authorization: Bearer <token>, or ?token=<token>
			got := r.URL.Query().Get("token")
			if ah := r.Header.Get("Authorization"); got == "" && strings.HasPrefix(ah, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
			}
			if got != tok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil || strings.TrimSpace(h) == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
