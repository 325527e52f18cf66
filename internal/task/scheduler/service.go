package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"azkarbot/internal/metrics"
	rtsup "azkarbot/internal/runtime/supervisor"
	logx "azkarbot/pkg/logx"
)

// idleWait bounds how long the loop sleeps with an empty table.
const idleWait = time.Minute

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

type Service struct {
	mu     sync.Mutex
	log    logx.Logger
	now    func() time.Time
	jobs   map[string]*entry
	states map[string]*runState
	queue  jobQueue

	wake    chan struct{}
	sup     *rtsup.Supervisor
	started bool
}

func New(log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log.With(logx.String("comp", "scheduler")),
		now:    time.Now,
		jobs:   map[string]*entry{},
		states: map[string]*runState{},
		wake:   make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.sup = rtsup.NewSupervisor(context.Background(), rtsup.WithLogger(s.log), rtsup.WithCancelOnError(false))
	return s
}

// Start runs the tick loop until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	n := len(s.jobs)
	s.mu.Unlock()

	s.sup.Go0("scheduler.loop", func(supCtx context.Context) {
		loopCtx, cancel := context.WithCancel(supCtx)
		defer cancel()
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-loopCtx.Done():
			}
		}()
		s.loop(loopCtx)
	})
	s.log.Info("scheduler started", logx.Int("jobs", n))
}

// Stop ends the tick loop, cancels in-flight runs and waits for them until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	err := s.sup.Stop(ctx)
	s.log.Info("scheduler stopped")
	return err
}

// Schedule installs job, replacing any job with the same id.
func (s *Service) Schedule(job Job) error {
	if job.ID == "" {
		return errors.New("scheduler: job id required")
	}
	if job.Trigger == nil {
		return fmt.Errorf("scheduler: job %q: trigger required", job.ID)
	}
	if job.Run == nil {
		return fmt.Errorf("scheduler: job %q: run func required", job.ID)
	}
	if job.MisfireGrace <= 0 {
		job.MisfireGrace = DefaultMisfireGrace
	}
	if job.Timeout <= 0 {
		job.Timeout = DefaultTimeout
	}

	s.mu.Lock()
	first := job.Trigger.First(s.now())
	if first.IsZero() {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: job %q: trigger never fires", job.ID)
	}
	replaced := false
	if old, ok := s.jobs[job.ID]; ok {
		s.queue.remove(old)
		replaced = true
	}
	st := s.states[job.ID]
	if st == nil {
		st = &runState{}
		s.states[job.ID] = st
	}
	e := &entry{job: job, next: first, state: st}
	s.jobs[job.ID] = e
	heap.Push(&s.queue, e)
	s.mu.Unlock()

	s.poke()
	s.log.Debug("job scheduled",
		logx.String("job", job.ID),
		logx.String("trigger", job.Trigger.String()),
		logx.Time("next", first),
		logx.Bool("replaced", replaced),
	)
	return nil
}

// Cancel removes a job. Absent ids are ignored. An in-flight run is not interrupted.
func (s *Service) Cancel(id string) bool {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if ok {
		s.queue.remove(e)
		delete(s.jobs, id)
		if !e.state.running.Load() {
			delete(s.states, id)
		}
	}
	s.mu.Unlock()
	if ok {
		s.poke()
		s.log.Debug("job canceled", logx.String("job", id))
	}
	return ok
}

// List returns the installed jobs ordered by next fire time.
func (s *Service) List() []JobInfo {
	s.mu.Lock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, JobInfo{
			ID:      e.job.ID,
			Kind:    e.job.Trigger.Kind(),
			Trigger: e.job.Trigger.String(),
			Next:    e.next,
			Running: e.state.running.Load(),
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Next.Equal(out[j].Next) {
			return out[i].ID < out[j].ID
		}
		return out[i].Next.Before(out[j].Next)
	})
	return out
}

func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Service) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) loop(ctx context.Context) {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		s.fireDue(s.now())

		wait := idleWait
		s.mu.Lock()
		if e := s.queue.peek(); e != nil {
			wait = min(e.next.Sub(s.now()), idleWait)
		}
		s.mu.Unlock()
		timer.Reset(max(wait, 0))

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

type firing struct {
	job   Job
	due   time.Time
	state *runState
}

// fireDue pops every job due at or before now, decides run or skip for each
// occurrence, reschedules the next occurrence, and dispatches the runs.
func (s *Service) fireDue(now time.Time) {
	var runs []firing

	s.mu.Lock()
	for {
		e := s.queue.peek()
		if e == nil || e.next.After(now) {
			break
		}
		heap.Pop(&s.queue)
		due := e.next
		late := now.Sub(due)

		switch {
		case late > e.job.MisfireGrace:
			metrics.JobsMissed.WithLabelValues(metrics.JobLabel(e.job.ID)).Inc()
			s.log.Warn("job missed",
				logx.String("job", e.job.ID),
				logx.Time("due", due),
				logx.Duration("late", late),
				logx.Duration("grace", e.job.MisfireGrace),
			)
		case !e.state.tryAcquire():
			metrics.JobsOverlapSkipped.WithLabelValues(metrics.JobLabel(e.job.ID)).Inc()
			s.log.Warn("job still running; occurrence skipped", logx.String("job", e.job.ID), logx.Time("due", due))
		default:
			runs = append(runs, firing{job: e.job, due: due, state: e.state})
		}

		if next := e.job.Trigger.Next(due, now); next.IsZero() {
			delete(s.jobs, e.job.ID)
			// A running occurrence drops the state in release instead.
			if !e.state.running.Load() && s.states[e.job.ID] == e.state {
				delete(s.states, e.job.ID)
			}
		} else {
			e.next = next
			heap.Push(&s.queue, e)
		}
	}
	s.mu.Unlock()

	for _, f := range runs {
		s.dispatch(f)
	}
}

func (s *Service) dispatch(f firing) {
	metrics.JobsFired.WithLabelValues(metrics.JobLabel(f.job.ID)).Inc()
	s.sup.Go0("job:"+f.job.ID, func(ctx context.Context) {
		defer s.release(f.job.ID, f.state)

		runID := uuid.NewString()
		log := s.log.With(logx.String("job", f.job.ID), logx.String("run_id", runID))
		runCtx, cancel := context.WithTimeout(ctx, f.job.Timeout)
		defer cancel()

		start := s.now()
		err := runIsolated(runCtx, f.job.Run)
		took := s.now().Sub(start)
		if err != nil {
			metrics.JobsFailed.WithLabelValues(metrics.JobLabel(f.job.ID)).Inc()
			log.Error("job failed", logx.Duration("took", took), logx.Err(err))
			return
		}
		log.Debug("job done", logx.Duration("took", took))
	})
}

func (s *Service) release(id string, st *runState) {
	st.release()
	s.mu.Lock()
	if _, ok := s.jobs[id]; !ok && s.states[id] == st {
		delete(s.states, id)
	}
	s.mu.Unlock()
}

func runIsolated(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}
