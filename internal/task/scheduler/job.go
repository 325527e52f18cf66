package scheduler

import (
	"container/heap"
	"context"
	"sync/atomic"
	"time"
)

const (
	DefaultMisfireGrace = time.Minute
	DefaultTimeout      = 10 * time.Minute
)

// Job is a scheduled callback. Arguments are captured by the Run closure.
type Job struct {
	ID      string
	Trigger Trigger
	Run     func(ctx context.Context) error

	// MisfireGrace is the maximum lateness before an occurrence is skipped.
	MisfireGrace time.Duration
	// Timeout bounds a single run.
	Timeout time.Duration
}

// JobInfo is a read-only view of an installed job.
type JobInfo struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Trigger string    `json:"trigger"`
	Next    time.Time `json:"next"`
	Running bool      `json:"running"`
}

// runState enforces at most one in-flight run per job id.
type runState struct {
	running atomic.Bool
}

func (s *runState) tryAcquire() bool { return s.running.CompareAndSwap(false, true) }
func (s *runState) release()         { s.running.Store(false) }

type entry struct {
	job   Job
	next  time.Time
	index int
	state *runState
}

// jobQueue is a min-heap on next fire time; ties break on id for stable order.
type jobQueue []*entry

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].next.Equal(q[j].next) {
		return q[i].job.ID < q[j].job.ID
	}
	return q[i].next.Before(q[j].next)
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

func (q jobQueue) peek() *entry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (q *jobQueue) remove(e *entry) {
	if e.index >= 0 && e.index < len(*q) {
		heap.Remove(q, e.index)
	}
}
