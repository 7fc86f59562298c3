// Package eventloop runs callbacks one at a time on a single goroutine,
// ordered by a virtual clock. Tests fast-forward the clock with Advance;
// Run follows the wall clock.
package eventloop

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Priority orders tasks that are due at the same instant. Mutation
// notifications run before timers, like browser microtasks.
type Priority int

const (
	PriorityTimer Priority = iota
	PriorityMicrotask
)

// Timer is a scheduled task
type Timer struct {
	loop     *Loop
	at       time.Duration
	priority Priority
	seq      uint64
	fn       func()
	stopped  bool
	index    int
}

// Stop prevents the task from running. It reports whether the task was
// still pending.
func (t *Timer) Stop() bool {
	if t == nil || t.loop == nil {
		return false
	}
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	if t.stopped || t.index < 0 {
		return false
	}
	t.stopped = true
	return true
}

type timerQueue []*Timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.at != b.at {
		return a.at < b.at
	}
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*Timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Loop is a single-threaded task scheduler
type Loop struct {
	mu     sync.Mutex
	start  time.Time
	now    time.Duration
	seq    uint64
	queue  timerQueue
	closed bool
	wake   chan struct{}
}

// New creates a loop whose clock reads start
func New(start time.Time) *Loop {
	return &Loop{
		start: start,
		wake:  make(chan struct{}, 1),
	}
}

// Now returns the loop's current time
func (l *Loop) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.start.Add(l.now)
}

// Elapsed returns how far the clock has moved since start
func (l *Loop) Elapsed() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Pending returns the number of queued tasks, stopped ones included
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// AfterFunc schedules fn to run once d has elapsed on the loop clock.
// After Close it returns a stopped timer.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	return l.schedule(d, PriorityTimer, fn)
}

// Post schedules fn to run as soon as possible
func (l *Loop) Post(fn func()) *Timer {
	return l.schedule(0, PriorityTimer, fn)
}

// Microtask schedules fn ahead of every timer due at the current instant
func (l *Loop) Microtask(fn func()) {
	l.schedule(0, PriorityMicrotask, fn)
}

func (l *Loop) schedule(d time.Duration, p Priority, fn func()) *Timer {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return &Timer{stopped: true, index: -1}
	}
	l.seq++
	t := &Timer{
		loop:     l,
		at:       l.now + d,
		priority: p,
		seq:      l.seq,
		fn:       fn,
	}
	heap.Push(&l.queue, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return t
}

// Advance moves the clock forward by d, running every task that falls due
// on the way in order. Tasks scheduled by those tasks run too when they
// fall inside the window. It returns the number of tasks run.
func (l *Loop) Advance(d time.Duration) int {
	l.mu.Lock()
	target := l.now + d
	l.mu.Unlock()
	return l.runDue(target)
}

// RunUntilIdle runs tasks, jumping the clock to each one, until the queue
// is empty or ctx is done.
func (l *Loop) RunUntilIdle(ctx context.Context) (int, error) {
	var ran int
	for {
		if err := ctx.Err(); err != nil {
			return ran, err
		}
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return ran, nil
		}
		next := l.queue[0].at
		l.mu.Unlock()
		ran += l.runDue(next)
	}
}

// Run executes tasks as they fall due on the wall clock until ctx is done
// or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	base := time.Now().Add(-l.Elapsed())
	for {
		l.runDue(time.Since(base))

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil
		}
		idle := len(l.queue) == 0
		var wait time.Duration
		if !idle {
			wait = l.queue[0].at - time.Since(base)
		}
		l.mu.Unlock()

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		if !idle {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-l.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Close drops every pending task. Later scheduling calls are ignored.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	for _, t := range l.queue {
		t.stopped = true
		t.index = -1
	}
	l.queue = nil
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) runDue(target time.Duration) int {
	var ran int
	for {
		l.mu.Lock()
		if len(l.queue) == 0 || l.queue[0].at > target {
			if target > l.now {
				l.now = target
			}
			l.mu.Unlock()
			return ran
		}
		t := heap.Pop(&l.queue).(*Timer)
		if t.at > l.now {
			l.now = t.at
		}
		stopped := t.stopped
		l.mu.Unlock()

		if stopped {
			continue
		}
		t.fn()
		ran++
	}
}
