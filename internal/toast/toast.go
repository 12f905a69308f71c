// Package toast implements the queue of short-lived user-facing notifications.
package toast

import (
	"regexp"
	"slices"
	"sync"
	"time"
)

// DefaultTTL is how long a toast stays visible.
const DefaultTTL = 2000 * time.Millisecond

// Toast is a single notification.
type Toast struct {
	ID      uint64 `json:"id"`
	Message string `json:"message"`
}

// IsError reports whether the toast should be styled as an error.
func (t Toast) IsError() bool {
	return IsError(t.Message)
}

var errorPattern = regexp.MustCompile(`(?i)failed|error|rate\s*limited|http\s*(4\d{2}|5\d{2})`)

// IsError classifies a message as an error from its text alone.
func IsError(msg string) bool {
	return errorPattern.MatchString(msg)
}

// Timer is the handle returned by an AfterFunc scheduler.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Queue holds visible toasts, most recent first. Each toast owns its own
// expiry timer; later pushes never reset or coalesce earlier timers.
type Queue struct {
	ttl       time.Duration
	afterFunc AfterFunc

	mu       sync.Mutex
	seq      uint64
	toasts   []Toast
	timers   map[uint64]Timer
	closed   bool
	onChange func([]Toast)
}

// New returns a queue whose toasts expire after ttl.
func New(ttl time.Duration) *Queue {
	return NewWithScheduler(ttl, realAfterFunc)
}

// NewWithScheduler is New with a custom timer source.
func NewWithScheduler(ttl time.Duration, afterFunc AfterFunc) *Queue {
	return &Queue{
		ttl:       ttl,
		afterFunc: afterFunc,
		timers:    make(map[uint64]Timer),
	}
}

// OnChange registers fn to receive the visible list after every push and
// expiry. It is called outside the queue lock.
func (q *Queue) OnChange(fn func([]Toast)) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Push prepends a toast with the next sequence number and schedules its
// removal. Pushing to a closed queue is a no-op that returns the zero Toast.
func (q *Queue) Push(msg string) Toast {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Toast{}
	}
	q.seq++
	t := Toast{ID: q.seq, Message: msg}
	q.toasts = slices.Insert(q.toasts, 0, t)
	q.timers[t.ID] = q.afterFunc(q.ttl, func() { q.expire(t.ID) })
	list, fn := slices.Clone(q.toasts), q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn(list)
	}
	return t
}

func (q *Queue) expire(id uint64) {
	q.mu.Lock()
	delete(q.timers, id)
	i := slices.IndexFunc(q.toasts, func(t Toast) bool { return t.ID == id })
	if i < 0 {
		q.mu.Unlock()
		return
	}
	q.toasts = slices.Delete(q.toasts, i, i+1)
	list, fn := slices.Clone(q.toasts), q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn(list)
	}
}

// List returns the visible toasts, most recent first.
func (q *Queue) List() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.toasts)
}

// Close stops every pending expiry timer. Visible toasts are left as they are.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}
