package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Virtual is a Scheduler whose time only moves when Advance is called.
// It is safe for concurrent use; continuations run on the goroutine that
// calls Advance, without the clock lock held.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue taskQueue
}

// NewVirtual returns a virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) AfterFunc(d time.Duration, fn func()) {
	if fn == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	heap.Push(&v.queue, &task{due: v.now.Add(d), seq: v.seq, fn: fn})
}

// Advance moves the clock forward by d, running every continuation that
// becomes due on the way. The clock reads the continuation's due time while
// it runs.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		v.mu.Lock()
		if v.queue.Len() == 0 || v.queue[0].due.After(target) {
			v.now = target
			v.mu.Unlock()
			return
		}
		next := heap.Pop(&v.queue).(*task)
		v.now = next.due
		v.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of continuations not yet run.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.queue.Len()
}

type task struct {
	due time.Time
	seq uint64
	fn  func()
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*task)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
