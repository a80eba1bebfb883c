package core

import (
	"container/heap"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	taskPending int32 = iota
	taskRunning
	taskStopped
)

// LoopDispatcher runs every posted task on one goroutine, ordered by due time
// and then by post order. It stands in for the host UI thread message loop.
type LoopDispatcher struct {
	mu        sync.Mutex
	queue     loopQueue
	seq       uint64
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	onPanic   func(recovered any)
}

// NewLoopDispatcher starts the loop. capacity presizes the pending queue.
func NewLoopDispatcher(capacity int) *LoopDispatcher {
	if capacity <= 0 {
		capacity = 64
	}
	d := &LoopDispatcher{
		queue: make(loopQueue, 0, capacity),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

// OnPanic registers a callback for panics recovered from tasks. It must be
// set before tasks are posted.
func (d *LoopDispatcher) OnPanic(fn func(recovered any)) {
	if d == nil {
		return
	}
	d.onPanic = fn
}

func (d *LoopDispatcher) PostDelayed(delay time.Duration, task func()) DispatchHandle {
	entry := &loopTask{task: task}
	if d == nil || task == nil || d.closed() {
		entry.state.Store(taskStopped)
		return entry
	}
	if delay < 0 {
		delay = 0
	}
	d.mu.Lock()
	d.seq++
	entry.seq = d.seq
	entry.due = time.Now().Add(delay)
	heap.Push(&d.queue, entry)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return entry
}

// Close stops the loop. Tasks that have not run yet are dropped.
func (d *LoopDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}

func (d *LoopDispatcher) closed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (d *LoopDispatcher) loop() {
	defer d.wg.Done()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		entry, wait := d.next(time.Now())
		if entry != nil {
			if entry.state.CompareAndSwap(taskPending, taskRunning) {
				d.run(entry.task)
			}
			if d.closed() {
				return
			}
			continue
		}
		if wait > 0 {
			timer.Reset(wait)
		}
		select {
		case <-d.done:
			return
		case <-d.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// next pops the head when it is due. Otherwise it reports how long until the
// head falls due, or zero when nothing is pending.
func (d *LoopDispatcher) next(now time.Time) (*loopTask, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.queue.Len() > 0 && d.queue[0].state.Load() == taskStopped {
		heap.Pop(&d.queue)
	}
	if d.queue.Len() == 0 {
		return nil, 0
	}
	head := d.queue[0]
	if head.due.After(now) {
		return nil, head.due.Sub(now)
	}
	heap.Pop(&d.queue)
	return head, 0
}

func (d *LoopDispatcher) run(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil && d.onPanic != nil {
			d.onPanic(recovered)
		}
	}()
	task()
}

type loopTask struct {
	due   time.Time
	seq   uint64
	task  func()
	state atomic.Int32
}

func (t *loopTask) Stop() bool {
	if t == nil {
		return false
	}
	return t.state.CompareAndSwap(taskPending, taskStopped)
}

// loopQueue is a min-heap on (due, seq).
type loopQueue []*loopTask

func (q loopQueue) Len() int { return len(q) }

func (q loopQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q loopQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *loopQueue) Push(x any) { *q = append(*q, x.(*loopTask)) }

func (q *loopQueue) Pop() any {
	old := *q
	last := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return last
}

// VirtualDispatcher is a deterministic dispatcher driven by Advance. Tasks run
// on the goroutine that calls Advance, ordered by due time and then by the
// order they were posted.
type VirtualDispatcher struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	queue []*virtualTask
}

type virtualTask struct {
	due   time.Duration
	seq   int
	task  func()
	state atomic.Int32
}

func NewVirtualDispatcher() *VirtualDispatcher {
	return &VirtualDispatcher{}
}

func (d *VirtualDispatcher) PostDelayed(delay time.Duration, task func()) DispatchHandle {
	entry := &virtualTask{task: task}
	if task == nil {
		entry.state.Store(taskStopped)
		return entry
	}
	if delay < 0 {
		delay = 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	entry.due = d.now + delay
	entry.seq = d.seq
	d.queue = append(d.queue, entry)
	return entry
}

// Advance moves virtual time forward by step, running every task that falls
// due, including tasks posted by other tasks within the window.
func (d *VirtualDispatcher) Advance(step time.Duration) {
	d.mu.Lock()
	target := d.now + step
	d.mu.Unlock()

	for {
		next := d.popDue(target)
		if next == nil {
			break
		}
		if next.state.CompareAndSwap(taskPending, taskRunning) {
			next.task()
		}
	}

	d.mu.Lock()
	if d.now < target {
		d.now = target
	}
	d.mu.Unlock()
}

// RunAll advances until no task is pending.
func (d *VirtualDispatcher) RunAll() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		last := d.queue[0].due
		for _, entry := range d.queue {
			if entry.due > last {
				last = entry.due
			}
		}
		step := last - d.now
		d.mu.Unlock()
		d.Advance(step)
	}
}

func (d *VirtualDispatcher) Now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

func (d *VirtualDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	for _, entry := range d.queue {
		if entry.state.Load() == taskPending {
			count++
		}
	}
	return count
}

func (d *VirtualDispatcher) popDue(target time.Duration) *virtualTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	live := d.queue[:0]
	for _, entry := range d.queue {
		if entry.state.Load() == taskPending {
			live = append(live, entry)
		}
	}
	d.queue = live
	if len(d.queue) == 0 {
		return nil
	}
	sort.SliceStable(d.queue, func(i, j int) bool {
		if d.queue[i].due == d.queue[j].due {
			return d.queue[i].seq < d.queue[j].seq
		}
		return d.queue[i].due < d.queue[j].due
	})
	head := d.queue[0]
	if head.due > target {
		return nil
	}
	d.queue = d.queue[1:]
	if head.due > d.now {
		d.now = head.due
	}
	return head
}

func (t *virtualTask) Stop() bool {
	if t == nil {
		return false
	}
	return t.state.CompareAndSwap(taskPending, taskStopped)
}

var (
	_ Dispatcher = (*LoopDispatcher)(nil)
	_ Dispatcher = (*VirtualDispatcher)(nil)
)
