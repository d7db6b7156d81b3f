// Package loop implements the compositor's single-threaded cooperative
// runtime.
//
// All tree, transaction, and configure state is owned by the goroutine
// running the loop. Work is expressed as callbacks scheduled into one of
// four phases executed in a fixed order per iteration: Read, Layout,
// Present, PostPresent. Within a phase, callbacks run in FIFO order.
// Between iterations the loop sleeps in epoll until a watched file
// descriptor becomes ready, a timer expires, or Wake is called from
// another goroutine.
package loop

import (
	"container/heap"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sys/unix"
)

// Phase identifies one of the fixed dispatch phases of an iteration.
type Phase uint8

const (
	// PhaseRead runs first: protocol input, device events, completions.
	PhaseRead Phase = iota

	// PhaseLayout runs tree reconfiguration and transaction flushes.
	PhaseLayout

	// PhasePresent runs frame rendering and output commits.
	PhasePresent

	// PhasePostPresent runs cleanup work after outputs were committed.
	PhasePostPresent

	numPhases
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseRead:
		return "read"
	case PhaseLayout:
		return "layout"
	case PhasePresent:
		return "present"
	case PhasePostPresent:
		return "post-present"
	default:
		return "invalid"
	}
}

// ErrClosed is returned when operating on a loop after Close.
var ErrClosed = errors.New("loop: closed")

// Loop is a single-threaded cooperative scheduler. All methods except
// Wake must be called from the goroutine running Run.
type Loop struct {
	epfd   int
	wakeFd int

	phases  [numPhases][]*task
	watches map[int]*FdWatch
	timers  timerHeap

	running bool
	closed  bool
}

type task struct {
	name string
	fn   func()
}

// Handle cancels a scheduled callback when released before it ran.
type Handle struct {
	t *task
}

// Cancel prevents the callback from running. Cancelling an already-run
// or already-cancelled handle is a no-op.
func (h *Handle) Cancel() {
	if h.t != nil {
		h.t.fn = nil
		h.t = nil
	}
}

// New creates a loop backed by an epoll instance and a wakeup eventfd.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("loop: epoll_create1: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("loop: eventfd: %w", err)
	}
	l := &Loop{
		epfd:    epfd,
		wakeFd:  wakeFd,
		watches: make(map[int]*FdWatch),
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		l.Close()
		return nil, fmt.Errorf("loop: epoll_ctl wakeup: %w", err)
	}
	return l, nil
}

// Close releases the epoll instance and the wakeup fd. Watches are
// closed; scheduled callbacks are dropped.
func (l *Loop) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.running = false
	for fd, w := range l.watches {
		w.loop = nil
		delete(l.watches, fd)
	}
	unix.Close(l.wakeFd)
	unix.Close(l.epfd)
}

// Schedule queues fn to run in the given phase of the current (or next)
// iteration. Callbacks scheduled into the running phase or a later one
// run within the same iteration; earlier phases run next iteration.
func (l *Loop) Schedule(phase Phase, name string, fn func()) *Handle {
	t := &task{name: name, fn: fn}
	l.phases[phase] = append(l.phases[phase], t)
	return &Handle{t: t}
}

// Wake interrupts a sleeping loop. It is the only method safe to call
// from another goroutine.
func (l *Loop) Wake() {
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(l.wakeFd, one[:])
}

// Stop makes Run return after the current iteration completes.
func (l *Loop) Stop() {
	l.running = false
}

// Run executes iterations until Stop is called.
func (l *Loop) Run() error {
	if l.closed {
		return ErrClosed
	}
	l.running = true
	for l.running {
		if err := l.iterate(); err != nil {
			l.running = false
			return err
		}
	}
	return nil
}

// RunOnce executes a single iteration without blocking in epoll.
// It is primarily useful in tests.
func (l *Loop) RunOnce() error {
	if l.closed {
		return ErrClosed
	}
	return l.iterateWith(0)
}

func (l *Loop) iterate() error {
	timeout := -1
	if l.pendingWork() {
		timeout = 0
	} else if d, ok := l.nextTimer(); ok {
		timeout = int(d / time.Millisecond)
		if d%time.Millisecond != 0 {
			timeout++
		}
	}
	return l.iterateWith(timeout)
}

func (l *Loop) iterateWith(timeout int) error {
	var events [32]unix.EpollEvent
	n, err := unix.EpollWait(l.epfd, events[:], timeout)
	if err != nil && err != unix.EINTR {
		return fmt.Errorf("loop: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := events[i]
		if int(ev.Fd) == l.wakeFd {
			var buf [8]byte
			_, _ = unix.Read(l.wakeFd, buf[:])
			continue
		}
		w := l.watches[int(ev.Fd)]
		if w == nil || w.fn == nil {
			continue
		}
		w.fn(Readiness{
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
		})
	}
	l.fireTimers()
	l.runPhases()
	return nil
}

func (l *Loop) pendingWork() bool {
	for i := range l.phases {
		if len(l.phases[i]) > 0 {
			return true
		}
	}
	return false
}

func (l *Loop) runPhases() {
	for p := PhaseRead; p < numPhases; p++ {
		for len(l.phases[p]) > 0 {
			t := l.phases[p][0]
			l.phases[p] = l.phases[p][1:]
			if t.fn == nil {
				continue
			}
			fn := t.fn
			t.fn = nil
			fn()
		}
	}
}

// Readiness describes which directions of a watched fd became ready.
type Readiness struct {
	Readable bool
	Writable bool
}

// FdWatch is a registered interest in fd readiness.
type FdWatch struct {
	loop *Loop
	fd   int
	fn   func(Readiness)
}

// AddFd registers fn to be invoked whenever fd becomes ready in the
// requested directions. The fd is watched level-triggered.
func (l *Loop) AddFd(fd int, readable, writable bool, fn func(Readiness)) (*FdWatch, error) {
	if l.closed {
		return nil, ErrClosed
	}
	var ev uint32
	if readable {
		ev |= unix.EPOLLIN
	}
	if writable {
		ev |= unix.EPOLLOUT
	}
	e := unix.EpollEvent{Events: ev, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &e); err != nil {
		return nil, fmt.Errorf("loop: epoll_ctl add fd %d: %w", fd, err)
	}
	w := &FdWatch{loop: l, fd: fd, fn: fn}
	l.watches[fd] = w
	return w, nil
}

// Close removes the watch. The fd itself stays open.
func (w *FdWatch) Close() {
	if w.loop == nil {
		return
	}
	if err := unix.EpollCtl(w.loop.epfd, unix.EPOLL_CTL_DEL, w.fd, nil); err != nil {
		log.Printf("loop: epoll_ctl del fd %d: %v", w.fd, err)
	}
	delete(w.loop.watches, w.fd)
	w.loop = nil
	w.fn = nil
}

// Timer is a pending timeout. Cancelling a fired timer is a no-op.
type Timer struct {
	deadline time.Time
	fn       func()
}

// Cancel prevents the timer from firing.
func (t *Timer) Cancel() {
	t.fn = nil
}

// Timeout schedules fn to run once d has elapsed.
func (l *Loop) Timeout(d time.Duration, fn func()) *Timer {
	t := &Timer{deadline: time.Now().Add(d), fn: fn}
	heap.Push(&l.timers, t)
	return t
}

func (l *Loop) nextTimer() (time.Duration, bool) {
	for len(l.timers) > 0 && l.timers[0].fn == nil {
		heap.Pop(&l.timers)
	}
	if len(l.timers) == 0 {
		return 0, false
	}
	d := time.Until(l.timers[0].deadline)
	if d < 0 {
		d = 0
	}
	return d, true
}

func (l *Loop) fireTimers() {
	now := time.Now()
	for len(l.timers) > 0 {
		t := l.timers[0]
		if t.fn == nil {
			heap.Pop(&l.timers)
			continue
		}
		if t.deadline.After(now) {
			return
		}
		heap.Pop(&l.timers)
		fn := t.fn
		t.fn = nil
		fn()
	}
}

type timerHeap []*Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)        { *h = append(*h, x.(*Timer)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
