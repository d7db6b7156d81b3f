// Package cpuworker runs CPU-bound jobs off the compositor's runtime
// goroutine.
//
// Jobs are submitted from the runtime goroutine, executed on one of the
// pool's worker goroutines, and completed back on the runtime goroutine.
// Submission and completion each go through a mutex-guarded queue paired
// with an eventfd; the completion eventfd is watched by the runtime loop.
// Errors never cross the boundary as panics; they are delivered to the
// job's completion callback.
package cpuworker

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/strata-wm/strata/internal/loop"
)

// Job is a unit of CPU work. Run executes on a worker goroutine and must
// not touch runtime-owned state; Completed runs on the runtime goroutine.
type Job interface {
	Run() error
	Completed(err error)
}

// AsyncCanceler is implemented by jobs that arm asynchronous
// sub-operations during Run. CancelAsync notifies the in-flight
// operation; the job still completes, with ErrCancelled.
type AsyncCanceler interface {
	CancelAsync()
}

// ErrCancelled is delivered to the completion callback of a job that was
// cancelled before the worker started it, or whose async sub-operation
// was aborted.
var ErrCancelled = errors.New("cpuworker: job cancelled")

type jobID uint64

type message struct {
	id     jobID
	job    Job // nil for cancel messages
	cancel bool
}

type pendingState uint8

const (
	stateWaiting pendingState = iota
	stateAbandoned
	stateCompleted
)

type pendingData struct {
	job   Job
	state pendingState
	err   error
}

// Pool executes jobs on background goroutines. All methods must be
// called from the runtime goroutine.
type Pool struct {
	loop   *loop.Loop
	nextID jobID

	mu        sync.Mutex
	newJobs   []message
	completed []completion
	waiter    *sync.Cond    // non-nil while a Release blocks synchronously
	running   map[jobID]Job // jobs currently executing on a worker

	haveNewJobs   int // eventfd the workers sleep on
	haveCompleted int // eventfd the runtime loop watches
	watch         *loop.FdWatch

	pending        map[jobID]*pendingData
	completedLocal []completion
	stopped        bool
}

type completion struct {
	id  jobID
	err error
}

// New creates a pool with the given number of worker goroutines and
// registers its completion eventfd on the loop.
func New(l *loop.Loop, workers int) (*Pool, error) {
	if workers < 1 {
		workers = 1
	}
	haveNewJobs, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_SEMAPHORE)
	if err != nil {
		return nil, fmt.Errorf("cpuworker: eventfd: %w", err)
	}
	haveCompleted, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(haveNewJobs)
		return nil, fmt.Errorf("cpuworker: eventfd: %w", err)
	}
	p := &Pool{
		loop:          l,
		nextID:        1,
		haveNewJobs:   haveNewJobs,
		haveCompleted: haveCompleted,
		pending:       make(map[jobID]*pendingData),
		running:       make(map[jobID]Job),
	}
	p.watch, err = l.AddFd(haveCompleted, true, false, func(loop.Readiness) {
		var buf [8]byte
		_, _ = unix.Read(haveCompleted, buf[:])
		p.dispatchCompletions()
	})
	if err != nil {
		unix.Close(haveNewJobs)
		unix.Close(haveCompleted)
		return nil, err
	}
	for i := 0; i < workers; i++ {
		go p.workerLoop()
	}
	return p, nil
}

// Stop shuts the workers down after their queued jobs finish. Jobs still
// pending will not have their completion callbacks invoked.
func (p *Pool) Stop() {
	if p.stopped {
		return
	}
	p.stopped = true
	if len(p.pending) > 0 {
		log.Printf("cpuworker: stopped with %d pending jobs; their completions are dropped", len(p.pending))
	}
	p.mu.Lock()
	p.newJobs = append(p.newJobs, message{cancel: true, id: 0})
	p.mu.Unlock()
	p.signal(p.haveNewJobs)
	p.watch.Close()
}

// Submit queues a job for execution and returns its pending handle.
func (p *Pool) Submit(j Job) *Pending {
	id := p.nextID
	p.nextID++
	pd := &pendingData{job: j}
	p.pending[id] = pd
	p.mu.Lock()
	p.newJobs = append(p.newJobs, message{id: id, job: j})
	p.mu.Unlock()
	p.signal(p.haveNewJobs)
	return &Pending{pool: p, id: id, data: pd}
}

func (p *Pool) signal(fd int) {
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(fd, one[:])
}

// dispatchCompletions swaps the completion queue under the lock and
// invokes the callbacks in completion order.
func (p *Pool) dispatchCompletions() {
	p.mu.Lock()
	p.completedLocal, p.completed = p.completed, p.completedLocal[:0]
	p.mu.Unlock()
	for _, c := range p.completedLocal {
		pd, ok := p.pending[c.id]
		if !ok {
			continue
		}
		delete(p.pending, c.id)
		switch pd.state {
		case stateWaiting:
			pd.state = stateCompleted
			pd.err = c.err
			pd.job.Completed(c.err)
		case stateAbandoned:
			// Detached; the result is dropped.
		case stateCompleted:
			log.Printf("cpuworker: job %d completed twice", c.id)
		}
	}
	p.completedLocal = p.completedLocal[:0]
}

func (p *Pool) workerLoop() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.haveNewJobs, buf[:]); err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		p.mu.Lock()
		if len(p.newJobs) == 0 {
			p.mu.Unlock()
			continue
		}
		msg := p.newJobs[0]
		p.newJobs = p.newJobs[1:]
		if msg.cancel {
			// Stop marker: leave it for the other workers.
			p.newJobs = append(p.newJobs, msg)
			p.mu.Unlock()
			p.signal(p.haveNewJobs)
			return
		}
		p.running[msg.id] = msg.job
		p.mu.Unlock()

		err := msg.job.Run()

		p.mu.Lock()
		delete(p.running, msg.id)
		p.mu.Unlock()
		p.complete(msg.id, err)
	}
}

// complete posts a completion and wakes both the runtime loop and any
// synchronous waiter.
func (p *Pool) complete(id jobID, err error) {
	p.mu.Lock()
	p.completed = append(p.completed, completion{id: id, err: err})
	w := p.waiter
	p.mu.Unlock()
	p.signal(p.haveCompleted)
	if w != nil {
		w.Signal()
	}
}

// Pending is the handle of a submitted job.
type Pending struct {
	pool *Pool
	id   jobID
	data *pendingData
}

// Detach lets the job finish in the background; the completion callback
// will not be invoked and Release becomes a no-op.
func (pe *Pending) Detach() {
	if pe.data.state == stateWaiting {
		pe.data.state = stateAbandoned
	}
}

// Cancel requests cancellation. A job the worker has not started yet is
// dropped and completes with ErrCancelled; a started job that implements
// AsyncCanceler has its in-flight operation aborted.
func (pe *Pending) Cancel() {
	if pe.data.state != stateWaiting {
		return
	}
	p := pe.pool
	p.mu.Lock()
	for i, m := range p.newJobs {
		if m.id == pe.id && !m.cancel {
			p.newJobs = append(p.newJobs[:i], p.newJobs[i+1:]...)
			p.mu.Unlock()
			p.complete(pe.id, ErrCancelled)
			return
		}
	}
	running := p.running[pe.id]
	p.mu.Unlock()
	if ac, ok := running.(AsyncCanceler); ok {
		ac.CancelAsync()
	}
}

// Release gives up the handle. If the job has not completed and was not
// detached, Release cancels it and blocks the runtime goroutine until the
// completion arrives, so the job's resources are never left in flight.
func (pe *Pending) Release() {
	switch pe.data.state {
	case stateAbandoned, stateCompleted:
		return
	}
	log.Printf("cpuworker: pending job %d released before completion; blocking", pe.id)
	pe.Cancel()
	pe.data.state = stateAbandoned
	p := pe.pool
	for {
		p.dispatchCompletions()
		if _, ok := p.pending[pe.id]; !ok {
			return
		}
		p.mu.Lock()
		for len(p.completed) == 0 {
			if p.waiter == nil {
				p.waiter = sync.NewCond(&p.mu)
			}
			p.waiter.Wait()
		}
		p.waiter = nil
		p.mu.Unlock()
	}
}

// Done reports whether the completion callback already ran.
func (pe *Pending) Done() bool {
	return pe.data.state == stateCompleted
}
