package tree

import (
	"time"

	"github.com/strata-wm/strata/internal/loop"
)

// Serial is a monotonically increasing transaction label. The low 32
// bits are never zero so serials survive truncation onto 32-bit wire
// fields.
type Serial uint64

// DefaultTransactionTimeout bounds how long a closed transaction waits
// for its barriers before unblocking with the timeout flag.
const DefaultTransactionTimeout = 3 * time.Second

// Op is work deferred until a transaction unblocks. timeout reports
// whether the transaction unblocked by timing out rather than by its
// barriers dropping.
type Op interface {
	Unblocked(serial Serial, timeout bool)
}

// Transactions is the per-tree transaction engine.
type Transactions struct {
	tree    *Tree
	timeout time.Duration

	serials Serial

	unusedBlockers []*blockerInner
	unblockQueue   *loop.Queue[*blockerInner]

	timelineIDs uint64

	// live transaction state; nested Opens share one transaction.
	live         int
	current      Transaction
	lastTimeline uint64
}

func newTransactions(t *Tree) *Transactions {
	tt := &Transactions{tree: t, timeout: DefaultTransactionTimeout}
	tt.unblockQueue = loop.NewQueue(t.loop, loop.PhaseLayout, "transaction unblock",
		func(q *loop.Queue[*blockerInner]) {
			for {
				inner, ok := q.Pop()
				if !ok {
					return
				}
				inner.runOps()
				tt.unusedBlockers = append(tt.unusedBlockers, inner)
			}
		})
	return tt
}

// SetTimeout reconfigures the transaction timeout. Zero disables
// waiting entirely: closed transactions unblock immediately.
func (tt *Transactions) SetTimeout(d time.Duration) {
	tt.timeout = d
}

// nextSerial allocates a serial, skipping values whose low 32 bits are
// zero.
func (tt *Transactions) nextSerial() Serial {
	tt.serials++
	if uint32(tt.serials) == 0 {
		tt.serials++
	}
	return tt.serials
}

// blockerInner is the shared counting state of one transaction.
type blockerInner struct {
	tt *Transactions

	version         uint64
	closed          bool
	timedOut        bool
	pendingBarriers int
	serial          Serial
	start           time.Time
	ops             []Op
	timer           *loop.Timer
}

func (b *blockerInner) unblock(timedOut bool) {
	b.version++
	b.timedOut = timedOut
	if b.timer != nil {
		b.timer.Cancel()
		b.timer = nil
	}
	b.tt.unblockQueue.Push(b)
}

func (b *blockerInner) runOps() {
	ops := b.ops
	b.ops = nil
	for _, op := range ops {
		op.Unblocked(b.serial, b.timedOut)
	}
}

// Blocker is a versioned handle on a transaction's counting state.
type Blocker struct {
	version uint64
	inner   *blockerInner
}

// IsBlocked reports whether the transaction has not unblocked yet.
func (b Blocker) IsBlocked() bool {
	return b.inner != nil && b.version == b.inner.version
}

// ThenUnblock chains tx behind this blocker: tx gains a barrier that
// drops when this blocker unblocks. Unblocked blockers, and blockers
// whose serial is not older than tx's, chain nothing.
func (b Blocker) ThenUnblock(tx *Transaction) {
	if !b.IsBlocked() || b.inner.serial >= tx.Serial() {
		return
	}
	b.inner.ops = append(b.inner.ops, &barrierDropper{barrier: tx.Barrier()})
}

type barrierDropper struct {
	barrier *Barrier
}

func (d *barrierDropper) Unblocked(Serial, bool) {
	d.barrier.Release()
}

// Barrier is a participant's handle on a transaction. Releasing it
// decrements the blocker's pending counter; weak barriers do not count.
type Barrier struct {
	version  uint64
	weak     bool
	start    time.Time
	inner    *blockerInner
	released bool
}

// Release drops the barrier. Releasing twice, releasing a weak
// barrier, or releasing after the transaction already unblocked are
// no-ops.
func (b *Barrier) Release() {
	if b == nil || b.released {
		return
	}
	b.released = true
	i := b.inner
	if b.weak || b.version != i.version {
		return
	}
	i.pendingBarriers--
	if i.pendingBarriers != 0 {
		return
	}
	if !i.closed {
		return
	}
	i.unblock(false)
}

// IsBlocked reports whether the barrier's transaction is still blocked.
func (b *Barrier) IsBlocked() bool {
	return b.version == b.inner.version
}

// Transaction bundles reconfiguration work under one serial. Open
// returns the engine's current transaction, creating it when none is
// live; nested Opens share it and the last Close closes the blocker.
type Transaction struct {
	tt      *Transactions
	blocker Blocker
	group   *ConfigureGroup
}

// Open starts (or joins) the current transaction. The returned
// transaction is only valid until its Close; it must not be retained.
func (tt *Transactions) Open() *Transaction {
	tt.live++
	if tt.live == 1 {
		serial := tt.nextSerial()
		var inner *blockerInner
		if n := len(tt.unusedBlockers); n > 0 {
			inner = tt.unusedBlockers[n-1]
			tt.unusedBlockers = tt.unusedBlockers[:n-1]
		} else {
			inner = &blockerInner{tt: tt}
		}
		inner.closed = false
		inner.timedOut = false
		inner.pendingBarriers = 0
		inner.serial = serial
		inner.start = time.Now()
		inner.timer = nil
		tt.current = Transaction{
			tt:      tt,
			blocker: Blocker{version: inner.version, inner: inner},
			group:   tt.tree.configures.Group(serial),
		}
		tt.lastTimeline = 0
	}
	return &tt.current
}

// Serial returns the transaction's serial.
func (tx *Transaction) Serial() Serial {
	return tx.blocker.inner.serial
}

// Blocker returns a handle for chaining.
func (tx *Transaction) Blocker() Blocker {
	return tx.blocker
}

// ConfigureGroup returns the per-serial configure group.
func (tx *Transaction) ConfigureGroup() *ConfigureGroup {
	return tx.group
}

// Barrier issues a counting barrier.
func (tx *Transaction) Barrier() *Barrier {
	i := tx.blocker.inner
	i.pendingBarriers++
	return tx.barrier(false)
}

// WeakBarrier issues a barrier that does not count.
func (tx *Transaction) WeakBarrier() *Barrier {
	return tx.barrier(true)
}

func (tx *Transaction) barrier(weak bool) *Barrier {
	i := tx.blocker.inner
	return &Barrier{
		version: tx.blocker.version,
		weak:    weak,
		start:   i.start,
		inner:   i,
	}
}

// AddOp queues work for the transaction's unblock, linearised on the
// given timeline.
func (tx *Transaction) AddOp(tl *Timeline, op Op) {
	if tl != nil && tx.tt.lastTimeline != tl.id {
		tx.tt.lastTimeline = tl.id
		tl.AndThen(tx)
	}
	tx.blocker.inner.ops = append(tx.blocker.inner.ops, op)
}

// Close ends this Open. Closing the last nested Open closes the
// blocker: with no barriers and no ops the blocker is recycled; with
// ops or barriers it is scheduled for unblocking, guarded by the
// timeout.
func (tx *Transaction) Close() {
	tt := tx.tt
	tt.live--
	if tt.live > 0 {
		return
	}
	i := tx.blocker.inner
	i.closed = true
	switch {
	case i.pendingBarriers == 0 && len(i.ops) == 0:
		i.version++
		tt.unusedBlockers = append(tt.unusedBlockers, i)
	case i.pendingBarriers == 0:
		i.unblock(false)
	case tt.timeout == 0:
		i.unblock(false)
	default:
		version := i.version
		i.timer = tt.tree.loop.Timeout(tt.timeout, func() {
			if version == i.version {
				i.unblock(true)
			}
		})
	}
	tx.group.close()
}

// Timeline linearises transactions: AndThen chains a transaction behind
// the previous one registered on the timeline.
type Timeline struct {
	id   uint64
	prev *Blocker
}

// Timeline creates an independent timeline.
func (tt *Transactions) Timeline() *Timeline {
	tt.timelineIDs++
	return &Timeline{id: tt.timelineIDs}
}

// AndThen chains tx behind the timeline's previous transaction and
// records tx as the new tail.
func (tl *Timeline) AndThen(tx *Transaction) {
	prev := tl.prev
	b := tx.Blocker()
	tl.prev = &b
	if prev != nil {
		prev.ThenUnblock(tx)
	}
}
