package tree

import (
	"time"

	"github.com/strata-wm/strata/internal/loop"
)

// DefaultConfigureTimeout bounds how long a flushed participant may sit
// on an unacknowledged configure before it is treated as ready again.
const DefaultConfigureTimeout = 3 * time.Second

// Configurable is a transaction participant that receives coalesced
// configure requests bound to serials.
type Configurable interface {
	// Data returns the participant's pipeline state.
	Data() *ConfigurableData

	// Merge folds a later request into an earlier one. Merges are
	// applied associatively left to right.
	Merge(first, second any) any

	// Visible reports whether the participant is currently mapped;
	// invisible participants are flushed but not waited for.
	Visible() bool

	// Destroyed reports whether the participant is gone; destroyed
	// participants are skipped.
	Destroyed() bool

	// Flush delivers the coalesced request for a serial. The
	// participant calls Data().Ready() once it acknowledged.
	Flush(serial Serial, request any)
}

// ConfigurableData is the per-participant pipeline state.
type ConfigurableData struct {
	idle          bool
	numIdleCalls  uint64
	lastBusy      time.Time
	groups        []*configureGroupInner
	requests      []any
	largestSerial Serial
	tardy         bool

	// Per-iteration scratch.
	numReady  int
	iteration uint64
}

// NewConfigurableData returns an idle participant state.
func NewConfigurableData() ConfigurableData {
	return ConfigurableData{idle: true}
}

// Ready marks the participant idle again. If the participant's oldest
// pending group becomes fully ready, its members are scheduled for the
// next flush round.
func (d *ConfigurableData) Ready() {
	if d.idle {
		return
	}
	d.idle = true
	d.numIdleCalls++
	if len(d.groups) == 0 {
		return
	}
	g := d.groups[0]
	g.numNotReady--
	if g.numNotReady > 0 {
		return
	}
	g.groups.toRecycle = append(g.groups.toRecycle, g)
	for _, m := range g.members {
		g.groups.ready.Push(m)
	}
}

// EnableTardy short-circuits the timeout: the participant re-fires
// immediately after each flush without waiting for acknowledgement.
func (d *ConfigurableData) EnableTardy() {
	d.tardy = true
	d.Ready()
}

// DisableTardy restores normal acknowledgement tracking.
func (d *ConfigurableData) DisableTardy() {
	d.tardy = false
}

// Tardy reports the tardy flag.
func (d *ConfigurableData) Tardy() bool {
	return d.tardy
}

// configureGroupInner is the shared per-serial state.
type configureGroupInner struct {
	serial      Serial
	numNotReady int
	members     []Configurable
	groups      *ConfigureGroups

	// Per-iteration scratch.
	iteration    uint64
	numNotReady2 int
}

// ConfigureGroup is a transaction's handle on its per-serial group.
type ConfigureGroup struct {
	inner  *configureGroupInner
	closed bool
}

// Add appends a request for a participant. Consecutive requests to the
// same participant under the same serial are merged into one.
func (g *ConfigureGroup) Add(c Configurable, request any) {
	d := c.Data()
	serial := g.inner.serial
	prev := d.largestSerial
	d.largestSerial = serial
	if prev == serial && len(d.requests) > 0 {
		d.requests[len(d.requests)-1] = c.Merge(d.requests[len(d.requests)-1], request)
		return
	}
	if !d.idle || len(d.groups) > 0 {
		g.inner.numNotReady++
	}
	d.groups = append(d.groups, g.inner)
	d.requests = append(d.requests, request)
	g.inner.members = append(g.inner.members, c)
}

// close releases the group when its transaction closes. Groups with no
// earlier unfinished transactions flush immediately.
func (g *ConfigureGroup) close() {
	if g.closed {
		return
	}
	g.closed = true
	if g.inner.numNotReady > 0 {
		return
	}
	for _, m := range g.inner.members {
		g.inner.groups.ready.Push(m)
	}
}

// ConfigureGroups is the per-tree configure pipeline.
type ConfigureGroups struct {
	tree    *Tree
	timeout time.Duration

	ready     *loop.Queue[Configurable]
	unused    []*configureGroupInner
	toRecycle []*configureGroupInner

	iteration uint64

	// Flush-round scratch.
	allWithReady []Configurable
	ofInterest1  []Configurable
	ofInterest2  []Configurable
}

func newConfigureGroups(t *Tree) *ConfigureGroups {
	cg := &ConfigureGroups{tree: t, timeout: DefaultConfigureTimeout}
	cg.ready = loop.NewQueue(t.loop, loop.PhaseLayout, "configure flush",
		func(q *loop.Queue[Configurable]) {
			cg.allWithReady = cg.allWithReady[:0]
			for {
				c, ok := q.Pop()
				if !ok {
					break
				}
				cg.allWithReady = append(cg.allWithReady, c)
			}
			cg.runIteration()
		})
	return cg
}

// SetTimeout reconfigures the acknowledgement timeout.
func (cg *ConfigureGroups) SetTimeout(d time.Duration) {
	cg.timeout = d
}

// Group returns the group for a serial, recycling a spent one when
// available.
func (cg *ConfigureGroups) Group(serial Serial) *ConfigureGroup {
	var inner *configureGroupInner
	if n := len(cg.unused); n > 0 {
		inner = cg.unused[n-1]
		cg.unused = cg.unused[:n-1]
	} else {
		inner = &configureGroupInner{groups: cg}
	}
	inner.serial = serial
	inner.numNotReady = 0
	return &ConfigureGroup{inner: inner}
}

// runIteration propagates readiness through the waiting groups, then
// flushes every participant whose pending prefix became ready.
//
// A group is ready when all of its members' earlier requests finished.
// Readiness can cascade: flushing one group may complete the prefix of
// another, so the propagation loops until no group flips.
func (cg *ConfigureGroups) runIteration() {
	cg.iteration++
	iter := cg.iteration
	all := cg.allWithReady
	cg.ofInterest1 = append(cg.ofInterest1[:0], all...)
	cg.ofInterest2 = cg.ofInterest2[:0]
	for _, c := range all {
		d := c.Data()
		d.numReady = 1
		d.iteration = iter
	}
	for len(cg.ofInterest1) > 0 {
		for _, c := range cg.ofInterest1 {
			d := c.Data()
			nr := d.numReady
			if nr >= len(d.groups) {
				continue
			}
			gi := d.groups[nr]
			if gi.iteration != iter {
				gi.iteration = iter
				gi.numNotReady2 = gi.numNotReady
			}
			gi.numNotReady2--
			if gi.numNotReady2 > 0 {
				continue
			}
			cg.toRecycle = append(cg.toRecycle, gi)
			for _, m := range gi.members {
				cg.ofInterest2 = append(cg.ofInterest2, m)
				md := m.Data()
				if md.iteration != iter {
					md.iteration = iter
					md.numReady = 1
					all = append(all, m)
				} else {
					md.numReady++
				}
			}
		}
		cg.ofInterest1, cg.ofInterest2 = cg.ofInterest2, cg.ofInterest1[:0]
	}

	now := time.Now()
	for len(all) > 0 {
		m := all[len(all)-1]
		all = all[:len(all)-1]
		d := m.Data()
		d.idle = false
		d.lastBusy = now
		nr := d.numReady
		if nr > len(d.requests) {
			nr = len(d.requests)
		}
		var serial Serial
		for i := 0; i < nr; i++ {
			if s := d.groups[i].serial; s > serial {
				serial = s
			}
		}
		request := d.requests[0]
		for i := 1; i < nr; i++ {
			request = m.Merge(request, d.requests[i])
		}
		d.groups = d.groups[nr:]
		d.requests = d.requests[nr:]
		if m.Destroyed() {
			d.Ready()
		} else {
			if !m.Visible() {
				d.Ready()
			}
			m.Flush(serial, request)
		}
		if d.tardy {
			d.Ready()
		} else {
			calls := d.numIdleCalls
			cg.tree.loop.Timeout(cg.timeout, func() {
				if calls == d.numIdleCalls {
					d.Ready()
				}
			})
		}
	}
	cg.allWithReady = all

	for _, gi := range cg.toRecycle {
		gi.members = gi.members[:0]
		cg.unused = append(cg.unused, gi)
	}
	cg.toRecycle = cg.toRecycle[:0]
}
