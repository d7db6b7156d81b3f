package match

import (
	"log"

	"github.com/strata-wm/strata/tree"
)

// ClientMatcher is an opaque handle on a compiled client matcher.
type ClientMatcher struct {
	id uint64
}

// WindowMatcher is an opaque handle on a compiled window matcher.
type WindowMatcher struct {
	id uint64
}

type compiledClient struct {
	criterion *ClientCriterion
	action    func(cl *tree.Client, matched bool)
	latch     func(cl *tree.Client)
	state     map[uint64]bool // client id -> last match
}

type compiledWindow struct {
	criterion *WindowCriterion
	action    func(w *tree.Toplevel, matched bool)
	latch     func(w *tree.Toplevel)
	state     map[tree.NodeID]bool
}

// Engine owns the compiled matchers and runs change-driven evaluation.
type Engine struct {
	nextID  uint64
	clients map[uint64]*compiledClient
	windows map[uint64]*compiledWindow
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{
		clients: make(map[uint64]*compiledClient),
		windows: make(map[uint64]*compiledWindow),
	}
}

// CreateClientMatcher compiles a criterion into a matcher handle. The
// handle must be released with DestroyClientMatcher.
func (e *Engine) CreateClientMatcher(c *ClientCriterion) ClientMatcher {
	e.nextID++
	e.clients[e.nextID] = &compiledClient{
		criterion: c,
		state:     make(map[uint64]bool),
	}
	return ClientMatcher{id: e.nextID}
}

// DestroyClientMatcher releases a matcher.
func (e *Engine) DestroyClientMatcher(m ClientMatcher) {
	delete(e.clients, m.id)
}

// BindClient attaches the action callback invoked when the match flips
// on, and the latch run in the client's context when it flips back off.
func (e *Engine) BindClient(m ClientMatcher, action func(cl *tree.Client, matched bool), latch func(cl *tree.Client)) {
	if cm := e.clients[m.id]; cm != nil {
		cm.action = action
		cm.latch = latch
	}
}

// CreateWindowMatcher compiles a criterion into a matcher handle.
func (e *Engine) CreateWindowMatcher(c *WindowCriterion) WindowMatcher {
	e.nextID++
	e.windows[e.nextID] = &compiledWindow{
		criterion: c,
		state:     make(map[tree.NodeID]bool),
	}
	return WindowMatcher{id: e.nextID}
}

// DestroyWindowMatcher releases a matcher.
func (e *Engine) DestroyWindowMatcher(m WindowMatcher) {
	delete(e.windows, m.id)
}

// BindWindow attaches the action and latch callbacks of a matcher.
func (e *Engine) BindWindow(m WindowMatcher, action func(w *tree.Toplevel, matched bool), latch func(w *tree.Toplevel)) {
	if wm := e.windows[m.id]; wm != nil {
		wm.action = action
		wm.latch = latch
	}
}

// ClientChanged re-evaluates every bound client matcher against the
// client. Actions fire on false-to-true flips; latches are enqueued on
// the client on true-to-false flips so they run in its context even if
// the engine has been replaced.
func (e *Engine) ClientChanged(cl *tree.Client) {
	for _, cm := range e.clients {
		if cm.action == nil && cm.latch == nil {
			continue
		}
		now := e.matchesClient(cm.criterion, cl)
		was := cm.state[cl.ID]
		if now == was {
			continue
		}
		cm.state[cl.ID] = now
		if now {
			if cm.action != nil {
				cm.action(cl, true)
			}
		} else if cm.latch != nil {
			latch := cm.latch
			cl.EnqueueLatch(func() { latch(cl) })
		}
	}
}

// WindowChanged re-evaluates every bound window matcher against the
// toplevel.
func (e *Engine) WindowChanged(w *tree.Toplevel) {
	for _, wm := range e.windows {
		if wm.action == nil && wm.latch == nil {
			continue
		}
		now := e.matchesWindow(wm.criterion, w)
		was := wm.state[w.ID()]
		if now == was {
			continue
		}
		wm.state[w.ID()] = now
		if now {
			if wm.action != nil {
				wm.action(w, true)
			}
		} else if wm.latch != nil {
			latch := wm.latch
			if s := w.Surface(); s != nil && s.Client() != nil {
				s.Client().EnqueueLatch(func() { latch(w) })
			} else {
				latch(w)
			}
		}
	}
}

// ClientGone drops per-client latch state from every matcher.
func (e *Engine) ClientGone(cl *tree.Client) {
	for _, cm := range e.clients {
		delete(cm.state, cl.ID)
	}
}

// WindowGone drops per-window latch state from every matcher.
func (e *Engine) WindowGone(w *tree.Toplevel) {
	for _, wm := range e.windows {
		delete(wm.state, w.ID())
	}
}

// ClientRule is one named configuration rule over clients.
type ClientRule struct {
	// Name makes the rule referenceable from other rules.
	Name string

	// Match is the rule's criterion. GenericName references another
	// rule by name and is combined with Match when both are present.
	Match       *ClientCriterion
	GenericName string

	// Action runs when the match flips on; Latch when it flips off.
	Action func(cl *tree.Client)
	Latch  func(cl *tree.Client)
}

// WindowRule is one named configuration rule over windows.
type WindowRule struct {
	Name        string
	Match       *WindowCriterion
	GenericName string

	Action func(w *tree.Toplevel)
	Latch  func(w *tree.Toplevel)
}

// CompileClientRules lowers a rule list into bound matchers. Rules
// referencing an unknown name are skipped with an error log; criterion
// loops are diagnosed and abort the offending rule only. The returned
// handles must be destroyed on teardown.
func (e *Engine) CompileClientRules(rules []ClientRule) []ClientMatcher {
	m := &ruleMapper[ClientRule, ClientMatcher]{
		engine: e,
		names:  make(map[string]int),
		mapped: make(map[int]ClientMatcher),
		pend:   make(map[int]bool),
		name:   func(r *ClientRule) string { return r.Name },
		lower:  e.lowerClientRule,
	}
	for i := range rules {
		if rules[i].Name != "" {
			m.names[rules[i].Name] = i
		}
	}
	var out []ClientMatcher
	for i := range rules {
		if h, ok := m.mapRule(rules, i); ok {
			out = append(out, h)
		}
	}
	return out
}

// CompileWindowRules lowers a rule list into bound matchers.
func (e *Engine) CompileWindowRules(rules []WindowRule) []WindowMatcher {
	m := &ruleMapper[WindowRule, WindowMatcher]{
		engine: e,
		names:  make(map[string]int),
		mapped: make(map[int]WindowMatcher),
		pend:   make(map[int]bool),
		name:   func(r *WindowRule) string { return r.Name },
		lower:  e.lowerWindowRule,
	}
	for i := range rules {
		if rules[i].Name != "" {
			m.names[rules[i].Name] = i
		}
	}
	var out []WindowMatcher
	for i := range rules {
		if h, ok := m.mapRule(rules, i); ok {
			out = append(out, h)
		}
	}
	return out
}

// ruleMapper resolves rule references, detecting cycles by marking
// pending rules during recursive resolution.
type ruleMapper[R any, M any] struct {
	engine *Engine
	names  map[string]int
	mapped map[int]M
	pend   map[int]bool
	name   func(*R) string
	lower  func(rules []R, idx int, mapper func(name string) (M, bool)) (M, bool)
}

func (m *ruleMapper[R, M]) mapRule(rules []R, idx int) (M, bool) {
	if h, ok := m.mapped[idx]; ok {
		return h, true
	}
	var zero M
	if m.pend[idx] {
		log.Printf("match: rule %q has a loop", m.name(&rules[idx]))
		return zero, false
	}
	m.pend[idx] = true
	defer delete(m.pend, idx)
	h, ok := m.lower(rules, idx, func(name string) (M, bool) {
		ref, found := m.names[name]
		if !found {
			log.Printf("match: there is no rule named %q", name)
			return zero, false
		}
		return m.mapRule(rules, ref)
	})
	if !ok {
		return zero, false
	}
	m.mapped[idx] = h
	return h, true
}

// lowerClientRule creates the matcher for one rule and binds its
// action and latch. A single criterion is used directly; multiple
// parts collapse into All.
func (e *Engine) lowerClientRule(rules []ClientRule, idx int, resolve func(name string) (ClientMatcher, bool)) (ClientMatcher, bool) {
	r := &rules[idx]
	var parts []*ClientCriterion
	if r.GenericName != "" {
		ref, ok := resolve(r.GenericName)
		if !ok {
			return ClientMatcher{}, false
		}
		parts = append(parts, &ClientCriterion{Matcher: &ref})
	}
	if r.Match != nil {
		parts = append(parts, r.Match)
	}
	crit := collapseClient(parts)
	h := e.CreateClientMatcher(crit)
	action := r.Action
	latch := r.Latch
	e.BindClient(h, func(cl *tree.Client, matched bool) {
		if matched && action != nil {
			action(cl)
		}
	}, latch)
	return h, true
}

func (e *Engine) lowerWindowRule(rules []WindowRule, idx int, resolve func(name string) (WindowMatcher, bool)) (WindowMatcher, bool) {
	r := &rules[idx]
	var parts []*WindowCriterion
	if r.GenericName != "" {
		ref, ok := resolve(r.GenericName)
		if !ok {
			return WindowMatcher{}, false
		}
		parts = append(parts, &WindowCriterion{Matcher: &ref})
	}
	if r.Match != nil {
		parts = append(parts, r.Match)
	}
	crit := collapseWindow(parts)
	h := e.CreateWindowMatcher(crit)
	action := r.Action
	latch := r.Latch
	e.BindWindow(h, func(w *tree.Toplevel, matched bool) {
		if matched && action != nil {
			action(w)
		}
	}, latch)
	return h, true
}

func collapseClient(parts []*ClientCriterion) *ClientCriterion {
	if len(parts) == 1 {
		return parts[0]
	}
	return &ClientCriterion{All: parts}
}

func collapseWindow(parts []*WindowCriterion) *WindowCriterion {
	if len(parts) == 1 {
		return parts[0]
	}
	return &WindowCriterion{All: parts}
}

// DestroyAll releases every matcher the engine still holds.
func (e *Engine) DestroyAll() {
	for id := range e.clients {
		delete(e.clients, id)
	}
	for id := range e.windows {
		delete(e.windows, id)
	}
}
