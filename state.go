package strata

import (
	"github.com/strata-wm/strata/cpuworker"
	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/internal/loop"
	"github.com/strata-wm/strata/match"
	"github.com/strata-wm/strata/render"
	"github.com/strata-wm/strata/tree"

	// Register the built-in backends.
	_ "github.com/strata-wm/strata/gpu/backend/soft"
	_ "github.com/strata-wm/strata/gpu/backend/wgpu"
)

// State is the compositor core: it owns the runtime loop, the window
// tree, the transaction engine, the GPU context, the CPU worker pool,
// and the rule engine. All methods must be called from the runtime
// goroutine unless noted otherwise.
type State struct {
	config Config

	loop     *loop.Loop
	tree     *tree.Tree
	worker   *cpuworker.Pool
	backend  gpu.Backend
	renderer *render.Renderer
	rules    *match.Engine

	seats map[string]*tree.Seat

	closed bool
}

// NewState builds a state from the configuration: the loop, the
// backend (by name, or the best available), the worker pool, the tree,
// the renderer, and the rule engine.
func NewState(config Config) (*State, error) {
	l, err := loop.New()
	if err != nil {
		return nil, err
	}
	be, err := gpu.OpenBackend(config.Backend)
	if err != nil {
		l.Close()
		return nil, ErrNoBackend
	}
	worker, err := cpuworker.New(l, config.Workers)
	if err != nil {
		be.Destroy()
		l.Close()
		return nil, err
	}
	t := tree.New(l)
	t.Transactions().SetTimeout(config.TransactionTimeout)
	t.ConfigureGroups().SetTimeout(config.ConfigureTimeout)
	s := &State{
		config:   config,
		loop:     l,
		tree:     t,
		worker:   worker,
		backend:  be,
		renderer: render.New(be, l, worker),
		rules:    match.NewEngine(),
		seats:    make(map[string]*tree.Seat),
	}
	return s, nil
}

// Loop returns the runtime loop.
func (s *State) Loop() *loop.Loop {
	return s.loop
}

// Tree returns the window tree.
func (s *State) Tree() *tree.Tree {
	return s.tree
}

// Renderer returns the rendering driver.
func (s *State) Renderer() *render.Renderer {
	return s.renderer
}

// Backend returns the GPU backend.
func (s *State) Backend() gpu.Backend {
	return s.backend
}

// Worker returns the CPU worker pool.
func (s *State) Worker() *cpuworker.Pool {
	return s.worker
}

// Rules returns the matcher engine.
func (s *State) Rules() *match.Engine {
	return s.rules
}

// TreeTransaction opens (or joins) the current tree transaction.
func (s *State) TreeTransaction() *tree.Transaction {
	return s.tree.Transactions().Open()
}

// AddSeat creates and registers a named seat.
func (s *State) AddSeat(name string) *tree.Seat {
	seat := tree.NewSeat(name)
	s.seats[name] = seat
	return seat
}

// Seat returns a registered seat.
func (s *State) Seat(name string) *tree.Seat {
	return s.seats[name]
}

// Run executes the runtime loop until Stop is called.
func (s *State) Run() error {
	if s.closed {
		return ErrClosed
	}
	return s.loop.Run()
}

// Stop makes Run return after the current iteration.
func (s *State) Stop() {
	s.loop.Stop()
}

// Close tears the state down: the worker pool stops, the tree is
// destroyed, the backend releases its resources, and the loop closes.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.worker.Stop()
	s.tree.Display.Destroy()
	s.rules.DestroyAll()
	s.backend.Destroy()
	s.loop.Close()
}
