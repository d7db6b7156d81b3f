package strata

import (
	"testing"

	"github.com/strata-wm/strata/region"
	"github.com/strata-wm/strata/tree"
)

func newState(t *testing.T) *State {
	t.Helper()
	st, err := NewState(DefaultConfig().WithBackend("soft"))
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func TestNewStateWiring(t *testing.T) {
	st := newState(t)
	if st.Tree() == nil || st.Renderer() == nil || st.Worker() == nil || st.Rules() == nil {
		t.Fatal("state is missing components")
	}
	if st.Backend().Name() != "soft (single-threaded)" {
		t.Errorf("backend = %q", st.Backend().Name())
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := NewState(DefaultConfig().WithBackend("no-such")); err != ErrNoBackend {
		t.Errorf("err = %v, want ErrNoBackend", err)
	}
}

func TestTreeTransactionRoundTrip(t *testing.T) {
	st := newState(t)
	tx := st.TreeTransaction()
	if tx.Serial() == 0 {
		t.Error("transaction has zero serial")
	}
	tx.Close()
}

func TestSeatRegistry(t *testing.T) {
	st := newState(t)
	seat := st.AddSeat("seat0")
	if st.Seat("seat0") != seat {
		t.Error("seat not registered")
	}
	if st.Seat("ghost") != nil {
		t.Error("unknown seat resolved")
	}
}

func TestEndToEndFrame(t *testing.T) {
	st := newState(t)
	tr := st.Tree()
	o := tr.NewOutput("DP-1", region.Rect{X2: 128, Y2: 128}, tree.Mode{Width: 128, Height: 128, RefreshMHz: 60000})
	ws := tr.NewWorkspace("1")
	o.AttachWorkspace(ws)
	c := tr.NewContainer(tree.AxisHorizontal)
	ws.SetRoot(c)
	s := tr.NewSurface(tree.NewClient(1, 1, 1))
	s.Attach(&tree.Buffer{Width: 128, Height: 128})
	s.Commit()
	tl, err := tr.NewToplevel(s, tree.ToplevelXdg)
	if err != nil {
		t.Fatalf("NewToplevel: %v", err)
	}
	c.InsertChild(tl, -1)

	sync, err := st.Renderer().RenderFrame(o, 16)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	sync.Close()
}
