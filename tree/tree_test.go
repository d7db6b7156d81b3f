package tree

import (
	"testing"

	"github.com/strata-wm/strata/internal/loop"
	"github.com/strata-wm/strata/region"
)

func rect(x1, y1, x2, y2 int32) region.Rect {
	return region.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func newTree(t *testing.T) *Tree {
	t.Helper()
	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	t.Cleanup(l.Close)
	return New(l)
}

// buildScene creates display -> output -> workspace -> container with
// two mapped toplevels.
func buildScene(t *testing.T, tr *Tree) (*Output, *Workspace, *Container, *Toplevel, *Toplevel) {
	t.Helper()
	o := tr.NewOutput("DP-1", rect(0, 0, 800, 600), Mode{Width: 800, Height: 600, RefreshMHz: 60000})
	ws := tr.NewWorkspace("1")
	o.AttachWorkspace(ws)
	c := tr.NewContainer(AxisHorizontal)
	ws.SetRoot(c)

	mk := func(name string) *Toplevel {
		s := tr.NewSurface(NewClient(1, 100, 1000))
		s.Attach(&Buffer{Width: 400, Height: 600})
		s.Commit()
		tl, err := tr.NewToplevel(s, ToplevelXdg)
		if err != nil {
			t.Fatalf("NewToplevel: %v", err)
		}
		tl.SetTitle(name)
		return tl
	}
	a := mk("left")
	b := mk("right")
	c.InsertChild(a, -1)
	c.InsertChild(b, -1)
	return o, ws, c, a, b
}

func TestVisibilityPropagation(t *testing.T) {
	tr := newTree(t)
	o, ws, c, a, b := buildScene(t, tr)

	for _, n := range []Node{o, ws, c, a, b, a.Surface(), b.Surface()} {
		if !n.Visible() {
			t.Fatalf("%s not visible after mapping", n.Kind())
		}
	}

	// Flipping the output's visibility must reach every descendant in
	// one propagation step.
	o.SetVisible(false)
	for _, n := range []Node{ws, c, a, b, a.Surface(), b.Surface()} {
		if n.Visible() {
			t.Errorf("%s still visible after hiding the output", n.Kind())
		}
	}
	o.SetVisible(true)
	for _, n := range []Node{ws, c, a, b, a.Surface()} {
		if !n.Visible() {
			t.Errorf("%s not visible after showing the output", n.Kind())
		}
	}
}

func TestMonoContainerVisibility(t *testing.T) {
	tr := newTree(t)
	_, _, c, a, b := buildScene(t, tr)
	c.SetAxis(AxisMono)
	if got := c.ActiveChild(); got != 0 {
		t.Fatalf("active child = %d, want 0", got)
	}
	if !a.Visible() || b.Visible() {
		t.Fatalf("mono visibility wrong: a=%v b=%v", a.Visible(), b.Visible())
	}
	c.SetActiveChild(1)
	if a.Visible() || !b.Visible() {
		t.Errorf("mono switch wrong: a=%v b=%v", a.Visible(), b.Visible())
	}
}

func TestAbsolutePosition(t *testing.T) {
	tr := newTree(t)
	_, _, c, a, b := buildScene(t, tr)
	if c.AbsolutePosition() != rect(0, 0, 800, 600) {
		t.Fatalf("container pos = %v", c.AbsolutePosition())
	}
	// Two children split horizontally; content sits below the title
	// bar.
	if got := a.AbsolutePosition(); got != rect(0, titleHeight, 400, 600) {
		t.Errorf("left toplevel pos = %v", got)
	}
	if got := b.AbsolutePosition(); got != rect(400, titleHeight, 800, 600) {
		t.Errorf("right toplevel pos = %v", got)
	}
}

func TestFindTreeAt(t *testing.T) {
	tr := newTree(t)
	_, _, _, a, b := buildScene(t, tr)

	stack := tr.FindTreeAt(100, 100, FindInput)
	if len(stack) == 0 {
		t.Fatal("nothing found at (100,100)")
	}
	if s, ok := stack[0].Node.(*Surface); !ok || s != a.Surface() {
		t.Errorf("innermost hit = %v, want left surface", stack[0].Node.Kind())
	}
	if stack[0].X != 100 || stack[0].Y != 100-titleHeight {
		t.Errorf("local coords = (%d,%d)", stack[0].X, stack[0].Y)
	}

	stack = tr.FindTreeAt(500, 300, FindInput)
	if len(stack) == 0 {
		t.Fatal("nothing found at (500,300)")
	}
	if s, ok := stack[0].Node.(*Surface); !ok || s != b.Surface() {
		t.Errorf("innermost hit at right half = %v", stack[0].Node.Kind())
	}
}

func TestFindTreeAtSelectableUsecase(t *testing.T) {
	tr := newTree(t)
	_, _, _, a, _ := buildScene(t, tr)
	a.Surface().SetSelectable(false)
	stack := tr.FindTreeAt(100, 100, FindSelectToplevel)
	for _, f := range stack {
		if f.Node == a.Surface() {
			t.Error("non-selectable surface returned for toplevel selection")
		}
	}
}

func TestFocusRecovery(t *testing.T) {
	tr := newTree(t)
	_, _, c, a, _ := buildScene(t, tr)
	seat := NewSeat("seat0")
	seat.SetFocus(FocusKeyboard, a.Surface())
	if seat.FocusNode(FocusKeyboard) != a.Surface() {
		t.Fatal("focus not assigned")
	}

	// Destroying the focused surface recovers onto a still-linked
	// ancestor.
	a.Surface().Destroy()
	got := seat.FocusNode(FocusKeyboard)
	if got == nil {
		t.Fatal("focus lost entirely")
	}
	if !stillLinked(got) {
		t.Fatalf("recovered focus %s is not linked", got.Kind())
	}
	// The container chain absorbed the focus.
	if got != c && got.Parent() == nil {
		t.Errorf("recovered focus = %s", got.Kind())
	}
}

func TestFocusEnterLeaveOrder(t *testing.T) {
	tr := newTree(t)
	_, _, _, a, b := buildScene(t, tr)
	seat := NewSeat("seat0")
	var events []string
	seat.OnEnter = func(cat FocusCategory, n Node) {
		events = append(events, "enter "+n.Kind().String())
	}
	seat.OnLeave = func(cat FocusCategory, n Node) {
		events = append(events, "leave "+n.Kind().String())
	}
	seat.SetFocus(FocusKeyboard, a.Surface())
	events = nil
	seat.SetFocus(FocusKeyboard, b.Surface())
	// Old chain leaves leaf-first, new chain enters root-first; the
	// shared ancestors (display/output/workspace/container) are not
	// re-entered.
	want := []string{"leave surface", "leave toplevel", "enter toplevel", "enter surface"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestReparent(t *testing.T) {
	tr := newTree(t)
	_, _, c, a, _ := buildScene(t, tr)
	c2 := tr.NewContainer(AxisVertical)
	c.InsertChild(c2, -1)

	tr.Reparent(a, c2, 0)
	if a.Parent() != c2 {
		t.Fatalf("parent after reparent = %v", a.Parent())
	}
	if c.IndexOf(a) != -1 {
		t.Error("old parent still lists the child")
	}
	if c2.IndexOf(a) != 0 {
		t.Errorf("new parent index = %d, want 0", c2.IndexOf(a))
	}
	if c2.ChildTitle(0) != "left" {
		t.Errorf("title not carried: %q", c2.ChildTitle(0))
	}
}

func TestFullscreenPlaceholder(t *testing.T) {
	tr := newTree(t)
	_, ws, c, a, b := buildScene(t, tr)

	ws.SetFullscreen(a)
	if !a.Fullscreen() {
		t.Fatal("fullscreen flag not set")
	}
	if a.AbsolutePosition() != ws.AbsolutePosition() {
		t.Errorf("fullscreen body = %v, want workspace rect", a.AbsolutePosition())
	}
	// The tiling slot is kept by a placeholder and the sibling did not
	// reflow.
	if c.NumChildren() != 2 {
		t.Fatalf("container children = %d, want 2", c.NumChildren())
	}
	ph, ok := c.Child(0).(*Placeholder)
	if !ok {
		t.Fatalf("slot 0 = %s, want placeholder", c.Child(0).Kind())
	}
	if ph.For() != a.ID() {
		t.Error("placeholder references wrong toplevel")
	}
	if b.Visible() {
		t.Error("tiled sibling visible under fullscreen")
	}

	ws.SetFullscreen(nil)
	if a.Fullscreen() {
		t.Error("fullscreen flag not cleared")
	}
	if c.IndexOf(a) != 0 {
		t.Errorf("toplevel not restored to its slot, index = %d", c.IndexOf(a))
	}
	if !b.Visible() {
		t.Error("sibling not visible after leaving fullscreen")
	}
}

func TestClientDestructionCascades(t *testing.T) {
	tr := newTree(t)
	client := NewClient(7, 1, 1)
	s := tr.NewSurface(client)
	tl, err := tr.NewToplevel(s, ToplevelXdg)
	if err != nil {
		t.Fatalf("NewToplevel: %v", err)
	}
	removed := false
	tl.OnRemoved(func(Node) { removed = true })
	client.Destroy()
	if !removed {
		t.Error("toplevel survived client destruction")
	}
	if len(client.surfaces) != 0 {
		t.Error("client still owns surfaces")
	}
}

func TestRoleConflict(t *testing.T) {
	tr := newTree(t)
	s := tr.NewSurface(nil)
	if _, err := tr.NewToplevel(s, ToplevelXdg); err != nil {
		t.Fatalf("first role: %v", err)
	}
	if _, err := tr.NewLayerSurface(s, LayerTop); err != ErrRoleConflict {
		t.Errorf("second role err = %v, want ErrRoleConflict", err)
	}
}

func TestLayerExclusiveZone(t *testing.T) {
	tr := newTree(t)
	o, ws, _, _, _ := buildScene(t, tr)
	s := tr.NewSurface(nil)
	ls, err := tr.NewLayerSurface(s, LayerTop)
	if err != nil {
		t.Fatalf("NewLayerSurface: %v", err)
	}
	o.AddLayerSurface(ls)
	ls.SetAnchor(AnchorTop)
	ls.SetSize(0, 30)
	ls.SetExclusiveZone(30)
	if got := ws.AbsolutePosition(); got != rect(0, 30, 800, 600) {
		t.Errorf("workspace rect with exclusive zone = %v", got)
	}
	ls.Destroy()
	if got := ws.AbsolutePosition(); got != rect(0, 0, 800, 600) {
		t.Errorf("workspace rect after layer destroy = %v", got)
	}
}

func TestTrayConfigureSerials(t *testing.T) {
	tr := newTree(t)
	o, _, _, _, _ := buildScene(t, tr)
	s := tr.NewSurface(nil)
	ti, err := tr.NewTrayItem(s)
	if err != nil {
		t.Fatalf("NewTrayItem: %v", err)
	}
	o.AddTrayItem(ti)
	ti.SentConfigure(5)
	if ti.Acked() {
		t.Error("acked before acknowledgement")
	}
	if ti.AckConfigure(9) {
		t.Error("future serial accepted")
	}
	if !ti.AckConfigure(5) {
		t.Error("valid serial rejected")
	}
	if !ti.Acked() {
		t.Error("not acked after acknowledgement")
	}
}
