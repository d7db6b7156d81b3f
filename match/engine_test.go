package match

import (
	"regexp"
	"testing"

	"github.com/strata-wm/strata/internal/loop"
	"github.com/strata-wm/strata/tree"
)

func str(s string) *string { return &s }
func b(v bool) *bool       { return &v }
func u32(v uint32) *uint32 { return &v }

func newWindow(t *testing.T) (*tree.Tree, *tree.Toplevel) {
	t.Helper()
	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	t.Cleanup(l.Close)
	tr := tree.New(l)
	cl := tree.NewClient(1, 42, 1000)
	cl.Comm = "term"
	s := tr.NewSurface(cl)
	tl, err := tr.NewToplevel(s, tree.ToplevelXdg)
	if err != nil {
		t.Fatalf("NewToplevel: %v", err)
	}
	return tr, tl
}

func TestAtomicCriteria(t *testing.T) {
	_, w := newWindow(t)
	w.SetTitle("editor — main.go")
	w.SetAppID("editor")
	e := NewEngine()

	tests := []struct {
		name string
		crit *WindowCriterion
		want bool
	}{
		{"title equal", &WindowCriterion{Title: str("editor — main.go")}, true},
		{"title not equal", &WindowCriterion{Title: str("other")}, false},
		{"title regex", &WindowCriterion{TitleRegex: regexp.MustCompile(`\.go$`)}, true},
		{"app id", &WindowCriterion{AppID: str("editor")}, true},
		{"floating", &WindowCriterion{Floating: b(false)}, true},
		{"fullscreen", &WindowCriterion{Fullscreen: b(true)}, false},
		{"client comm", &WindowCriterion{Client: &ClientCriterion{Comm: str("term")}}, true},
		{"client uid", &WindowCriterion{Client: &ClientCriterion{Uid: u32(1000)}}, true},
		{"client pid mismatch", &WindowCriterion{Client: &ClientCriterion{Pid: u32(7)}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.matchesWindow(tt.crit, w); got != tt.want {
				t.Errorf("matchesWindow = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCombinators(t *testing.T) {
	_, w := newWindow(t)
	w.SetTitle("a")
	w.SetAppID("x")
	e := NewEngine()

	yes := &WindowCriterion{Title: str("a")}
	no := &WindowCriterion{Title: str("b")}

	tests := []struct {
		name string
		crit *WindowCriterion
		want bool
	}{
		{"not", &WindowCriterion{Not: no}, true},
		{"all true", &WindowCriterion{All: []*WindowCriterion{yes, {AppID: str("x")}}}, true},
		{"all mixed", &WindowCriterion{All: []*WindowCriterion{yes, no}}, false},
		{"any", &WindowCriterion{Any: []*WindowCriterion{no, yes}}, true},
		{"any none", &WindowCriterion{Any: []*WindowCriterion{no, {AppID: str("y")}}}, false},
		{"exactly one", &WindowCriterion{Exactly: &ExactlyWindow{Num: 1, List: []*WindowCriterion{yes, no}}}, true},
		{"exactly two", &WindowCriterion{Exactly: &ExactlyWindow{Num: 2, List: []*WindowCriterion{yes, no}}}, false},
		{"exactly zero", &WindowCriterion{Exactly: &ExactlyWindow{Num: 0, List: []*WindowCriterion{no, no}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.matchesWindow(tt.crit, w); got != tt.want {
				t.Errorf("matchesWindow = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSandboxCriteriaAbsentData(t *testing.T) {
	e := NewEngine()
	cl := tree.NewClient(2, 1, 1)
	// Sandbox identifiers silently fail to match when the client did
	// not connect through a sandbox broker.
	if e.matchesClient(&ClientCriterion{SandboxEngine: str("flatpak")}, cl) {
		t.Error("sandbox engine matched on non-sandboxed client")
	}
	cl.Sandboxed = true
	cl.SandboxEngine = "flatpak"
	if !e.matchesClient(&ClientCriterion{SandboxEngine: str("flatpak")}, cl) {
		t.Error("sandbox engine did not match")
	}
}

func TestActionAndLatch(t *testing.T) {
	_, w := newWindow(t)
	e := NewEngine()
	var actions, latches int
	rules := []WindowRule{{
		Name:   "on-editor",
		Match:  &WindowCriterion{AppID: str("editor")},
		Action: func(*tree.Toplevel) { actions++ },
		Latch:  func(*tree.Toplevel) { latches++ },
	}}
	handles := e.CompileWindowRules(rules)
	if len(handles) != 1 {
		t.Fatalf("compiled %d matchers, want 1", len(handles))
	}

	e.WindowChanged(w)
	if actions != 0 {
		t.Fatal("action fired without a match")
	}
	w.SetAppID("editor")
	e.WindowChanged(w)
	if actions != 1 {
		t.Fatalf("action fired %d times after flip on, want 1", actions)
	}
	// No re-fire while the match holds.
	e.WindowChanged(w)
	if actions != 1 {
		t.Fatalf("action re-fired without a flip: %d", actions)
	}
	// Flip off enqueues the latch on the client; it runs in the
	// client's context.
	w.SetAppID("other")
	e.WindowChanged(w)
	if latches != 0 {
		t.Fatal("latch ran before the client drained it")
	}
	w.Surface().Client().RunLatches()
	if latches != 1 {
		t.Fatalf("latch ran %d times, want 1", latches)
	}
}

func TestRuleNameReference(t *testing.T) {
	_, w := newWindow(t)
	w.SetAppID("editor")
	e := NewEngine()
	var fired int
	rules := []WindowRule{
		{Name: "base", Match: &WindowCriterion{AppID: str("editor")}},
		{
			Name:        "derived",
			GenericName: "base",
			Match:       &WindowCriterion{Floating: b(false)},
			Action:      func(*tree.Toplevel) { fired++ },
		},
	}
	e.CompileWindowRules(rules)
	e.WindowChanged(w)
	if fired != 1 {
		t.Errorf("derived rule fired %d times, want 1", fired)
	}
}

func TestRuleUnknownNameSkipped(t *testing.T) {
	e := NewEngine()
	rules := []WindowRule{{
		Name:        "broken",
		GenericName: "no-such-rule",
		Action:      func(*tree.Toplevel) {},
	}}
	handles := e.CompileWindowRules(rules)
	if len(handles) != 0 {
		t.Errorf("compiled %d matchers from unresolvable rule, want 0", len(handles))
	}
}

func TestRuleCycleAbortsOnlyOffender(t *testing.T) {
	e := NewEngine()
	rules := []WindowRule{
		{Name: "a", GenericName: "b"},
		{Name: "b", GenericName: "a"},
		{Name: "ok", Match: &WindowCriterion{AppID: str("x")}},
	}
	handles := e.CompileWindowRules(rules)
	if len(handles) != 1 {
		t.Errorf("compiled %d matchers, want only the acyclic rule", len(handles))
	}
}

func TestMatcherDestroy(t *testing.T) {
	e := NewEngine()
	h := e.CreateWindowMatcher(&WindowCriterion{AppID: str("x")})
	if len(e.windows) != 1 {
		t.Fatal("matcher not registered")
	}
	e.DestroyWindowMatcher(h)
	if len(e.windows) != 0 {
		t.Error("matcher not released")
	}
}
