// Package match implements the declarative matcher/rule engine over
// clients and windows: criterion combinators (not/all/any/exactly),
// compiled matchers with create/destroy/bind lifetimes, and latch
// actions that run when a match flips back off.
package match

import (
	"regexp"

	"github.com/strata-wm/strata/tree"
)

// ClientCriterion is one predicate over a client. Exactly one field
// group is set; combinators reference child criteria.
type ClientCriterion struct {
	// Atomic predicates.
	Comm              *string
	CommRegex         *regexp.Regexp
	Exe               *string
	ExeRegex          *regexp.Regexp
	Uid               *uint32
	Pid               *uint32
	Sandboxed         *bool
	SandboxEngine     *string
	SandboxAppID      *string
	SandboxInstanceID *string
	IsXwayland        *bool

	// Matcher references a compiled matcher by handle.
	Matcher *ClientMatcher

	// Combinators.
	Not     *ClientCriterion
	All     []*ClientCriterion
	Any     []*ClientCriterion
	Exactly *ExactlyClient
}

// ExactlyClient matches when exactly Num of the listed criteria hold.
type ExactlyClient struct {
	Num  int
	List []*ClientCriterion
}

// WindowCriterion is one predicate over a toplevel window.
type WindowCriterion struct {
	// Atomic predicates.
	Title       *string
	TitleRegex  *regexp.Regexp
	AppID       *string
	AppIDRegex  *regexp.Regexp
	Tag         *string
	Floating    *bool
	Visible     *bool
	Fullscreen  *bool
	Kind        *tree.ToplevelKind
	ContentType *tree.ContentType

	// Focus matches when the given seat's keyboard focus is inside the
	// window.
	Focus *tree.Seat

	// Client delegates to a client criterion over the window's client.
	Client *ClientCriterion

	// Matcher references a compiled matcher by handle.
	Matcher *WindowMatcher

	// Combinators.
	Not     *WindowCriterion
	All     []*WindowCriterion
	Any     []*WindowCriterion
	Exactly *ExactlyWindow
}

// ExactlyWindow matches when exactly Num of the listed criteria hold.
type ExactlyWindow struct {
	Num  int
	List []*WindowCriterion
}

// matchesClient evaluates a criterion against a client. Sandbox fields
// silently fail to match when the client carries no sandbox metadata.
func (e *Engine) matchesClient(c *ClientCriterion, cl *tree.Client) bool {
	switch {
	case c == nil:
		return false
	case c.Comm != nil:
		return cl.Comm == *c.Comm
	case c.CommRegex != nil:
		return c.CommRegex.MatchString(cl.Comm)
	case c.Exe != nil:
		return cl.Exe == *c.Exe
	case c.ExeRegex != nil:
		return c.ExeRegex.MatchString(cl.Exe)
	case c.Uid != nil:
		return cl.Uid == *c.Uid
	case c.Pid != nil:
		return cl.Pid == *c.Pid
	case c.Sandboxed != nil:
		return cl.Sandboxed == *c.Sandboxed
	case c.SandboxEngine != nil:
		return cl.Sandboxed && cl.SandboxEngine == *c.SandboxEngine
	case c.SandboxAppID != nil:
		return cl.Sandboxed && cl.SandboxAppID == *c.SandboxAppID
	case c.SandboxInstanceID != nil:
		return cl.Sandboxed && cl.SandboxInstanceID == *c.SandboxInstanceID
	case c.IsXwayland != nil:
		return cl.IsXwayland == *c.IsXwayland
	case c.Matcher != nil:
		if m := e.clients[c.Matcher.id]; m != nil {
			return e.matchesClient(m.criterion, cl)
		}
		return false
	case c.Not != nil:
		return !e.matchesClient(c.Not, cl)
	case c.All != nil:
		for _, sub := range c.All {
			if !e.matchesClient(sub, cl) {
				return false
			}
		}
		return true
	case c.Any != nil:
		for _, sub := range c.Any {
			if e.matchesClient(sub, cl) {
				return true
			}
		}
		return false
	case c.Exactly != nil:
		n := 0
		for _, sub := range c.Exactly.List {
			if e.matchesClient(sub, cl) {
				n++
			}
		}
		return n == c.Exactly.Num
	default:
		return false
	}
}

// matchesWindow evaluates a criterion against a toplevel.
func (e *Engine) matchesWindow(c *WindowCriterion, w *tree.Toplevel) bool {
	switch {
	case c == nil:
		return false
	case c.Title != nil:
		return w.Title() == *c.Title
	case c.TitleRegex != nil:
		return c.TitleRegex.MatchString(w.Title())
	case c.AppID != nil:
		return w.AppID() == *c.AppID
	case c.AppIDRegex != nil:
		return c.AppIDRegex.MatchString(w.AppID())
	case c.Tag != nil:
		return w.Tag() == *c.Tag
	case c.Floating != nil:
		return w.Floating() == *c.Floating
	case c.Visible != nil:
		return w.Visible() == *c.Visible
	case c.Fullscreen != nil:
		return w.Fullscreen() == *c.Fullscreen
	case c.Kind != nil:
		return w.ToplevelKind() == *c.Kind
	case c.ContentType != nil:
		return w.ContentType() == *c.ContentType
	case c.Focus != nil:
		return focusInside(c.Focus, w)
	case c.Client != nil:
		if s := w.Surface(); s != nil && s.Client() != nil {
			return e.matchesClient(c.Client, s.Client())
		}
		return false
	case c.Matcher != nil:
		if m := e.windows[c.Matcher.id]; m != nil {
			return e.matchesWindow(m.criterion, w)
		}
		return false
	case c.Not != nil:
		return !e.matchesWindow(c.Not, w)
	case c.All != nil:
		for _, sub := range c.All {
			if !e.matchesWindow(sub, w) {
				return false
			}
		}
		return true
	case c.Any != nil:
		for _, sub := range c.Any {
			if e.matchesWindow(sub, w) {
				return true
			}
		}
		return false
	case c.Exactly != nil:
		n := 0
		for _, sub := range c.Exactly.List {
			if e.matchesWindow(sub, w) {
				n++
			}
		}
		return n == c.Exactly.Num
	default:
		return false
	}
}

// focusInside reports whether the seat's keyboard focus lies within the
// window's subtree.
func focusInside(seat *tree.Seat, w *tree.Toplevel) bool {
	for n := seat.FocusNode(tree.FocusKeyboard); n != nil; n = n.Parent() {
		if n == tree.Node(w) {
			return true
		}
	}
	return false
}
