package tree

import (
	"github.com/strata-wm/strata/internal/loop"
)

// Tree owns the node graph, the transaction engine, and the configure
// pipeline of one compositor instance.
type Tree struct {
	ids ids

	// Display is the root node.
	Display *Display

	loop *loop.Loop

	transactions *Transactions
	configures   *ConfigureGroups
}

// New creates a tree rooted at a fresh display.
func New(l *loop.Loop) *Tree {
	t := &Tree{loop: l}
	d := &Display{tree: t, outputs: make(map[string]*Output)}
	d.id = t.ids.nextID()
	d.localVisible = true
	d.visible = true
	t.Display = d
	t.transactions = newTransactions(t)
	t.configures = newConfigureGroups(t)
	return t
}

// Transactions returns the transaction engine.
func (t *Tree) Transactions() *Transactions {
	return t.transactions
}

// ConfigureGroups returns the configure pipeline.
func (t *Tree) ConfigureGroups() *ConfigureGroups {
	return t.configures
}

// FindTreeAt hit-tests the tree at display-global coordinates. The
// returned stack is ordered leaf-first: the innermost hit node with its
// local coordinates comes first.
func (t *Tree) FindTreeAt(x, y int32, usecase FindUsecase) []FoundNode {
	var stack []FoundNode
	t.Display.FindTreeAt(x, y, &stack, usecase)
	return stack
}

// Reparent atomically moves a toplevel-capable node into a container at
// the requested position. The child leaves its old parent's list, joins
// the new one, and both parents observe the child-size and child-title
// notifications within one transaction.
func (t *Tree) Reparent(child Node, to *Container, at int) {
	tx := t.transactions.Open()
	defer tx.Close()

	switch p := child.Parent().(type) {
	case *Container:
		p.removeChild(child)
	case *Float:
		if p.child == child {
			p.child = nil
			clearParent(child)
			p.Destroy()
		}
	case *Workspace:
		if tl, ok := child.(*Toplevel); ok && p.fullscreen == tl {
			p.fullscreen = nil
			clearParent(child)
			p.updateVisibility()
		}
	}
	to.InsertChild(child, at)
	if tl, ok := child.(*Toplevel); ok {
		to.childTitleChanged(tl, tl.title)
	}
}
