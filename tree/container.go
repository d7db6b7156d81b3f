package tree

import "github.com/strata-wm/strata/region"

// ContainerAxis is the split direction of a container.
type ContainerAxis uint8

const (
	// AxisHorizontal tiles children left to right.
	AxisHorizontal ContainerAxis = iota

	// AxisVertical tiles children top to bottom.
	AxisVertical

	// AxisMono shows only the active child, full size, with a tab row.
	AxisMono
)

// String returns the axis name.
func (a ContainerAxis) String() string {
	switch a {
	case AxisHorizontal:
		return "horizontal"
	case AxisVertical:
		return "vertical"
	case AxisMono:
		return "mono"
	default:
		return "invalid"
	}
}

// titleHeight is the per-child title bar height in layout units.
const titleHeight = 18

// containerChild carries the per-child layout state.
type containerChild struct {
	node Node

	// body is the child's total rectangle including decoration, in
	// display coordinates; content is the part handed to the child.
	body    region.Rect
	content region.Rect

	title  string
	factor float64
}

// Container is an internal tiling node with an ordered child list.
// Children are themselves toplevel-capable nodes: containers, toplevel
// windows, or placeholders.
type Container struct {
	nodeData

	tree     *Tree
	axis     ContainerAxis
	children []*containerChild

	// active is the index of the mono-mode foreground child.
	active int
}

// NewContainer creates an empty container.
func (t *Tree) NewContainer(axis ContainerAxis) *Container {
	c := &Container{tree: t, axis: axis}
	c.id = t.ids.nextID()
	c.localVisible = true
	return c
}

// Kind returns KindContainer.
func (c *Container) Kind() NodeKind {
	return KindContainer
}

// Axis returns the split direction.
func (c *Container) Axis() ContainerAxis {
	return c.axis
}

// SetAxis changes the split direction and relayouts.
func (c *Container) SetAxis(a ContainerAxis) {
	if c.axis == a {
		return
	}
	c.axis = a
	c.layout()
}

// NumChildren returns the child count.
func (c *Container) NumChildren() int {
	return len(c.children)
}

// Child returns the i-th child node.
func (c *Container) Child(i int) Node {
	return c.children[i].node
}

// ChildBody returns the i-th child's body rectangle.
func (c *Container) ChildBody(i int) region.Rect {
	return c.children[i].body
}

// ChildContent returns the i-th child's content rectangle.
func (c *Container) ChildContent(i int) region.Rect {
	return c.children[i].content
}

// ChildTitle returns the i-th child's title.
func (c *Container) ChildTitle(i int) string {
	return c.children[i].title
}

// ActiveChild returns the mono-mode foreground index.
func (c *Container) ActiveChild() int {
	return c.active
}

// SetActiveChild selects the mono-mode foreground child.
func (c *Container) SetActiveChild(i int) {
	if i < 0 || i >= len(c.children) {
		return
	}
	if c.active == i {
		return
	}
	c.active = i
	c.layout()
}

// InsertChild links a node at position at, or appends for at < 0.
// The node must be detached.
func (c *Container) InsertChild(n Node, at int) {
	cc := &containerChild{node: n, factor: 1}
	if tl, ok := n.(*Toplevel); ok {
		cc.title = tl.title
	}
	if at < 0 || at > len(c.children) {
		at = len(c.children)
	}
	c.children = append(c.children, nil)
	copy(c.children[at+1:], c.children[at:])
	c.children[at] = cc
	setParent(n, c)
	if tl, ok := n.(*Toplevel); ok {
		if ws := c.workspace(); ws != nil {
			tl.SetWorkspace(ws)
		}
	}
	if c.active >= at && len(c.children) > 1 {
		c.active++
	}
	c.layout()
	n.SetVisible(c.visible)
}

// removeChild unlinks a child and relayouts.
func (c *Container) removeChild(n Node) {
	for i, cc := range c.children {
		if cc.node == n {
			c.children = append(c.children[:i], c.children[i+1:]...)
			if c.active >= len(c.children) && c.active > 0 {
				c.active--
			}
			clearParent(n)
			c.layout()
			return
		}
	}
}

// IndexOf returns the position of a child, -1 when absent.
func (c *Container) IndexOf(n Node) int {
	for i, cc := range c.children {
		if cc.node == n {
			return i
		}
	}
	return -1
}

// childTitleChanged updates the stored child title.
func (c *Container) childTitleChanged(n Node, title string) {
	for _, cc := range c.children {
		if cc.node == n {
			cc.title = title
			return
		}
	}
}

// SetBody positions the container and relayouts its children.
func (c *Container) SetBody(r region.Rect) {
	c.pos = r
	c.layout()
}

// layout distributes the container body among the children. Horizontal
// and vertical containers split the body by the children's factors;
// mono containers give the active child everything below the tab row.
func (c *Container) layout() {
	n := len(c.children)
	if n == 0 {
		return
	}
	body := c.pos
	switch c.axis {
	case AxisMono:
		tabs := region.Rect{X1: body.X1, Y1: body.Y1, X2: body.X2, Y2: min(body.Y1+titleHeight, body.Y2)}
		tabW := body.Width() / int32(n)
		for i, cc := range c.children {
			cc.body = region.Rect{
				X1: tabs.X1 + int32(i)*tabW,
				Y1: tabs.Y1,
				X2: tabs.X1 + int32(i+1)*tabW,
				Y2: tabs.Y2,
			}
			cc.content = region.Rect{X1: body.X1, Y1: tabs.Y2, X2: body.X2, Y2: body.Y2}
			vis := i == c.active
			if i == c.active {
				c.applyChild(cc)
			}
			cc.node.SetVisible(c.visible && vis)
		}
	case AxisHorizontal:
		total := 0.0
		for _, cc := range c.children {
			total += cc.factor
		}
		x := body.X1
		for i, cc := range c.children {
			w := int32(float64(body.Width()) * cc.factor / total)
			if i == n-1 {
				w = body.X2 - x
			}
			cc.body = region.Rect{X1: x, Y1: body.Y1, X2: x + w, Y2: body.Y2}
			cc.content = region.Rect{X1: x, Y1: min(body.Y1+titleHeight, body.Y2), X2: x + w, Y2: body.Y2}
			x += w
			c.applyChild(cc)
			cc.node.SetVisible(c.visible)
		}
	case AxisVertical:
		total := 0.0
		for _, cc := range c.children {
			total += cc.factor
		}
		y := body.Y1
		for i, cc := range c.children {
			h := int32(float64(body.Height()) * cc.factor / total)
			if i == n-1 {
				h = body.Y2 - y
			}
			cc.body = region.Rect{X1: body.X1, Y1: y, X2: body.X2, Y2: y + h}
			cc.content = region.Rect{X1: body.X1, Y1: min(y+titleHeight, y+h), X2: body.X2, Y2: y + h}
			y += h
			c.applyChild(cc)
			cc.node.SetVisible(c.visible)
		}
	}
}

func (c *Container) applyChild(cc *containerChild) {
	switch n := cc.node.(type) {
	case *Toplevel:
		n.SetBody(cc.content)
	case *Container:
		n.SetBody(cc.content)
	case *Placeholder:
		n.pos = cc.content
	}
}

// workspace walks up to the owning workspace.
func (c *Container) workspace() *Workspace {
	for p := c.parent; p != nil; {
		switch t := p.(type) {
		case *Workspace:
			return t
		case *Container:
			p = t.parent
		default:
			return nil
		}
	}
	return nil
}

// SetVisible recomputes visibility and propagates. Mono containers keep
// background children invisible.
func (c *Container) SetVisible(parentVisible bool) {
	if !c.setVisible(parentVisible) {
		return
	}
	for i, cc := range c.children {
		v := c.visible
		if c.axis == AxisMono && i != c.active {
			v = false
		}
		cc.node.SetVisible(v)
	}
}

// VisitChildren visits the children in list order.
func (c *Container) VisitChildren(visit func(Node) bool) {
	for _, cc := range c.children {
		if !visit(cc.node) {
			return
		}
	}
}

// FindTreeAt hit-tests the children's bodies. x and y are local to the
// container body.
func (c *Container) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	ax, ay := c.pos.X1+x, c.pos.Y1+y
	for i, cc := range c.children {
		if c.axis == AxisMono && i != c.active {
			if cc.body.Contains(ax, ay) {
				*stack = append(*stack, FoundNode{Node: c, X: x, Y: y})
				return true
			}
			continue
		}
		if cc.content.Contains(ax, ay) {
			if cc.node.FindTreeAt(ax-cc.content.X1, ay-cc.content.Y1, stack, usecase) {
				*stack = append(*stack, FoundNode{Node: c, X: x, Y: y})
				return true
			}
		}
		if cc.body.Contains(ax, ay) {
			// Title bar hit: the container handles it.
			*stack = append(*stack, FoundNode{Node: c, X: x, Y: y})
			return true
		}
	}
	return false
}

// Render draws the container and its children.
func (c *Container) Render(r Renderer, x, y int32, bounds *region.Rect) {
	r.RenderContainer(c, x, y)
}

// Destroy tears down the subtree.
func (c *Container) Destroy() {
	if c.destroyed {
		return
	}
	c.seatState.destroy(c)
	children := c.children
	c.children = nil
	for _, cc := range children {
		cc.node.Destroy()
	}
	if p, ok := c.parent.(*Container); ok {
		p.removeChild(c)
	}
	if ws, ok := c.parent.(*Workspace); ok {
		ws.rootGone(c)
	}
	c.destroyCommon(c)
}
