package tree

// FocusCategory selects one of a seat's focus stacks.
type FocusCategory uint8

const (
	FocusKeyboard FocusCategory = iota
	FocusPointer
	FocusTouch
	FocusTabletTool

	numFocusCategories
)

// String returns the category name.
func (c FocusCategory) String() string {
	switch c {
	case FocusKeyboard:
		return "keyboard"
	case FocusPointer:
		return "pointer"
	case FocusTouch:
		return "touch"
	case FocusTabletTool:
		return "tablet-tool"
	default:
		return "invalid"
	}
}

// SeatState is the per-node bag recording which seats focus the node.
// Destroying the node drains these entries so seats recover onto a
// still-linked ancestor.
type SeatState struct {
	foci [numFocusCategories]map[*Seat]struct{}
}

func (ss *SeatState) add(cat FocusCategory, seat *Seat) {
	if ss.foci[cat] == nil {
		ss.foci[cat] = make(map[*Seat]struct{})
	}
	ss.foci[cat][seat] = struct{}{}
}

func (ss *SeatState) remove(cat FocusCategory, seat *Seat) {
	delete(ss.foci[cat], seat)
}

func (ss *SeatState) destroy(self Node) {
	for cat := range ss.foci {
		for seat := range ss.foci[cat] {
			seat.focusRemoved(FocusCategory(cat), self)
		}
		ss.foci[cat] = nil
	}
}

// Seat is one input seat with per-category focus stacks and modifier
// state fed through the external keymap compiler.
type Seat struct {
	name    string
	focused [numFocusCategories]Node

	// OnEnter and OnLeave observe focus hand-over along the node
	// chains.
	OnEnter func(cat FocusCategory, n Node)
	OnLeave func(cat FocusCategory, n Node)

	keymap KeymapState
}

// NewSeat creates a named seat.
func NewSeat(name string) *Seat {
	return &Seat{name: name}
}

// Name returns the seat name.
func (s *Seat) Name() string {
	return s.name
}

// FocusNode returns the node holding the category's focus, nil when no
// focus is assigned.
func (s *Seat) FocusNode(cat FocusCategory) Node {
	return s.focused[cat]
}

// seatStateOf digs the seat-state bag out of a node.
func seatStateOf(n Node) *SeatState {
	if d := dataOf(n); d != nil {
		return &d.seatState
	}
	return nil
}

// chain returns the ancestor path of n from the root down to n.
func chain(n Node) []Node {
	var rev []Node
	for c := n; c != nil; c = c.Parent() {
		rev = append(rev, c)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// SetFocus moves the category's focus to n. The previously focused
// chain receives leave events from the leaf up to the common ancestor;
// the new chain receives enter events from below the common ancestor
// down to the leaf.
func (s *Seat) SetFocus(cat FocusCategory, n Node) {
	old := s.focused[cat]
	if old == n {
		return
	}
	oldChain := chain(old)
	newChain := chain(n)
	common := 0
	for common < len(oldChain) && common < len(newChain) && oldChain[common] == newChain[common] {
		common++
	}
	for i := len(oldChain) - 1; i >= common; i-- {
		if s.OnLeave != nil {
			s.OnLeave(cat, oldChain[i])
		}
	}
	if old != nil {
		if ss := seatStateOf(old); ss != nil {
			ss.remove(cat, s)
		}
	}
	s.focused[cat] = n
	if n != nil {
		if ss := seatStateOf(n); ss != nil {
			ss.add(cat, s)
		}
	}
	for i := common; i < len(newChain); i++ {
		if s.OnEnter != nil {
			s.OnEnter(cat, newChain[i])
		}
	}
}

// focusRemoved recovers the category's focus after the focused node was
// destroyed: the nearest still-linked ancestor (or the root) takes over
// without enter events.
func (s *Seat) focusRemoved(cat FocusCategory, n Node) {
	if s.focused[cat] != n {
		return
	}
	cand := n.Parent()
	for cand != nil && !stillLinked(cand) {
		cand = cand.Parent()
	}
	s.focused[cat] = cand
	if cand != nil {
		if ss := seatStateOf(cand); ss != nil {
			ss.add(cat, s)
		}
	}
}

// stillLinked reports whether the node is reachable from a root.
func stillLinked(n Node) bool {
	for c := n; c != nil; c = c.Parent() {
		if c.Kind() == KindDisplay {
			return true
		}
	}
	return false
}

// SetKeymapState installs the compiled keymap state for the seat.
func (s *Seat) SetKeymapState(st KeymapState) {
	s.keymap = st
}

// Key feeds a key event into the keymap state and returns the
// serialised modifier and layout masks.
func (s *Seat) Key(key uint32, down bool) (mods, layout uint32) {
	if s.keymap == nil {
		return 0, 0
	}
	s.keymap.Update(key, down)
	return s.keymap.SerializeMods(), s.keymap.SerializeLayout()
}
