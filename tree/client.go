package tree

// Client is one connected surface client. Destroying the client
// destroys every surface it owns, which transitively detaches any
// toplevel, layer, tray, or subsurface role.
type Client struct {
	ID  uint64
	Pid uint32
	Uid uint32

	// Comm and Exe identify the client process.
	Comm string
	Exe  string

	// Sandbox metadata is present only for clients connected through a
	// sandbox broker.
	Sandboxed         bool
	SandboxEngine     string
	SandboxAppID      string
	SandboxInstanceID string

	// IsXwayland marks the X compatibility client.
	IsXwayland bool

	surfaces map[NodeID]*Surface

	// latches are queued actions that run in the client's context even
	// if the rule engine that bound them has been replaced.
	latches []func()
}

// NewClient creates a client record.
func NewClient(id uint64, pid, uid uint32) *Client {
	return &Client{
		ID:       id,
		Pid:      pid,
		Uid:      uid,
		surfaces: make(map[NodeID]*Surface),
	}
}

// EnqueueLatch queues a latch action on the client.
func (c *Client) EnqueueLatch(fn func()) {
	c.latches = append(c.latches, fn)
}

// RunLatches drains and runs the queued latch actions.
func (c *Client) RunLatches() {
	ls := c.latches
	c.latches = nil
	for _, fn := range ls {
		fn()
	}
}

// Destroy tears the client down, destroying every surface it owns.
func (c *Client) Destroy() {
	for id, s := range c.surfaces {
		delete(c.surfaces, id)
		s.Destroy()
	}
	c.latches = nil
}
