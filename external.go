package strata

// Interfaces of the external collaborators the core consumes. The
// implementations live in the platform crates that own device
// discovery and wire protocols; the core only drives them.

// DrmMaster is a DRM master handle.
type DrmMaster interface {
	// Device returns the device node path.
	Device() string

	// CreateLease leases the given connectors to a client and returns
	// the lease fd.
	CreateLease(connectors []uint32) (int, error)

	// ReopenNode reopens the device node, returning a fresh fd.
	ReopenNode() (int, error)

	// DupUnprivileged duplicates the fd without master rights.
	DupUnprivileged() (int, error)
}

// GbmDevice allocates scanout buffers for the legacy backend.
type GbmDevice interface {
	// Allocate creates a buffer of the given size and four-cc format,
	// returning its dma-buf fd and stride.
	Allocate(width, height int32, fourcc uint32) (fd int, stride uint32, err error)
}

// BufferFactory provides reusable I/O buffers and framed message
// transport carrying bytes plus file descriptors.
type BufferFactory interface {
	// Get returns a reusable buffer of at least the given size.
	Get(size int) []byte

	// Put returns a buffer to the pool.
	Put(buf []byte)

	// SendMsg writes a framed message with attached fds.
	SendMsg(fd int, data []byte, fds []int) error

	// RecvMsg reads a framed message, returning the payload and any
	// attached fds.
	RecvMsg(fd int, buf []byte) (n int, fds []int, err error)
}
