package gpu

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/strata-wm/strata/internal/loop"
)

// SyncFile wraps a sync-file style descriptor that becomes readable when
// the associated device work completed. Ownership transfers from
// producer to consumer; the consumer closes it.
type SyncFile struct {
	fd int
}

// NewSyncFile takes ownership of fd.
func NewSyncFile(fd int) *SyncFile {
	return &SyncFile{fd: fd}
}

// NewSignaledSyncFile returns a sync file that is already signalled,
// backed by an eventfd. Software backends use it to fence work they
// completed inline.
func NewSignaledSyncFile() (*SyncFile, error) {
	fd, err := unix.Eventfd(1, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("gpu: eventfd: %w", err)
	}
	return &SyncFile{fd: fd}, nil
}

// Fd returns the descriptor.
func (s *SyncFile) Fd() int {
	return s.fd
}

// Close releases the descriptor.
func (s *SyncFile) Close() {
	if s.fd >= 0 {
		unix.Close(s.fd)
		s.fd = -1
	}
}

// WatchUpload arms a loop watch that waits for the upload's sync file to
// signal, then releases the staging resources. Uploads whose fence
// export failed were completed synchronously by the backend and are
// released immediately.
//
// The returned cancel function releases the resources early without
// waiting; calling it after the fence signalled is a no-op.
func WatchUpload(l *loop.Loop, u *Upload) (cancel func()) {
	if u.Sync == nil {
		if u.Release != nil {
			u.Release()
		}
		return func() {}
	}
	var w *loop.FdWatch
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if w != nil {
			w.Close()
		}
		u.Sync.Close()
		if u.Release != nil {
			u.Release()
		}
	}
	w, err := l.AddFd(u.Sync.Fd(), true, false, func(loop.Readiness) {
		release()
	})
	if err != nil {
		// No way to observe the fence; fall back to releasing now
		// rather than leaking the staging buffer.
		release()
		return func() {}
	}
	return release
}
