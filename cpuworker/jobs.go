package cpuworker

// CopyJob copies image rows between two byte slices with independent
// strides. It is the workhorse of the screencopy path: the renderer
// downloads into an internal staging buffer and a CopyJob moves the rows
// into client memory off the runtime goroutine.
type CopyJob struct {
	Src       []byte
	Dst       []byte
	SrcStride int
	DstStride int
	RowBytes  int
	Rows      int

	// OnDone runs on the runtime goroutine after the copy finished or
	// was cancelled.
	OnDone func(err error)
}

// Run performs the row copy on the worker.
func (j *CopyJob) Run() error {
	src, dst := j.Src, j.Dst
	for row := 0; row < j.Rows; row++ {
		so := row * j.SrcStride
		do := row * j.DstStride
		copy(dst[do:do+j.RowBytes], src[so:so+j.RowBytes])
	}
	return nil
}

// Completed forwards the result to OnDone.
func (j *CopyJob) Completed(err error) {
	if j.OnDone != nil {
		j.OnDone(err)
	}
}
