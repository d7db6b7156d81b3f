package cpuworker

import (
	"errors"
	"testing"
	"time"

	"github.com/strata-wm/strata/internal/loop"
)

type testJob struct {
	run       func() error
	completed func(err error)
}

func (j *testJob) Run() error {
	if j.run != nil {
		return j.run()
	}
	return nil
}

func (j *testJob) Completed(err error) {
	if j.completed != nil {
		j.completed(err)
	}
}

func newPool(t *testing.T) (*loop.Loop, *Pool) {
	t.Helper()
	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	t.Cleanup(l.Close)
	p, err := New(l, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Stop)
	return l, p
}

// runUntil iterates the loop until cond holds or the deadline passes.
func runUntil(t *testing.T, l *loop.Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		if err := l.RunOnce(); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubmitCompletes(t *testing.T) {
	l, p := newPool(t)
	ran := make(chan struct{})
	var completedErr error
	done := false
	j := &testJob{
		run: func() error {
			close(ran)
			return nil
		},
		completed: func(err error) {
			completedErr = err
			done = true
		},
	}
	p.Submit(j)
	<-ran
	runUntil(t, l, func() bool { return done })
	if completedErr != nil {
		t.Errorf("Completed got err %v, want nil", completedErr)
	}
}

func TestCompletionCarriesError(t *testing.T) {
	l, p := newPool(t)
	want := errors.New("boom")
	var got error
	done := false
	p.Submit(&testJob{
		run:       func() error { return want },
		completed: func(err error) { got = err; done = true },
	})
	runUntil(t, l, func() bool { return done })
	if got != want {
		t.Errorf("Completed got %v, want %v", got, want)
	}
}

func TestCompletionOrder(t *testing.T) {
	l, p := newPool(t)
	var order []int
	for i := 0; i < 4; i++ {
		i := i
		p.Submit(&testJob{
			completed: func(error) { order = append(order, i) },
		})
	}
	runUntil(t, l, func() bool { return len(order) == 4 })
	for i := range order {
		if order[i] != i {
			t.Fatalf("completion order %v, want ascending", order)
		}
	}
}

func TestCancelBeforeStart(t *testing.T) {
	l, p := newPool(t)
	// Block the single worker so the second job stays queued.
	gate := make(chan struct{})
	started := make(chan struct{})
	p.Submit(&testJob{run: func() error {
		close(started)
		<-gate
		return nil
	}}).Detach()
	<-started

	ran := false
	var got error
	done := false
	pe := p.Submit(&testJob{
		run:       func() error { ran = true; return nil },
		completed: func(err error) { got = err; done = true },
	})
	pe.Cancel()
	close(gate)
	runUntil(t, l, func() bool { return done })
	if ran {
		t.Error("cancelled job ran")
	}
	if got != ErrCancelled {
		t.Errorf("Completed got %v, want ErrCancelled", got)
	}
}

func TestReleaseBlocksUntilCompletion(t *testing.T) {
	_, p := newPool(t)
	finished := false
	started := make(chan struct{})
	pe := p.Submit(&testJob{
		run: func() error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			finished = true
			return nil
		},
	})
	<-started
	pe.Release()
	if !finished {
		t.Error("Release returned before the job finished")
	}
}

func TestDetachDropsCompletion(t *testing.T) {
	l, p := newPool(t)
	completed := false
	other := false
	pe := p.Submit(&testJob{completed: func(error) { completed = true }})
	pe.Detach()
	p.Submit(&testJob{completed: func(error) { other = true }})
	runUntil(t, l, func() bool { return other })
	if completed {
		t.Error("detached job's completion callback ran")
	}
}

func TestCopyJob(t *testing.T) {
	src := make([]byte, 4*8) // 4 rows, stride 8
	for i := range src {
		src[i] = byte(i)
	}
	dst := make([]byte, 4*6) // 4 rows, stride 6
	j := &CopyJob{
		Src:       src,
		Dst:       dst,
		SrcStride: 8,
		DstStride: 6,
		RowBytes:  6,
		Rows:      4,
	}
	if err := j.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for row := 0; row < 4; row++ {
		for x := 0; x < 6; x++ {
			if dst[row*6+x] != src[row*8+x] {
				t.Fatalf("row %d byte %d = %d, want %d", row, x, dst[row*6+x], src[row*8+x])
			}
		}
	}
}
