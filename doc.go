// Package strata implements the core of a tiling Wayland compositor.
//
// Strata composites client surface buffers onto physical outputs,
// routes input through per-seat focus stacks, and manages a
// tiled+floating window tree. This module contains the core
// subsystems; wire-protocol dispatch, device discovery, and
// configuration loading live in external collaborators that drive the
// core through the interfaces declared here.
//
// # Architecture
//
// Strata uses a layered architecture:
//
//   - State: the aggregate owning the runtime, tree, and GPU context
//   - tree: the window tree, transactions, and configure pipeline
//   - region: band-decomposed rectangle algebra for damage and clipping
//   - gpu: the rendering-layer abstraction with two backends
//   - render: per-frame scene traversal, cursor, and screencopy
//   - cpuworker: background execution of CPU-bound jobs
//   - match: the declarative client/window rule engine
//
// # Scheduling
//
// The core is single-threaded and cooperative: one goroutine runs the
// event loop and owns all tree state. Work is scheduled into fixed
// per-iteration phases (read, layout, present, post-present). The only
// other threads are the CPU worker pool's, which communicate through
// eventfd-signalled queues.
//
// # Quick Start
//
// The simplest strata program creates a state and runs its loop:
//
//	package main
//
//	import (
//	    "log"
//	    "github.com/strata-wm/strata"
//	)
//
//	func main() {
//	    st, err := strata.NewState(strata.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer st.Close()
//
//	    if err := st.Run(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Backends
//
// Rendering goes through the gpu.Backend interface. The wgpu backend
// records command buffers against wgpu-native; the soft backend
// executes single-threaded against CPU storage and is feature-complete
// for every format with a shared-memory analog mapping.
package strata
