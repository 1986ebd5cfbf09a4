// Package schedule provides the cooperative scheduling primitives that drive
// every deferred step in Pulse: delayed callbacks and next-frame callbacks,
// each returning a cancel function.
//
// Two implementations exist. Timers fires real timers and posts the expired
// callbacks to a single executor, so callbacks never run concurrently with
// each other. Manual is a deterministic clock for tests.
package schedule

import "time"

// FrameInterval is the delay used for Frame callbacks (one 60Hz frame).
const FrameInterval = 16 * time.Millisecond

// Cancel stops a pending callback. Calling it after the callback ran, or
// more than once, is a no-op.
type Cancel func()

// Scheduler schedules callbacks on the owner's executor.
type Scheduler interface {
	// After runs fn once d has elapsed.
	After(d time.Duration, fn func()) Cancel
	// Frame runs fn on the next render frame.
	Frame(fn func()) Cancel
}
