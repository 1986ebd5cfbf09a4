package schedule

import (
	"sync"
	"time"
)

// Timers is a Scheduler backed by real timers. Expired callbacks are handed
// to post, which must run them on the owner's single executor (a Loop, or
// the TUI's update goroutine). A cancelled callback never runs, even if its
// timer already fired and the post is queued.
type Timers struct {
	post  func(func())
	frame time.Duration
}

// NewTimers returns a Timers scheduler delivering callbacks through post.
func NewTimers(post func(func())) *Timers {
	return &Timers{post: post, frame: FrameInterval}
}

// After runs fn on the executor after d.
func (t *Timers) After(d time.Duration, fn func()) Cancel {
	var (
		mu        sync.Mutex
		cancelled bool
	)
	live := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !cancelled
	}

	timer := time.AfterFunc(d, func() {
		if !live() {
			return
		}
		t.post(func() {
			if live() {
				fn()
			}
		})
	})

	return func() {
		mu.Lock()
		cancelled = true
		mu.Unlock()
		timer.Stop()
	}
}

// Frame runs fn on the executor after one frame interval.
func (t *Timers) Frame(fn func()) Cancel {
	return t.After(t.frame, fn)
}
