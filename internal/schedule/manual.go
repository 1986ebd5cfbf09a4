package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by Advance. Callbacks run on
// the goroutine calling Advance, in due-time order, with ties broken by
// scheduling order.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	pending []*manualTask
}

type manualTask struct {
	due       time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

// NewManual returns a Manual clock at time zero.
func NewManual() *Manual {
	return &Manual{}
}

// After schedules fn to run once the clock has advanced by d.
func (m *Manual) After(d time.Duration, fn func()) Cancel {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	task := &manualTask{due: m.now + d, seq: m.seq, fn: fn}
	m.pending = append(m.pending, task)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		task.cancelled = true
	}
}

// Frame schedules fn one FrameInterval from now.
func (m *Manual) Frame(fn func()) Cancel {
	return m.After(FrameInterval, fn)
}

// Advance moves the clock forward by d, running every callback that
// becomes due. Callbacks scheduled by a running callback also run if they
// fall due within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		task := m.popDue(target)
		if task == nil {
			break
		}
		task.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// RunAll advances until nothing is pending. It stops after limit callbacks
// to guard against self-rescheduling loops and reports how many ran.
func (m *Manual) RunAll(limit int) int {
	ran := 0
	for ran < limit {
		m.mu.Lock()
		m.compact()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return ran
		}
		next := m.earliest()
		m.mu.Unlock()

		task := m.popDue(next.due)
		if task != nil {
			task.fn()
			ran++
		}
	}
	return ran
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of callbacks that are scheduled and not cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compact()
	return len(m.pending)
}

// popDue removes and returns the earliest task due at or before target,
// moving the clock to its due time.
func (m *Manual) popDue(target time.Duration) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.compact()
	if len(m.pending) == 0 {
		return nil
	}
	next := m.earliest()
	if next.due > target {
		return nil
	}
	for i, t := range m.pending {
		if t == next {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	if next.due > m.now {
		m.now = next.due
	}
	return next
}

func (m *Manual) earliest() *manualTask {
	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].due != m.pending[j].due {
			return m.pending[i].due < m.pending[j].due
		}
		return m.pending[i].seq < m.pending[j].seq
	})
	return m.pending[0]
}

func (m *Manual) compact() {
	live := m.pending[:0]
	for _, t := range m.pending {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(m.pending); i++ {
		m.pending[i] = nil
	}
	m.pending = live
}
