package theme

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrDisposed is returned by Init on a disposed Signal.
var ErrDisposed = errors.New("theme signal disposed")

type listener struct {
	fn      func(Theme)
	removed atomic.Bool
}

// Signal is the observable resolved theme.
//
// Listeners run synchronously on the goroutine that caused the change, in
// emission order. A listener that itself changes the mode is safe: the
// nested change is queued and delivered after the current round.
type Signal struct {
	mu        sync.Mutex
	prefs     Preferences
	key       string
	detectors []Detector
	logger    *zap.Logger

	mode     Mode
	system   Theme
	resolved Theme
	source   string

	listeners []*listener
	queue     []Theme
	emitting  bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	disposed bool
}

// Option configures a Signal.
type Option func(*Signal)

// WithPreferences sets the persistence boundary for the mode.
func WithPreferences(p Preferences) Option {
	return func(s *Signal) { s.prefs = p }
}

// WithPreferenceKey overrides DefaultPreferenceKey.
func WithPreferenceKey(key string) Option {
	return func(s *Signal) {
		if key != "" {
			s.key = key
		}
	}
}

// WithDetectors sets the system theme detector chain.
func WithDetectors(d ...Detector) Option {
	return func(s *Signal) { s.detectors = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Signal) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSignal creates a Signal in system mode resolving to light. Call Init to
// load the persisted mode and run detectors.
func NewSignal(opts ...Option) *Signal {
	s := &Signal{
		prefs:    NewMemoryPreferences(),
		key:      DefaultPreferenceKey,
		logger:   zap.NewNop(),
		mode:     ModeSystem,
		system:   Light,
		resolved: Light,
		source:   "fallback",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads the persisted mode, detects the system theme and starts any
// watching detectors. Watchers stop when ctx is done or on Dispose.
//
// A missing preference means system mode. A storage failure falls back to
// light for this process and is logged, not returned.
func (s *Signal) Init(ctx context.Context) error {
	mode := ModeSystem
	raw, ok, err := s.prefs.Get(s.key)
	switch {
	case err != nil:
		s.logger.Warn("reading theme preference failed, using light", zap.String("key", s.key), zap.Error(err))
		mode = ModeLight
	case ok:
		if m, perr := ParseMode(raw); perr == nil {
			mode = m
		} else {
			s.logger.Warn("ignoring invalid theme preference", zap.String("value", raw))
		}
	}

	system, source := detect(s.detectors)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.mode = mode
	s.system = system
	s.source = source

	watchCtx, cancel := context.WithCancel(ctx)
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	for _, d := range s.detectors {
		w, ok := d.(Watcher)
		if !ok || !d.Available() {
			continue
		}
		name := d.Name()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := w.Watch(watchCtx, s.SetSystemTheme); err != nil {
				s.logger.Warn("theme watcher stopped", zap.String("detector", name), zap.Error(err))
			}
		}()
	}
	s.recomputeLocked()
	s.mu.Unlock()

	s.logger.Debug("theme signal initialized",
		zap.String("mode", string(mode)),
		zap.String("system", string(system)),
		zap.String("source", source))

	s.flush()
	return nil
}

// Theme returns the resolved theme.
func (s *Signal) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Mode returns the user's mode.
func (s *Signal) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SystemTheme returns the last theme reported by the system and the detector
// that reported it.
func (s *Signal) SystemTheme() (Theme, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system, s.source
}

// SetMode changes and persists the user's mode. Persistence failures are
// logged; the change still applies in memory.
func (s *Signal) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	if err := s.prefs.Set(s.key, string(m)); err != nil {
		s.logger.Warn("persisting theme preference failed", zap.String("key", s.key), zap.Error(err))
	}

	s.mu.Lock()
	s.mode = m
	s.recomputeLocked()
	s.mu.Unlock()

	s.flush()
	return nil
}

// Toggle switches to the opposite of the resolved theme as an explicit mode.
func (s *Signal) Toggle() Theme {
	next := s.Theme().Opposite()
	_ = s.SetMode(Mode(next))
	return next
}

// SetSystemTheme records an OS theme notification. It only changes the
// resolved theme in system mode.
func (s *Signal) SetSystemTheme(t Theme) {
	if !t.Valid() {
		return
	}
	s.mu.Lock()
	s.system = t
	s.source = "notification"
	s.recomputeLocked()
	s.mu.Unlock()

	s.flush()
}

// Subscribe registers fn for resolved-theme changes. The returned function
// unsubscribes; calling it again is a no-op.
func (s *Signal) Subscribe(fn func(Theme)) func() {
	l := &listener{fn: fn}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return func() {}
	}
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	return func() {
		if l.removed.Swap(true) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, cur := range s.listeners {
			if cur == l {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Listeners returns the number of active subscriptions.
func (s *Signal) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Dispose stops watchers and drops every listener. It is idempotent.
func (s *Signal) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	cancel := s.cancel
	s.cancel = nil
	for _, l := range s.listeners {
		l.removed.Store(true)
	}
	s.listeners = nil
	s.queue = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// recomputeLocked resolves the theme and queues an emission if it changed.
func (s *Signal) recomputeLocked() {
	next := Resolve(s.mode, s.system)
	if next == s.resolved {
		return
	}
	s.resolved = next
	if !s.disposed {
		s.queue = append(s.queue, next)
	}
}

// flush delivers queued emissions. Only one goroutine delivers at a time;
// others leave their emissions to the active deliverer.
func (s *Signal) flush() {
	s.mu.Lock()
	if s.emitting {
		s.mu.Unlock()
		return
	}
	s.emitting = true
	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]
		snapshot := make([]*listener, len(s.listeners))
		copy(snapshot, s.listeners)
		s.mu.Unlock()

		for _, l := range snapshot {
			if !l.removed.Load() {
				l.fn(t)
			}
		}

		s.mu.Lock()
	}
	s.emitting = false
	s.mu.Unlock()
}
