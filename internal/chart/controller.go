package chart

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Mr-Dark-debug/pulse/internal/schedule"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

// Phase is the controller's position in a theme transition.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFadingOut  Phase = "fading-out"
	PhaseRebuilding Phase = "rebuilding"
	PhaseFadingIn   Phase = "fading-in"
)

// State collapses Phase to idle or transitioning.
type State string

const (
	StateIdle          State = "idle"
	StateTransitioning State = "transitioning"
)

// Defaults for the transition timing.
const (
	DefaultThrottle        = 100 * time.Millisecond
	DefaultTransitionDelay = 200 * time.Millisecond
	DefaultDimOpacity      = 0.35
)

// Controller keeps one chart widget consistent with the theme signal.
//
// All widget and container calls are made while holding the controller's
// lock; the rebuild and phase callbacks run without it so they may call
// back into the controller.
type Controller struct {
	mu sync.Mutex

	source    Source
	sched     schedule.Scheduler
	widget    Widget
	container Container
	logger    *zap.Logger

	throttle  time.Duration
	delay     time.Duration
	dim       float64
	onRebuild func(theme.Theme)
	onPhase   func(Phase)

	handle      Handle
	phase       Phase
	applied     theme.Theme
	latest      theme.Theme
	target      theme.Theme
	transitions int

	cancelThrottle schedule.Cancel
	cancelStep     schedule.Cancel
	cancelData     schedule.Cancel
	pendingData    *Series

	unsubscribe func()
	disposed    bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithThrottle sets the delay between a theme notification and the check
// that may start a transition. Notifications inside the window coalesce.
func WithThrottle(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.throttle = d
		}
	}
}

// WithTransitionDelay sets how long the container stays dimmed before the
// old widget is destroyed.
func WithTransitionDelay(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithDimOpacity sets the container opacity while fading out.
func WithDimOpacity(o float64) ControllerOption {
	return func(c *Controller) {
		if o >= 0 && o <= 1 {
			c.dim = o
		}
	}
}

func WithContainer(ct Container) ControllerOption {
	return func(c *Controller) { c.container = ct }
}

func WithLogger(l *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// OnRebuild sets the callback asked to construct the replacement widget
// after a transition. It receives the newly applied theme and is expected
// to call RegisterChart.
func OnRebuild(fn func(theme.Theme)) ControllerOption {
	return func(c *Controller) { c.onRebuild = fn }
}

// OnPhaseChange observes every phase the controller enters.
func OnPhaseChange(fn func(Phase)) ControllerOption {
	return func(c *Controller) { c.onPhase = fn }
}

// NewController mounts a controller: it subscribes to source and records
// the current theme as applied.
func NewController(source Source, sched schedule.Scheduler, widget Widget, opts ...ControllerOption) *Controller {
	c := &Controller{
		source:   source,
		sched:    sched,
		widget:   widget,
		logger:   zap.NewNop(),
		throttle: DefaultThrottle,
		delay:    DefaultTransitionDelay,
		dim:      DefaultDimOpacity,
		phase:    PhaseIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.applied = source.Theme()
	c.latest = c.applied
	c.unsubscribe = source.Subscribe(c.onTheme)
	return c
}

// RegisterChart makes h the live handle, destroying any previous one first.
// A nil handle, or the handle already registered, is ignored. After
// Dispose the handle is destroyed at once.
func (c *Controller) RegisterChart(h Handle) {
	if h == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		c.safeDestroy(h)
		return
	}
	if c.handle == h {
		return
	}
	c.destroyLocked()
	c.handle = h
}

// DestroyChart destroys the live handle, if any.
func (c *Controller) DestroyChart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyLocked()
}

// UpdateData applies data to the live handle on the next frame, without
// animation and without touching the container or the phase. Only the
// latest data of a frame is applied. Data arriving while no handle is
// registered is dropped.
func (c *Controller) UpdateData(data Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.pendingData = &data
	if c.cancelData == nil {
		c.cancelData = c.sched.Frame(c.flushData)
	}
}

// Dispose unsubscribes, cancels pending work and destroys the live handle.
// It is safe mid-transition and idempotent.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	for _, cancel := range []schedule.Cancel{c.cancelThrottle, c.cancelStep, c.cancelData} {
		if cancel != nil {
			cancel()
		}
	}
	c.cancelThrottle, c.cancelStep, c.cancelData = nil, nil, nil
	c.pendingData = nil

	c.destroyLocked()
	if c.phase != PhaseIdle {
		c.setOpacity(1)
		c.phase = PhaseIdle
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.logger.Debug("chart controller disposed", zap.Int("transitions", c.Transitions()))
}

// Phase returns the current transition phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// State returns idle or transitioning.
func (c *Controller) State() State {
	if c.Phase() == PhaseIdle {
		return StateIdle
	}
	return StateTransitioning
}

// AppliedTheme is the theme the live widget was built for.
func (c *Controller) AppliedTheme() theme.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}

// Handle returns the live handle, or nil.
func (c *Controller) Handle() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Transitions counts completed transitions.
func (c *Controller) Transitions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitions
}

// Disposed reports whether Dispose was called.
func (c *Controller) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func (c *Controller) onTheme(t theme.Theme) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.latest = t
	if c.cancelThrottle == nil {
		c.cancelThrottle = c.sched.After(c.throttle, c.detect)
	}
}

func (c *Controller) detect() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.cancelThrottle = nil
	phases := c.startLocked()
	c.mu.Unlock()

	c.notify(phases)
}

// startLocked begins a transition when idle and the latest theme differs
// from the applied one.
func (c *Controller) startLocked() []Phase {
	if c.phase != PhaseIdle || c.latest == c.applied {
		return nil
	}
	c.target = c.latest
	c.phase = PhaseFadingOut
	c.setOpacity(c.dim)
	c.cancelStep = c.sched.Frame(c.afterFrame)

	c.logger.Debug("chart transition started",
		zap.String("from", string(c.applied)),
		zap.String("to", string(c.target)))
	return []Phase{PhaseFadingOut}
}

func (c *Controller) afterFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.cancelStep = c.sched.After(c.delay, c.finish)
}

func (c *Controller) finish() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.cancelStep = nil

	c.phase = PhaseRebuilding
	c.destroyLocked()
	c.phase = PhaseFadingIn
	c.setOpacity(1)
	c.phase = PhaseIdle
	c.applied = c.target
	c.transitions++
	applied := c.applied
	rebuild := c.onRebuild
	c.mu.Unlock()

	c.notify([]Phase{PhaseRebuilding, PhaseFadingIn, PhaseIdle})
	if rebuild != nil {
		rebuild(applied)
	}

	// A flip that arrived mid-transition starts the next one now unless a
	// throttle check is already pending.
	c.mu.Lock()
	var phases []Phase
	if !c.disposed && c.cancelThrottle == nil {
		phases = c.startLocked()
	}
	c.mu.Unlock()
	c.notify(phases)
}

func (c *Controller) flushData() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelData = nil
	if c.disposed || c.pendingData == nil {
		return
	}
	data := *c.pendingData
	c.pendingData = nil

	if c.handle == nil {
		c.logger.Debug("dropping chart data, no live widget", zap.String("series", data.Name))
		return
	}
	if err := c.safeUpdate(c.handle, data); err != nil {
		c.logger.Warn("chart update failed", zap.String("handle", c.handle.ID()), zap.Error(err))
	}
}

func (c *Controller) destroyLocked() {
	if c.handle == nil {
		return
	}
	h := c.handle
	c.handle = nil
	c.safeDestroy(h)
}

func (c *Controller) safeDestroy(h Handle) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("chart destroy panicked", zap.Any("panic", r))
		}
	}()
	if err := c.widget.Destroy(h); err != nil {
		c.logger.Warn("chart destroy failed", zap.String("handle", h.ID()), zap.Error(err))
	}
}

func (c *Controller) safeUpdate(h Handle, data Series) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chart update panic: %v", r)
		}
	}()
	return c.widget.Update(h, data, UpdateImmediate)
}

func (c *Controller) setOpacity(o float64) {
	if c.container != nil {
		c.container.SetOpacity(o)
	}
}

func (c *Controller) notify(phases []Phase) {
	if c.onPhase == nil {
		return
	}
	for _, p := range phases {
		c.onPhase(p)
	}
}
