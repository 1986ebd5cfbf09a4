package chart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Mr-Dark-debug/pulse/internal/schedule"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ============================================================
// Fakes
// ============================================================

type fakeHandle struct{ id string }

func (h *fakeHandle) ID() string { return h.id }

type fakeWidget struct {
	mu         sync.Mutex
	next       int
	live       map[string]bool
	maxLive    int
	calls      []string
	updates    []Series
	destroyErr error
	panicOn    string
}

func newFakeWidget() *fakeWidget {
	return &fakeWidget{live: make(map[string]bool)}
}

func (w *fakeWidget) Render(data Series, opts Options) (Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	h := &fakeHandle{id: fmt.Sprintf("w-%d", w.next)}
	w.live[h.id] = true
	if len(w.live) > w.maxLive {
		w.maxLive = len(w.live)
	}
	w.calls = append(w.calls, "render:"+h.id+":"+string(opts.Palette.Theme))
	return h, nil
}

func (w *fakeWidget) Update(h Handle, data Series, mode UpdateMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "update:"+h.ID())
	w.updates = append(w.updates, data)
	if !w.live[h.ID()] {
		return errors.New("update on dead handle")
	}
	return nil
}

func (w *fakeWidget) Destroy(h Handle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "destroy:"+h.ID())
	if w.panicOn == "destroy" {
		panic("boom")
	}
	delete(w.live, h.ID())
	return w.destroyErr
}

// register renders a widget for t and registers it with c.
func (w *fakeWidget) register(t *testing.T, c *Controller, th theme.Theme) Handle {
	t.Helper()
	h, err := w.Render(Series{Name: "revenue"}, Options{Palette: theme.PaletteFor(th)})
	require.NoError(t, err)
	c.RegisterChart(h)
	return h
}

func (w *fakeWidget) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

type fakeContainer struct {
	opacities []float64
}

func (c *fakeContainer) SetOpacity(o float64) { c.opacities = append(c.opacities, o) }

type fakeSource struct {
	mu        sync.Mutex
	theme     theme.Theme
	listeners map[int]func(theme.Theme)
	nextID    int
}

func newFakeSource(t theme.Theme) *fakeSource {
	return &fakeSource{theme: t, listeners: make(map[int]func(theme.Theme))}
}

func (s *fakeSource) Theme() theme.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

func (s *fakeSource) Subscribe(fn func(theme.Theme)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *fakeSource) Emit(t theme.Theme) {
	s.mu.Lock()
	s.theme = t
	fns := make([]func(theme.Theme), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(t)
	}
}

func (s *fakeSource) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

type harness struct {
	source    *fakeSource
	clock     *schedule.Manual
	widget    *fakeWidget
	container *fakeContainer
	ctrl      *Controller
	rebuilds  []theme.Theme
	phases    []Phase
}

// fullTransition is throttle + frame + delay with the default timings.
const fullTransition = DefaultThrottle + schedule.FrameInterval + DefaultTransitionDelay

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source:    newFakeSource(theme.Light),
		clock:     schedule.NewManual(),
		widget:    newFakeWidget(),
		container: &fakeContainer{},
	}
	h.ctrl = NewController(h.source, h.clock, h.widget,
		WithContainer(h.container),
		WithLogger(zaptest.NewLogger(t)),
		OnRebuild(func(th theme.Theme) {
			h.rebuilds = append(h.rebuilds, th)
			h.widget.register(t, h.ctrl, th)
		}),
		OnPhaseChange(func(p Phase) { h.phases = append(h.phases, p) }),
	)
	t.Cleanup(h.ctrl.Dispose)
	return h
}

// ============================================================
// Transitions
// ============================================================

func TestMountRecordsAppliedTheme(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, theme.Light, h.ctrl.AppliedTheme())
	assert.Equal(t, PhaseIdle, h.ctrl.Phase())
	assert.Equal(t, StateIdle, h.ctrl.State())
	assert.Equal(t, 1, h.source.Listeners())
}

func TestTransitionSequence(t *testing.T) {
	h := newHarness(t)
	first := h.widget.register(t, h.ctrl, theme.Light)

	h.source.Emit(theme.Dark)
	assert.Equal(t, PhaseIdle, h.ctrl.Phase(), "throttled")

	h.clock.Advance(DefaultThrottle)
	assert.Equal(t, PhaseFadingOut, h.ctrl.Phase())
	assert.Equal(t, StateTransitioning, h.ctrl.State())
	assert.Equal(t, []float64{DefaultDimOpacity}, h.container.opacities)
	assert.Equal(t, first, h.ctrl.Handle(), "old widget lives until the delay passes")

	h.clock.Advance(schedule.FrameInterval)
	h.clock.Advance(DefaultTransitionDelay - time.Millisecond)
	assert.Equal(t, PhaseFadingOut, h.ctrl.Phase())

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, PhaseIdle, h.ctrl.Phase())
	assert.Equal(t, theme.Dark, h.ctrl.AppliedTheme())
	assert.Equal(t, []float64{DefaultDimOpacity, 1}, h.container.opacities)
	assert.Equal(t, []theme.Theme{theme.Dark}, h.rebuilds)
	assert.Equal(t, []Phase{PhaseFadingOut, PhaseRebuilding, PhaseFadingIn, PhaseIdle}, h.phases)
	assert.Equal(t, 1, h.ctrl.Transitions())

	assert.Equal(t, []string{
		"render:w-1:light",
		"destroy:w-1",
		"render:w-2:dark",
	}, h.widget.Calls())
	require.NotNil(t, h.ctrl.Handle())
	assert.Equal(t, "w-2", h.ctrl.Handle().ID())
	assert.Equal(t, 1, h.widget.maxLive)
}

func TestThrottleCoalescesFlips(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.source.Emit(theme.Dark)
	h.clock.Advance(20 * time.Millisecond)
	h.source.Emit(theme.Light)
	h.clock.Advance(20 * time.Millisecond)
	h.source.Emit(theme.Dark)

	h.clock.Advance(time.Second)

	assert.Equal(t, 1, h.ctrl.Transitions())
	assert.Equal(t, []theme.Theme{theme.Dark}, h.rebuilds)
}

func TestFlipBackInsideThrottleIsNoop(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.source.Emit(theme.Dark)
	h.source.Emit(theme.Light)
	h.clock.Advance(time.Second)

	assert.Zero(t, h.ctrl.Transitions())
	assert.Empty(t, h.container.opacities)
	assert.Equal(t, []string{"render:w-1:light"}, h.widget.Calls())
}

func TestFlipsDuringTransitionAreCoalesced(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.source.Emit(theme.Dark)
	h.clock.Advance(DefaultThrottle)
	require.Equal(t, PhaseFadingOut, h.ctrl.Phase())

	// Three flips mid-transition ending on light.
	h.source.Emit(theme.Light)
	h.source.Emit(theme.Dark)
	h.source.Emit(theme.Light)
	h.clock.Advance(DefaultThrottle)
	assert.Equal(t, PhaseFadingOut, h.ctrl.Phase(), "no second transition while one is in flight")

	h.clock.Advance(time.Second)
	h.clock.Advance(time.Second)

	assert.Equal(t, 2, h.ctrl.Transitions())
	assert.Equal(t, []theme.Theme{theme.Dark, theme.Light}, h.rebuilds)
	assert.Equal(t, theme.Light, h.ctrl.AppliedTheme())
	assert.Equal(t, 1, h.widget.maxLive)
}

func TestPendingFlipStartsImmediatelyOnCompletion(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.source.Emit(theme.Dark)
	h.clock.Advance(DefaultThrottle)
	h.source.Emit(theme.Light)
	// Let the mid-transition throttle expire before the transition ends.
	h.clock.Advance(DefaultThrottle)
	h.clock.Advance(schedule.FrameInterval + DefaultTransitionDelay - DefaultThrottle)

	assert.Equal(t, 1, h.ctrl.Transitions())
	assert.Equal(t, PhaseFadingOut, h.ctrl.Phase(), "next transition began without waiting for a new notification")
}

func TestTransitionWithoutHandle(t *testing.T) {
	h := newHarness(t)

	h.source.Emit(theme.Dark)
	h.clock.Advance(fullTransition)

	assert.Equal(t, 1, h.ctrl.Transitions())
	assert.Equal(t, []string{"render:w-1:dark"}, h.widget.Calls())
}

func TestCustomTimings(t *testing.T) {
	source := newFakeSource(theme.Dark)
	clock := schedule.NewManual()
	container := &fakeContainer{}
	ctrl := NewController(source, clock, newFakeWidget(),
		WithThrottle(10*time.Millisecond),
		WithTransitionDelay(50*time.Millisecond),
		WithDimOpacity(0.5),
		WithContainer(container))
	defer ctrl.Dispose()

	source.Emit(theme.Light)
	clock.Advance(10*time.Millisecond + schedule.FrameInterval + 50*time.Millisecond)

	assert.Equal(t, theme.Light, ctrl.AppliedTheme())
	assert.Equal(t, []float64{0.5, 1}, container.opacities)
}

// ============================================================
// Registration
// ============================================================

func TestDoubleRegisterDestroysPrevious(t *testing.T) {
	h := newHarness(t)

	h.widget.register(t, h.ctrl, theme.Light)
	h.widget.register(t, h.ctrl, theme.Light)

	assert.Equal(t, []string{
		"render:w-1:light",
		"render:w-2:light",
		"destroy:w-1",
	}, h.widget.Calls())
	assert.Equal(t, "w-2", h.ctrl.Handle().ID())
	assert.Len(t, h.widget.live, 1)
}

func TestRegisterSameHandleKeepsItLive(t *testing.T) {
	h := newHarness(t)
	first := h.widget.register(t, h.ctrl, theme.Light)

	h.ctrl.RegisterChart(first)
	h.ctrl.UpdateData(Series{Name: "revenue"})
	h.clock.Advance(schedule.FrameInterval)

	assert.Equal(t, []string{"render:w-1:light", "update:w-1"}, h.widget.Calls())
	assert.Equal(t, "w-1", h.ctrl.Handle().ID())
	assert.Len(t, h.widget.live, 1)
}

func TestRegisterNilIsNoop(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.ctrl.RegisterChart(nil)
	assert.Equal(t, "w-1", h.ctrl.Handle().ID())
}

func TestDestroyChartIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.ctrl.DestroyChart()
	h.ctrl.DestroyChart()

	assert.Nil(t, h.ctrl.Handle())
	assert.Equal(t, []string{"render:w-1:light", "destroy:w-1"}, h.widget.Calls())
}

func TestDestroyFailuresAreSwallowed(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)
	h.widget.destroyErr = errors.New("already gone")

	assert.NotPanics(t, h.ctrl.DestroyChart)
	assert.Nil(t, h.ctrl.Handle())

	h.widget.destroyErr = nil
	h.widget.register(t, h.ctrl, theme.Light)
	h.widget.panicOn = "destroy"
	assert.NotPanics(t, h.ctrl.Dispose)
}

// ============================================================
// Data updates
// ============================================================

func TestUpdateDataDoesNotDim(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.ctrl.UpdateData(Series{Name: "a"})
	h.ctrl.UpdateData(Series{Name: "b"})
	assert.Empty(t, h.widget.updates, "applied on the next frame")

	h.clock.Advance(schedule.FrameInterval)

	require.Len(t, h.widget.updates, 1)
	assert.Equal(t, "b", h.widget.updates[0].Name)
	assert.Empty(t, h.container.opacities)
	assert.Empty(t, h.phases)
	assert.Equal(t, PhaseIdle, h.ctrl.Phase())
	assert.Zero(t, h.ctrl.Transitions())
}

func TestUpdateDataWithoutHandleIsDropped(t *testing.T) {
	h := newHarness(t)

	h.ctrl.UpdateData(Series{Name: "orphan"})
	h.clock.Advance(schedule.FrameInterval)
	h.widget.register(t, h.ctrl, theme.Light)
	h.clock.Advance(time.Second)

	assert.Empty(t, h.widget.updates)
}

func TestUpdateDataMidTransitionTargetsLiveHandle(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.source.Emit(theme.Dark)
	h.clock.Advance(DefaultThrottle)
	h.ctrl.UpdateData(Series{Name: "mid"})
	h.clock.Advance(schedule.FrameInterval)

	require.Len(t, h.widget.updates, 1)
	assert.Equal(t, []float64{DefaultDimOpacity}, h.container.opacities)
	assert.Contains(t, h.widget.Calls(), "update:w-1")
}

// ============================================================
// Disposal
// ============================================================

func TestDisposeMidTransition(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.source.Emit(theme.Dark)
	h.clock.Advance(DefaultThrottle + schedule.FrameInterval)
	require.Equal(t, PhaseFadingOut, h.ctrl.Phase())
	h.ctrl.UpdateData(Series{Name: "late"})

	h.ctrl.Dispose()
	callsAtDispose := h.widget.Calls()

	h.source.Emit(theme.Light)
	h.clock.Advance(10 * time.Second)

	assert.Equal(t, callsAtDispose, h.widget.Calls(), "no widget calls after dispose")
	assert.Equal(t, []string{"render:w-1:light", "destroy:w-1"}, callsAtDispose)
	assert.Zero(t, h.clock.Pending())
	assert.Zero(t, h.source.Listeners())
	assert.Empty(t, h.rebuilds)
	assert.Equal(t, PhaseIdle, h.ctrl.Phase())
	assert.Equal(t, 1.0, h.container.opacities[len(h.container.opacities)-1])
}

func TestDisposeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.widget.register(t, h.ctrl, theme.Light)

	h.ctrl.Dispose()
	h.ctrl.Dispose()

	assert.True(t, h.ctrl.Disposed())
	assert.Equal(t, []string{"render:w-1:light", "destroy:w-1"}, h.widget.Calls())
}

func TestRegisterAfterDisposeDestroysHandle(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Dispose()

	h.widget.register(t, h.ctrl, theme.Light)

	assert.Nil(t, h.ctrl.Handle())
	assert.Empty(t, h.widget.live)
}

// TestWithThemeSignal drives the controller from the real theme signal and
// real timers posted to a loop.
func TestWithThemeSignal(t *testing.T) {
	signal := theme.NewSignal()
	require.NoError(t, signal.Init(t.Context()))
	defer signal.Dispose()

	loop := schedule.NewLoop()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	widget := newFakeWidget()
	rebuilt := make(chan theme.Theme, 1)
	var ctrl *Controller
	ctrl = NewController(signal, schedule.NewTimers(loop.Post), widget,
		WithThrottle(5*time.Millisecond),
		WithTransitionDelay(5*time.Millisecond),
		OnRebuild(func(th theme.Theme) {
			h, _ := widget.Render(Series{}, Options{Palette: theme.PaletteFor(th)})
			ctrl.RegisterChart(h)
			rebuilt <- th
		}))
	defer ctrl.Dispose()

	require.NoError(t, signal.SetMode(theme.ModeDark))

	select {
	case th := <-rebuilt:
		assert.Equal(t, theme.Dark, th)
	case <-time.After(5 * time.Second):
		t.Fatal("controller never rebuilt")
	}
	require.NoError(t, loop.Do(ctx, func() {}))
	assert.Equal(t, theme.Dark, ctrl.AppliedTheme())
}
