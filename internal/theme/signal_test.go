package theme

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubDetector struct {
	name      string
	priority  int
	available bool
	theme     Theme
	ok        bool
}

func (d *stubDetector) Name() string          { return d.name }
func (d *stubDetector) Priority() int         { return d.priority }
func (d *stubDetector) Available() bool       { return d.available }
func (d *stubDetector) Detect() (Theme, bool) { return d.theme, d.ok }

type brokenPrefs struct{}

var errStorage = errors.New("storage unavailable")

func (brokenPrefs) Get(string) (string, bool, error) { return "", false, errStorage }
func (brokenPrefs) Set(string, string) error         { return errStorage }

func newSignal(t *testing.T, opts ...Option) *Signal {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	s := NewSignal(opts...)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(s.Dispose)
	return s
}

func TestInitWithoutPreferenceUsesSystemMode(t *testing.T) {
	s := newSignal(t, WithDetectors(&stubDetector{name: "stub", available: true, theme: Dark, ok: true}))

	assert.Equal(t, ModeSystem, s.Mode())
	assert.Equal(t, Dark, s.Theme())
}

func TestInitFallsBackToLight(t *testing.T) {
	s := newSignal(t, WithDetectors(&stubDetector{name: "none", available: true}))

	assert.Equal(t, ModeSystem, s.Mode())
	assert.Equal(t, Light, s.Theme())
	_, source := s.SystemTheme()
	assert.Equal(t, "fallback", source)
}

func TestInitLoadsPersistedMode(t *testing.T) {
	prefs := NewMemoryPreferences()
	require.NoError(t, prefs.Set(DefaultPreferenceKey, "dark"))

	s := newSignal(t, WithPreferences(prefs))

	assert.Equal(t, ModeDark, s.Mode())
	assert.Equal(t, Dark, s.Theme())
}

func TestInitStorageErrorUsesLight(t *testing.T) {
	s := newSignal(t,
		WithPreferences(brokenPrefs{}),
		WithDetectors(&stubDetector{name: "stub", available: true, theme: Dark, ok: true}))

	assert.Equal(t, ModeLight, s.Mode())
	assert.Equal(t, Light, s.Theme())

	// Persistence failures never surface.
	require.NoError(t, s.SetMode(ModeDark))
	assert.Equal(t, Dark, s.Theme())
}

func TestDetectorPriority(t *testing.T) {
	low := &stubDetector{name: "low", priority: 1, available: true, theme: Light, ok: true}
	high := &stubDetector{name: "high", priority: 9, available: true, theme: Dark, ok: true}
	off := &stubDetector{name: "off", priority: 99, available: false, theme: Light, ok: true}

	got, source := detect([]Detector{low, off, high})
	assert.Equal(t, Dark, got)
	assert.Equal(t, "high", source)
}

func TestSetModePersistsAndNotifies(t *testing.T) {
	prefs := NewMemoryPreferences()
	s := newSignal(t, WithPreferences(prefs), WithPreferenceKey("ui.theme"))

	var got []Theme
	s.Subscribe(func(th Theme) { got = append(got, th) })

	require.NoError(t, s.SetMode(ModeDark))
	require.NoError(t, s.SetMode(ModeDark))
	require.NoError(t, s.SetMode(ModeLight))

	assert.Equal(t, []Theme{Dark, Light}, got)
	v, ok, _ := prefs.Get("ui.theme")
	assert.True(t, ok)
	assert.Equal(t, "light", v)
}

func TestSetModeRejectsInvalid(t *testing.T) {
	s := newSignal(t)
	err := s.SetMode(Mode("sepia"))
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, ModeSystem, s.Mode())
}

func TestSystemThemeOnlyAppliesInSystemMode(t *testing.T) {
	s := newSignal(t)

	s.SetSystemTheme(Dark)
	assert.Equal(t, Dark, s.Theme())

	require.NoError(t, s.SetMode(ModeLight))
	s.SetSystemTheme(Light)
	s.SetSystemTheme(Dark)
	assert.Equal(t, Light, s.Theme())

	require.NoError(t, s.SetMode(ModeSystem))
	assert.Equal(t, Dark, s.Theme())

	s.SetSystemTheme(Theme("neon"))
	assert.Equal(t, Dark, s.Theme())
}

func TestToggle(t *testing.T) {
	s := newSignal(t)

	assert.Equal(t, Dark, s.Toggle())
	assert.Equal(t, ModeDark, s.Mode())
	assert.Equal(t, Light, s.Toggle())
	assert.Equal(t, ModeLight, s.Mode())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	s := newSignal(t)

	calls := 0
	unsubscribe := s.Subscribe(func(Theme) { calls++ })
	other := s.Subscribe(func(Theme) {})
	assert.Equal(t, 2, s.Listeners())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, s.Listeners())

	s.Toggle()
	assert.Zero(t, calls)
	other()
	assert.Zero(t, s.Listeners())
}

// TestNestedChangeIsQueued verifies a listener changing the mode neither
// deadlocks nor reorders emissions.
func TestNestedChangeIsQueued(t *testing.T) {
	s := newSignal(t)

	var got []Theme
	s.Subscribe(func(th Theme) {
		got = append(got, th)
		if th == Dark {
			_ = s.SetMode(ModeLight)
		}
	})
	var second []Theme
	s.Subscribe(func(th Theme) { second = append(second, th) })

	require.NoError(t, s.SetMode(ModeDark))

	assert.Equal(t, []Theme{Dark, Light}, got)
	assert.Equal(t, []Theme{Dark, Light}, second)
}

// TestUnsubscribeDuringEmission verifies a listener removed by an earlier
// listener in the same round is not called.
func TestUnsubscribeDuringEmission(t *testing.T) {
	s := newSignal(t)

	var unsubscribeSecond func()
	s.Subscribe(func(Theme) { unsubscribeSecond() })
	called := false
	unsubscribeSecond = s.Subscribe(func(Theme) { called = true })

	s.Toggle()
	assert.False(t, called)
}

func TestDisposeDropsListeners(t *testing.T) {
	s := NewSignal()
	require.NoError(t, s.Init(context.Background()))

	called := false
	s.Subscribe(func(Theme) { called = true })
	s.Dispose()
	s.Dispose()

	s.Toggle()
	assert.False(t, called)
	assert.Zero(t, s.Listeners())
	assert.ErrorIs(t, s.Init(context.Background()), ErrDisposed)
}

func TestConcurrentChanges(t *testing.T) {
	s := newSignal(t)

	var mu sync.Mutex
	seen := 0
	s.Subscribe(func(Theme) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Toggle()
				_ = s.Theme()
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, seen)
	assert.True(t, s.Theme().Valid())
}

func TestEnvDetector(t *testing.T) {
	tests := []struct {
		value string
		want  Theme
		ok    bool
	}{
		{"15;0", Dark, true},
		{"0;15", Light, true},
		{"default;8", Dark, true},
		{"12;default;7", Light, true},
		{"garbage", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("COLORFGBG", tt.value)
			d := NewEnvDetector()
			assert.True(t, d.Available())
			got, ok := d.Detect()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unset", func(t *testing.T) {
		t.Setenv("COLORFGBG", "")
		assert.False(t, NewEnvDetector().Available())
	})
}

func TestFileDetectorWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "color-scheme")
	require.NoError(t, os.WriteFile(path, []byte("prefer-light\n"), 0o644))

	s := newSignal(t, WithDetectors(NewFileDetector(path, zaptest.NewLogger(t))))
	assert.Equal(t, Light, s.Theme())

	changed := make(chan Theme, 4)
	s.Subscribe(func(th Theme) { changed <- th })

	// The watcher goroutine may not have registered yet; rewrite until seen.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("prefer-dark\n"), 0o644)
		return s.Theme() == Dark
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, Dark, <-changed)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Dark ")
	require.NoError(t, err)
	assert.Equal(t, ModeDark, m)

	_, err = ParseMode("auto")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestPaletteForIsFresh(t *testing.T) {
	a := PaletteFor(Dark)
	a.Series[0] = "#000000"
	b := PaletteFor(Dark)

	assert.NotEqual(t, "#000000", b.Series[0])
	assert.NotEqual(t, PaletteFor(Light).Background, b.Background)
	assert.Equal(t, b.Success, b.HealthColor(80))
	assert.Equal(t, b.Warning, b.HealthColor(50))
	assert.Equal(t, b.Danger, b.HealthColor(10))
	assert.Equal(t, b.Series[1], b.SeriesColor(len(b.Series)+1))
}
