package theme

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileDetector reads the theme from a small text file containing "dark" or
// "light", as written by desktop mode switchers, and watches it for changes.
type FileDetector struct {
	path   string
	logger *zap.Logger
}

// NewFileDetector watches path. A nil logger discards watch errors.
func NewFileDetector(path string, logger *zap.Logger) *FileDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileDetector{path: filepath.Clean(path), logger: logger}
}

func (*FileDetector) Name() string  { return "file" }
func (*FileDetector) Priority() int { return 30 }

func (d *FileDetector) Available() bool {
	return d.path != "" && d.path != "."
}

func (d *FileDetector) Detect() (Theme, bool) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return "", false
	}
	return ParseTheme(string(data))
}

// Watch observes the file's directory so that editors replacing the file
// atomically are seen too.
func (d *FileDetector) Watch(ctx context.Context, onChange func(Theme)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating theme file watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(d.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(d.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != d.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if t, ok := d.Detect(); ok {
				onChange(t)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("theme file watch error", zap.String("path", d.path), zap.Error(err))
		}
	}
}
