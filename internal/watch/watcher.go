// Package watch turns file saves under the workspace into refresh triggers.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tfview/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultIgnore lists directory names that never hold interesting saves.
var DefaultIgnore = []string{".git", "$tf", ".tf", ".tfview", "node_modules", "vendor", "dist", "build"}

type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	ignore  map[string]bool
	onSave  func(path string)
	logger  *logging.Logger
}

// New watches every directory under root. onSave runs on the watcher goroutine.
func New(root string, onSave func(path string), logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:    root,
		watcher: fw,
		ignore:  make(map[string]bool, len(DefaultIgnore)),
		onSave:  onSave,
		logger:  logger,
	}
	for _, name := range DefaultIgnore {
		w.ignore[name] = true
	}

	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// ShouldIgnore reports whether path lies inside an ignored directory.
func (w *Watcher) ShouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if w.ignore[part] {
			return true
		}
	}
	return false
}

// Close releases the watcher without running it.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if w.ShouldIgnore(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
		w.logger.Debug("file saved", zap.String("path", event.Name), zap.String("op", event.Op.String()))
		w.onSave(event.Name)
	}
}
