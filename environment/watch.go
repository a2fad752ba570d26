package environment

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// watcher reports changes below a set of template directories.
type watcher struct {
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	onChange func(path string)
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// newWatcher watches every directory in dirs recursively and calls onChange
// for each create, write, remove or rename event. Directories that do not
// exist are skipped.
func newWatcher(logger *slog.Logger, dirs []string, onChange func(path string)) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &watcher{
		logger:   logger,
		fsw:      fsw,
		onChange: onChange,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logger.Warn("Not watching missing template directory", "dir", dir)
			continue
		}
		if err = w.watchDirectory(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	go w.watchFiles()
	return w, nil
}

// watchDirectory adds dir and its subdirectories, skipping hidden ones.
func (w *watcher) watchDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *watcher) watchFiles() {
	defer close(w.done)
	const changeOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// New directories need watching too.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !strings.HasPrefix(filepath.Base(event.Name), ".") {
					if err = w.watchDirectory(event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
					}
				}
			}
			if event.Op&changeOps != 0 {
				w.onChange(event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Template watcher error", "error", err)
		case <-w.stopChan:
			return
		}
	}
}

// stop stops the watcher and waits for its event loop to exit.
func (w *watcher) stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		err = w.fsw.Close()
		<-w.done
	})
	return err
}
