package config

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/getmockd/mockresolver/pkg/logging"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Watch calls reload after files under path change and then stay quiet for
// debounce. path may be a collection file or a directory; directories are
// watched recursively, including subdirectories created later. Hidden
// files are ignored. Close stops the watcher and waits for a running
// reload to return.
func Watch(path string, debounce time.Duration, log *slog.Logger, reload func()) (io.Closer, error) {
	if log == nil {
		log = logging.Nop()
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, statError(path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// A single file is watched through its directory so editors that save
	// by rename keep triggering.
	file := ""
	root := path
	if !info.IsDir() {
		file = path
		root = filepath.Dir(path)
		err = watcher.Add(root)
	} else {
		err = addWatchRecursive(watcher, root)
	}
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	triggerCh := make(chan struct{}, 1)

	go func() {
		defer close(doneCh)
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		resetTimer := func() {
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
			timerC = timer.C
		}

		for {
			select {
			case <-stopCh:
				if timer != nil {
					timer.Stop()
				}
				return
			case <-timerC:
				timerC = nil
				reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "error", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if file == "" && evt.Op&fsnotify.Create != 0 {
					if fi, statErr := os.Stat(evt.Name); statErr == nil && fi.IsDir() {
						if addErr := addWatchRecursive(watcher, evt.Name); addErr != nil {
							log.Warn("config watcher add failed", "path", evt.Name, "error", addErr)
						}
					}
				}
				if shouldTriggerReload(evt, file) {
					select {
					case triggerCh <- struct{}{}:
					default:
					}
				}
			case <-triggerCh:
				resetTimer()
			}
		}
	}()

	log.Info("watching configuration", "path", path, "debounce", debounce)
	return closerFunc(func() error {
		close(stopCh)
		err := watcher.Close()
		<-doneCh
		return err
	}), nil
}

// shouldTriggerReload filters watcher events. When file is set only events
// for that file count.
func shouldTriggerReload(evt fsnotify.Event, file string) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if file != "" {
		return filepath.Clean(evt.Name) == file
	}
	return !strings.HasPrefix(filepath.Base(evt.Name), ".")
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
