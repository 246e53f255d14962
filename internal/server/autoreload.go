package server

import (
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/simonswine/jsonnet-exporter/internal/logx"
	"github.com/simonswine/jsonnet-exporter/pkg/config"
)

// installAutoReload calls reload after files next to the config, the module
// files or the library paths change. Bursts of events within debounce are
// collapsed into one reload.
func installAutoReload(cfg *config.Config, debounce time.Duration, reload func() error) (io.Closer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addWatchTargets(watcher, cfg); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
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
				if err := reload(); err != nil {
					logx.Errorf("reload failed (watch): %v", err)
					continue
				}
				logx.Infof("reload ok (watch): config=%q", cfg.Path())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logx.Warnf("auto-reload watcher error: %v", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if shouldTriggerReload(evt) {
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

	logx.Infof("auto-reload enabled: config=%q debounce=%s", cfg.Path(), debounce)
	return closerFunc(func() error {
		close(stopCh)
		_ = watcher.Close()
		<-doneCh
		return nil
	}), nil
}

// watchDirs lists the directories holding the config file and the module
// files. Directories are watched instead of files so editors that replace
// files on save keep triggering events.
func watchDirs(cfg *config.Config) []string {
	seen := map[string]struct{}{}
	add := func(p string) {
		if strings.TrimSpace(p) == "" {
			return
		}
		seen[filepath.Dir(p)] = struct{}{}
	}
	add(cfg.Path())
	for _, p := range cfg.ModulePaths() {
		add(p)
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func addWatchTargets(watcher *fsnotify.Watcher, cfg *config.Config) error {
	for _, dir := range watchDirs(cfg) {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}
	for _, dir := range cfg.Jsonnet.LibraryPaths {
		if err := addWatchRecursive(watcher, dir); err != nil {
			logx.Warnf("auto-reload skipped library path: path=%q err=%v", dir, err)
		}
	}
	return nil
}

func shouldTriggerReload(evt fsnotify.Event) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(evt.Name)
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "~")
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
