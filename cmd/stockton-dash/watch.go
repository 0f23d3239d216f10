package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// settingsChangedMsg is sent when the settings database changes on disk,
// for example after `stockton settings set` in another terminal.
type settingsChangedMsg struct{}

// settingsWatcher watches the directory holding the settings database.
type settingsWatcher struct {
	w    *fsnotify.Watcher
	base string
	log  *slog.Logger
}

// watchSettings creates a watcher for the directory of dbPath. Returns nil if
// the directory doesn't exist or watcher creation fails; the dashboard then
// only reloads settings on focus and manual refresh.
func watchSettings(dbPath string, logger *slog.Logger) *settingsWatcher {
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); err != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("fsnotify: failed to create watcher", "error", err)
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close() // Best effort close
		logger.Warn("fsnotify: failed to watch directory", "dir", dir, "error", err)
		return nil
	}
	return &settingsWatcher{w: watcher, base: filepath.Base(dbPath), log: logger}
}

// relevant reports whether an event touches the database or its journal files.
func (s *settingsWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return strings.HasPrefix(filepath.Base(ev.Name), s.base)
}

// next returns a tea.Cmd that blocks until a relevant change settles and then
// yields settingsChangedMsg. Re-issue it after every message.
func (s *settingsWatcher) next() tea.Cmd {
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		debounceTimer := newDebounceTimer()
		defer debounceTimer.Stop()

		for {
			select {
			case event, ok := <-s.w.Events:
				if !ok {
					return nil
				}
				if s.relevant(event) {
					resetDebounceTimer(debounceTimer)
				}

			case <-debounceTimer.C:
				return settingsChangedMsg{}

			case err, ok := <-s.w.Errors:
				if !ok {
					return nil
				}
				s.log.Warn("fsnotify: watcher error", "error", err)
			}
		}
	}
}

func (s *settingsWatcher) close() {
	if s != nil {
		_ = s.w.Close()
	}
}

// newDebounceTimer creates a stopped timer for debouncing file system events.
func newDebounceTimer() *time.Timer {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	return timer
}

// resetDebounceTimer restarts the debounce window; sqlite touches several
// files per write.
func resetDebounceTimer(timer *time.Timer) {
	const debounceDuration = 150 * time.Millisecond
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(debounceDuration)
}
