package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockton/internal/logging"
)

// TestSettingsWatcher verifies that a write to the settings database yields
// settingsChangedMsg, while unrelated files in the directory are ignored.
func TestSettingsWatcher(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "settings.db")

	w := watchSettings(dbPath, logging.Discard())
	if w == nil {
		t.Fatal("watchSettings returned nil for an existing directory")
	}
	defer w.close()

	msgChan := make(chan tea.Msg, 1)
	go func() {
		msgChan <- w.next()()
	}()

	// Give watcher time to initialize
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-msgChan:
		t.Fatalf("unrelated file triggered %T", msg)
	case <-time.After(400 * time.Millisecond):
	}

	if err := os.WriteFile(dbPath+"-journal", []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-msgChan:
		if _, ok := msg.(settingsChangedMsg); !ok {
			t.Errorf("expected settingsChangedMsg, got %T", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for settingsChangedMsg")
	}
}

func TestSettingsWatcher_SurvivesWatcherError(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "settings.db")

	w := watchSettings(dbPath, logging.Discard())
	if w == nil {
		t.Fatal("watchSettings returned nil for an existing directory")
	}
	defer w.close()

	msgChan := make(chan tea.Msg, 1)
	go func() {
		msgChan <- w.next()()
	}()

	select {
	case w.w.Errors <- errors.New("queue overflow"):
	case <-time.After(time.Second):
		t.Fatal("watcher did not read its error channel")
	}
	select {
	case msg := <-msgChan:
		t.Fatalf("watcher error ended the wait with %T", msg)
	case <-time.After(100 * time.Millisecond):
	}

	if err := os.WriteFile(dbPath, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-msgChan:
		if _, ok := msg.(settingsChangedMsg); !ok {
			t.Errorf("expected settingsChangedMsg, got %T", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for settingsChangedMsg after a watcher error")
	}
}

func TestWatchSettings_MissingDir(t *testing.T) {
	t.Parallel()

	w := watchSettings(filepath.Join(t.TempDir(), "nope", "settings.db"), logging.Discard())
	if w != nil {
		t.Fatal("expected nil watcher for a missing directory")
	}
	if w.next() != nil {
		t.Error("nil watcher should yield no command")
	}
	w.close()
}
