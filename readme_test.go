package main

import (
	"os"
	"regexp"
	"strings"
	"testing"
)

func readREADME(t *testing.T) string {
	t.Helper()
	content, err := os.ReadFile("README.md")
	if err != nil {
		t.Fatalf("Failed to read README.md: %v", err)
	}
	return string(content)
}

// TestREADMEDocumentsEnvironment checks every STOCKTON_* variable read by the
// config package appears in the README.
func TestREADMEDocumentsEnvironment(t *testing.T) {
	readmeText := readREADME(t)
	if !strings.Contains(readmeText, "## Configuration") {
		t.Fatal("README.md missing ## Configuration section")
	}

	src, err := os.ReadFile("internal/config/config.go")
	if err != nil {
		t.Fatalf("Failed to read config source: %v", err)
	}
	vars := regexp.MustCompile(`STOCKTON_[A-Z_]+`).FindAllString(string(src), -1)
	if len(vars) == 0 {
		t.Fatal("no STOCKTON_ variables found in config source")
	}
	for _, v := range vars {
		if !strings.Contains(readmeText, "`"+v+"`") {
			t.Errorf("README.md does not document %s", v)
		}
	}
}

func TestREADMEListsCommands(t *testing.T) {
	readmeText := readREADME(t)
	if !strings.Contains(readmeText, "## Commands") {
		t.Fatal("README.md missing ## Commands section")
	}
	for _, cmd := range []string{"dash", "agents", "tasks", "stats", "cron", "chat", "workflows", "settings"} {
		if !strings.Contains(readmeText, "`stockton "+cmd) {
			t.Errorf("README.md missing command %q", cmd)
		}
	}
}
