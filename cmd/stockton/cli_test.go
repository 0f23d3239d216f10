package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"stockton/internal/config"
	"stockton/internal/logging"
)

// fakeBackend serves the PostgREST routes the CLI touches.
type fakeBackend struct {
	mu      sync.Mutex
	agents  string
	jobs    []map[string]any
	inserts []map[string]any
	deletes []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case r.URL.Path == "/rest/v1/agents":
		_, _ = io.WriteString(w, b.agents)
	case r.URL.Path == "/rest/v1/cron_jobs" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(b.jobs)
	case r.URL.Path == "/rest/v1/cron_jobs" && r.Method == http.MethodPost:
		var row map[string]any
		_ = json.NewDecoder(r.Body).Decode(&row)
		row["id"] = len(b.jobs) + 100
		b.inserts = append(b.inserts, row)
		_ = json.NewEncoder(w).Encode([]map[string]any{row})
	case r.URL.Path == "/rest/v1/cron_jobs" && r.Method == http.MethodDelete:
		b.deletes = append(b.deletes, strings.TrimPrefix(r.URL.Query().Get("id"), "eq."))
	default:
		http.NotFound(w, r)
	}
}

func testEnv(t *testing.T, backendURL string, stdin string) *env {
	t.Helper()
	home := t.TempDir()
	return &env{
		cfg: &config.Config{
			Home:         home,
			BackendURL:   backendURL,
			BackendKey:   "k",
			OperatorID:   "ansh",
			ThreadID:     "stockton-chat",
			PollInterval: time.Second,
			SettingsDB:   filepath.Join(home, "settings.db"),
		},
		logger: logging.Discard(),
		stdin:  strings.NewReader(stdin),
	}
}

func run(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(e)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_ListsCommands(t *testing.T) {
	t.Parallel()

	out, err := run(t, testEnv(t, "", ""), "--help")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"dash", "agents", "tasks", "stats", "cron", "chat", "workflows", "settings"} {
		if !strings.Contains(out, name) {
			t.Errorf("help missing %q", name)
		}
	}
}

func TestCronAdd_FromPrompt(t *testing.T) {
	t.Parallel()

	be := &fakeBackend{agents: `[{"id":"ramon","name":"Ramon"},{"id":"andrej","name":"Andrej"}]`}
	srv := httptest.NewServer(be)
	defer srv.Close()

	out, err := run(t, testEnv(t, srv.URL, ""), "cron", "add",
		"--prompt", "Every 2 hours run health check for @andrej and save summary",
		"--name", "Fleet Health")
	if err != nil {
		t.Fatalf("cron add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Every 2 hours") {
		t.Errorf("output = %q", out)
	}

	be.mu.Lock()
	defer be.mu.Unlock()
	if len(be.inserts) != 1 {
		t.Fatalf("inserts = %d", len(be.inserts))
	}
	got := be.inserts[0]
	if got["name"] != "Fleet Health" || got["schedule"] != "0 */2 * * *" ||
		got["command"] != "check_agent_status()" || got["created_by"] != "andrej" || got["enabled"] != true {
		t.Errorf("insert = %v", got)
	}
}

func TestCronAdd_MissingFieldsSendsNothing(t *testing.T) {
	t.Parallel()

	be := &fakeBackend{agents: `[]`}
	srv := httptest.NewServer(be)
	defer srv.Close()

	_, err := run(t, testEnv(t, srv.URL, ""), "cron", "add", "--every", "30m")
	if err == nil || err.Error() != "cron add: Name, cron schedule, and command are required." {
		t.Fatalf("error = %v", err)
	}
	be.mu.Lock()
	defer be.mu.Unlock()
	if len(be.inserts) != 0 {
		t.Errorf("inserts = %d, want 0", len(be.inserts))
	}
}

func TestCronRm_Confirmation(t *testing.T) {
	t.Parallel()

	be := &fakeBackend{jobs: []map[string]any{{"id": 7, "name": "Nightly Backup", "schedule": "0 0 */1 * *"}}}
	srv := httptest.NewServer(be)
	defer srv.Close()

	out, err := run(t, testEnv(t, srv.URL, "n\n"), "cron", "rm", "7")
	if err == nil {
		t.Fatal("rm without confirmation succeeded")
	}
	if !strings.Contains(out, `Delete cron job "Nightly Backup"?`) {
		t.Errorf("prompt = %q", out)
	}

	if _, err := run(t, testEnv(t, srv.URL, "y\n"), "cron", "rm", "7"); err != nil {
		t.Fatalf("rm confirmed: %v", err)
	}
	if _, err := run(t, testEnv(t, srv.URL, ""), "cron", "rm", "--yes", "7"); err != nil {
		t.Fatalf("rm --yes: %v", err)
	}

	be.mu.Lock()
	defer be.mu.Unlock()
	if strings.Join(be.deletes, ",") != "7,7" {
		t.Errorf("deletes = %v", be.deletes)
	}
}

func TestCronList_Humanized(t *testing.T) {
	t.Parallel()

	be := &fakeBackend{jobs: []map[string]any{
		{"id": 1, "name": "Sync", "schedule": "*/5 * * * *", "command": "run_sync()", "enabled": true, "created_by": "ramon"},
		{"id": 2, "name": "Report", "schedule": "0 9 * * *", "command": "generate_daily_report()", "enabled": false},
	}}
	srv := httptest.NewServer(be)
	defer srv.Close()

	out, err := run(t, testEnv(t, srv.URL, ""), "cron", "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Every 5 minutes", "Daily at 9:00", "Unassigned", "2 jobs: 1 active, 1 disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCronHumanize(t *testing.T) {
	t.Parallel()

	out, err := run(t, testEnv(t, "", ""), "cron", "humanize", "0", "*/3", "*", "*", "*")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "Every 3 hours" {
		t.Errorf("output = %q", out)
	}
}

func TestParseEvery(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"15m":     "*/15 * * * *",
		"2 hours": "0 */2 * * *",
		"1d":      "0 0 */1 * *",
	}
	for in, want := range tests {
		got, err := parseEvery(in)
		if err != nil || got != want {
			t.Errorf("parseEvery(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "m", "5 weeks"} {
		if _, err := parseEvery(bad); err == nil {
			t.Errorf("parseEvery(%q) succeeded", bad)
		}
	}
}

func TestBackendRequired(t *testing.T) {
	t.Parallel()

	_, err := run(t, testEnv(t, "", ""), "agents")
	if err == nil || !strings.Contains(err.Error(), "STOCKTON_BACKEND_URL") {
		t.Errorf("error = %v", err)
	}
}

func TestSettings_SetAndShow(t *testing.T) {
	t.Parallel()

	e := testEnv(t, "", "")
	if _, err := run(t, e, "settings", "set", "n8n-url", "https://n8n.example.com/home/workflows"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, e, "settings", "set", "n8n-key", "secret-key-1234"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, e, "settings", "set", "n8n-url", "not a url"); err == nil {
		t.Error("invalid n8n url accepted")
	}

	out, err := run(t, e, "settings", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "stockton_n8n_base_url") || !strings.Contains(out, "1234") {
		t.Errorf("show output:\n%s", out)
	}
	if strings.Contains(out, "secret-key") {
		t.Errorf("api key not redacted:\n%s", out)
	}
}

func TestWorkflows_UsesSavedSettings(t *testing.T) {
	t.Parallel()

	n8n := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-N8N-API-KEY") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"a1","name":"CRM Sync","active":true,"tags":[{"name":"crm"}]},{"id":"b2","name":"Digest"}]}`)
	}))
	defer n8n.Close()

	e := testEnv(t, "", "")
	if _, err := run(t, e, "settings", "set", "n8n-url", n8n.URL+"/workflow/a1"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, e, "settings", "set", "n8n-key", "key"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, e, "workflows", "crm")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "CRM Sync") || strings.Contains(out, "Digest") || !strings.Contains(out, "1 workflows (1 active)") {
		t.Errorf("output:\n%s", out)
	}
}

func TestChatSend(t *testing.T) {
	t.Parallel()

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["message"] != "ship it" || body["reply_to"] != "42" || body["thread_id"] != "stockton-chat" {
			t.Errorf("body = %v", body)
		}
		_, _ = io.WriteString(w, `{"id":900}`)
	}))
	defer hook.Close()

	e := testEnv(t, "", "")
	e.cfg.WebhookURL = hook.URL
	out, err := run(t, e, "chat", "send", "--reply-to", "42", "ship", "it")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Sent message 900") {
		t.Errorf("output = %q", out)
	}
}
