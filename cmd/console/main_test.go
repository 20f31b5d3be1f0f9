package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/config"
	"github.com/meowecho-tech/vote/internal/devstore"
	"github.com/meowecho-tech/vote/internal/handlers"
	"github.com/meowecho-tech/vote/internal/server"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-password"
)

// dropVoteAnswer lets the next vote reach the server and then closes the
// connection before the answer is written.
type dropVoteAnswer struct {
	next http.Handler
	arm  atomic.Bool
}

func (d *dropVoteAnswer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/vote") && d.arm.CompareAndSwap(true, false) {
		d.next.ServeHTTP(httptest.NewRecorder(), r)
		if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
			_ = conn.Close()
		}
		return
	}
	d.next.ServeHTTP(w, r)
}

type consoleHarness struct {
	t      *testing.T
	dir    string
	config string
	drop   *dropVoteAnswer

	mu    sync.Mutex
	codes map[string]string
}

func newConsoleHarness(t *testing.T) *consoleHarness {
	t.Helper()
	h := &consoleHarness{t: t, dir: t.TempDir(), codes: map[string]string{}}
	t.Chdir(h.dir)

	cfg := &config.AppConfig{
		Environment: "test",
		DevServer: config.DevServerConfig{
			Security: config.SecurityConfig{
				JWTAccessSecret: "console-test-secret",
				JWTAccessTTL:    time.Minute,
				JWTRefreshTTL:   time.Hour,
			},
		},
	}
	store := devstore.New(zerolog.Nop())
	require.NoError(t, store.Seed([]config.SeedUser{
		{Email: adminEmail, Password: adminPassword, FullName: "Ada Admin", Role: "admin"},
	}))
	handlerSet := handlers.NewHandlerSet(zerolog.Nop(), cfg, store, handlers.WithOTPSink(func(email, code string) {
		h.mu.Lock()
		h.codes[email] = code
		h.mu.Unlock()
	}))
	h.drop = &dropVoteAnswer{next: server.NewEngine(cfg, zerolog.Nop(), handlerSet)}
	srv := httptest.NewServer(h.drop)
	t.Cleanup(srv.Close)

	h.config = filepath.Join(h.dir, "console.yaml")
	content := fmt.Sprintf(`
environment: test
log:
  level: error
api:
  baseurl: %s/api/v1
session:
  store: file
  path: %s
receipts:
  path: %s
`, srv.URL, filepath.Join(h.dir, "session.json"), filepath.Join(h.dir, "receipts.db"))
	require.NoError(t, os.WriteFile(h.config, []byte(content), 0o600))
	return h
}

func (h *consoleHarness) code(email string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.codes[email]
}

func (h *consoleHarness) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"-config", h.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *consoleHarness) mustRun(args ...string) map[string]any {
	h.t.Helper()
	code, stdout, stderr := h.run(args...)
	require.Equal(h.t, exitOK, code, "stderr: %s", stderr)
	var out map[string]any
	require.NoError(h.t, json.Unmarshal([]byte(stdout), &out), stdout)
	return out
}

func (h *consoleHarness) mustRunList(args ...string) []map[string]any {
	h.t.Helper()
	code, stdout, stderr := h.run(args...)
	require.Equal(h.t, exitOK, code, "stderr: %s", stderr)
	var out []map[string]any
	require.NoError(h.t, json.Unmarshal([]byte(stdout), &out), stdout)
	return out
}

func (h *consoleHarness) loginAdmin() {
	h.t.Helper()
	out := h.mustRun("login", "-email", adminEmail, "-password", adminPassword)
	require.Equal(h.t, true, out["otp_required"])
	h.mustRun("verify", "-email", adminEmail, "-code", h.code(adminEmail))
}

func TestConsoleOperatorFlow(t *testing.T) {
	h := newConsoleHarness(t)

	out := h.mustRun("login", "-email", adminEmail, "-password", adminPassword)
	require.Equal(t, true, out["otp_required"])

	out = h.mustRun("verify", "-email", adminEmail, "-code", h.code(adminEmail), "-next", "//evil.example")
	require.Equal(t, "admin", out["role"])
	require.Equal(t, "/", out["landing"])

	// The session file carries the login into the next invocation.
	out = h.mustRun("whoami")
	require.Equal(t, true, out["authenticated"])

	org := h.mustRun("orgs", "create", "-name", "Acme")
	orgID, _ := org["id"].(string)
	require.NotEmpty(t, orgID)

	opens := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	closes := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	created := h.mustRun("elections", "create", "-org", orgID, "-title", "Board", "-opens", opens, "-closes", closes)
	electionID, _ := created["election_id"].(string)
	require.NotEmpty(t, electionID)

	code, stdout, stderr := h.run("contests", "list", "-election", electionID)
	require.Equal(t, exitOK, code, stderr)
	var contests []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &contests))
	require.Len(t, contests, 1)
	contestID, _ := contests[0]["id"].(string)

	csv := filepath.Join(h.dir, "roll.csv")
	require.NoError(t, os.WriteFile(csv, []byte("email\n"+adminEmail+"\nghost@example.com\n"), 0o600))
	report := h.mustRun("rolls", "import", "-election", electionID, "-contest", contestID, "-file", csv)
	require.Equal(t, true, report["dry_run"])
	require.EqualValues(t, 1, report["valid_rows"])
	require.EqualValues(t, 1, report["not_found_rows"])

	h.mustRun("elections", "publish", "-election", electionID)

	code, _, stderr = h.run("contests", "create", "-election", electionID, "-title", "Treasurer")
	require.Equal(t, exitError, code)
	require.Contains(t, stderr, "not_editable")

	h.mustRun("logout")
	code, _, stderr = h.run("votable")
	require.Equal(t, exitError, code)
	require.Contains(t, stderr, "redirect: /login?next=%2Fvoter")
}

func TestConsoleVoteResendsAfterLostAnswer(t *testing.T) {
	h := newConsoleHarness(t)
	h.loginAdmin()

	org := h.mustRun("orgs", "create", "-name", "Acme")
	opens := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	closes := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	created := h.mustRun("elections", "create", "-org", org["id"].(string), "-title", "Board", "-opens", opens, "-closes", closes)
	electionID := created["election_id"].(string)

	contests := h.mustRunList("contests", "list", "-election", electionID)
	require.Len(t, contests, 1)
	contestID := contests[0]["id"].(string)

	alice := h.mustRun("candidates", "create", "-election", electionID, "-contest", contestID, "-name", "Alice")["candidate_id"].(string)
	bob := h.mustRun("candidates", "create", "-election", electionID, "-contest", contestID, "-name", "Bob")["candidate_id"].(string)

	csv := filepath.Join(h.dir, "roll.csv")
	require.NoError(t, os.WriteFile(csv, []byte(adminEmail+"\n"), 0o600))
	report := h.mustRun("rolls", "import", "-election", electionID, "-contest", contestID, "-file", csv, "-apply")
	require.EqualValues(t, 1, report["inserted_rows"])
	h.mustRun("elections", "publish", "-election", electionID)

	h.drop.arm.Store(true)
	code, _, stderr := h.run("vote", "-contest", contestID, "-candidates", alice)
	require.Equal(t, exitError, code)
	require.Contains(t, stderr, "transport")
	require.Contains(t, stderr, "Run the same vote again")

	pending := h.mustRunList("receipts", "-pending")
	require.Len(t, pending, 1)
	key := pending[0]["idempotency_key"].(string)
	require.NotEmpty(t, key)

	// The server already counted the first send; the resend gets the same receipt.
	out := h.mustRun("vote", "-contest", contestID, "-candidates", alice)
	require.Equal(t, key, out["idempotency_key"])
	require.NotNil(t, out["receipt"])

	require.Empty(t, h.mustRunList("receipts", "-pending"))
	kept := h.mustRunList("receipts", "-contest", contestID)
	require.Len(t, kept, 1)
	require.Equal(t, key, kept[0]["idempotency_key"])

	code, _, stderr = h.run("vote", "-contest", contestID, "-candidates", bob)
	require.Equal(t, exitError, code)
	require.Contains(t, stderr, "already_voted")
}

func TestConsoleUsageErrors(t *testing.T) {
	h := newConsoleHarness(t)

	code, _, stderr := h.run("frobnicate")
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr, "unknown command")

	code, _, _ = h.run("elections", "get")
	require.Equal(t, exitUsage, code)

	code, _, stderr = h.run("vote")
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr, "-contest is required")

	code, _, stderr = h.run("elections", "create")
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr, "-org is required")

	code, _, stderr = h.run("vote", "-bogus")
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr, "flag provided but not defined: -bogus")

	code, _, stderr = h.run("elections", "archive")
	require.Equal(t, exitUsage, code)
	require.True(t, strings.Contains(stderr, "unknown action"))

	code, _, _ = h.run("rolls", "import", "-contest", "c1", "-file", "roll.pdf")
	require.Equal(t, exitUsage, code)
}
