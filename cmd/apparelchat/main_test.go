package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ApparelChat/internal/conversation"
)

func newTestService(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, newRootCmd(), "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "apparelchat dev")
	assert.Contains(t, out, "commit: none")
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := run(t, newRootCmd(), "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "apparelchat 1.0.0")
	assert.Contains(t, out, "built: 2026-01-01")
}

func TestAskCmd(t *testing.T) {
	srv := newTestService(t, `{"response":"Linen shirts start at $29.","thread_id":"abc"}`)

	out, err := run(t, newRootCmd(), "",
		"ask", "linen shirts?", "--api-url", srv.URL, "--log-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "Bot: Linen shirts start at $29.")
}

func TestAskCmdConnectionFailure(t *testing.T) {
	srv := newTestService(t, "")
	url := srv.URL
	srv.Close()

	out, err := run(t, newRootCmd(), "",
		"ask", "hello", "--api-url", url, "--log-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, conversation.ConnectionErrorReply)
}

func TestAskCmdRequiresInput(t *testing.T) {
	_, err := run(t, newRootCmd(), "", "ask", "--log-dir", t.TempDir())
	assert.ErrorContains(t, err, "nothing to send")
}

func TestInvalidMode(t *testing.T) {
	_, err := run(t, newRootCmd(), "", "ask", "hi", "--mode", "turbo", "--log-dir", t.TempDir())
	assert.ErrorContains(t, err, "invalid --mode")
}

func TestRootPlainREPL(t *testing.T) {
	srv := newTestService(t, `{"response":"Hello shopper!"}`)

	out, err := run(t, newRootCmd(), "hi\n/quit\n",
		"--plain", "--api-url", srv.URL, "--log-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "=== ApparelChat ===")
	assert.Contains(t, out, "Bot: Hello shopper!")
	assert.Contains(t, out, "Goodbye!")
}
