// ABOUTME: Tests for the token subcommand
// ABOUTME: Issues a token against a temp config and verifies it round-trips

package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agent-studio/internal/auth"
)

func writeTestConfig(t *testing.T, secret string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "studio.yaml")
	content := `upstream:
  base_url: "http://localhost:9"
  api_key: "test-key"
database:
  path: "` + filepath.Join(dir, "studio.db") + `"
`
	if secret != "" {
		content += "auth:\n  jwt_secret: \"" + secret + "\"\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("STUDIO_CONFIG", path)
}

// captureStdout runs fn with os.Stdout redirected to a pipe.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	runErr := fn()
	w.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out), runErr
}

func TestRunToken_IssuesVerifiableToken(t *testing.T) {
	writeTestConfig(t, "test-secret")

	out, err := captureStdout(t, func() error {
		return runToken([]string{"alice", "1h"})
	})
	require.NoError(t, err)

	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	subject, err := auth.NewJWTVerifier([]byte("test-secret")).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestRunToken_RequiresConfiguredSecret(t *testing.T) {
	writeTestConfig(t, "")

	err := runToken([]string{"alice"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestRunToken_RejectsBadArguments(t *testing.T) {
	writeTestConfig(t, "test-secret")

	require.Error(t, runToken(nil))
	require.Error(t, runToken([]string{"alice", "not-a-duration"}))
}
