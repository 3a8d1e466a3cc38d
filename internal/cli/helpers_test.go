package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCatalog = `items:
  - id: A
    name: Cordless Drill
    brand: Makita
    balance: 5
    status: in-stock
  - id: B
    name: Impact Driver
    balance: 0
    status: out-of-stock
  - id: C
    name: Tape Measure
    status: Low-Stock
`

// testEnv is a temp SQLite database and catalog shared by CLI invocations.
type testEnv struct {
	t       *testing.T
	dir     string
	db      string
	catalog string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		t:       t,
		dir:     dir,
		db:      filepath.Join(dir, "toolbox.db"),
		catalog: filepath.Join(dir, "catalog.yaml"),
	}
	env.writeCatalog(testCatalog)
	return env
}

func (e *testEnv) writeCatalog(content string) {
	e.t.Helper()
	require.NoError(e.t, os.WriteFile(e.catalog, []byte(content), 0644))
}

// run executes the root command with the env's storage and catalog flags.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	return e.runContext(context.Background(), args...)
}

func (e *testEnv) runContext(ctx context.Context, args ...string) (string, error) {
	e.t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", e.db, "--catalog", e.catalog}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// mustRun executes args and fails the test on error.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, out)
	return out
}

// runJSON executes args with --format json and decodes the response data
// into data.
func (e *testEnv) runJSON(data any, args ...string) CLIResponse {
	e.t.Helper()
	out, err := e.run(append([]string{"--format", "json"}, args...)...)
	require.NoError(e.t, err, out)

	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil && len(resp.Data) > 0 {
		require.NoError(e.t, json.Unmarshal(resp.Data, data))
	}
	return resp.CLIResponse
}
