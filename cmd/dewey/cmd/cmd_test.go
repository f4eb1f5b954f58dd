package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// sandbox sets up an isolated $DEWEY_HOME plus a small offline-embedder
// corpus and returns the corpus root. Dimensions is pinned to 256 to
// match embed.StaticDimensions, since every test here runs with
// DEWEY_OFFLINE set rather than hitting a live embedding endpoint.
func sandbox(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("DEWEY_HOME", home)
	t.Setenv("DEWEY_OFFLINE", "1")

	root := t.TempDir()
	writeFile(t, root, "alpha.txt", "the quick brown fox jumps over the lazy dog")
	writeFile(t, root, "beta.txt", "a second file about foxes and dogs running in fields")
	writeFile(t, root, "dewey.yaml", "dimensions: 256\n")

	return root
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
}

// runCmd executes root with args, returning combined stdout/stderr.
func runCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	root := NewRootCmd()
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)

	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}
