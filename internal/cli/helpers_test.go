package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const counterScenario = `
name: counter
description: "two increments, the second through a batch"
state: {count: 0}
computed:
  - name: double
    expr: "count * 2"
steps:
  - set_key: {key: count, value: 1}
  - batch:
      action: bump
      steps:
        - set_key: {key: count, value: 2}
assertions:
  - type: notify_count
    count: 2
  - type: computed_value
    store: double
    value: 4
`

const failingScenario = `
name: failing
description: "expects a notification that never happens"
state: {count: 0}
steps:
  - set_key: {key: count, value: 0}
assertions:
  - type: notify_count
    count: 1
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd through a root command so persistent flags and
// validation apply, and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}
