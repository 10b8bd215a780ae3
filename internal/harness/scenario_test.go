package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
name: minimal
description: "one set_key"
state: {a: 0}
steps:
  - set_key: {key: a, value: 1}
assertions:
  - type: notify_count
    count: 1
`

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_YAML(t *testing.T) {
	path := writeScenario(t, "minimal.yaml", minimalYAML)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, map[string]any{"a": 0}, s.State)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "a", s.Steps[0].SetKey.Key)
	assert.Equal(t, 1, s.Steps[0].SetKey.Value)
	assert.Equal(t, AssertNotifyCount, s.Assertions[0].Type)
}

func TestLoadScenario_CUEMatchesYAML(t *testing.T) {
	cueSrc := `
name:        "minimal"
description: "one set_key"
state: {a: 0}
steps: [{set_key: {key: "a", value: 1}}]
assertions: [{type: "notify_count", count: 1}]
`
	fromCUE, err := LoadScenario(writeScenario(t, "minimal.cue", cueSrc))
	require.NoError(t, err)
	fromYAML, err := LoadScenario(writeScenario(t, "minimal.yaml", minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromCUE)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown field", "s.yaml", minimalYAML + "assertion: []\n", "failed to parse YAML"},
		{"bad cue", "s.cue", "name: ", "failed to parse CUE"},
		{"unsupported extension", "s.json", "{}", "unsupported scenario format"},
		{"missing name", "s.yaml", `
description: x
state: {}
steps: [{stop_flush: true}]
assertions: [{type: notify_count}]
`, "name is required"},
		{"missing state", "s.yaml", `
name: x
description: x
steps: [{stop_flush: true}]
assertions: [{type: notify_count}]
`, "state is required"},
		{"two operations in one step", "s.yaml", `
name: x
description: x
state: {}
steps: [{stop_flush: true, resume_flush: true}]
assertions: [{type: notify_count}]
`, "exactly one operation"},
		{"empty step", "s.yaml", `
name: x
description: x
state: {}
steps: [{action: named}]
assertions: [{type: notify_count}]
`, "exactly one operation is required, found 0"},
		{"nested batch step", "s.yaml", `
name: x
description: x
state: {}
steps: [{batch: {steps: [{}]}}]
assertions: [{type: notify_count}]
`, "steps[0].batch.steps[0]"},
		{"bad duration", "s.yaml", `
name: x
description: x
state: {}
steps: [{advance: soon}]
assertions: [{type: notify_count}]
`, "advance"},
		{"bad debounce", "s.yaml", `
name: x
description: x
state: {}
debounce: {wait: -1ms}
steps: [{stop_flush: true}]
assertions: [{type: notify_count}]
`, "debounce.wait"},
		{"middleware without rule", "s.yaml", `
name: x
description: x
state: {}
middleware: [{name: m}]
steps: [{stop_flush: true}]
assertions: [{type: notify_count}]
`, "exactly one of veto_if or replace_if"},
		{"replace_if without replace", "s.yaml", `
name: x
description: x
state: {}
middleware: [{name: m, replace_if: "true"}]
steps: [{stop_flush: true}]
assertions: [{type: notify_count}]
`, "replace is required"},
		{"observer with two queries", "s.yaml", `
name: x
description: x
state: {}
observers: [{name: o, keys: [a], selector: "a"}]
steps: [{stop_flush: true}]
assertions: [{type: notify_count}]
`, "exactly one of keys"},
		{"duplicate computed", "s.yaml", `
name: x
description: x
state: {}
computed: [{name: main, expr: "1"}]
steps: [{stop_flush: true}]
assertions: [{type: notify_count}]
`, "duplicate store name"},
		{"unknown store", "s.yaml", `
name: x
description: x
state: {}
steps: [{stop_flush: true}]
assertions: [{type: notify_count, store: nope}]
`, "unknown store"},
		{"unknown observer", "s.yaml", `
name: x
description: x
state: {}
steps: [{stop_flush: true}]
assertions: [{type: observer_count, observer: nope}]
`, "unknown observer"},
		{"computed_value on main", "s.yaml", `
name: x
description: x
state: {}
steps: [{stop_flush: true}]
assertions: [{type: computed_value, value: 1}]
`, "must name a computed store"},
		{"unknown assertion", "s.yaml", `
name: x
description: x
state: {}
steps: [{stop_flush: true}]
assertions: [{type: eventually}]
`, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int64", int64(3), 3},
		{"uint8", uint8(3), 3},
		{"integral float", 2.0, 2},
		{"fraction", 2.5, 2.5},
		{"nested", map[string]any{"a": []any{float64(1), "x"}}, map[string]any{"a": []any{1, "x"}}},
		{"typed map", map[string]int64{"a": 1}, map[string]any{"a": 1}},
		{"typed slice", []float64{1, 1.5}, []any{1, 1.5}},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize(tt.in))
		})
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.cue", "c.yml", "notes.txt", "golden/a.golden"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.cue"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "c.yml"),
	}, files)

	files, err = FindScenarios(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, files)

	_, err = FindScenarios(dir, "[")
	assert.Error(t, err)
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", "golden", "x.golden"), GoldenPath(filepath.Join("dir", "x.yaml")))
}
