package inspect

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tstate/internal/state"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenJournal_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	for i := 0; i < 3; i++ {
		j, err := OpenJournal(path)
		require.NoError(t, err, "iteration %d", i)

		var version int
		require.NoError(t, j.db.QueryRow("PRAGMA user_version").Scan(&version))
		assert.Equal(t, currentSchemaVersion, version)
		require.NoError(t, j.Close())
	}
}

func TestOpenJournal_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	_, err = j.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = OpenJournal(path)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestJournal_WritesAndReadsInOrder(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.Init(ctx, Event{Session: "s-1", Store: "counter", Current: map[string]int{"n": 0}}))
	require.NoError(t, j.Send(ctx, Event{
		Session: "s-1",
		Store:   "counter",
		Seq:     1,
		Action:  state.Action{Type: "counter.set.n", Fields: map[string]any{"key": "n", "value": 1}},
		Prev:    map[string]int{"n": 0},
		Current: map[string]int{"n": 1},
	}))

	entries, err := j.Entries(ctx, Filter{Session: "s-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, KindInit, entries[0].Kind)
	assert.Nil(t, entries[0].Prev)
	assert.JSONEq(t, `{"n":0}`, string(entries[0].Current))
	assert.JSONEq(t, `{}`, string(entries[0].Fields))

	assert.Equal(t, KindChange, entries[1].Kind)
	assert.Equal(t, int64(1), entries[1].Seq)
	assert.Equal(t, "counter.set.n", entries[1].Action)
	assert.Equal(t, `{"key":"n","value":1}`, string(entries[1].Fields))
	assert.Equal(t, `{"n":0}`, string(entries[1].Prev))
	assert.Equal(t, `{"n":1}`, string(entries[1].Current))
	assert.Less(t, entries[0].Ord, entries[1].Ord)
}

func TestJournal_DuplicateWritesAreIgnored(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	e := Event{Session: "s-1", Store: "a", Seq: 1, Action: state.Named("x"), Prev: 1, Current: 2}

	require.NoError(t, j.Send(ctx, e))
	require.NoError(t, j.Send(ctx, e))

	entries, err := j.Entries(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJournal_Filter(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	for _, e := range []Event{
		{Session: "s-1", Store: "a", Current: 1},
		{Session: "s-1", Store: "b", Current: 1},
		{Session: "s-2", Store: "a", Current: 1},
	} {
		require.NoError(t, j.Init(ctx, e))
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"everything", Filter{}, 3},
		{"by session", Filter{Session: "s-1"}, 2},
		{"by store", Filter{Store: "a"}, 2},
		{"by both", Filter{Session: "s-2", Store: "a"}, 1},
		{"no match", Filter{Session: "missing"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := j.Entries(ctx, tt.filter)
			require.NoError(t, err)
			assert.NotNil(t, entries)
			assert.Len(t, entries, tt.want)
		})
	}

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-1", "s-2"}, sessions)
}

func TestJournal_AsSessionTool(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	sess := NewSession(j, WithIDGenerator(NewFixedGenerator("run")))

	s := state.New(counter{Count: 1}, state.WithName("counter"), state.WithInspector(sess))
	s.SetState(counter{Count: 2}, state.WithAction(state.Named("increment")))

	entries, err := j.Entries(ctx, Filter{Session: "run-1", Store: "counter"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, `{"count":1}`, string(entries[0].Current))
	assert.Equal(t, "increment", entries[1].Action)
	assert.Equal(t, `{"count":2}`, string(entries[1].Current))
}
