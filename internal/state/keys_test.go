package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tstate/internal/equal"
)

func TestSetKey_Map(t *testing.T) {
	s := New(map[string]any{"a": 1, "b": "x"}, WithName("main"))
	rec := record(s)
	before := s.State()

	changed, err := s.SetKey("a", 2)

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, map[string]any{"a": 2, "b": "x"}, s.State())
	assert.Equal(t, 1, before["a"], "previous snapshot is untouched")

	c := rec.Last()
	assert.Equal(t, "main.set.a", c.Action.Type)
	assert.Equal(t, "a", c.Action.Fields["key"])
	assert.Equal(t, 2, c.Action.Fields["value"])
}

func TestSetKey_EqualValueIsSkipped(t *testing.T) {
	s := New(map[string]any{"a": 1})
	rec := record(s)

	changed, err := s.SetKey("a", 1)

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, rec.Len())
}

func TestSetKey_MissingMapKeyIsAdded(t *testing.T) {
	s := New(map[string]any{})

	changed, err := s.SetKey("a", nil)

	require.NoError(t, err)
	assert.True(t, changed)
	v, ok := s.State()["a"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestSetKey_Struct(t *testing.T) {
	s := New(profile{Name: "ada", Age: 36})

	changed, err := s.SetKey("Age", 37)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.SetKey("name", "grace")
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, profile{Name: "grace", Age: 37}, s.State())
}

func TestSetKey_PointerToStruct(t *testing.T) {
	orig := &profile{Name: "ada"}
	s := New(orig)
	rec := record(s)

	_, err := s.SetKey("tags", []string{"math"})
	require.NoError(t, err)

	assert.NotSame(t, orig, s.State())
	assert.Empty(t, orig.Tags)
	assert.Equal(t, []string{"math"}, s.State().Tags)
	assert.Equal(t, "ada", rec.Last().Prev.Name)
	assert.Equal(t, "set.tags", rec.Last().Action.Type)
}

func TestUpdateKey(t *testing.T) {
	s := New(map[string]int{"n": 1})

	changed, err := s.UpdateKey("n", func(prev any) any { return prev.(int) + 1 })

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, s.State()["n"])
}

func TestSetKey_Errors(t *testing.T) {
	tests := []struct {
		name     string
		run      func() error
		sentinel error
		code     ConfigErrorCode
	}{
		{
			name: "unknown struct field",
			run: func() error {
				_, err := New(profile{}, WithName("people")).SetKey("email", "x")
				return err
			},
			sentinel: ErrUnknownKey,
			code:     ErrCodeUnknownKey,
		},
		{
			name: "unexported field",
			run: func() error {
				_, err := New(profile{}).SetKey("notes", "x")
				return err
			},
			sentinel: ErrUnknownKey,
			code:     ErrCodeUnknownKey,
		},
		{
			name: "wrong value type",
			run: func() error {
				_, err := New(profile{}).SetKey("Age", "old")
				return err
			},
			sentinel: ErrKeyType,
			code:     ErrCodeKeyType,
		},
		{
			name: "nil into non-nillable field",
			run: func() error {
				_, err := New(map[string]int{}).SetKey("a", nil)
				return err
			},
			sentinel: ErrKeyType,
			code:     ErrCodeKeyType,
		},
		{
			name: "scalar state",
			run: func() error {
				_, err := New(3).SetKey("a", 1)
				return err
			},
			sentinel: ErrNotARecord,
			code:     ErrCodeNotARecord,
		},
		{
			name: "partial on scalar state",
			run: func() error {
				_, err := New("s").SetPartialState(map[string]any{"a": 1})
				return err
			},
			sentinel: ErrNotARecord,
			code:     ErrCodeNotARecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.True(t, IsConfigError(err))

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.code, ce.Code)
		})
	}
}

func TestConfigError_Message(t *testing.T) {
	err := newUnknownKeyError("people", "email")
	assert.Equal(t, "UNKNOWN_KEY: state has no field for key (store=people, key=email)", err.Error())
}

func TestSetPartialState(t *testing.T) {
	s := New(map[string]any{"a": 1, "b": 2, "c": 3}, WithName("main"))
	rec := record(s)

	changed, err := s.SetPartialState(map[string]any{"a": 10, "b": 20})

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, map[string]any{"a": 10, "b": 20, "c": 3}, s.State())
	require.Equal(t, 1, rec.Len())
	assert.Equal(t, "main.setPartial", rec.Last().Action.Type)
}

func TestSetPartialState_SkippedWhenAlreadyEqual(t *testing.T) {
	s := New(profile{Name: "ada", Age: 36})
	rec := record(s)

	changed, err := s.SetPartialState(map[string]any{"name": "ada", "Age": 36})

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, rec.Len())
}

func TestSetPartialState_NewKeyIsAChange(t *testing.T) {
	s := New(map[string]any{"a": nil})

	changed, err := s.SetPartialState(map[string]any{"a": nil, "b": nil})

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, s.State(), 2)
}

func TestSetPartialState_CustomEquality(t *testing.T) {
	s := New(map[string]any{"list": []int{1}})

	changed, err := s.SetPartialState(map[string]any{"list": []int{1}}, WithEquality(equal.Deep))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.SetPartialState(map[string]any{"list": []int{1}})
	require.NoError(t, err)
	assert.True(t, changed, "shallow sees a new slice")
}

type document struct {
	Title    string
	Sections []section
	Meta     map[string]string
}

type section struct {
	Heading string
	Lines   []string
}

func TestProduceState(t *testing.T) {
	orig := &document{
		Title: "draft",
		Sections: []section{
			{Heading: "one", Lines: []string{"a"}},
			{Heading: "two", Lines: []string{"b"}},
		},
		Meta: map[string]string{"owner": "ada"},
	}
	s := New(orig)
	rec := record(s)

	changed := s.ProduceState(func(d **document) {
		(*d).Sections[1].Lines = append((*d).Sections[1].Lines, "c")
	})

	require.True(t, changed)
	next := s.State()
	assert.Equal(t, []string{"b", "c"}, next.Sections[1].Lines)
	assert.Equal(t, []string{"b"}, orig.Sections[1].Lines, "original untouched")
	assert.Same(t, &orig.Sections[0].Lines[0], &next.Sections[0].Lines[0], "unchanged section shared")
	assert.Equal(t, orig.Meta, next.Meta)
	assert.Equal(t, "produceState", rec.Last().Action.Type)
}

func TestProduceState_NoOpRecipeIsSkipped(t *testing.T) {
	s := New(map[string]any{"a": []int{1}})
	rec := record(s)

	changed := s.ProduceState(func(d *map[string]any) {
		(*d)["a"] = []int{1}
	})

	assert.False(t, changed)
	assert.Zero(t, rec.Len())
}

func TestProduceState_ReplaceThroughPointer(t *testing.T) {
	s := New(5)

	s.ProduceState(func(d *int) { *d = 42 })

	assert.Equal(t, 42, s.State())
}
