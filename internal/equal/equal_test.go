package equal

import (
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type point struct {
	X, Y int
}

type record struct {
	Name  string
	Tags  []string
	Inner *point
}

func TestIdentity(t *testing.T) {
	tags := []string{"a", "b"}
	m := map[string]int{"a": 1}
	p := &point{1, 2}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same int", 1, 1, true},
		{"different int", 1, 2, false},
		{"int vs int64", 1, int64(1), false},
		{"strings by value", "abc", "abc", true},
		{"NaN equals NaN", math.NaN(), math.NaN(), true},
		{"same slice", tags, tags, true},
		{"equal but distinct slices", []string{"a", "b"}, []string{"a", "b"}, false},
		{"same map", m, m, true},
		{"distinct maps", map[string]int{"a": 1}, map[string]int{"a": 1}, false},
		{"same pointer", p, p, true},
		{"distinct pointers", &point{1, 2}, &point{1, 2}, false},
		{"struct values", point{1, 2}, point{1, 2}, true},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, 0, false},
		{"struct holding same slice", record{Tags: tags}, record{Tags: tags}, true},
		{"struct holding distinct slices", record{Tags: []string{"a"}}, record{Tags: []string{"a"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identity(tt.a, tt.b))
			assert.Equal(t, tt.want, Identity(tt.b, tt.a), "symmetry")
		})
	}
}

func TestShallow(t *testing.T) {
	shared := []int{1}
	now := time.Now()

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal slices", []int{1, 2, 3}, []int{1, 2, 3}, true},
		{"different lengths", []int{1, 2}, []int{1, 2, 3}, false},
		{"different element", []int{1, 2, 3}, []int{1, 2, 4}, false},
		{"NaN elements", []float64{math.NaN()}, []float64{math.NaN()}, true},
		{"equal maps", map[string]any{"a": 1, "b": "x"}, map[string]any{"a": 1, "b": "x"}, true},
		{"map missing key vs nil value", map[string]any{"a": nil}, map[string]any{"b": nil}, false},
		{"map nil vs absent", map[string]any{"a": nil, "b": 1}, map[string]any{"b": 1}, false},
		{"nested aggregates by reference", map[string]any{"a": shared}, map[string]any{"a": shared}, true},
		{"nested aggregates not recursed", map[string]any{"a": []int{1}}, map[string]any{"a": []int{1}}, false},
		{"sets", map[string]struct{}{"x": {}, "y": {}}, map[string]struct{}{"y": {}, "x": {}}, true},
		{"different sets", map[string]struct{}{"x": {}}, map[string]struct{}{"y": {}}, false},
		{"struct fields", point{1, 2}, point{1, 2}, true},
		{"pointer to struct", &point{1, 2}, &point{1, 2}, true},
		{"pointer to different struct", &point{1, 2}, &point{2, 2}, false},
		{"dates by instant", now, now.UTC(), true},
		{"different dates", now, now.Add(time.Second), false},
		{"regexps by pattern", regexp.MustCompile("a+"), regexp.MustCompile("a+"), true},
		{"different regexps", regexp.MustCompile("a+"), regexp.MustCompile("b+"), false},
		{"mismatched kinds", []int{1}, map[int]int{0: 1}, false},
		{"scalar vs aggregate", 1, []int{1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Shallow(tt.a, tt.b))
			assert.Equal(t, tt.want, Shallow(tt.b, tt.a), "symmetry")
		})
	}
}

func TestDeep(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nested slices", [][]int{{1}, {2, 3}}, [][]int{{1}, {2, 3}}, true},
		{"nested slices differ", [][]int{{1}, {2, 3}}, [][]int{{1}, {2, 4}}, false},
		{
			"nested maps",
			map[string]any{"a": map[string]any{"b": []any{1, "x"}}},
			map[string]any{"a": map[string]any{"b": []any{1, "x"}}},
			true,
		},
		{
			"nested maps differ",
			map[string]any{"a": map[string]any{"b": []any{1, "x"}}},
			map[string]any{"a": map[string]any{"b": []any{1, "y"}}},
			false,
		},
		{"absent vs nil", map[string]any{"a": nil}, map[string]any{}, false},
		{
			"structs with pointers",
			record{Name: "r", Tags: []string{"t"}, Inner: &point{1, 2}},
			record{Name: "r", Tags: []string{"t"}, Inner: &point{1, 2}},
			true,
		},
		{
			"structs with different pointees",
			record{Inner: &point{1, 2}},
			record{Inner: &point{1, 3}},
			false,
		},
		{"nil pointer vs value", record{}, record{Inner: &point{}}, false},
		{"dates", map[string]time.Time{"d": now}, map[string]time.Time{"d": now.UTC()}, true},
		{"NaN nested", map[string]float64{"n": math.NaN()}, map[string]float64{"n": math.NaN()}, true},
		{
			"set with pointer keys matched structurally",
			map[*point]bool{{1, 2}: true},
			map[*point]bool{{1, 2}: true},
			true,
		},
		{"mismatched kinds", []any{1}, map[string]any{"0": 1}, false},
		{"int vs float", 1, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Deep(tt.a, tt.b))
			assert.Equal(t, tt.want, Deep(tt.b, tt.a), "symmetry")
		})
	}
}

func TestReflexivity(t *testing.T) {
	values := []any{
		nil,
		0,
		"s",
		math.NaN(),
		[]int{1, 2},
		map[string]any{"a": []int{1}},
		&point{1, 2},
		record{Name: "r", Tags: []string{"x"}, Inner: &point{}},
		time.Now(),
		regexp.MustCompile("x"),
	}

	for _, v := range values {
		assert.True(t, Shallow(v, v), "Shallow(%v, %v)", v, v)
		assert.True(t, Deep(v, v), "Deep(%v, %v)", v, v)
	}
}

func TestDeep_DeeplyNestedInput(t *testing.T) {
	build := func() any {
		var v any = "leaf"
		for i := 0; i < 5000; i++ {
			v = map[string]any{"next": v}
		}
		return v
	}

	assert.True(t, Deep(build(), build()))
}

func TestNot(t *testing.T) {
	changed := Not(Shallow)
	assert.False(t, changed([]int{1}, []int{1}))
	assert.True(t, changed([]int{1}, []int{2}))
}
