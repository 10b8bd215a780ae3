package inspect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"null", nil, "null"},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"max int64", int64(math.MaxInt64), "9223372036854775807"},
		{"integral float", 100.0, "100"},
		{"fraction", 1.5, "1.5"},
		{"large exponent", 1e21, "1e+21"},
		{"small exponent", 1e-7, "1e-7"},
		{"bools", []bool{true, false}, "[true,false]"},
		{"empty object", map[string]any{}, "{}"},
		{"nested", map[string]any{"b": []any{1, nil}, "a": map[string]int{"z": 1, "y": 2}}, `{"a":{"y":2,"z":1},"b":[1,null]}`},
		{"struct tags", struct {
			Zed   int    `json:"zed"`
			Alpha string `json:"alpha"`
			Skip  int    `json:"-"`
		}{1, "x", 9}, `{"alpha":"x","zed":1}`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"line separators literal", "a\u2028b\u2029c", "\"a\u2028b\u2029c\""},
		{"escaped backslash before u2028 text", `\u2028`, `"\\u2028"`},
		{"control chars escaped", "a\nb", `"a\nb"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 is a surrogate pair (0xD83D...) and sorts before U+E000 in
	// UTF-16, although its UTF-8 encoding sorts after.
	obj := map[string]int{"\uE000": 1, "\U0001F600": 2, "a": 3}

	out, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":3,\"\U0001F600\":2,\"\uE000\":1}", string(out))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	m := map[string]any{}
	for i := 0; i < 50; i++ {
		m[string(rune('a'+i%26))+string(rune('a'+i/26))] = i
	}

	first, err := MarshalCanonical(m)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(m)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMarshalCanonical_Errors(t *testing.T) {
	_, err := MarshalCanonical(math.Inf(1))
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"f": func() {}})
	assert.Error(t, err)
}

func TestEventID(t *testing.T) {
	base := Event{Session: "s-1", Store: "counter", Kind: KindChange, Seq: 1, Prev: 0, Current: 1}

	id1, err := EventID(base)
	require.NoError(t, err)
	id2, err := EventID(base)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)

	other := base
	other.Seq = 2
	id3, err := EventID(other)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	init := base
	init.Kind = KindInit
	id4, err := EventID(init)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id4, "init and change events live in different domains")
}
