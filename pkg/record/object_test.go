package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObject_PreservesKeyOrder(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"zeta":1,"alpha":2,"mid":{"fr":"Montréal","en":"Montreal"}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())

	nested, ok := obj.Get("mid")
	require.True(t, ok)
	inner, ok := nested.(*Object)
	require.True(t, ok, "nested object should decode as *Object")
	assert.Equal(t, []string{"fr", "en"}, inner.Keys())
}

func TestDecode_NumbersKeepDecimalText(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"savePctg":0.91234567890123456789,"gamesPlayed":82,"big":12345678901234567890}`))
	require.NoError(t, err)

	v, _ := obj.Get("savePctg")
	assert.Equal(t, json.Number("0.91234567890123456789"), v)

	v, _ = obj.Get("big")
	assert.Equal(t, json.Number("12345678901234567890"), v)

	gp, ok := obj.Int64("gamesPlayed")
	assert.True(t, ok)
	assert.Equal(t, int64(82), gp)
}

func TestObject_MarshalRoundTrip(t *testing.T) {
	input := `{"playerId":8478402,"firstName":{"default":"Connor"},"seasonTotals":[{"season":20152016,"savePctg":0.9150},{"season":20162017}],"active":true,"note":null,"html":"<b>&</b>"}`

	obj, err := DecodeObject([]byte(input))
	require.NoError(t, err)

	out, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestObject_SetKeepsPosition(t *testing.T) {
	obj := NewObject()
	obj.Set("a", "1")
	obj.Set("b", "2")
	obj.Set("a", "3")

	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	v, _ := obj.Get("a")
	assert.Equal(t, "3", v)
}

func TestObject_DuplicateKeysKeepFirstPosition(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"a":1,"b":2,"a":3}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	v, _ := obj.Get("a")
	assert.Equal(t, json.Number("3"), v)
}

func TestObject_Delete(t *testing.T) {
	obj := NewObject()
	obj.Set("a", 1)
	obj.Set("b", 2)
	obj.Set("c", 3)
	obj.Delete("b")
	obj.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, obj.Keys())
	assert.Equal(t, 2, obj.Len())
}

func TestObject_NilReceiver(t *testing.T) {
	var obj *Object
	_, ok := obj.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 0, obj.Len())
	assert.Nil(t, obj.Keys())

	out, err := obj.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestDecode_Values(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"string", `"abc"`, "abc"},
		{"true", `true`, true},
		{"null", `null`, nil},
		{"number", `1.50`, json.Number("1.50")},
		{"empty array", `[]`, []any{}},
		{"array", `[1,"x",null]`, []any{json.Number("1"), "x", nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	for _, input := range []string{``, `{`, `{"a":`, `{"a":1}x`, `[1,]`} {
		_, err := Decode([]byte(input))
		assert.Error(t, err, "input %q", input)
	}
}

func TestDecodeObject_NotObject(t *testing.T) {
	_, err := DecodeObject([]byte(`[{"playerId":1}]`))
	assert.ErrorIs(t, err, ErrNotObject)
}
