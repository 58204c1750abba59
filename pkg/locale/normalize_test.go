package locale

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/tap-nhl/pkg/record"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	v, err := record.Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"default wins over en", `{"default":"A","en":"B"}`, "A"},
		{"only other locale", `{"fr":"C"}`, "C"},
		{"nothing truthy", `{"fr":null,"de":""}`, nil},
		{"plain string", `"plain"`, "plain"},
		{"null", `null`, nil},
		{"en before eng", `{"eng":"X","en":"Y"}`, "Y"},
		{"empty default falls through", `{"default":"","en":"Edmonton"}`, "Edmonton"},
		{"eng used", `{"cs":"","eng":"Oilers"}`, "Oilers"},
		{"payload order for fallback", `{"sk":"Prvý","cs":"První"}`, "Prvý"},
		{"empty object", `{}`, nil},
		{"number unchanged", `97`, json.Number("97")},
		{"zero is not truthy", `{"fr":0,"de":"Z"}`, "Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(decode(t, tt.input)))
		})
	}
}

func TestNormalize_ListUnchanged(t *testing.T) {
	v := decode(t, `[{"default":"A"}]`)
	assert.Equal(t, v, Normalize(v))
}

func TestNormalize_ScalarsUnchanged(t *testing.T) {
	for _, v := range []any{"Connor", true, nil, decode(t, `97`)} {
		assert.Equal(t, v, Normalize(v))
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"empty string", "", false},
		{"string", "x", true},
		{"zero number", json.Number("0"), false},
		{"zero decimal", json.Number("0.0"), false},
		{"number", json.Number("0.5"), true},
		{"empty list", []any{}, false},
		{"list", []any{nil}, true},
		{"empty object", record.NewObject(), false},
		{"int zero", 0, false},
		{"float", 1.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.value))
		})
	}
}

func TestNormalizeRecord(t *testing.T) {
	obj, err := record.DecodeObject([]byte(`{
		"playerId": 8478402,
		"firstName": {"default": "Connor"},
		"lastName": {"default": "McDavid", "cs": "McDavid"},
		"birthCity": {"default": "Richmond Hill"},
		"fullTeamName": {"default": "Edmonton Oilers", "fr": "Oilers d'Edmonton"},
		"teamCommonName": {"default": "Oilers"},
		"heightInInches": 73,
		"seasonTotals": [
			{"season": 20152016, "teamName": {"default": "Edmonton Oilers"}, "gameTypeId": 2},
			{"season": 20162017, "teamCommonName": {"fr": "Oilers"}},
			"not an object"
		]
	}`))
	require.NoError(t, err)

	NormalizeRecord(obj)

	get := func(o *record.Object, key string) any {
		v, _ := o.Get(key)
		return v
	}

	assert.Equal(t, "Connor", get(obj, "firstName"))
	assert.Equal(t, "McDavid", get(obj, "lastName"))
	assert.Equal(t, "Richmond Hill", get(obj, "birthCity"))
	assert.Equal(t, "Edmonton Oilers", get(obj, "fullTeamName"))
	assert.Equal(t, "Oilers", get(obj, "teamCommonName"))
	assert.Equal(t, json.Number("73"), get(obj, "heightInInches"))

	_, ok := obj.Get("birthStateProvince")
	assert.False(t, ok, "absent field must stay absent")
	_, ok = obj.Get("teamPlaceNameWithPreposition")
	assert.False(t, ok, "absent field must stay absent")

	totals := get(obj, "seasonTotals").([]any)
	first := totals[0].(*record.Object)
	assert.Equal(t, "Edmonton Oilers", get(first, "teamName"))
	assert.Equal(t, json.Number("2"), get(first, "gameTypeId"))
	_, ok = first.Get("teamCommonName")
	assert.False(t, ok)

	second := totals[1].(*record.Object)
	assert.Equal(t, "Oilers", get(second, "teamCommonName"))
	assert.Equal(t, "not an object", totals[2])

	assert.Equal(t, []string{"playerId", "firstName", "lastName", "birthCity", "fullTeamName",
		"teamCommonName", "heightInInches", "seasonTotals"}, obj.Keys())
}

func TestNormalizeRecord_NoSeasonTotals(t *testing.T) {
	obj, err := record.DecodeObject([]byte(`{"playerId":1,"seasonTotals":null}`))
	require.NoError(t, err)
	assert.NotPanics(t, func() { NormalizeRecord(obj) })
	assert.Nil(t, NormalizeRecord(nil))
}
