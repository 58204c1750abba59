// Package locale flattens the NHL API's localized text objects, such as
// {"default": "Edmonton", "fr": "Edmonton"}, into plain values.
package locale

import (
	"encoding/json"
	"strconv"

	"github.com/Sternrassler/tap-nhl/pkg/record"
)

// Preferred keys, tried in order before any other key.
var preferred = []string{"default", "en", "eng"}

// PlayerFields are the top-level landing fields holding locale objects.
var PlayerFields = []string{
	"fullTeamName",
	"teamCommonName",
	"teamPlaceNameWithPreposition",
	"firstName",
	"lastName",
	"birthCity",
	"birthStateProvince",
}

// SeasonTotalFields are the locale fields inside each seasonTotals entry.
var SeasonTotalFields = []string{
	"teamName",
	"teamCommonName",
	"teamPlaceNameWithPreposition",
}

// Normalize returns the preferred text of a locale object. Values that are
// not objects are returned unchanged.
//
// The first truthy value under "default", "en" or "eng" wins; otherwise the
// first truthy value in payload key order; otherwise nil.
func Normalize(value any) any {
	obj, ok := value.(*record.Object)
	if !ok {
		return value
	}
	for _, key := range preferred {
		if v, ok := obj.Get(key); ok && Truthy(v) {
			return v
		}
	}
	for _, key := range obj.Keys() {
		if v, _ := obj.Get(key); Truthy(v) {
			return v
		}
	}
	return nil
}

// Truthy reports whether v counts as present: nil, false, "", zero numbers,
// empty arrays and empty objects do not.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		return err != nil || f != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case *record.Object:
		return t.Len() > 0
	default:
		return true
	}
}

// NormalizeRecord flattens the locale fields of a player landing record in
// place. Absent fields stay absent.
func NormalizeRecord(obj *record.Object) *record.Object {
	if obj == nil {
		return nil
	}
	normalizeFields(obj, PlayerFields)

	totals, ok := obj.Get("seasonTotals")
	if !ok {
		return obj
	}
	entries, ok := totals.([]any)
	if !ok {
		return obj
	}
	for _, entry := range entries {
		if entryObj, ok := entry.(*record.Object); ok {
			normalizeFields(entryObj, SeasonTotalFields)
		}
	}
	return obj
}

func normalizeFields(obj *record.Object, fields []string) {
	for _, field := range fields {
		if v, ok := obj.Get(field); ok {
			obj.Set(field, Normalize(v))
		}
	}
}
