package tap

import (
	"github.com/Sternrassler/tap-nhl/pkg/locale"
	"github.com/Sternrassler/tap-nhl/pkg/stream"
)

func nullable(types ...string) map[string]any {
	return map[string]any{"type": append(types, "null")}
}

// LandingSchema returns the JSON schema of player landing records. Only the
// key and the normalized locale fields are typed; every other property of the
// landing document passes through unchanged.
func LandingSchema() map[string]any {
	props := map[string]any{
		stream.PrimaryKey: map[string]any{"type": "integer"},
		"isActive":        nullable("boolean"),
		"currentTeamId":   nullable("integer"),
		"position":        nullable("string"),
		"birthDate":       nullable("string"),
		"sweaterNumber":   nullable("integer"),
	}
	for _, field := range locale.PlayerFields {
		props[field] = nullable("string")
	}

	totals := map[string]any{}
	for _, field := range locale.SeasonTotalFields {
		totals[field] = nullable("string")
	}
	totals["season"] = nullable("integer")
	props["seasonTotals"] = map[string]any{
		"type": []string{"array", "null"},
		"items": map[string]any{
			"type":                 "object",
			"properties":           totals,
			"additionalProperties": true,
		},
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             []string{stream.PrimaryKey},
		"additionalProperties": true,
	}
}
