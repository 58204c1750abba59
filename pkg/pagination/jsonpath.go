package pagination

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/tap-nhl/pkg/record"
)

// step is one ".name", ".name[*]" or "[*]" segment of a path.
type step struct {
	key      string
	wildcard bool
}

// parsePath compiles the small JSON path subset used for record and cursor
// extraction: "$", "$.a.b", "$.a[*]" and "$[*]".
func parsePath(path string) ([]step, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("json path %q must start with $", path)
	}
	rest := path[1:]
	var steps []step
	for rest != "" {
		switch {
		case strings.HasPrefix(rest, "[*]"):
			steps = append(steps, step{wildcard: true})
			rest = rest[3:]
		case strings.HasPrefix(rest, "."):
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			key := rest[:end]
			if key == "" {
				return nil, fmt.Errorf("json path %q has an empty segment", path)
			}
			rest = rest[end:]
			s := step{key: key}
			if strings.HasPrefix(rest, "[*]") {
				s.wildcard = true
				rest = rest[3:]
			}
			steps = append(steps, s)
		default:
			return nil, fmt.Errorf("json path %q: unsupported syntax at %q", path, rest)
		}
	}
	return steps, nil
}

// Extract returns every value of doc matched by path.
func Extract(doc any, path string) ([]any, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	matches := []any{doc}
	for _, s := range steps {
		var next []any
		for _, m := range matches {
			v := m
			if s.key != "" {
				obj, ok := m.(*record.Object)
				if !ok {
					continue
				}
				if v, ok = obj.Get(s.key); !ok {
					continue
				}
			}
			if !s.wildcard {
				next = append(next, v)
				continue
			}
			switch children := v.(type) {
			case []any:
				next = append(next, children...)
			case *record.Object:
				for _, key := range children.Keys() {
					child, _ := children.Get(key)
					next = append(next, child)
				}
			}
		}
		matches = next
	}
	return matches, nil
}
