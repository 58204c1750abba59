package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Sternrassler/tap-nhl/pkg/record"
)

func mustDecode(t *testing.T, s string) any {
	t.Helper()
	v, err := record.Decode([]byte(s))
	if err != nil {
		t.Fatalf("Decode(%s) error = %v", s, err)
	}
	return v
}

func TestExtract(t *testing.T) {
	doc := `{"standings":[{"id":1},{"id":2}],"pagination":{"nextCursor":"abc"},"meta":{"a":{"b":7}},"empty":null}`

	tests := []struct {
		name  string
		path  string
		count int
	}{
		{"root", "$", 1},
		{"array wildcard", "$.standings[*]", 2},
		{"nested key", "$.pagination.nextCursor", 1},
		{"deep key", "$.meta.a.b", 1},
		{"missing key", "$.nope", 0},
		{"missing nested", "$.pagination.prevCursor", 0},
		{"null value matches", "$.empty", 1},
		{"wildcard on non-array", "$.pagination[*]", 1},
		{"descend through scalar", "$.meta.a.b.c", 0},
	}

	v := mustDecode(t, doc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(v, tt.path)
			if err != nil {
				t.Fatalf("Extract(%q) error = %v", tt.path, err)
			}
			if len(got) != tt.count {
				t.Errorf("Extract(%q) returned %d matches, want %d", tt.path, len(got), tt.count)
			}
		})
	}
}

func TestExtract_RootArrayWildcard(t *testing.T) {
	got, err := Extract(mustDecode(t, `[1,2,3]`), "$[*]")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2] != json.Number("3") {
		t.Errorf("Extract($[*]) = %v", got)
	}
}

func TestExtract_InvalidPath(t *testing.T) {
	for _, path := range []string{"", "standings", "$..a", "$.a[0]", "$['a']"} {
		if _, err := Extract(nil, path); err == nil {
			t.Errorf("Extract(%q) should fail", path)
		}
	}
}

type pageScript map[string]string

func (s pageScript) fetcher(calls *[]string) PageFetcher {
	return PageFetcherFunc(func(ctx context.Context, cursor string) ([]byte, error) {
		*calls = append(*calls, cursor)
		body, ok := s[cursor]
		if !ok {
			return nil, errors.New("unexpected cursor " + cursor)
		}
		return []byte(body), nil
	})
}

func TestCursorPaginator_FollowsCursor(t *testing.T) {
	script := pageScript{
		"":   `{"standings":[{"id":1},{"id":2}],"pagination":{"nextCursor":"p2"}}`,
		"p2": `{"standings":[{"id":3}],"pagination":{"nextCursor":"p3"}}`,
		"p3": `{"standings":[],"pagination":{"nextCursor":null}}`,
	}
	var calls []string
	p := NewCursorPaginator(script.fetcher(&calls), Config{})

	var ids []int64
	pages, err := p.Each(context.Background(), func(rec any) error {
		id, _ := rec.(*record.Object).Int64("id")
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Errorf("ids = %v, want [1 2 3]", ids)
	}
	if len(calls) != 3 || calls[0] != "" || calls[1] != "p2" || calls[2] != "p3" {
		t.Errorf("cursors = %v", calls)
	}
}

func TestCursorPaginator_RootRecord(t *testing.T) {
	script := pageScript{
		"": `{"playerId":8478402,"firstName":{"default":"Connor"}}`,
	}
	var calls []string
	p := NewCursorPaginator(script.fetcher(&calls), Config{RecordsPath: "$"})

	count := 0
	pages, err := p.Each(context.Background(), func(rec any) error {
		count++
		if _, ok := rec.(*record.Object); !ok {
			t.Errorf("record type = %T, want *record.Object", rec)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if pages != 1 || count != 1 {
		t.Errorf("pages = %d, records = %d, want 1, 1", pages, count)
	}
}

func TestCursorPaginator_RepeatedCursorFails(t *testing.T) {
	script := pageScript{
		"":     `{"standings":[{"id":1}],"pagination":{"nextCursor":"same"}}`,
		"same": `{"standings":[{"id":2}],"pagination":{"nextCursor":"same"}}`,
	}
	var calls []string
	p := NewCursorPaginator(script.fetcher(&calls), DefaultConfig())

	pages, err := p.Each(context.Background(), func(rec any) error { return nil })
	if !errors.Is(err, ErrCursorLoop) {
		t.Fatalf("Each() error = %v, want ErrCursorLoop", err)
	}
	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}
	if len(calls) != 2 {
		t.Errorf("fetch calls = %d, want 2", len(calls))
	}
}

func TestCursorPaginator_CursorAlwaysSameFails(t *testing.T) {
	calls := 0
	p := NewCursorPaginator(PageFetcherFunc(func(ctx context.Context, cursor string) ([]byte, error) {
		calls++
		return []byte(`{"pagination":{"nextCursor":"abc"}}`), nil
	}), Config{RecordsPath: "$"})

	_, err := p.Each(context.Background(), func(rec any) error { return nil })
	if !errors.Is(err, ErrCursorLoop) {
		t.Errorf("Each() error = %v, want ErrCursorLoop", err)
	}
	if calls != 2 {
		t.Errorf("fetch calls = %d, want 2", calls)
	}
}

func TestCursorPaginator_FetchError(t *testing.T) {
	boom := errors.New("boom")
	p := NewCursorPaginator(PageFetcherFunc(func(ctx context.Context, cursor string) ([]byte, error) {
		return nil, boom
	}), DefaultConfig())

	_, err := p.Each(context.Background(), func(rec any) error { return nil })
	if !errors.Is(err, boom) {
		t.Errorf("Each() error = %v, want boom", err)
	}
}

func TestCursorPaginator_CallbackError(t *testing.T) {
	script := pageScript{
		"": `{"standings":[{"id":1}],"pagination":{"nextCursor":"p2"}}`,
	}
	var calls []string
	p := NewCursorPaginator(script.fetcher(&calls), DefaultConfig())

	stop := errors.New("stop")
	_, err := p.Each(context.Background(), func(rec any) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("Each() error = %v, want stop", err)
	}
	if len(calls) != 1 {
		t.Errorf("calls = %d, want 1", len(calls))
	}
}

func TestCursorPaginator_InvalidBody(t *testing.T) {
	p := NewCursorPaginator(PageFetcherFunc(func(ctx context.Context, cursor string) ([]byte, error) {
		return []byte(`<html>`), nil
	}), DefaultConfig())

	if _, err := p.Each(context.Background(), func(rec any) error { return nil }); err == nil {
		t.Error("Each() should fail on a non-JSON body")
	}
}

func TestCursorPaginator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	p := NewCursorPaginator(PageFetcherFunc(func(ctx context.Context, cursor string) ([]byte, error) {
		called = true
		return []byte(`{}`), nil
	}), DefaultConfig())

	if _, err := p.Each(ctx, func(rec any) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Each() error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("fetcher should not be called on a cancelled context")
	}
}

func TestNextCursor(t *testing.T) {
	tests := []struct {
		doc  string
		want string
	}{
		{`{"pagination":{"nextCursor":"abc"}}`, "abc"},
		{`{"pagination":{"nextCursor":42}}`, "42"},
		{`{"pagination":{"nextCursor":""}}`, ""},
		{`{"pagination":{"nextCursor":null}}`, ""},
		{`{"pagination":{}}`, ""},
		{`{}`, ""},
	}

	for _, tt := range tests {
		got, err := nextCursor(mustDecode(t, tt.doc), DefaultNextCursorPath)
		if err != nil {
			t.Fatalf("nextCursor(%s) error = %v", tt.doc, err)
		}
		if got != tt.want {
			t.Errorf("nextCursor(%s) = %q, want %q", tt.doc, got, tt.want)
		}
	}
}

func TestOffsets(t *testing.T) {
	tests := []struct {
		name      string
		pages     [][2]int // rows, total
		wantPages int
	}{
		{"exact multiple", [][2]int{{250, 500}, {250, 500}}, 2},
		{"partial last page", [][2]int{{250, 300}, {50, 300}}, 2},
		{"single page", [][2]int{{10, 10}}, 1},
		{"empty first page", [][2]int{{0, 0}}, 1},
		{"empty page despite total", [][2]int{{250, 10000}, {0, 10000}}, 2},
		{"missing total", [][2]int{{250, 0}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var starts []int
			pages, err := Offsets(context.Background(), 250, func(ctx context.Context, start int) (int, int, error) {
				starts = append(starts, start)
				if len(starts) > len(tt.pages) {
					t.Fatalf("fetched more pages than scripted")
				}
				p := tt.pages[len(starts)-1]
				return p[0], p[1], nil
			})
			if err != nil {
				t.Fatalf("Offsets() error = %v", err)
			}
			if pages != tt.wantPages {
				t.Errorf("pages = %d, want %d", pages, tt.wantPages)
			}
			for i, start := range starts {
				if start != i*250 {
					t.Errorf("start[%d] = %d, want %d", i, start, i*250)
				}
			}
		})
	}
}

func TestOffsets_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := Offsets(context.Background(), 250, func(ctx context.Context, start int) (int, int, error) {
		return 0, 0, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Offsets() error = %v, want boom", err)
	}

	if _, err := Offsets(context.Background(), 0, nil); err == nil {
		t.Error("Offsets() with page size 0 should fail")
	}
}
