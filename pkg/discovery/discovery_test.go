package discovery

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/tap-nhl/internal/testutil"
	"github.com/Sternrassler/tap-nhl/pkg/client"
	"github.com/Sternrassler/tap-nhl/pkg/season"
)

const (
	skaterPath = "/stats/rest/en/skater/summary"
	goaliePath = "/stats/rest/en/goalie/summary"
)

func newSession(t *testing.T) *client.Session {
	t.Helper()
	cfg := client.DiscoveryConfig("tap-nhl-test/1.0")
	cfg.Retry.BackoffFactor = time.Millisecond
	cfg.Retry.MaxBackoff = 10 * time.Millisecond
	session, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func assertIDs(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestDiscover_CrossPageDuplicatesCollapse(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()
	mock.SetSequence(skaterPath,
		testutil.NewJSONResponse(`{"data":[{"playerId":1},{"playerId":2}],"total":4}`),
		testutil.NewJSONResponse(`{"data":[{"playerId":2},{"playerId":3}],"total":4}`),
	)

	d := New(newSession(t), "skaters")
	d.PageSize = 2

	ids, err := d.Discover(context.Background(), []string{mock.URL() + skaterPath}, []season.ID{20232024})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	assertIDs(t, ids, []int64{1, 2, 3})

	if got := mock.PathCount(skaterPath); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestDiscover_StopsOnEmptyPage(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()
	mock.SetSequence(skaterPath,
		testutil.NewJSONResponse(`{"data":[{"playerId":5},{"playerId":4}],"total":10000}`),
		testutil.NewJSONResponse(`{"data":[],"total":10000}`),
		testutil.NewJSONResponse(`{"data":[{"playerId":99}],"total":10000}`),
	)

	d := New(newSession(t), "skaters")
	d.PageSize = 2

	ids, err := d.Discover(context.Background(), []string{mock.URL() + skaterPath}, []season.ID{20232024})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	assertIDs(t, ids, []int64{4, 5})
	if got := mock.PathCount(skaterPath); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestDiscover_MissingTotalStops(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()
	mock.SetResponse(skaterPath, testutil.NewJSONResponse(`{"data":[{"playerId":7},{"playerId":8}]}`))

	d := New(newSession(t), "skaters")
	d.PageSize = 2

	ids, err := d.Discover(context.Background(), []string{mock.URL() + skaterPath}, []season.ID{20232024})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	assertIDs(t, ids, []int64{7, 8})
	if got := mock.PathCount(skaterPath); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestDiscover_AcrossSeasonsAndEndpoints(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()

	mock.SetSummary(skaterPath, map[int][]int64{
		19171918: {8445000, 8445001, 8445002},
		19181919: {8445001, 8445003},
	})
	mock.SetSummary(goaliePath, map[int][]int64{
		19171918: {8445100},
		19181919: {8445100, 8445101},
	})

	d := New(newSession(t), "all")
	d.PageSize = 2

	ids, err := d.Discover(context.Background(),
		[]string{mock.URL() + skaterPath, mock.URL() + goaliePath},
		[]season.ID{19171918, 19181919},
	)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	assertIDs(t, ids, []int64{8445000, 8445001, 8445002, 8445003, 8445100, 8445101})

	// 19171918 skaters: 2 pages; 19181919 skaters: 1; goalies: 1 + 1.
	if got := mock.PathCount(skaterPath); got != 3 {
		t.Errorf("skater requests = %d, want 3", got)
	}
	if got := mock.PathCount(goaliePath); got != 2 {
		t.Errorf("goalie requests = %d, want 2", got)
	}
}

func TestDiscover_QueryParameters(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()
	mock.SetSummary(skaterPath, map[int][]int64{20232024: {1}})

	d := New(newSession(t), "skaters")
	if _, err := d.Discover(context.Background(), []string{mock.URL() + skaterPath}, []season.ID{20232024}); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	queries := mock.Queries(skaterPath)
	if len(queries) != 1 {
		t.Fatalf("requests = %d, want 1", len(queries))
	}
	want := map[string]string{
		"isAggregate": "false",
		"isGame":      "false",
		"start":       "0",
		"limit":       "250",
		"cayenneExp":  "seasonId=20232024",
	}
	for key, value := range want {
		if got := queries[0].Get(key); got != value {
			t.Errorf("query %s = %q, want %q", key, got, value)
		}
	}
}

func TestDiscover_SkipsRowsWithoutPlayerID(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()
	mock.SetResponse(skaterPath, testutil.NewJSONResponse(`{"data":[{"playerId":3},{"teamId":10},{"playerId":null}],"total":3}`))

	ids, err := New(newSession(t), "skaters").Discover(context.Background(),
		[]string{mock.URL() + skaterPath}, []season.ID{20232024})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	assertIDs(t, ids, []int64{3})
}

func TestDiscover_NoEndpoints(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()

	_, err := New(newSession(t), "skaters").Discover(context.Background(), nil, []season.ID{20232024})
	if !errors.Is(err, ErrNoEndpoints) {
		t.Errorf("Discover() error = %v, want ErrNoEndpoints", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("requests = %d, want 0", mock.GetRequestCount())
	}
}

func TestDiscover_ErrorAbortsPass(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()
	mock.SetSummary(skaterPath, map[int][]int64{19171918: {1, 2}})
	// Goalie path has no handler and answers 404.

	ids, err := New(newSession(t), "all").Discover(context.Background(),
		[]string{mock.URL() + skaterPath, mock.URL() + goaliePath},
		[]season.ID{19171918})

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Discover() error = %v, want 404 *client.APIError", err)
	}
	if ids != nil {
		t.Errorf("ids = %v, want nil (no partial result)", ids)
	}
}

func TestDiscover_RetryExhaustedAborts(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()
	mock.SetResponse(skaterPath, testutil.NewServerErrorResponse(http.StatusBadGateway))

	_, err := New(newSession(t), "skaters").Discover(context.Background(),
		[]string{mock.URL() + skaterPath}, []season.ID{19171918})
	if !errors.Is(err, client.ErrRetryExhausted) {
		t.Errorf("Discover() error = %v, want ErrRetryExhausted", err)
	}
}

func TestDiscover_MalformedPage(t *testing.T) {
	mock := testutil.NewMockNHL()
	defer mock.Close()
	mock.SetResponse(skaterPath, testutil.NewJSONResponse(`{"data":"oops"}`))

	_, err := New(newSession(t), "skaters").Discover(context.Background(),
		[]string{mock.URL() + skaterPath}, []season.ID{19171918})
	if err == nil {
		t.Error("Discover() should fail on a malformed page")
	}
}
