package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdgo-project/pdgo/internal/cache"
	"github.com/pdgo-project/pdgo/internal/core"
)

// stubRemote is a scripted Remote: it serves canned items and counts calls.
type stubRemote struct {
	items     []json.RawMessage
	err       error
	listCalls int
	oneCalls  int
}

func (s *stubRemote) FetchAll(ctx context.Context, rt core.ResourceType, params url.Values) ([]json.RawMessage, error) {
	s.listCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

func (s *stubRemote) FetchOne(ctx context.Context, rt core.ResourceType, id string) (json.RawMessage, error) {
	s.oneCalls++
	if s.err != nil {
		return nil, s.err
	}
	for _, raw := range s.items {
		var m map[string]any
		json.Unmarshal(raw, &m)
		if m["id"] == id {
			return raw, nil
		}
	}
	return nil, core.ErrNotFound
}

func rawIncident(id, status string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id": %q, "status": %q, "custom_field": "kept"}`, id, status))
}

func testFetcher(t *testing.T, remote Remote) *Fetcher {
	t.Helper()
	store, err := cache.Open(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return New(remote, store, DefaultFetchConfig(), zerolog.Nop())
}

func incidentSpec() core.QuerySpec {
	return core.QuerySpec{Type: core.ResourceIncident, Params: url.Values{}}
}

func TestFetcher_Fetch_NormalizesRecords(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	records, err := f.Fetch(context.Background(), incidentSpec())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.ID != "P1" || r.Type != core.ResourceIncident {
		t.Errorf("unexpected record identity: %+v", r)
	}
	if r.Fields["custom_field"] != "kept" {
		t.Error("unknown provider fields must be preserved")
	}
	if r.Stale {
		t.Error("a fresh fetch should not be stale")
	}
}

func TestFetcher_Fetch_SecondCallServedFromCache(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	if _, err := f.Fetch(context.Background(), incidentSpec()); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if _, err := f.Fetch(context.Background(), incidentSpec()); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if remote.listCalls != 1 {
		t.Errorf("second fetch should hit the cache, remote saw %d calls", remote.listCalls)
	}
}

func TestFetcher_Fetch_WantFresh_BypassesCache(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	f.Fetch(context.Background(), incidentSpec())
	spec := incidentSpec()
	spec.WantFresh = true
	f.Fetch(context.Background(), spec)

	if remote.listCalls != 2 {
		t.Errorf("WantFresh must reach the remote, got %d calls", remote.listCalls)
	}
}

func TestFetcher_Fetch_StaleFallback_FlagsRecords(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	if _, err := f.Fetch(context.Background(), incidentSpec()); err != nil {
		t.Fatalf("priming fetch failed: %v", err)
	}

	remote.err = core.ErrRemoteUnavailable
	spec := incidentSpec()
	spec.WantFresh = true // force a remote attempt past the fresh cache
	records, err := f.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 fallback record, got %d", len(records))
	}
	if !records[0].Stale {
		t.Error("fallback records must be flagged stale")
	}
}

func TestFetcher_Fetch_NoCacheNoFallback_PropagatesError(t *testing.T) {
	remote := &stubRemote{err: core.ErrRemoteUnavailable}
	f := New(remote, nil, DefaultFetchConfig(), zerolog.Nop())

	_, err := f.Fetch(context.Background(), incidentSpec())
	if !errors.Is(err, core.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
}

func TestFetcher_Fetch_EmptyCache_PropagatesError(t *testing.T) {
	remote := &stubRemote{err: core.ErrRemoteUnavailable}
	f := testFetcher(t, remote)

	_, err := f.Fetch(context.Background(), incidentSpec())
	if !errors.Is(err, core.ErrRemoteUnavailable) {
		t.Fatalf("expected the remote error with no fallback entry, got %v", err)
	}
}

func TestFetcher_Fetch_SkipsUnnormalizableItems(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{
		rawIncident("P1", "triggered"),
		json.RawMessage(`{"status": "no id here"}`),
		rawIncident("P2", "triggered"),
	}}
	f := testFetcher(t, remote)

	records, err := f.Fetch(context.Background(), incidentSpec())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("items without IDs should be skipped, got %d records", len(records))
	}
}

func TestFetcher_Fetch_CanceledContext_NoCommit(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, incidentSpec()); err == nil {
		t.Fatal("expected an error from the canceled context")
	}
	// Nothing may have been committed for the canceled fetch.
	if _, err := f.Fetch(context.Background(), incidentSpec()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if remote.listCalls != 2 {
		t.Errorf("canceled fetch must not populate the cache, got %d calls", remote.listCalls)
	}
}

func TestFetcher_FetchOne_CachesResource(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	rec, err := f.FetchOne(context.Background(), core.ResourceIncident, "P1", false)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if rec.ID != "P1" {
		t.Errorf("unexpected record %+v", rec)
	}

	if _, err := f.FetchOne(context.Background(), core.ResourceIncident, "P1", false); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if remote.oneCalls != 1 {
		t.Errorf("second FetchOne should hit the cache, got %d calls", remote.oneCalls)
	}
}

func TestFetcher_FetchOne_NotFound_NoFallback(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	// Prime the cache, then make the resource disappear remotely.
	f.FetchOne(context.Background(), core.ResourceIncident, "P1", false)
	remote.err = core.ErrNotFound

	_, err := f.FetchOne(context.Background(), core.ResourceIncident, "P1", true)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("a 404 must not fall back to stale cache, got %v", err)
	}
}

func TestFetcher_FetchOne_StaleFallback(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	f.FetchOne(context.Background(), core.ResourceIncident, "P1", false)
	remote.err = core.ErrRemoteUnavailable

	rec, err := f.FetchOne(context.Background(), core.ResourceIncident, "P1", true)
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if !rec.Stale {
		t.Error("fallback record must be flagged stale")
	}
}

func TestFetcher_ListFetch_PrimesResourceCache(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	if _, err := f.Fetch(context.Background(), incidentSpec()); err != nil {
		t.Fatalf("list fetch failed: %v", err)
	}
	if _, err := f.FetchOne(context.Background(), core.ResourceIncident, "P1", false); err != nil {
		t.Fatalf("fetch one failed: %v", err)
	}
	if remote.oneCalls != 0 {
		t.Errorf("the list write-through should satisfy FetchOne, got %d calls", remote.oneCalls)
	}
}

func TestFetcher_Fetch_SubresourceRecordsCarryCollectionType(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("A1", "triggered")}}
	f := testFetcher(t, remote)

	spec := core.QuerySpec{Type: core.AlertsOf("P1"), Params: url.Values{}}
	records, err := f.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 1 || records[0].Type != core.ResourceAlert {
		t.Fatalf("alert records should carry type %q, got %+v", core.ResourceAlert, records)
	}

	// The write-through must land under alerts/<id>, not the full path.
	if _, err := f.FetchOne(context.Background(), core.ResourceAlert, "A1", false); err != nil {
		t.Fatalf("fetch one failed: %v", err)
	}
	if remote.oneCalls != 0 {
		t.Errorf("the alert write-through should satisfy FetchOne, got %d calls", remote.oneCalls)
	}
}

func TestFetcher_Fetch_SubresourceQueriesDistinctPerParent(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("A1", "triggered")}}
	f := testFetcher(t, remote)

	f.Fetch(context.Background(), core.QuerySpec{Type: core.AlertsOf("P1"), Params: url.Values{}})
	f.Fetch(context.Background(), core.QuerySpec{Type: core.AlertsOf("P2"), Params: url.Values{}})

	if remote.listCalls != 2 {
		t.Errorf("different parents must not share a query entry, got %d calls", remote.listCalls)
	}
}

func TestFetcher_FetchMany_AlignsResults(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	specs := []core.QuerySpec{
		{Type: core.ResourceIncident, Params: url.Values{}},
		{Type: core.ResourceService, Params: url.Values{}},
		{Type: core.ResourceUser, Params: url.Values{}},
	}
	results, err := f.FetchMany(context.Background(), specs)
	if err != nil {
		t.Fatalf("fetch many failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 result sets, got %d", len(results))
	}
	for i, rs := range results {
		if len(rs) != 1 {
			t.Errorf("result %d: expected 1 record, got %d", i, len(rs))
		}
	}
}

func TestFetcher_Invalidate(t *testing.T) {
	remote := &stubRemote{items: []json.RawMessage{rawIncident("P1", "triggered")}}
	f := testFetcher(t, remote)

	f.Fetch(context.Background(), incidentSpec())
	if err := f.Invalidate(core.ResourceIncident); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, err := f.FetchOne(context.Background(), core.ResourceIncident, "P1", false); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if remote.oneCalls != 1 {
		t.Errorf("invalidation should force a remote fetch, got %d calls", remote.oneCalls)
	}
}

func TestNormalize_RequiresID(t *testing.T) {
	_, err := Normalize(core.ResourceIncident, json.RawMessage(`{"status": "triggered"}`), time.Now())
	if err == nil {
		t.Fatal("items without an id must be rejected")
	}
}

func TestNormalize_VersionFromTimestamp(t *testing.T) {
	rec, err := Normalize(core.ResourceIncident,
		json.RawMessage(`{"id": "P1", "updated_at": "2026-08-01T10:00:00Z"}`), time.Now())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if rec.Version != "2026-08-01T10:00:00Z" {
		t.Errorf("version should come from updated_at, got %q", rec.Version)
	}
}

func TestNormalize_VersionFallsBackToContentHash(t *testing.T) {
	a, _ := Normalize(core.ResourceIncident, json.RawMessage(`{"id": "P1", "title": "a"}`), time.Now())
	b, _ := Normalize(core.ResourceIncident, json.RawMessage(`{"id": "P1", "title": "b"}`), time.Now())
	if a.Version == "" || b.Version == "" {
		t.Fatal("expected content-hash versions")
	}
	if a.Version == b.Version {
		t.Error("different content should hash to different versions")
	}
}
