package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdgo-project/pdgo/internal/core"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return s
}

func testEntry(ids ...string) *Entry {
	records := make([]core.Record, len(ids))
	for i, id := range ids {
		records[i] = core.Record{
			ID:     id,
			Type:   core.ResourceIncident,
			Fields: map[string]any{"id": id, "status": "triggered"},
		}
	}
	return &Entry{CachedAt: time.Now(), TTLSeconds: 120, Records: records}
}

func TestStore_PutGet_RoundTrip(t *testing.T) {
	s := testStore(t)
	if err := s.Put("incidents/P1", testEntry("P1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	e, ok := s.Get("incidents/P1")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if len(e.Records) != 1 || e.Records[0].ID != "P1" {
		t.Errorf("unexpected records: %+v", e.Records)
	}
	if e.Records[0].Fields["status"] != "triggered" {
		t.Error("provider fields should survive the round trip")
	}
}

func TestStore_Get_Miss(t *testing.T) {
	s := testStore(t)
	if _, ok := s.Get("incidents/NOPE"); ok {
		t.Error("expected a miss for an unknown key")
	}
}

func TestStore_Entry_Staleness(t *testing.T) {
	e := &Entry{CachedAt: time.Now(), TTLSeconds: 120}
	if e.IsStale(time.Now()) {
		t.Error("a fresh entry should not be stale")
	}
	if !e.IsStale(time.Now().Add(121 * time.Second)) {
		t.Error("an entry past its TTL should be stale")
	}
	if !e.IsStale(time.Now().Add(120 * time.Second)) {
		t.Error("an entry exactly at its TTL should be stale")
	}
}

func TestStore_Entry_ZeroTTL_AlwaysStale(t *testing.T) {
	e := &Entry{CachedAt: time.Now()}
	if !e.IsStale(time.Now()) {
		t.Error("a zero-TTL entry should always be stale")
	}
}

func TestStore_CorruptEntry_BecomesMissAndIsRemoved(t *testing.T) {
	s := testStore(t)
	if err := s.Put("incidents/P1", testEntry("P1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	path := s.path("incidents/P1")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("corrupting entry: %v", err)
	}

	if _, ok := s.Get("incidents/P1"); ok {
		t.Error("corrupt entry should read as a miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry file should be removed")
	}
	// The store must be usable again for the same key.
	if err := s.Put("incidents/P1", testEntry("P1")); err != nil {
		t.Fatalf("re-put after corruption failed: %v", err)
	}
	if _, ok := s.Get("incidents/P1"); !ok {
		t.Error("expected a hit after rewriting the corrupted key")
	}
}

func TestStore_Put_LastWriteWins(t *testing.T) {
	s := testStore(t)
	newer := testEntry("P1")
	newer.CachedAt = time.Now()
	older := testEntry("P1")
	older.CachedAt = newer.CachedAt.Add(-time.Minute)
	older.Records[0].Fields["status"] = "stale-data"

	if err := s.Put("incidents/P1", newer); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Put("incidents/P1", older); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	e, ok := s.Get("incidents/P1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if e.Records[0].Fields["status"] == "stale-data" {
		t.Error("an older write should not clobber a newer entry")
	}
}

func TestStore_Invalidate_SingleKey(t *testing.T) {
	s := testStore(t)
	s.Put("incidents/P1", testEntry("P1"))
	s.Put("incidents/P2", testEntry("P2"))

	if err := s.Invalidate("incidents/P1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok := s.Get("incidents/P1"); ok {
		t.Error("invalidated key should miss")
	}
	if _, ok := s.Get("incidents/P2"); !ok {
		t.Error("other keys should survive")
	}
}

func TestStore_Invalidate_Prefix(t *testing.T) {
	s := testStore(t)
	s.Put("incidents/P1", testEntry("P1"))
	s.Put("incidents/P2", testEntry("P2"))
	s.Put("services/S1", testEntry("S1"))

	if err := s.Invalidate("incidents"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok := s.Get("incidents/P1"); ok {
		t.Error("prefix invalidation should drop all incidents")
	}
	if _, ok := s.Get("services/S1"); !ok {
		t.Error("other resource types should survive")
	}
}

func TestStore_Invalidate_All(t *testing.T) {
	s := testStore(t)
	s.Put("incidents/P1", testEntry("P1"))
	s.Put("services/S1", testEntry("S1"))

	if err := s.Invalidate(""); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if keys := s.Enumerate(""); len(keys) != 0 {
		t.Errorf("expected an empty store, got %v", keys)
	}
}

func TestStore_Enumerate(t *testing.T) {
	s := testStore(t)
	s.Put("incidents/P1", testEntry("P1"))
	s.Put("incidents/P2", testEntry("P2"))
	s.Put("queries/abc123", testEntry("P1", "P2"))

	keys := s.Enumerate("")
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %v", keys)
	}
	// Sorted output
	if keys[0] != "incidents/P1" || keys[1] != "incidents/P2" || keys[2] != "queries/abc123" {
		t.Errorf("unexpected key order: %v", keys)
	}

	onlyIncidents := s.Enumerate("incidents")
	if len(onlyIncidents) != 2 {
		t.Errorf("expected 2 incident keys, got %v", onlyIncidents)
	}
}

func TestStore_Enumerate_SegmentBoundary(t *testing.T) {
	s := testStore(t)
	s.Put("incidents/P1", testEntry("P1"))
	s.Put("incidents/P2", testEntry("P2"))

	// A partial segment must not match: anything Enumerate lists under a
	// prefix, Invalidate with that prefix must be able to drop.
	if keys := s.Enumerate("inc"); len(keys) != 0 {
		t.Errorf("partial segment should list nothing, got %v", keys)
	}
	if keys := s.Enumerate("incidents"); len(keys) != 2 {
		t.Errorf("whole segment should list both entries, got %v", keys)
	}

	s.Invalidate("inc")
	if keys := s.Enumerate("incidents"); len(keys) != 2 {
		t.Errorf("partial-segment invalidation should drop nothing, got %v", keys)
	}
	s.Invalidate("incidents")
	if keys := s.Enumerate("incidents"); len(keys) != 0 {
		t.Errorf("whole-segment invalidation should drop everything, got %v", keys)
	}
}

func TestStore_ExternalDeletion_Rebuilds(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	s.Put("incidents/P1", testEntry("P1"))

	// Simulate the user deleting the whole cache directory.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("removing cache dir: %v", err)
	}

	if _, ok := s.Get("incidents/P1"); ok {
		t.Error("expected a miss after external deletion")
	}
	if err := s.Put("incidents/P1", testEntry("P1")); err != nil {
		t.Fatalf("put after external deletion failed: %v", err)
	}
	if _, ok := s.Get("incidents/P1"); !ok {
		t.Error("store should rebuild the directory on the next put")
	}
}

func TestStore_SanitizedKeys(t *testing.T) {
	s := testStore(t)
	if err := s.Put("incidents/../../etc/passwd", testEntry("P1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	// Nothing may land outside the store directory.
	outside := filepath.Join(s.dir, "..", "..")
	if _, err := os.Stat(filepath.Join(outside, "etc", "passwd.json")); err == nil {
		t.Error("sanitization must keep entries inside the cache dir")
	}
}

func TestStore_StaleLock_IsStolen(t *testing.T) {
	s := testStore(t)
	lockPath := filepath.Join(s.dir, lockName)
	if err := os.WriteFile(lockPath, []byte("12345\n"), 0644); err != nil {
		t.Fatalf("planting lock: %v", err)
	}
	old := time.Now().Add(-2 * lockStaleAfter)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatalf("backdating lock: %v", err)
	}

	if err := s.Put("incidents/P1", testEntry("P1")); err != nil {
		t.Fatalf("put should steal an orphaned lock, got: %v", err)
	}
}

func TestResourceKey_QueryKey(t *testing.T) {
	if got := ResourceKey(core.ResourceIncident, "P1"); got != "incidents/P1" {
		t.Errorf("unexpected resource key %q", got)
	}
	if got := QueryKey("abc123"); got != "queries/abc123" {
		t.Errorf("unexpected query key %q", got)
	}
}
