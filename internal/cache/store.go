package cache

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdgo-project/pdgo/internal/core"
)

// Entry is one cached value: a record set plus its freshness metadata.
// An entry older than its TTL is stale and must not be served without a
// refresh attempt; it remains usable as an explicit fallback.
type Entry struct {
	Key        string        `json:"key"`
	CachedAt   time.Time     `json:"cached_at"`
	TTLSeconds int64         `json:"ttl_seconds"`
	Records    []core.Record `json:"records"`
}

// IsStale reports whether the entry's age exceeds its TTL.
func (e *Entry) IsStale(now time.Time) bool {
	ttl := time.Duration(e.TTLSeconds) * time.Second
	return ttl <= 0 || now.Sub(e.CachedAt) >= ttl
}

// ResourceKey builds the cache key for a single resource.
func ResourceKey(rt core.ResourceType, id string) string {
	return string(rt) + "/" + id
}

// QueryKey builds the cache key for a list-query fingerprint.
func QueryKey(fingerprint string) string {
	return "queries/" + fingerprint
}

// Store is a directory-of-files cache: one JSON file per key. Writes are
// atomic (temp file + rename) and guarded by a process-level lock file so
// concurrent CLI invocations can interleave without partial-write
// corruption. Corrupt entries degrade to a miss and are removed; the whole
// directory may be deleted externally and rebuilds on the next Put.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// Open prepares a store rooted at dir, creating it if needed.
func Open(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Get returns the entry for key, or ok=false on a miss. A corrupt file is
// logged, removed, and reported as a miss — never an error to the caller.
func (s *Store) Get(key string) (*Entry, bool) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		cerr := &core.CacheCorruptionError{Key: key, Err: err}
		s.logger.Warn().Err(cerr).Msg("resetting unreadable cache entry")
		_ = os.Remove(path)
		return nil, false
	}
	return &e, true
}

// Put stores an entry under key. Last-write-wins by cached_at: an existing
// entry with a later timestamp is kept (protects against interleaved
// refreshes racing each other).
func (s *Store) Put(key string, e *Entry) error {
	e.Key = key

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if prev, ok := s.Get(key); ok && prev.CachedAt.After(e.CachedAt) {
		return nil
	}

	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache subdir: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("committing cache entry: %w", err)
	}
	return nil
}

// Invalidate removes the entry for key, and any entries under it when key
// names a prefix (e.g. "incidents" drops every cached incident).
func (s *Store) Invalidate(key string) error {
	if key == "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return nil
		}
		for _, ent := range entries {
			if ent.Name() == lockName {
				continue
			}
			os.RemoveAll(filepath.Join(s.dir, ent.Name()))
		}
		return nil
	}
	os.Remove(s.path(key))
	os.RemoveAll(filepath.Join(s.dir, filepath.FromSlash(sanitize(key))))
	return nil
}

// Enumerate returns all cached keys under the given prefix, sorted. The
// prefix matches whole path segments, the same boundary Invalidate removes
// at: "incidents" lists incidents/*, "inc" lists nothing.
func (s *Store) Enumerate(prefix string) []string {
	var keys []string
	filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return nil
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), ".json")
		if prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/") {
			keys = append(keys, key)
		}
		return nil
	})
	sort.Strings(keys)
	return keys
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(sanitize(key))+".json")
}

// sanitize keeps keys filesystem-safe while preserving the key hierarchy.
// Dot-only segments are neutralized so no key can traverse out of the store
// directory.
func sanitize(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '/', c == '.', c == '-', c == '_',
			c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	segs := strings.Split(strings.Trim(b.String(), "/"), "/")
	out := segs[:0]
	for _, seg := range segs {
		if seg == "" || strings.Trim(seg, ".") == "" {
			continue
		}
		out = append(out, seg)
	}
	return strings.Join(out, "/")
}

const lockName = ".lock"

// lockStaleAfter guards against lock files orphaned by a killed process.
const lockStaleAfter = 30 * time.Second

// lock acquires the store's process-level lock file, waiting briefly for a
// concurrent invocation to finish. A lock older than lockStaleAfter is
// considered orphaned and stolen.
func (s *Store) lock() (func(), error) {
	path := filepath.Join(s.dir, lockName)
	deadline := time.Now().Add(2 * time.Second)

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquiring cache lock: %w", err)
		}

		if fi, serr := os.Stat(path); serr == nil && time.Since(fi.ModTime()) > lockStaleAfter {
			s.logger.Warn().Str("lock", path).Msg("removing stale cache lock")
			os.Remove(path)
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquiring cache lock: timed out waiting for %s", path)
		}
		time.Sleep(25 * time.Millisecond)
	}
}
