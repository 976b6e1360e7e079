package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdgo-project/pdgo/internal/cache"
	"github.com/pdgo-project/pdgo/internal/core"
)

// Remote is the slice of the remote client the fetcher depends on.
type Remote interface {
	FetchAll(ctx context.Context, rt core.ResourceType, params url.Values) ([]json.RawMessage, error)
	FetchOne(ctx context.Context, rt core.ResourceType, id string) (json.RawMessage, error)
}

// Config controls fetcher caching and parallelism.
type Config struct {
	ListTTL     time.Duration
	ResourceTTL time.Duration
	Workers     int
}

// DefaultFetchConfig returns the fetcher defaults: short list TTL, slightly
// longer single-resource TTL, small worker pool.
func DefaultFetchConfig() Config {
	return Config{
		ListTTL:     120 * time.Second,
		ResourceTTL: 300 * time.Second,
		Workers:     4,
	}
}

// Fetcher orchestrates the remote client and the local cache store: it
// decides per request whether to serve from cache, refresh, or fall back to
// stale data, and normalizes raw provider items into Records.
type Fetcher struct {
	remote Remote
	store  *cache.Store
	cfg    Config
	logger zerolog.Logger
}

// New creates a fetcher. store may be nil to disable caching entirely.
func New(remote Remote, store *cache.Store, cfg Config, logger zerolog.Logger) *Fetcher {
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 120 * time.Second
	}
	if cfg.ResourceTTL <= 0 {
		cfg.ResourceTTL = 300 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Fetcher{
		remote: remote,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch returns the record set for one query. Cache-first unless the spec
// wants fresh data; on remote failure an existing entry — even a stale
// one — is returned with every record flagged stale, so the caller can
// surface the staleness rather than an error.
func (f *Fetcher) Fetch(ctx context.Context, spec core.QuerySpec) ([]core.Record, error) {
	key := cache.QueryKey(spec.Fingerprint())
	ttl := spec.TTL
	if ttl <= 0 {
		ttl = f.cfg.ListTTL
	}

	if f.store != nil && !spec.WantFresh {
		if e, ok := f.store.Get(key); ok && !e.IsStale(time.Now()) {
			f.logger.Debug().Str("key", key).Str("type", string(spec.Type)).Msg("cache hit")
			return e.Records, nil
		}
	}

	raws, err := f.remote.FetchAll(ctx, spec.Type, spec.Params)
	if err != nil {
		if f.store != nil && !errors.Is(err, context.Canceled) {
			if e, ok := f.store.Get(key); ok {
				f.logger.Warn().Err(err).Str("key", key).Msg("remote fetch failed, serving stale cache")
				return markStale(e.Records), nil
			}
		}
		return nil, err
	}

	// Records carry the collection type, so a subresource query like an
	// incident's alerts yields plain "alerts" records.
	rt := spec.Type.Collection()
	now := time.Now()
	records := make([]core.Record, 0, len(raws))
	for _, raw := range raws {
		rec, nerr := Normalize(rt, raw, now)
		if nerr != nil {
			f.logger.Warn().Err(nerr).Str("type", string(spec.Type)).Msg("skipping unnormalizable item")
			continue
		}
		records = append(records, rec)
	}

	// A cancelled fetch must not commit a partial result as a complete entry.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f.writeThrough(key, rt, records, now, ttl)
	return records, nil
}

// FetchOne returns a single resource by ID with the same cache-or-remote
// policy as Fetch.
func (f *Fetcher) FetchOne(ctx context.Context, rt core.ResourceType, id string, wantFresh bool) (core.Record, error) {
	key := cache.ResourceKey(rt, id)

	if f.store != nil && !wantFresh {
		if e, ok := f.store.Get(key); ok && !e.IsStale(time.Now()) && len(e.Records) == 1 {
			return e.Records[0], nil
		}
	}

	raw, err := f.remote.FetchOne(ctx, rt, id)
	if err != nil {
		if f.store != nil && !errors.Is(err, core.ErrNotFound) {
			if e, ok := f.store.Get(key); ok && len(e.Records) == 1 {
				f.logger.Warn().Err(err).Str("key", key).Msg("remote fetch failed, serving stale cache")
				return markStale(e.Records)[0], nil
			}
		}
		return core.Record{}, err
	}

	now := time.Now()
	rec, err := Normalize(rt, raw, now)
	if err != nil {
		return core.Record{}, err
	}
	if ctx.Err() != nil {
		return core.Record{}, ctx.Err()
	}

	if f.store != nil {
		f.putEntry(key, []core.Record{rec}, now, f.cfg.ResourceTTL)
	}
	return rec, nil
}

// FetchMany runs independent queries through a bounded worker pool. Results
// align with the input specs. Distinct specs never share a cache key, so
// no key sees concurrent writes.
func (f *Fetcher) FetchMany(ctx context.Context, specs []core.QuerySpec) ([][]core.Record, error) {
	results := make([][]core.Record, len(specs))
	errs := make([]error, len(specs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < f.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = f.Fetch(ctx, specs[i])
			}
		}()
	}
	for i := range specs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, errors.Join(errs...)
}

// Invalidate drops cached state for a resource type, or everything when rt
// is empty.
func (f *Fetcher) Invalidate(rt core.ResourceType) error {
	if f.store == nil {
		return nil
	}
	if rt == "" {
		return f.store.Invalidate("")
	}
	return f.store.Invalidate(string(rt))
}

// writeThrough commits the query entry and the per-resource entries. The
// per-resource writes let FetchOne and offline lookups hit without a list
// query.
func (f *Fetcher) writeThrough(queryKey string, rt core.ResourceType, records []core.Record, now time.Time, ttl time.Duration) {
	if f.store == nil {
		return
	}
	f.putEntry(queryKey, records, now, ttl)
	for _, rec := range records {
		f.putEntry(cache.ResourceKey(rt, rec.ID), []core.Record{rec}, now, f.cfg.ResourceTTL)
	}
}

func (f *Fetcher) putEntry(key string, records []core.Record, now time.Time, ttl time.Duration) {
	err := f.store.Put(key, &cache.Entry{
		CachedAt:   now,
		TTLSeconds: int64(ttl / time.Second),
		Records:    records,
	})
	if err != nil {
		// Cache trouble never fails the fetch.
		f.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func markStale(records []core.Record) []core.Record {
	out := make([]core.Record, len(records))
	for i, r := range records {
		r.Stale = true
		out[i] = r
	}
	return out
}
