package core

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"time"
)

// QuerySpec describes one list query: the resource collection plus the
// server-side parameters. Filter is the client-side expression, carried for
// logging only — it never reaches the remote API and never enters the cache
// fingerprint, since the cached record set is the unfiltered server result.
type QuerySpec struct {
	Type      ResourceType
	Params    url.Values
	Filter    string
	WantFresh bool
	TTL       time.Duration
}

// Fingerprint returns a stable identity for the server-visible part of the
// query. Equal type+params always produce the same fingerprint regardless
// of parameter insertion order.
func (q QuerySpec) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(q.Type))
	h.Write([]byte{0})

	keys := make([]string, 0, len(q.Params))
	for k := range q.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{1})
		vals := append([]string(nil), q.Params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			h.Write([]byte(v))
			h.Write([]byte{2})
		}
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
