package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pdgo-project/pdgo/internal/core"
)

// Normalize maps one raw provider item into the uniform Record. All
// provider fields are preserved verbatim under their original paths —
// unknown or newly introduced fields survive a provider API change.
func Normalize(rt core.ResourceType, raw json.RawMessage, fetchedAt time.Time) (core.Record, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return core.Record{}, fmt.Errorf("decoding %s item: %w", rt.Singular(), err)
	}

	id, _ := fields["id"].(string)
	if id == "" {
		return core.Record{}, fmt.Errorf("%s item has no id", rt.Singular())
	}

	return core.Record{
		ID:        id,
		Type:      rt,
		Fields:    fields,
		FetchedAt: fetchedAt,
		Version:   versionOf(fields, raw),
	}, nil
}

// versionOf picks an opaque staleness marker: the provider's update
// timestamp when present, else a content hash.
func versionOf(fields map[string]any, raw json.RawMessage) string {
	for _, key := range []string{"updated_at", "last_status_change_at", "created_at"} {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}
