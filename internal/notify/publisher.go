package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pdgo-project/pdgo/internal/core"
)

// Publisher pushes newly observed records onto a NATS subject so other
// tooling can react to watch-mode findings (chat bots, pagers-of-pagers,
// dashboards). Entirely optional: it is only constructed when notifications
// are enabled in config, and publish failures are logged, never fatal.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  zerolog.Logger
}

// notification is the wire payload published per batch of new records.
type notification struct {
	Type      core.ResourceType `json:"type"`
	Count     int               `json:"count"`
	Records   []core.Record     `json:"records"`
	EmittedAt time.Time         `json:"emitted_at"`
}

// Connect dials the configured NATS server. The connection is made eagerly
// so a bad URL surfaces at startup rather than on the first finding.
func Connect(cfg core.NotifyConfig, logger zerolog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("pdgo"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "pdgo"
	}

	return &Publisher{
		nc:      nc,
		subject: subject,
		logger:  logger.With().Str("component", "notify").Logger(),
	}, nil
}

// Publish sends one batch of records. Failures are logged and swallowed —
// a down notification bus must not break the watch loop.
func (p *Publisher) Publish(rt core.ResourceType, records []core.Record) {
	if len(records) == 0 {
		return
	}
	payload, err := json.Marshal(notification{
		Type:      rt,
		Count:     len(records),
		Records:   records,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("encoding notification")
		return
	}
	if err := p.nc.Publish(SubjectFor(p.subject, rt), payload); err != nil {
		p.logger.Warn().Err(err).Msg("publishing notification")
		return
	}
	p.logger.Debug().Str("type", string(rt)).Int("count", len(records)).Msg("notification published")
}

// Close flushes and drops the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Flush()
		p.nc.Close()
	}
}

// SubjectFor derives the per-resource-type subject from the configured
// prefix: prefix "pdgo" publishes incidents on "pdgo.incidents".
func SubjectFor(prefix string, rt core.ResourceType) string {
	return prefix + "." + string(rt)
}
