package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdgo-project/pdgo/internal/core"
)

// Config controls the remote client's transport behavior.
type Config struct {
	BaseURL        string
	Token          string
	Email          string // From: header on writes
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxPages       int
	PageLimit      int
}

// DefaultConfig returns sane transport defaults for the PagerDuty REST API.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.pagerduty.com",
		Timeout:        10 * time.Second,
		MaxRetries:     4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		MaxPages:       50,
		PageLimit:      100,
	}
}

// FromAPIConfig builds a transport Config from the YAML config section.
func FromAPIConfig(api core.APIConfig) Config {
	cfg := DefaultConfig()
	if api.BaseURL != "" {
		cfg.BaseURL = api.BaseURL
	}
	cfg.Token = api.Key
	cfg.Email = api.Email
	cfg.Timeout = core.Duration(api.Timeout, cfg.Timeout)
	cfg.InitialBackoff = core.Duration(api.InitialBackoff, cfg.InitialBackoff)
	cfg.MaxBackoff = core.Duration(api.MaxBackoff, cfg.MaxBackoff)
	if api.MaxRetries > 0 {
		cfg.MaxRetries = api.MaxRetries
	}
	if api.MaxPages > 0 {
		cfg.MaxPages = api.MaxPages
	}
	if api.PageLimit > 0 {
		cfg.PageLimit = api.PageLimit
	}
	return cfg
}

// Cursor is the pagination token for list endpoints. PagerDuty paginates
// classic endpoints by offset; the cursor carries the next offset.
type Cursor struct {
	Offset int
}

// Client wraps outbound HTTP calls to the incident-management API:
// authentication header injection, pagination cursoring, and rate-limit
// backoff. GETs are idempotent and retried; writes are not.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// New creates a remote client.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "remote").Logger(),
	}
}

// listEnvelope is the common shape of PagerDuty list responses: the items
// sit under the resource collection name next to pagination metadata.
type listEnvelope struct {
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
	More   bool `json:"more"`
}

// FetchPage retrieves one page of a resource collection. A nil cursor
// starts from the beginning; a nil next cursor means the collection is
// exhausted.
func (c *Client) FetchPage(ctx context.Context, rt core.ResourceType, params url.Values, cursor *Cursor) ([]json.RawMessage, *Cursor, error) {
	offset := 0
	if cursor != nil {
		offset = cursor.Offset
	}

	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("limit", strconv.Itoa(c.cfg.PageLimit))
	q.Set("offset", strconv.Itoa(offset))

	body, err := c.get(ctx, fmt.Sprintf("%s/%s?%s", c.cfg.BaseURL, rt, q.Encode()))
	if err != nil {
		return nil, nil, err
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, fmt.Errorf("parsing %s page: %w", rt, err)
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(body, &keyed); err != nil {
		return nil, nil, fmt.Errorf("parsing %s page: %w", rt, err)
	}
	var items []json.RawMessage
	if raw, ok := keyed[string(rt.Collection())]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, nil, fmt.Errorf("parsing %s items: %w", rt, err)
		}
	}

	var next *Cursor
	if envelope.More {
		step := envelope.Limit
		if step <= 0 {
			step = c.cfg.PageLimit
		}
		next = &Cursor{Offset: offset + step}
	}
	return items, next, nil
}

// FetchAll follows the cursor chain until exhaustion, bounded by MaxPages.
// Past the bound it fails with ErrExhaustedPagination — a runaway cursor
// chain signals protocol misbehavior, not more data.
func (c *Client) FetchAll(ctx context.Context, rt core.ResourceType, params url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage
	var cursor *Cursor

	for page := 0; ; page++ {
		if page >= c.cfg.MaxPages {
			return nil, fmt.Errorf("%w: %s still has more after %d pages", core.ErrExhaustedPagination, rt, page)
		}
		items, next, err := c.FetchPage(ctx, rt, params, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == nil {
			return all, nil
		}
		cursor = next
	}
}

// FetchOne retrieves a single resource by ID. The item sits under the
// singular entity name in the response envelope.
func (c *Client) FetchOne(ctx context.Context, rt core.ResourceType, id string) (json.RawMessage, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, rt, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(body, &keyed); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rt.Singular(), err)
	}
	if raw, ok := keyed[rt.Singular()]; ok {
		return raw, nil
	}
	return body, nil
}

// get performs one GET with retries. 429 and 5xx (and timeouts, treated
// identically) back off exponentially with jitter; 401/403 fail immediately.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt-1); err != nil {
				return nil, err
			}
			c.logger.Debug().Int("attempt", attempt).Str("url", rawURL).Msg("retrying request")
		}

		body, status, err := c.do(ctx, http.MethodGet, rawURL, nil, "")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if retryable, err := classify(status, body); err != nil {
			if retryable {
				lastErr = err
				continue
			}
			return nil, err
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w: %v", core.ErrRemoteUnavailable, lastErr)
}

// classify maps an HTTP status to (retryable, error). nil error means
// success.
func classify(status int, body []byte) (bool, error) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return false, fmt.Errorf("HTTP %d: %w", status, core.ErrAuthentication)
	case status == http.StatusNotFound:
		return false, fmt.Errorf("HTTP %d: %w", status, core.ErrNotFound)
	case status == http.StatusTooManyRequests || status >= 500:
		return true, fmt.Errorf("API returned HTTP %d", status)
	case status >= 400:
		return false, fmt.Errorf("API returned HTTP %d: %s", status, bytes.TrimSpace(body))
	}
	return false, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte, idempotencyKey string) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token token="+c.cfg.Token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && c.cfg.Email != "" {
		req.Header.Set("From", c.cfg.Email)
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("connecting to API at %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// backoff sleeps base×2^attempt capped at MaxBackoff, with jitter up to
// half the delay, honoring cancellation.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(c.cfg.InitialBackoff) * math.Pow(2, float64(attempt)))
	if delay > c.cfg.MaxBackoff {
		delay = c.cfg.MaxBackoff
	}
	if delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Action names accepted by PerformAction.
const (
	ActionAcknowledge = "acknowledge"
	ActionResolve     = "resolve"
	ActionSnooze      = "snooze"
	ActionReassign    = "reassign"
)

// ActionOption tweaks a single action request.
type ActionOption func(*actionOptions)

type actionOptions struct {
	idempotent bool
}

// WithIdempotencyKey attaches a generated idempotency key so the provider
// can drop an accidental duplicate. Off by default: the write is a single
// non-retried request, so duplicates only come from the caller.
func WithIdempotencyKey() ActionOption {
	return func(o *actionOptions) { o.idempotent = true }
}

// PerformAction executes a single-resource mutation (acknowledge, resolve,
// snooze, reassign). The write is fire-and-confirm: one request, no
// retries, so a flaky network can't double-apply a side effect.
func (c *Client) PerformAction(ctx context.Context, rt core.ResourceType, id, action string, payload map[string]any, opts ...ActionOption) error {
	var o actionOptions
	for _, opt := range opts {
		opt(&o)
	}

	method, rawURL, body, err := c.buildAction(rt, id, action, payload)
	if err != nil {
		return err
	}

	key := ""
	if o.idempotent {
		key = uuid.New().String()
	}

	respBody, status, err := c.do(ctx, method, rawURL, body, key)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrRemoteUnavailable, err)
	}
	if _, cerr := classify(status, respBody); cerr != nil {
		if status == http.StatusTooManyRequests || status >= 500 {
			return fmt.Errorf("%w: %v", core.ErrRemoteUnavailable, cerr)
		}
		return cerr
	}

	c.logger.Debug().
		Str("type", string(rt)).
		Str("id", id).
		Str("action", action).
		Msg("action applied")
	return nil
}

func (c *Client) buildAction(rt core.ResourceType, id, action string, payload map[string]any) (method, rawURL string, body []byte, err error) {
	base := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, rt, url.PathEscape(id))

	switch action {
	case ActionAcknowledge, ActionResolve:
		status := "acknowledged"
		if action == ActionResolve {
			status = "resolved"
		}
		body, err = json.Marshal(map[string]any{
			rt.Singular(): map[string]any{
				"type":   rt.Singular() + "_reference",
				"status": status,
			},
		})
		return http.MethodPut, base, body, err

	case ActionSnooze:
		duration, _ := payload["duration"].(int)
		if duration <= 0 {
			duration = 14400
		}
		body, err = json.Marshal(map[string]any{"duration": duration})
		return http.MethodPost, base + "/snooze", body, err

	case ActionReassign:
		userID, _ := payload["user_id"].(string)
		if userID == "" {
			return "", "", nil, fmt.Errorf("reassign requires a user_id")
		}
		body, err = json.Marshal(map[string]any{
			rt.Singular(): map[string]any{
				"type": rt.Singular() + "_reference",
				"assignments": []map[string]any{
					{"assignee": map[string]any{"id": userID, "type": "user_reference"}},
				},
			},
		})
		return http.MethodPut, base, body, err

	default:
		return "", "", nil, fmt.Errorf("unknown action %q", action)
	}
}
