package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdgo-project/pdgo/internal/core"
)

// Runner executes user-supplied rule programs against a fetched record
// set. A rule is any executable under the rules directory: it receives the
// records' provider fields as a JSON array on stdin and may print a JSON
// array on stdout to replace the working set. Anything else a rule prints
// is reported verbatim. Rule failures never abort the run.
type Runner struct {
	dir     string
	timeout time.Duration
	logger  zerolog.Logger
}

// Result reports one rule execution.
type Result struct {
	Rule   string
	RunID  string
	Output string // non-JSON stdout, verbatim
	Err    error
}

// New creates a runner over the given rules directory.
func New(dir string, timeout time.Duration, logger zerolog.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		dir:     dir,
		timeout: timeout,
		logger:  logger.With().Str("component", "rules").Logger(),
	}
}

// Discover returns the executable rule paths under the rules directory,
// sorted for a deterministic execution order.
func (r *Runner) Discover() ([]string, error) {
	var scripts []string
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Mode()&0111 != 0 {
			scripts = append(scripts, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning rules dir %s: %w", r.dir, err)
	}
	sort.Strings(scripts)
	return scripts, nil
}

// Apply pipes the record set through every discovered rule in order. When
// a rule prints a JSON array of objects, that array replaces the working
// set for the rest of the chain.
func (r *Runner) Apply(ctx context.Context, rt core.ResourceType, records []core.Record) ([]core.Record, []Result) {
	scripts, err := r.Discover()
	if err != nil {
		return records, []Result{{Err: err}}
	}

	var results []Result
	for _, script := range scripts {
		runID := uuid.New().String()
		out, err := r.runOne(ctx, script, records)
		res := Result{Rule: script, RunID: runID}
		if err != nil {
			res.Err = err
			results = append(results, res)
			r.logger.Warn().Err(err).Str("rule", script).Str("run_id", runID).Msg("rule failed")
			continue
		}

		replaced, repErr := decodeReplacement(rt, out)
		if repErr != nil {
			res.Output = string(bytes.TrimSpace(out))
		} else {
			records = replaced
		}
		results = append(results, res)
		r.logger.Debug().Str("rule", script).Str("run_id", runID).Int("records", len(records)).Msg("rule applied")
	}
	return records, results
}

func (r *Runner) runOne(ctx context.Context, script string, records []core.Record) ([]byte, error) {
	items := make([]map[string]any, len(records))
	for i, rec := range records {
		items[i] = rec.Fields
	}
	input, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding rule input: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, script)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("rule %s: %v: %s", filepath.Base(script), err, msg)
		}
		return nil, fmt.Errorf("rule %s: %w", filepath.Base(script), err)
	}
	return stdout.Bytes(), nil
}

// decodeReplacement interprets rule stdout as a replacement record set.
func decodeReplacement(rt core.ResourceType, out []byte) ([]core.Record, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("not a JSON array")
	}
	var items []map[string]any
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	now := time.Now()
	records := make([]core.Record, 0, len(items))
	for _, item := range items {
		id, _ := item["id"].(string)
		records = append(records, core.Record{
			ID:        id,
			Type:      rt,
			Fields:    item,
			FetchedAt: now,
		})
	}
	return records, nil
}
