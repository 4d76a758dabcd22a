package freshness

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Status is the sync-freshness indicator shown next to the dashboard.
// It is informational and never feeds a metric.
type Status struct {
	Known         bool      `json:"known"`
	LastSuccess   time.Time `json:"last_success"`
	LastAction    string    `json:"last_action,omitempty"`
	LastAttempt   time.Time `json:"last_attempt"`
	LastAttemptOK bool      `json:"last_attempt_ok"`
	Entries       int       `json:"entries"`
	Malformed     int       `json:"malformed"`
}

// Age returns how long ago the last successful sync happened
func (s Status) Age(now time.Time) (time.Duration, bool) {
	if !s.Known || s.LastSuccess.IsZero() {
		return 0, false
	}
	return now.Sub(s.LastSuccess), true
}

// entry is one line of the sync action log
type entry struct {
	Timestamp string          `json:"timestamp"`
	Action    string          `json:"action"`
	Success   *bool           `json:"success"`
	Details   json.RawMessage `json:"details"`
}

// Writers emit naive UTC timestamps, with or without fractional seconds
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Reader reads the JSON-lines action log written by the CRM sync
type Reader struct {
	path string
}

// NewReader creates a reader for the log at path
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the log location
func (r *Reader) Path() string {
	return r.path
}

// Read scans the whole log. A missing log gives Known=false and no error.
func (r *Reader) Read(ctx context.Context) (Status, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("open sync log: %w", err)
	}
	defer f.Close()

	return Parse(ctx, f)
}

// Parse scans log lines from rd. Malformed lines are counted and skipped.
func Parse(ctx context.Context, rd io.Reader) (Status, error) {
	var st Status

	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return Status{}, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			st.Malformed++
			continue
		}
		ts, err := parseTimestamp(e.Timestamp)
		if err != nil {
			st.Malformed++
			continue
		}

		st.Entries++
		// entries without a success flag are treated as successful
		ok := e.Success == nil || *e.Success

		if !ts.Before(st.LastAttempt) {
			st.LastAttempt = ts
			st.LastAttemptOK = ok
		}
		if ok && !ts.Before(st.LastSuccess) {
			st.LastSuccess = ts
			st.LastAction = e.Action
		}
	}
	if err := sc.Err(); err != nil {
		return Status{}, fmt.Errorf("read sync log: %w", err)
	}

	st.Known = !st.LastSuccess.IsZero()
	return st, nil
}
