// Package telemetry captures query execution history: it redacts sensitive
// parameters, keeps a bounded in-memory window for ranked statistics, and
// forwards slow queries to a durable sink.
package telemetry

import (
	"context"
	"strings"
	"time"
)

// Redacted replaces the value of any sensitive parameter.
const Redacted = "[REDACTED]"

// DefaultRedactFields are matched case-insensitively as substrings of keys.
var DefaultRedactFields = []string{"password", "token", "secret", "key"}

// Entry is what the executor reports after one query reaches a final outcome.
type Entry struct {
	Name      string
	Statement string
	Elapsed   time.Duration
	Params    map[string]any
	Outcome   string // "SUCCESS" or a failure kind
	Attempts  int
	ReadOnly  bool
	Rows      int
	Error     string
}

// QueryRecord is an immutable stored record. Params are already redacted.
type QueryRecord struct {
	ID            string         `json:"id"`
	Name          string         `json:"query_name"`
	Statement     string         `json:"statement,omitempty"`
	ElapsedMs     float64        `json:"elapsed_ms"`
	Timestamp     time.Time      `json:"timestamp"`
	Params        map[string]any `json:"params,omitempty"`
	Outcome       string         `json:"outcome"`
	Attempts      int            `json:"attempts"`
	ReadOnly      bool           `json:"read_only"`
	Rows          int            `json:"rows,omitempty"`
	Slow          bool           `json:"slow"`
	ThresholdMs   float64        `json:"threshold_ms"`
	Error         string         `json:"error,omitempty"`
	RequestPath   string         `json:"request_path,omitempty"`
	RequestMethod string         `json:"request_method,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
}

// Success reports whether the record describes a successful execution.
func (r QueryRecord) Success() bool {
	return r.Outcome == "SUCCESS"
}

// RedactParams returns a copy of params with every value whose key contains
// one of fields (case-insensitive) replaced by Redacted. Nested maps are
// redacted the same way.
func RedactParams(params map[string]any, fields []string) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitive(k, fields) {
			out[k] = Redacted
			continue
		}
		switch nested := v.(type) {
		case map[string]any:
			out[k] = RedactParams(nested, fields)
		case map[string]string:
			m := make(map[string]any, len(nested))
			for nk, nv := range nested {
				m[nk] = nv
			}
			out[k] = RedactParams(m, fields)
		case []map[string]any:
			items := make([]any, len(nested))
			for i, item := range nested {
				items[i] = RedactParams(item, fields)
			}
			out[k] = items
		case []any:
			items := make([]any, len(nested))
			for i, item := range nested {
				if m, ok := item.(map[string]any); ok {
					items[i] = RedactParams(m, fields)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}

func isSensitive(key string, fields []string) bool {
	lower := strings.ToLower(key)
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// IsSlow reports whether elapsed exceeds threshold.
func IsSlow(elapsed, threshold time.Duration) bool {
	return elapsed > threshold
}

// RequestInfo identifies the inbound request a query ran for.
type RequestInfo struct {
	Path   string
	Method string
	ID     string
}

type requestKey struct{}

// WithRequest attaches request info to ctx so records can be attributed.
func WithRequest(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey{}, info)
}

// RequestFromContext returns the request info stored by WithRequest.
func RequestFromContext(ctx context.Context) (RequestInfo, bool) {
	if ctx == nil {
		return RequestInfo{}, false
	}
	info, ok := ctx.Value(requestKey{}).(RequestInfo)
	return info, ok
}
