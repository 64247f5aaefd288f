package graphdb

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FailureKind is the stable classification callers branch on.
type FailureKind int

const (
	KindUnknown FailureKind = iota
	KindTransient
	KindAuth
	KindUnavailable
	KindSessionExpired
	KindSyntax
)

func (k FailureKind) String() string {
	switch k {
	case KindTransient:
		return "TRANSIENT"
	case KindAuth:
		return "AUTH"
	case KindUnavailable:
		return "UNAVAILABLE"
	case KindSessionExpired:
		return "SESSION_EXPIRED"
	case KindSyntax:
		return "SYNTAX"
	default:
		return "UNKNOWN"
	}
}

// Retryable reports whether the kind may be retried at all.
func (k FailureKind) Retryable() bool {
	return k == KindTransient || k == KindUnavailable
}

// OutcomeSuccess is the telemetry outcome recorded for successful executions.
const OutcomeSuccess = "SUCCESS"

// ErrNotConnected is returned when a session is requested before the driver exists.
var ErrNotConnected = errors.New("graph database driver not connected")

// ConnectError reports a failure to establish the driver connection.
type ConnectError struct {
	Kind  FailureKind
	URI   string
	Cause error
}

func (e *ConnectError) Error() string {
	reason := "network failure"
	if e.Kind == KindAuth {
		reason = "credentials rejected"
	}
	return fmt.Sprintf("connect to %s: %s: %v", e.URI, reason, e.Cause)
}

func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// QueryError is the terminal failure of one Execute call.
type QueryError struct {
	Name      string
	Statement string
	Kind      FailureKind
	Attempts  int
	Elapsed   time.Duration
	ReadOnly  bool
	Params    map[string]any // already redacted
	Guidance  string
	Cause     error
}

func (e *QueryError) Error() string {
	var b strings.Builder
	b.WriteString(e.Brief())
	if e.Kind == KindSyntax && e.Statement != "" {
		fmt.Fprintf(&b, "\nstatement: %s", e.Statement)
	}
	if len(e.Params) > 0 {
		fmt.Fprintf(&b, "\nparams: %v", e.Params)
	}
	if e.Guidance != "" {
		fmt.Fprintf(&b, "\n%s", e.Guidance)
	}
	return b.String()
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Brief is the one-line form of the error without statement or params. It
// is what telemetry stores.
func (e *QueryError) Brief() string {
	msg := fmt.Sprintf("%s (query %q, kind %s, attempts %d, %s)",
		e.summary(), e.Name, e.Kind, e.Attempts, e.Elapsed.Round(time.Millisecond))
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *QueryError) summary() string {
	switch {
	case e.Kind == KindAuth:
		return "authentication failed"
	case e.Kind == KindSyntax:
		return "syntax error"
	case !e.ReadOnly:
		return "write operation failed"
	case e.Kind.Retryable() && e.Attempts > 1:
		return "max retries exceeded"
	case e.Kind == KindSessionExpired:
		return "session expired"
	case e.Kind == KindUnavailable:
		return "database unavailable"
	default:
		return "query failed"
	}
}

// KindOf extracts the failure kind from err, or KindUnknown.
func KindOf(err error) FailureKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
