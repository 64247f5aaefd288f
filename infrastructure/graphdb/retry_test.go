package graphdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func neoErr(code string) error {
	return &neo4j.Neo4jError{Code: code, Msg: "test"}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"transient code", neoErr("Neo.TransientError.General.DatabaseUnavailable"), KindTransient},
		{"deadlock is transient", neoErr("Neo.TransientError.Transaction.DeadlockDetected"), KindTransient},
		{"unauthorized", neoErr("Neo.ClientError.Security.Unauthorized"), KindAuth},
		{"forbidden", neoErr("Neo.ClientError.Security.Forbidden"), KindAuth},
		{"token expired", neoErr("Neo.ClientError.Security.TokenExpired"), KindSessionExpired},
		{"not a leader", neoErr("Neo.ClientError.Cluster.NotALeader"), KindSessionExpired},
		{"read only database", neoErr("Neo.ClientError.General.ForbiddenOnReadOnlyDatabase"), KindSessionExpired},
		{"syntax", neoErr("Neo.ClientError.Statement.SyntaxError"), KindSyntax},
		{"missing parameter", neoErr("Neo.ClientError.Statement.ParameterMissing"), KindSyntax},
		{"database error", neoErr("Neo.DatabaseError.General.UnknownError"), KindUnknown},
		{"malformed code", neoErr("Oops"), KindUnknown},
		{"wrapped neo4j error", fmt.Errorf("run: %w", neoErr("Neo.TransientError.General.OutOfMemoryError")), KindTransient},
		{"network error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindUnavailable},
		{"eof", io.EOF, KindUnavailable},
		{"deadline", context.DeadlineExceeded, KindUnavailable},
		{"breaker open", gobreaker.ErrOpenState, KindUnavailable},
		{"not connected", ErrNotConnected, KindUnavailable},
		{"connect error keeps kind", &ConnectError{Kind: KindAuth, Cause: errors.New("bad")}, KindAuth},
		{"query error keeps kind", &QueryError{Kind: KindSyntax}, KindSyntax},
		{"plain error", errors.New("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
			// Same input, same answer.
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := NewRetryPolicy(DefaultRetryConfig())

	tests := []struct {
		name     string
		kind     FailureKind
		attempt  int
		readOnly bool
		want     bool
	}{
		{"transient read first attempt", KindTransient, 1, true, true},
		{"unavailable read second attempt", KindUnavailable, 2, true, true},
		{"attempts exhausted", KindTransient, 3, true, false},
		{"write never retried", KindTransient, 1, false, false},
		{"auth never retried", KindAuth, 1, true, false},
		{"syntax never retried", KindSyntax, 1, true, false},
		{"session expired not retried", KindSessionExpired, 1, true, false},
		{"unknown not retried", KindUnknown, 1, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ShouldRetry(tt.kind, tt.attempt, tt.readOnly))
		})
	}
}

func TestRetryPolicy_NextDelay(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
	policy := NewRetryPolicy(cfg).WithSeed(42)

	for attempt := 0; attempt <= 6; attempt++ {
		backoff := cfg.BaseDelay * time.Duration(1<<attempt)
		low := backoff - cfg.BaseDelay
		high := backoff + cfg.BaseDelay
		if high > cfg.MaxDelay {
			high = cfg.MaxDelay
		}
		if low > cfg.MaxDelay {
			low = cfg.MaxDelay
		}

		for i := 0; i < 50; i++ {
			d := policy.NextDelay(attempt)
			assert.GreaterOrEqual(t, d, low, "attempt %d", attempt)
			assert.LessOrEqual(t, d, high, "attempt %d", attempt)
		}
	}

	t.Run("Should never go negative", func(t *testing.T) {
		assert.GreaterOrEqual(t, policy.NextDelay(-3), time.Duration(0))
	})
}

func TestNewRetryPolicy_Defaults(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{})
	assert.Equal(t, DefaultRetryConfig(), policy.Config())
	assert.Equal(t, 3, policy.MaxAttempts())
}
