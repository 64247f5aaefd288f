package graphdb

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"
)

// RetryConfig defines retry behavior for read queries.
type RetryConfig struct {
	MaxAttempts int           // total tries, including the first
	BaseDelay   time.Duration // base of the exponential backoff
	MaxDelay    time.Duration // cap on any single delay
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// RetryPolicy classifies failures and decides whether and when to retry.
// It is safe for concurrent use.
type RetryPolicy struct {
	config RetryConfig

	mu   sync.Mutex
	rand *rand.Rand
}

// NewRetryPolicy creates a policy. Zero fields fall back to the defaults.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	def := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = def.BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	return &RetryPolicy{
		config: config,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSeed makes jitter reproducible. Used by tests.
func (p *RetryPolicy) WithSeed(seed int64) *RetryPolicy {
	p.mu.Lock()
	p.rand = rand.New(rand.NewSource(seed))
	p.mu.Unlock()
	return p
}

// Config returns the effective configuration.
func (p *RetryPolicy) Config() RetryConfig {
	return p.config
}

// MaxAttempts returns the total number of tries allowed per execution.
func (p *RetryPolicy) MaxAttempts() int {
	return p.config.MaxAttempts
}

// ShouldRetry reports whether another attempt follows attempt number attempt
// (1-based). Writes are never retried: a partially applied mutation must not
// be replayed.
func (p *RetryPolicy) ShouldRetry(kind FailureKind, attempt int, readOnly bool) bool {
	if !kind.Retryable() || !readOnly {
		return false
	}
	return attempt < p.config.MaxAttempts
}

// NextDelay returns base*2^attempt shifted by a jitter in [-base, base),
// clamped to [0, MaxDelay].
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := float64(p.config.BaseDelay)
	backoff := base * math.Pow(2, float64(attempt))

	p.mu.Lock()
	jitter := (p.rand.Float64()*2 - 1) * base
	p.mu.Unlock()

	delay := backoff + jitter
	if delay < 0 {
		delay = 0
	}
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}

// Neo4j status codes that invalidate the session's routing or transaction
// state; the caller has to start over instead of retrying in place.
var sessionExpiredCodes = map[string]struct{}{
	"Neo.ClientError.Cluster.NotALeader":                  {},
	"Neo.ClientError.General.ForbiddenOnReadOnlyDatabase": {},
	"Neo.ClientError.Transaction.TransactionNotFound":     {},
	"Neo.ClientError.Security.TokenExpired":               {},
}

// Classify maps a driver or transport error to a FailureKind. The mapping
// depends only on the error's type and status code.
func (p *RetryPolicy) Classify(err error) FailureKind {
	return Classify(err)
}

// Classify is the package-level form of RetryPolicy.Classify.
func Classify(err error) FailureKind {
	if err == nil {
		return KindUnknown
	}

	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return classifyCode(neoErr.Code)
	}

	var connErr *neo4j.ConnectivityError
	if errors.As(err, &connErr) {
		return KindUnavailable
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return KindUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindUnavailable
	}

	return KindUnknown
}

// classifyCode classifies a "Neo.<Classification>.<Category>.<Title>" code.
func classifyCode(code string) FailureKind {
	if _, ok := sessionExpiredCodes[code]; ok {
		return KindSessionExpired
	}

	parts := strings.Split(code, ".")
	if len(parts) != 4 || parts[0] != "Neo" {
		return KindUnknown
	}
	classification, category := parts[1], parts[2]

	switch {
	case classification == "TransientError":
		return KindTransient
	case classification == "ClientError" && category == "Security":
		return KindAuth
	case classification == "ClientError" && category == "Statement":
		return KindSyntax
	default:
		return KindUnknown
	}
}
