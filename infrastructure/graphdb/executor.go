package graphdb

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"wisdom-backend/infrastructure/telemetry"
)

// Query describes one named, parameterized statement.
type Query struct {
	Name      string // stable telemetry aggregation key
	Statement string
	Params    map[string]any
	ReadOnly  bool
	Database  string // empty uses the provider default
}

// Result is a successful execution.
type Result struct {
	Records  []Record
	Elapsed  time.Duration
	Attempts int
}

// Recorder receives exactly one entry per Execute call.
type Recorder interface {
	Record(ctx context.Context, entry telemetry.Entry)
}

// QueryObserver receives execution measurements, typically for metrics.
type QueryObserver interface {
	ObserveQuery(name, outcome string, readOnly bool, elapsed time.Duration, attempts int)
	ObserveRetry(name string, kind string)
}

// Executor runs queries through the provider, applying the retry policy and
// reporting each final outcome to the recorder.
type Executor struct {
	provider *Provider
	policy   *RetryPolicy
	recorder Recorder
	observer QueryObserver
	tracer   trace.Tracer
	logger   *zap.Logger

	attemptTimeout time.Duration
	redactFields   func() []string
	sleep          func(ctx context.Context, d time.Duration) error
	now            func() time.Time
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithRecorder sets the telemetry recorder.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithObserver sets the metrics observer.
func WithObserver(o QueryObserver) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// WithAttemptTimeout bounds a single attempt. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.attemptTimeout = d }
}

// WithRedactFields supplies the parameter names masked in returned errors.
func WithRedactFields(fields func() []string) ExecutorOption {
	return func(e *Executor) { e.redactFields = fields }
}

// WithSleep replaces the backoff sleep. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *Executor) { e.sleep = sleep }
}

// WithExecutorClock replaces the time source. Used by tests.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an executor.
func NewExecutor(provider *Provider, policy *RetryPolicy, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	if policy == nil {
		policy = NewRetryPolicy(DefaultRetryConfig())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		provider:       provider,
		policy:         policy,
		tracer:         otel.Tracer("wisdom-backend/graphdb"),
		logger:         logger.Named("graphdb"),
		attemptTimeout: 30 * time.Second,
		redactFields:   func() []string { return telemetry.DefaultRedactFields },
		sleep:          sleepContext,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the retry policy in use.
func (e *Executor) Policy() *RetryPolicy {
	return e.policy
}

// Execute runs q to a final outcome. Read-only queries failing with a
// transient or unavailable error are retried with backoff; every other
// failure is returned at once as a *QueryError.
//
// Cancellation of ctx is advisory: the statement in flight runs to completion
// and releases its session, no further attempt starts, and the caller gets an
// UNAVAILABLE *QueryError wrapping ctx.Err().
func (e *Executor) Execute(ctx context.Context, q Query) (*Result, error) {
	if q.Name == "" {
		q.Name = "unnamed"
	}

	var attempts atomic.Int32
	if ctx.Done() == nil {
		return e.run(ctx, ctx, q, &attempts)
	}

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	start := e.now()
	go func() {
		result, err := e.run(context.WithoutCancel(ctx), ctx, q, &attempts)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, &QueryError{
			Name:     q.Name,
			Kind:     KindUnavailable,
			Attempts: int(attempts.Load()),
			Elapsed:  e.now().Sub(start),
			ReadOnly: q.ReadOnly,
			Cause:    ctx.Err(),
		}
	}
}

// run is the attempt loop. Statements execute on loopCtx; callerCtx only
// decides whether another attempt may start.
func (e *Executor) run(loopCtx, callerCtx context.Context, q Query, attempts *atomic.Int32) (*Result, error) {
	start := e.now()
	ctx, span := e.tracer.Start(loopCtx, "graphdb.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "neo4j"),
			attribute.String("db.query.name", q.Name),
			attribute.Bool("db.read_only", q.ReadOnly),
		),
	)
	defer span.End()

	mode := AccessWrite
	if q.ReadOnly {
		mode = AccessRead
	}

	for attempt := 1; ; attempt++ {
		attempts.Store(int32(attempt))

		records, err := e.attempt(ctx, q, mode)
		if err == nil {
			elapsed := e.now().Sub(start)
			span.SetAttributes(attribute.Int("db.attempts", attempt), attribute.Int("db.rows", len(records)))
			e.finish(ctx, q, elapsed, attempt, OutcomeSuccess, len(records), "")
			return &Result{Records: records, Elapsed: elapsed, Attempts: attempt}, nil
		}

		kind := e.policy.Classify(err)
		if e.policy.ShouldRetry(kind, attempt, q.ReadOnly) && callerCtx.Err() == nil {
			delay := e.policy.NextDelay(attempt)
			e.logger.Debug("Retrying graph query",
				zap.String("query", q.Name),
				zap.String("kind", kind.String()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if e.observer != nil {
				e.observer.ObserveRetry(q.Name, kind.String())
			}
			if serr := e.sleep(callerCtx, delay); serr == nil {
				continue
			}
		}

		elapsed := e.now().Sub(start)
		qerr := e.queryError(q, kind, attempt, elapsed, err)
		span.SetAttributes(attribute.Int("db.attempts", attempt), attribute.String("db.failure_kind", kind.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		e.logFailure(qerr)
		e.finish(ctx, q, elapsed, attempt, kind.String(), 0, qerr.Brief())
		return nil, qerr
	}
}

func (e *Executor) attempt(ctx context.Context, q Query, mode AccessMode) ([]Record, error) {
	if e.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
		defer cancel()
	}
	return WithSession(ctx, e.provider, q.Database, mode, func(s Session) ([]Record, error) {
		return s.Run(ctx, q.Statement, q.Params)
	})
}

func (e *Executor) queryError(q Query, kind FailureKind, attempts int, elapsed time.Duration, cause error) *QueryError {
	qerr := &QueryError{
		Name:      q.Name,
		Statement: q.Statement,
		Kind:      kind,
		Attempts:  attempts,
		Elapsed:   elapsed,
		ReadOnly:  q.ReadOnly,
		Params:    telemetry.RedactParams(q.Params, e.redactFields()),
		Cause:     cause,
	}
	if kind == KindSyntax {
		qerr.Guidance = SyntaxGuidance(cause.Error())
	}
	return qerr
}

func (e *Executor) logFailure(qerr *QueryError) {
	fields := []zap.Field{
		zap.String("query", qerr.Name),
		zap.String("kind", qerr.Kind.String()),
		zap.Int("attempts", qerr.Attempts),
		zap.Duration("elapsed", qerr.Elapsed),
		zap.Bool("readOnly", qerr.ReadOnly),
		zap.Error(qerr.Cause),
	}
	if qerr.Guidance != "" {
		fields = append(fields, zap.String("guidance", qerr.Guidance))
	}
	e.logger.Error("Graph query failed", fields...)
}

// finish emits the single telemetry entry and metrics for one call.
func (e *Executor) finish(ctx context.Context, q Query, elapsed time.Duration, attempts int, outcome string, rows int, errMsg string) {
	if e.observer != nil {
		e.observer.ObserveQuery(q.Name, outcome, q.ReadOnly, elapsed, attempts)
	}
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, telemetry.Entry{
		Name:      q.Name,
		Statement: q.Statement,
		Elapsed:   elapsed,
		Params:    q.Params,
		Outcome:   outcome,
		Attempts:  attempts,
		ReadOnly:  q.ReadOnly,
		Rows:      rows,
		Error:     errMsg,
	})
}

// HealthCheck runs the provider's round trip under the retry policy. It does
// not record telemetry. An unreachable endpoint fails with UNAVAILABLE after
// at most MaxAttempts tries, and the whole call, backoff included, finishes
// within MaxAttempts*MaxDelay.
func (e *Executor) HealthCheck(ctx context.Context) error {
	cfg := e.policy.Config()
	budget := time.Duration(cfg.MaxAttempts) * cfg.MaxDelay
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := e.now()
	for attempt := 1; ; attempt++ {
		attemptCtx, attemptCancel := context.WithTimeout(ctx, cfg.MaxDelay)
		err := e.provider.HealthCheck(attemptCtx)
		attemptCancel()
		if err == nil {
			return nil
		}

		kind := e.policy.Classify(err)
		if e.policy.ShouldRetry(kind, attempt, true) && ctx.Err() == nil {
			if serr := e.sleep(ctx, e.policy.NextDelay(attempt)); serr == nil {
				continue
			}
		}
		return &QueryError{
			Name:     "health_check",
			Kind:     kind,
			Attempts: attempt,
			Elapsed:  e.now().Sub(start),
			ReadOnly: true,
			Cause:    err,
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
