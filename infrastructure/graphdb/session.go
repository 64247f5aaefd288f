package graphdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Record is one result row keyed by column name.
type Record = map[string]any

// AccessMode routes a session to a reader or writer.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
)

// Session is a single-use unit of work bound to one connection.
type Session interface {
	Run(ctx context.Context, statement string, params map[string]any) ([]Record, error)
	Close(ctx context.Context) error
}

// Driver is an established connection pool.
type Driver interface {
	NewSession(ctx context.Context, database string, mode AccessMode) (Session, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connector creates drivers. Connect must not block on the network; the
// provider verifies connectivity separately.
type Connector interface {
	Connect(ctx context.Context) (Driver, error)
	Target() string
}

// ProviderConfig configures the session provider.
type ProviderConfig struct {
	Database       string
	ConnectTimeout time.Duration
	HealthTimeout  time.Duration

	// Circuit breaker guarding connection establishment.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Database:        "neo4j",
		ConnectTimeout:  10 * time.Second,
		HealthTimeout:   5 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Provider owns the driver lifecycle and hands out scoped sessions.
type Provider struct {
	connector Connector
	config    ProviderConfig
	logger    *zap.Logger
	breaker   *gobreaker.CircuitBreaker

	connectMu sync.Mutex // serializes connection attempts
	mu        sync.RWMutex
	driver    Driver
	lastErr   error
}

// NewProvider creates a provider. No connection is made until EnsureReady.
func NewProvider(connector Connector, config ProviderConfig, logger *zap.Logger) *Provider {
	def := DefaultProviderConfig()
	if config.Database == "" {
		config.Database = def.Database
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = def.ConnectTimeout
	}
	if config.HealthTimeout <= 0 {
		config.HealthTimeout = def.HealthTimeout
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = def.BreakerFailures
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = def.BreakerTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("session_provider")

	p := &Provider{
		connector: connector,
		config:    config,
		logger:    logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graphdb-connect",
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Rejected credentials say nothing about endpoint health.
			return err == nil || Classify(err) == KindAuth
		},
	})
	return p
}

// Database returns the default database name.
func (p *Provider) Database() string {
	return p.config.Database
}

// EnsureReady establishes the driver on first use and is a no-op afterwards.
// After a failed attempt the next call tries again, once.
func (p *Provider) EnsureReady(ctx context.Context) error {
	if p.current() != nil {
		return nil
	}

	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	if p.current() != nil {
		return nil
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.connect(ctx)
	})
	if err == nil {
		return nil
	}

	var ce *ConnectError
	if !errors.As(err, &ce) {
		ce = &ConnectError{Kind: KindUnavailable, URI: p.connector.Target(), Cause: err}
	}
	p.mu.Lock()
	p.lastErr = ce
	p.mu.Unlock()

	p.logger.Error("Graph database connection failed",
		zap.String("uri", ce.URI),
		zap.String("kind", ce.Kind.String()),
		zap.Error(ce.Cause),
	)
	return ce
}

func (p *Provider) connect(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	driver, err := p.connector.Connect(connectCtx)
	if err != nil {
		return p.connectError(err)
	}
	if err := driver.VerifyConnectivity(connectCtx); err != nil {
		_ = driver.Close(context.WithoutCancel(ctx))
		return p.connectError(err)
	}

	p.mu.Lock()
	p.driver = driver
	p.lastErr = nil
	p.mu.Unlock()

	p.logger.Info("Graph database connected", zap.String("uri", p.connector.Target()))
	return nil
}

func (p *Provider) connectError(err error) *ConnectError {
	kind := KindUnavailable
	if Classify(err) == KindAuth {
		kind = KindAuth
	}
	return &ConnectError{Kind: kind, URI: p.connector.Target(), Cause: err}
}

func (p *Provider) current() Driver {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.driver
}

// LastError returns the error of the most recent failed connection attempt.
func (p *Provider) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// WithSession runs work inside a fresh session on database and releases the
// session on every exit path, including panics and caller cancellation.
// Overlapping calls never share a session.
func WithSession[T any](ctx context.Context, p *Provider, database string, mode AccessMode, work func(Session) (T, error)) (result T, err error) {
	if err := p.EnsureReady(ctx); err != nil {
		return result, err
	}
	driver := p.current()
	if driver == nil {
		return result, ErrNotConnected
	}
	if database == "" {
		database = p.config.Database
	}

	session, err := driver.NewSession(ctx, database, mode)
	if err != nil {
		return result, fmt.Errorf("acquire session: %w", err)
	}
	defer func() {
		// Release must happen even when the caller's context is done.
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil {
			p.logger.Warn("Failed to close session", zap.Error(cerr))
		}
	}()

	return work(session)
}

// HealthCheck runs a trivial round trip. It records no telemetry.
func (p *Provider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.HealthTimeout)
	defer cancel()

	records, err := WithSession(ctx, p, "", AccessRead, func(s Session) ([]Record, error) {
		return s.Run(ctx, "RETURN 1 AS ok", nil)
	})
	if err != nil {
		return err
	}
	if len(records) != 1 {
		return fmt.Errorf("health check: unexpected response (%d rows)", len(records))
	}
	switch v := records[0]["ok"].(type) {
	case int64:
		if v == 1 {
			return nil
		}
	case int:
		if v == 1 {
			return nil
		}
	}
	return fmt.Errorf("health check: unexpected response %v", records[0]["ok"])
}

// Close releases the driver. The provider may reconnect on a later EnsureReady.
func (p *Provider) Close(ctx context.Context) error {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.Lock()
	driver := p.driver
	p.driver = nil
	p.mu.Unlock()

	if driver == nil {
		return nil
	}
	if err := driver.Close(ctx); err != nil {
		return fmt.Errorf("close driver: %w", err)
	}
	p.logger.Info("Graph database driver closed")
	return nil
}
