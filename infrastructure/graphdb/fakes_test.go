package graphdb

import (
	"context"
	"sync"
	"time"

	"wisdom-backend/infrastructure/telemetry"
)

// runFunc answers one statement. call counts from 1 across the driver.
type runFunc func(call int, statement string, params map[string]any) ([]Record, error)

type fakeDriver struct {
	mu        sync.Mutex
	run       runFunc
	calls     int
	opened    int
	closed    int
	active    int
	maxActive int
	modes     []AccessMode
	verifyErr error
	shutdown  bool
}

func (d *fakeDriver) NewSession(_ context.Context, _ string, mode AccessMode) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	d.active++
	if d.active > d.maxActive {
		d.maxActive = d.active
	}
	d.modes = append(d.modes, mode)
	return &fakeSession{driver: d, id: d.opened}, nil
}

func (d *fakeDriver) VerifyConnectivity(context.Context) error {
	return d.verifyErr
}

func (d *fakeDriver) Close(context.Context) error {
	d.mu.Lock()
	d.shutdown = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) counts() (opened, closed, calls int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.closed, d.calls
}

type fakeSession struct {
	driver *fakeDriver
	id     int
	closed bool
}

func (s *fakeSession) Run(_ context.Context, statement string, params map[string]any) ([]Record, error) {
	s.driver.mu.Lock()
	s.driver.calls++
	call := s.driver.calls
	run := s.driver.run
	s.driver.mu.Unlock()

	if run == nil {
		return []Record{{"ok": int64(1)}}, nil
	}
	return run(call, statement, params)
}

func (s *fakeSession) Close(context.Context) error {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.driver.closed++
		s.driver.active--
	}
	return nil
}

type fakeConnector struct {
	mu         sync.Mutex
	driver     *fakeDriver
	connectErr func(n int) error
	connects   int
}

func (c *fakeConnector) Connect(context.Context) (Driver, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectErr != nil {
		if err := c.connectErr(c.connects); err != nil {
			return nil, err
		}
	}
	return c.driver, nil
}

func (c *fakeConnector) Target() string {
	return "bolt://fake:7687"
}

func (c *fakeConnector) connectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []telemetry.Entry
}

func (r *fakeRecorder) Record(_ context.Context, e telemetry.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *fakeRecorder) snapshot() []telemetry.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.Entry(nil), r.entries...)
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepLog) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

func newTestProvider(driver *fakeDriver) (*Provider, *fakeConnector) {
	connector := &fakeConnector{driver: driver}
	return NewProvider(connector, ProviderConfig{}, nil), connector
}
