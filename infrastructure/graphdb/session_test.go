package graphdb

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_EnsureReady(t *testing.T) {
	t.Run("Should connect lazily and only once", func(t *testing.T) {
		provider, connector := newTestProvider(&fakeDriver{})
		assert.Equal(t, 0, connector.connectCount())

		require.NoError(t, provider.EnsureReady(context.Background()))
		require.NoError(t, provider.EnsureReady(context.Background()))
		assert.Equal(t, 1, connector.connectCount())
	})

	t.Run("Should retry after a failed attempt", func(t *testing.T) {
		driver := &fakeDriver{}
		connector := &fakeConnector{
			driver: driver,
			connectErr: func(n int) error {
				if n == 1 {
					return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
				}
				return nil
			},
		}
		provider := NewProvider(connector, ProviderConfig{}, nil)

		err := provider.EnsureReady(context.Background())
		require.Error(t, err)
		var ce *ConnectError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, KindUnavailable, ce.Kind)
		assert.Equal(t, "bolt://fake:7687", ce.URI)
		assert.Equal(t, err, provider.LastError())

		require.NoError(t, provider.EnsureReady(context.Background()))
		assert.Equal(t, 2, connector.connectCount())
		assert.NoError(t, provider.LastError())
	})

	t.Run("Should classify rejected credentials as auth", func(t *testing.T) {
		driver := &fakeDriver{verifyErr: neoErr("Neo.ClientError.Security.Unauthorized")}
		provider, _ := newTestProvider(driver)

		err := provider.EnsureReady(context.Background())
		assert.Equal(t, KindAuth, KindOf(err))
		assert.Contains(t, err.Error(), "credentials rejected")
		assert.True(t, driver.shutdown)
	})

	t.Run("Should fail fast once the breaker opens", func(t *testing.T) {
		connector := &fakeConnector{
			driver:     &fakeDriver{},
			connectErr: func(int) error { return errors.New("unreachable") },
		}
		provider := NewProvider(connector, ProviderConfig{BreakerFailures: 2}, nil)

		for i := 0; i < 5; i++ {
			err := provider.EnsureReady(context.Background())
			assert.Equal(t, KindUnavailable, KindOf(err))
		}
		assert.Equal(t, 2, connector.connectCount())
	})
}

func TestWithSession(t *testing.T) {
	t.Run("Should release the session after success", func(t *testing.T) {
		driver := &fakeDriver{}
		provider, _ := newTestProvider(driver)

		records, err := WithSession(context.Background(), provider, "", AccessRead, func(s Session) ([]Record, error) {
			return s.Run(context.Background(), "RETURN 1 AS ok", nil)
		})
		require.NoError(t, err)
		assert.Len(t, records, 1)

		opened, closed, _ := driver.counts()
		assert.Equal(t, 1, opened)
		assert.Equal(t, 1, closed)
	})

	t.Run("Should release the session after an error", func(t *testing.T) {
		driver := &fakeDriver{}
		provider, _ := newTestProvider(driver)

		_, err := WithSession(context.Background(), provider, "", AccessWrite, func(Session) (int, error) {
			return 0, errors.New("work failed")
		})
		require.Error(t, err)

		opened, closed, _ := driver.counts()
		assert.Equal(t, opened, closed)
	})

	t.Run("Should release the session after a panic", func(t *testing.T) {
		driver := &fakeDriver{}
		provider, _ := newTestProvider(driver)

		assert.Panics(t, func() {
			_, _ = WithSession(context.Background(), provider, "", AccessRead, func(Session) (int, error) {
				panic("boom")
			})
		})

		opened, closed, _ := driver.counts()
		assert.Equal(t, 1, opened)
		assert.Equal(t, 1, closed)
	})

	t.Run("Should release the session when the caller cancels", func(t *testing.T) {
		driver := &fakeDriver{}
		provider, _ := newTestProvider(driver)
		require.NoError(t, provider.EnsureReady(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		_, err := WithSession(ctx, provider, "", AccessRead, func(Session) (int, error) {
			cancel()
			return 0, ctx.Err()
		})
		require.ErrorIs(t, err, context.Canceled)

		opened, closed, _ := driver.counts()
		assert.Equal(t, 1, opened)
		assert.Equal(t, 1, closed)
	})

	t.Run("Should give concurrent callers their own sessions", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{}, 10)
		driver := &fakeDriver{}
		provider, _ := newTestProvider(driver)

		var wg sync.WaitGroup
		ids := make(chan int, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := WithSession(context.Background(), provider, "", AccessRead, func(s Session) (int, error) {
					started <- struct{}{}
					<-release
					return s.(*fakeSession).id, nil
				})
				assert.NoError(t, err)
				ids <- id
			}()
		}

		for i := 0; i < 10; i++ {
			<-started
		}
		close(release)
		wg.Wait()
		close(ids)

		seen := map[int]bool{}
		for id := range ids {
			assert.False(t, seen[id], "session %d shared", id)
			seen[id] = true
		}
		assert.Len(t, seen, 10)
		assert.Equal(t, 10, driver.maxActive)

		opened, closed, _ := driver.counts()
		assert.Equal(t, 10, opened)
		assert.Equal(t, 10, closed)
	})

	t.Run("Should map access modes", func(t *testing.T) {
		driver := &fakeDriver{}
		provider, _ := newTestProvider(driver)

		_, _ = WithSession(context.Background(), provider, "", AccessRead, func(Session) (int, error) { return 0, nil })
		_, _ = WithSession(context.Background(), provider, "", AccessWrite, func(Session) (int, error) { return 0, nil })
		assert.Equal(t, []AccessMode{AccessRead, AccessWrite}, driver.modes)
	})
}

func TestProvider_HealthCheck(t *testing.T) {
	t.Run("Should pass on RETURN 1", func(t *testing.T) {
		provider, _ := newTestProvider(&fakeDriver{})
		assert.NoError(t, provider.HealthCheck(context.Background()))
	})

	t.Run("Should fail on an unexpected answer", func(t *testing.T) {
		driver := &fakeDriver{run: func(int, string, map[string]any) ([]Record, error) {
			return []Record{{"ok": int64(2)}}, nil
		}}
		provider, _ := newTestProvider(driver)
		assert.Error(t, provider.HealthCheck(context.Background()))
	})
}

func TestProvider_Close(t *testing.T) {
	driver := &fakeDriver{}
	provider, connector := newTestProvider(driver)
	require.NoError(t, provider.EnsureReady(context.Background()))

	require.NoError(t, provider.Close(context.Background()))
	assert.True(t, driver.shutdown)

	// A later call reconnects.
	require.NoError(t, provider.EnsureReady(context.Background()))
	assert.Equal(t, 2, connector.connectCount())
}
