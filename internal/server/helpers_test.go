package server

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/andyjduncan/eurosight/internal/broadcast"
	"github.com/andyjduncan/eurosight/internal/domain/domaintest"
	"github.com/andyjduncan/eurosight/internal/session"
	ws "github.com/andyjduncan/eurosight/internal/websocket"
)

// mockRedisClient provides a minimal mock for health check testing
type mockRedisClient struct {
	pingErr error
}

func (m *mockRedisClient) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx)
	if m.pingErr != nil {
		cmd.SetErr(m.pingErr)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

// testServer wires a Server onto in-memory fakes. The transport records
// deliveries instead of writing to sockets.
type testServer struct {
	*Server
	ledger    *domaintest.Ledger
	transport *domaintest.Transport
	clock     *clockwork.FakeClock
}

func newTestServer(t *testing.T, opts ...func(*testServer)) *testServer {
	t.Helper()

	ledger := domaintest.NewLedger()
	transport := domaintest.NewTransport()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 16, 20, 0, 0, 0, time.UTC))

	aggregator := session.NewAggregator(ledger)
	hub := ws.NewHub(clock)
	t.Cleanup(func() { hub.Stop() })

	ts := &testServer{
		Server: &Server{
			ledger:       ledger,
			allocator:    session.NewAllocator(ledger),
			aggregator:   aggregator,
			bootstrapper: session.NewBootstrapper(ledger, aggregator),
			sender:       broadcast.NewSender(ledger, transport),
			hub:          hub,
			limits:       NewConnectionLimits(100, 10, 100.0, 100),
			clock:        clock,
			redisClient:  &mockRedisClient{},
			startTime:    clock.Now(),
		},
		ledger:    ledger,
		transport: transport,
		clock:     clock,
	}

	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

func withRedisHealthCheck(client redisHealthChecker) func(*testServer) {
	return func(ts *testServer) {
		ts.Server.redisClient = client
	}
}
