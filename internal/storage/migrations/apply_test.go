package migrations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"alert-backtest-lab/internal/domain"
	chstore "alert-backtest-lab/internal/storage/clickhouse"
	"alert-backtest-lab/internal/storage/postgres"
)

func TestApplyPostgres_FreshDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, ApplyPostgres(ctx, pool))
	require.NoError(t, ApplyPostgres(ctx, pool), "second run must be a no-op")

	store := postgres.NewTradeResultStore(pool)
	missed := &domain.TradeResult{
		TradeID:     "trade-1",
		AlertID:     "alert-1",
		Token:       "TKN",
		ConfigID:    "cfg",
		AlertPrice:  1,
		AlertTimeMs: 1000,
		Entry:       domain.EntryOutcome{MissedReason: domain.MissedNoCandles},
	}
	require.NoError(t, store.Insert(ctx, missed))

	got, err := store.GetByConfigID(ctx, "cfg")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestApplyClickHouse_CreatesDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.1-alpine",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"CLICKHOUSE_USER":     "default",
				"CLICKHOUSE_PASSWORD": "",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("Application: Ready for connections").
					WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("9000/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	// The market database does not exist before the first run.
	dsn := fmt.Sprintf("clickhouse://%s:%s/market", host, port.Port())
	conn, err := ApplyClickHouse(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close()

	again, err := ApplyClickHouse(ctx, dsn)
	require.NoError(t, err, "second run must be a no-op")
	again.Close()

	store := chstore.NewCandleStore(conn)
	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{
		{Token: "TKN", Chain: "sol", TimestampMs: 60000, Open: 1, High: 1.1, Low: 0.9, Close: 1, Volume: 10, IntervalSeconds: 60},
	}))

	tokens, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"TKN"}, tokens)
}
