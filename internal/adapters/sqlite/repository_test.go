package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cryptoJournal/internal/domain"
	"cryptoJournal/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "journal-test-*")
	require.NoError(t, err)

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

func spotTrade(id, account, symbol string, side domain.OrderSide, qty, price float64, at time.Time) *domain.Trade {
	return &domain.Trade{
		ID:         id,
		AccountID:  account,
		Symbol:     symbol,
		Kind:       domain.KindSpot,
		SpotSide:   side,
		Quantity:   qty,
		PriceUSD:   price,
		ExecutedAt: at,
	}
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestRepository_TradesRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateTrade(ctx, spotTrade("t2", "acc", "BTC", domain.Sell, 0.5, 120, base.Add(time.Hour))))
	require.NoError(t, repo.CreateTrade(ctx, spotTrade("t1", "acc", "BTC", domain.Buy, 1, 100, base)))
	require.NoError(t, repo.CreateTrade(ctx, spotTrade("t3", "acc", "ETH", domain.Buy, 2, 50, base)))
	require.NoError(t, repo.CreateTrade(ctx, spotTrade("t4", "other", "BTC", domain.Buy, 9, 1, base)))

	futures := &domain.Trade{
		ID: "f1", AccountID: "acc", Symbol: "BTC", Kind: domain.KindFutures,
		FuturesSide: domain.Long, Quantity: 1, PriceUSD: 100, ExecutedAt: base, Note: "hedge",
	}
	require.NoError(t, repo.CreateTrade(ctx, futures))

	all, err := repo.ListTrades(ctx, "acc")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	btc, err := repo.ListTradesBySymbol(ctx, "acc", "btc")
	require.NoError(t, err)
	require.Len(t, btc, 3)
	assert.Equal(t, "t1", btc[0].ID)
	assert.Equal(t, "f1", btc[1].ID, "ties keep insertion order")
	assert.Equal(t, "t2", btc[2].ID)

	assert.Equal(t, domain.KindFutures, btc[1].Kind)
	assert.Equal(t, domain.Long, btc[1].FuturesSide)
	assert.Equal(t, "hedge", btc[1].Note)
	assert.Equal(t, domain.Sell, btc[2].SpotSide)
	assert.True(t, btc[2].ExecutedAt.Equal(base.Add(time.Hour)))
	assert.False(t, btc[0].CreatedAt.IsZero())
}

func TestRepository_CreateTradeDuplicateID(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.CreateTrade(ctx, spotTrade("dup", "acc", "BTC", domain.Buy, 1, 1, time.Now())))
	err := repo.CreateTrade(ctx, spotTrade("dup", "acc", "BTC", domain.Buy, 1, 1, time.Now()))
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)
}

func TestRepository_DeleteTrade(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.CreateTrade(ctx, spotTrade("t1", "acc", "BTC", domain.Buy, 1, 100, time.Now())))

	tests := []struct {
		name    string
		account string
		id      string
		wantErr error
	}{
		{name: "wrong account", account: "other", id: "t1", wantErr: ports.ErrNotFound},
		{name: "existing", account: "acc", id: "t1"},
		{name: "already deleted", account: "acc", id: "t1", wantErr: ports.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.DeleteTrade(ctx, tt.account, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRepository_ExitStrategyUpsert(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	missing, err := repo.FindExitStrategy(ctx, "acc", "BTC")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := &domain.ExitStrategy{ID: "s1", AccountID: "acc", CoinSymbol: "BTC", SellPercent: 10, GainPercent: 30, IsActive: true}
	require.NoError(t, repo.UpsertExitStrategy(ctx, first))
	assert.Equal(t, "s1", first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second := &domain.ExitStrategy{ID: "s2", AccountID: "acc", CoinSymbol: "BTC", SellPercent: 25, GainPercent: 50, IsActive: false}
	require.NoError(t, repo.UpsertExitStrategy(ctx, second))
	assert.Equal(t, "s1", second.ID, "existing strategy keeps its id")
	assert.Equal(t, 25.0, second.SellPercent)
	assert.Equal(t, 50.0, second.GainPercent)
	assert.False(t, second.IsActive)

	require.NoError(t, repo.UpsertExitStrategy(ctx, &domain.ExitStrategy{ID: "s3", AccountID: "acc", CoinSymbol: "ADA", SellPercent: 5, GainPercent: 10, IsActive: true}))

	list, err := repo.ListExitStrategies(ctx, "acc")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ADA", list[0].CoinSymbol)
	assert.Equal(t, "BTC", list[1].CoinSymbol)
}

func TestRepository_Executions(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	s := &domain.ExitStrategy{ID: "s1", AccountID: "acc", CoinSymbol: "BTC", SellPercent: 10, GainPercent: 30, IsActive: true}
	require.NoError(t, repo.UpsertExitStrategy(ctx, s))

	exec := func(id string, gain float64) *domain.ExitStrategyExecution {
		return &domain.ExitStrategyExecution{
			ID: id, ExitStrategyID: s.ID, StepGainPercent: gain, TargetPriceUSD: 130,
			ExecutedPriceUSD: 131, QuantitySold: 1, ProceedsUSD: 131, RealizedProfitUSD: 31,
			ExecutedAt: time.Now(),
		}
	}

	require.NoError(t, repo.CreateExecution(ctx, exec("e2", 60)))
	require.NoError(t, repo.CreateExecution(ctx, exec("e1", 30)))

	err := repo.CreateExecution(ctx, exec("e3", 30.000001))
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry, "same step at cent precision")

	execs, err := repo.ListExecutions(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, 30.0, execs[0].StepGainPercent)
	assert.Equal(t, 60.0, execs[1].StepGainPercent)
	assert.Equal(t, 131.0, execs[0].ExecutedPriceUSD)

	require.NoError(t, repo.DeleteExitStrategy(ctx, "acc", "BTC"))
	execs, err = repo.ListExecutions(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, execs)

	assert.ErrorIs(t, repo.DeleteExitStrategy(ctx, "acc", "BTC"), ports.ErrNotFound)
}

func TestRepository_CreateExecutionWithTrade(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s := &domain.ExitStrategy{ID: "s1", AccountID: "acc", CoinSymbol: "BTC", SellPercent: 25, GainPercent: 30, IsActive: true}
	require.NoError(t, repo.UpsertExitStrategy(ctx, s))
	require.NoError(t, repo.CreateTrade(ctx, spotTrade("buy", "acc", "BTC", domain.Buy, 10, 100, at)))

	exec := &domain.ExitStrategyExecution{
		ID: "e1", ExitStrategyID: s.ID, StepGainPercent: 30, TargetPriceUSD: 130,
		ExecutedPriceUSD: 135, QuantitySold: 2.5, ProceedsUSD: 337.5, RealizedProfitUSD: 12.5,
		ExecutedAt: at.Add(time.Hour),
	}

	// A clashing trade id aborts the whole write.
	err := repo.CreateExecutionWithTrade(ctx, exec, spotTrade("buy", "acc", "BTC", domain.Sell, 2.5, 135, at.Add(time.Hour)))
	require.ErrorIs(t, err, ports.ErrDuplicateEntry)
	assert.Empty(t, exec.TradeID)
	execs, err := repo.ListExecutions(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, execs, "execution rolled back with the trade")

	require.NoError(t, repo.CreateExecutionWithTrade(ctx, exec, spotTrade("sell", "acc", "BTC", domain.Sell, 2.5, 135, at.Add(time.Hour))))
	assert.Equal(t, "sell", exec.TradeID)

	execs, err = repo.ListExecutions(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, "sell", execs[0].TradeID)

	trades, err := repo.ListTradesBySymbol(ctx, "acc", "BTC")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.Sell, trades[1].SpotSide)

	// A step already executed leaves no orphan trade behind.
	again := *exec
	again.ID, again.TradeID = "e2", ""
	err = repo.CreateExecutionWithTrade(ctx, &again, spotTrade("sell-2", "acc", "BTC", domain.Sell, 1, 140, at.Add(2*time.Hour)))
	require.ErrorIs(t, err, ports.ErrDuplicateEntry)
	trades, err = repo.ListTradesBySymbol(ctx, "acc", "BTC")
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestNewRepository_AddsTradeIDToOldExecutionsTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
	CREATE TABLE exit_strategy_executions (
		id TEXT PRIMARY KEY,
		exit_strategy_id TEXT NOT NULL,
		step_gain_percent REAL NOT NULL,
		step_key INTEGER NOT NULL,
		target_price_usd REAL NOT NULL,
		executed_price_usd REAL NOT NULL,
		quantity_sold REAL NOT NULL,
		proceeds_usd REAL NOT NULL,
		realized_profit_usd REAL NOT NULL,
		executed_at TIMESTAMP NOT NULL,
		UNIQUE (exit_strategy_id, step_key)
	);
	INSERT INTO exit_strategy_executions VALUES ('e1', 's1', 30, 3000, 130, 135, 2.5, 337.5, 12.5, '2024-03-01 12:00:00');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := NewRepository(Config{DBPath: dbPath, Logger: &mockLogger{}})
	require.NoError(t, err)
	defer repo.Close()

	execs, err := repo.ListExecutions(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Empty(t, execs[0].TradeID)
	assert.Equal(t, 2.5, execs[0].QuantitySold)
}

func TestRepository_PriceSnapshots(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, _, err := repo.LatestPrice(ctx, "BTC")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SavePrice(ctx, "BTC", 60000, domain.SourceBinance, t0))
	require.NoError(t, repo.SavePrice(ctx, "btc", 61000, domain.SourceCoinGecko, t0.Add(time.Minute)))

	price, at, err := repo.LatestPrice(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 61000.0, price)
	assert.True(t, at.Equal(t0.Add(time.Minute)))
}
