package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"cryptoJournal/internal/domain"
	"cryptoJournal/internal/ports"

	"github.com/mattn/go-sqlite3" // SQLite driver, also used for constraint error codes
)

// Repository implements ports.TradeRepository, ports.ExitStrategyRepository
// and ports.PriceSnapshotRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

var (
	_ ports.TradeRepository         = (*Repository)(nil)
	_ ports.ExitStrategyRepository  = (*Repository)(nil)
	_ ports.PriceSnapshotRepository = (*Repository)(nil)
)

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository: %w", ports.ErrConfigurationError)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/journal.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single writer connection; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		kind TEXT NOT NULL,
		spot_side TEXT NOT NULL DEFAULT '',
		futures_side TEXT NOT NULL DEFAULT '',
		quantity REAL NOT NULL,
		price_usd REAL NOT NULL,
		fee_usd REAL NOT NULL DEFAULT 0,
		executed_at TIMESTAMP NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exit_strategies (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		coin_symbol TEXT NOT NULL,
		sell_percent REAL NOT NULL,
		gain_percent REAL NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (account_id, coin_symbol)
	);

	CREATE TABLE IF NOT EXISTS exit_strategy_executions (
		id TEXT PRIMARY KEY,
		exit_strategy_id TEXT NOT NULL REFERENCES exit_strategies(id) ON DELETE CASCADE,
		step_gain_percent REAL NOT NULL,
		step_key INTEGER NOT NULL, -- gain percent in hundredths
		target_price_usd REAL NOT NULL,
		executed_price_usd REAL NOT NULL,
		quantity_sold REAL NOT NULL,
		proceeds_usd REAL NOT NULL,
		realized_profit_usd REAL NOT NULL,
		executed_at TIMESTAMP NOT NULL,
		trade_id TEXT NOT NULL DEFAULT '',
		UNIQUE (exit_strategy_id, step_key)
	);

	CREATE TABLE IF NOT EXISTS price_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		price_usd REAL NOT NULL,
		source TEXT NOT NULL,
		fetched_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_account_symbol ON trades (account_id, symbol, executed_at);
	CREATE INDEX IF NOT EXISTS idx_price_snapshots_symbol ON price_snapshots (symbol, fetched_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %w", ports.ErrQueryFailed, err)
	}
	// Databases created before executions were linked to trades.
	return r.addColumnIfMissing(ctx, "exit_strategy_executions", "trade_id", "TEXT NOT NULL DEFAULT ''")
}

func (r *Repository) addColumnIfMissing(ctx context.Context, table, column, definition string) error {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("failed to inspect table %s: %w: %w", table, ports.ErrQueryFailed, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan columns of %s: %w: %w", table, ports.ErrQueryFailed, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating columns of %s: %w: %w", table, ports.ErrQueryFailed, err)
	}
	rows.Close()

	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w: %w", table, column, ports.ErrUpdateFailed, err)
	}
	r.logger.Info(ctx, "Schema migrated", map[string]interface{}{"table": table, "column": column})
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository Implementation ---

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CreateTrade appends a trade to the account's log.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	if err := r.insertTrade(ctx, r.db, trade); err != nil {
		return err
	}
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "kind": trade.Kind})
	return nil
}

func (r *Repository) insertTrade(ctx context.Context, db execer, trade *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, account_id, symbol, kind, spot_side, futures_side,
	                    quantity, price_usd, fee_usd, executed_at, note, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = r.now().UTC()
	}
	_, err := db.ExecContext(ctx, query,
		trade.ID, trade.AccountID, trade.Symbol, string(trade.Kind), string(trade.SpotSide), string(trade.FuturesSide),
		trade.Quantity, trade.PriceUSD, trade.FeeUSD, trade.ExecutedAt.UTC(), trade.Note, trade.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("trade %s already exists: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert trade for symbol %s: %w: %w", trade.Symbol, ports.ErrQueryFailed, err)
	}
	return nil
}

// ListTrades returns every trade of the account ordered by execution time,
// ties kept in insertion order.
func (r *Repository) ListTrades(ctx context.Context, accountID string) ([]domain.Trade, error) {
	const query = `
	SELECT id, account_id, symbol, kind, spot_side, futures_side, quantity, price_usd,
	       fee_usd, executed_at, note, created_at
	FROM trades
	WHERE account_id = ?
	ORDER BY executed_at ASC, rowid ASC`
	return r.queryTrades(ctx, query, accountID)
}

// ListTradesBySymbol is ListTrades restricted to one symbol.
func (r *Repository) ListTradesBySymbol(ctx context.Context, accountID, symbol string) ([]domain.Trade, error) {
	const query = `
	SELECT id, account_id, symbol, kind, spot_side, futures_side, quantity, price_usd,
	       fee_usd, executed_at, note, created_at
	FROM trades
	WHERE account_id = ? AND symbol = ?
	ORDER BY executed_at ASC, rowid ASC`
	return r.queryTrades(ctx, query, accountID, domain.NormalizeSymbol(symbol))
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w: %w", ports.ErrQueryFailed, err)
		}
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

// DeleteTrade removes one trade; ErrNotFound when the account has no such trade.
func (r *Repository) DeleteTrade(ctx context.Context, accountID, tradeID string) error {
	const query = `DELETE FROM trades WHERE account_id = ? AND id = ?`
	result, err := r.db.ExecContext(ctx, query, accountID, tradeID)
	if err != nil {
		return fmt.Errorf("failed to delete trade %s: %w: %w", tradeID, ports.ErrDeleteFailed, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade %s: %w: %w", tradeID, ports.ErrDeleteFailed, err)
	}
	if n == 0 {
		return fmt.Errorf("trade %s: %w", tradeID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade deleted", map[string]interface{}{"tradeID": tradeID})
	return nil
}

// --- ExitStrategyRepository Implementation ---

// UpsertExitStrategy creates the account's strategy for the coin or replaces
// its parameters. The stored id and creation time are written back.
func (r *Repository) UpsertExitStrategy(ctx context.Context, s *domain.ExitStrategy) error {
	const upsert = `
	INSERT INTO exit_strategies (id, account_id, coin_symbol, sell_percent, gain_percent, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (account_id, coin_symbol) DO UPDATE SET
		sell_percent = excluded.sell_percent,
		gain_percent = excluded.gain_percent,
		is_active = excluded.is_active,
		updated_at = excluded.updated_at`

	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, upsert,
		s.ID, s.AccountID, s.CoinSymbol, s.SellPercent, s.GainPercent, s.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert exit strategy for %s: %w: %w", s.CoinSymbol, ports.ErrUpdateFailed, err)
	}

	stored, err := r.FindExitStrategy(ctx, s.AccountID, s.CoinSymbol)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("exit strategy for %s vanished after upsert: %w", s.CoinSymbol, ports.ErrUpdateFailed)
	}
	*s = *stored
	r.logger.Debug(ctx, "Exit strategy saved", map[string]interface{}{"strategyID": s.ID, "symbol": s.CoinSymbol})
	return nil
}

const exitStrategyColumns = `id, account_id, coin_symbol, sell_percent, gain_percent, is_active, created_at, updated_at`

// FindExitStrategy returns nil, nil when the account has no strategy for the coin.
func (r *Repository) FindExitStrategy(ctx context.Context, accountID, symbol string) (*domain.ExitStrategy, error) {
	query := `SELECT ` + exitStrategyColumns + ` FROM exit_strategies WHERE account_id = ? AND coin_symbol = ?`

	s, err := scanExitStrategy(r.db.QueryRowContext(ctx, query, accountID, domain.NormalizeSymbol(symbol)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query exit strategy for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	return &s, nil
}

// ListExitStrategies returns the account's strategies ordered by coin.
func (r *Repository) ListExitStrategies(ctx context.Context, accountID string) ([]domain.ExitStrategy, error) {
	query := `SELECT ` + exitStrategyColumns + ` FROM exit_strategies WHERE account_id = ? ORDER BY coin_symbol`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exit strategies: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make([]domain.ExitStrategy, 0)
	for rows.Next() {
		s, err := scanExitStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exit strategy: %w: %w", ports.ErrQueryFailed, err)
		}
		out = append(out, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exit strategy rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return out, nil
}

// DeleteExitStrategy removes the strategy and its executions.
func (r *Repository) DeleteExitStrategy(ctx context.Context, accountID, symbol string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete of exit strategy %s: %w: %w", symbol, ports.ErrDeleteFailed, err)
	}
	defer tx.Rollback()

	const delExecs = `
	DELETE FROM exit_strategy_executions
	WHERE exit_strategy_id IN (SELECT id FROM exit_strategies WHERE account_id = ? AND coin_symbol = ?)`
	if _, err := tx.ExecContext(ctx, delExecs, accountID, domain.NormalizeSymbol(symbol)); err != nil {
		return fmt.Errorf("failed to delete executions of %s: %w: %w", symbol, ports.ErrDeleteFailed, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM exit_strategies WHERE account_id = ? AND coin_symbol = ?`,
		accountID, domain.NormalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to delete exit strategy %s: %w: %w", symbol, ports.ErrDeleteFailed, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for exit strategy %s: %w: %w", symbol, ports.ErrDeleteFailed, err)
	}
	if n == 0 {
		return fmt.Errorf("exit strategy %s: %w", symbol, ports.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of exit strategy %s: %w: %w", symbol, ports.ErrDeleteFailed, err)
	}
	r.logger.Debug(ctx, "Exit strategy deleted", map[string]interface{}{"symbol": symbol})
	return nil
}

// CreateExecution records an executed step. A second execution of the same
// step of the same strategy fails with ErrDuplicateEntry.
func (r *Repository) CreateExecution(ctx context.Context, e *domain.ExitStrategyExecution) error {
	if err := insertExecution(ctx, r.db, e); err != nil {
		return err
	}
	r.logger.Debug(ctx, "Exit strategy execution recorded", map[string]interface{}{
		"strategyID": e.ExitStrategyID,
		"gain":       e.StepGainPercent,
	})
	return nil
}

// CreateExecutionWithTrade writes the execution and the sell trade backing it
// in one transaction. The execution's TradeID is set to trade.ID.
func (r *Repository) CreateExecutionWithTrade(ctx context.Context, e *domain.ExitStrategyExecution, trade *domain.Trade) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin execution of strategy %s: %w: %w", e.ExitStrategyID, ports.ErrQueryFailed, err)
	}
	defer tx.Rollback()

	e.TradeID = trade.ID
	if err := insertExecution(ctx, tx, e); err != nil {
		e.TradeID = ""
		return err
	}
	if err := r.insertTrade(ctx, tx, trade); err != nil {
		e.TradeID = ""
		return err
	}
	if err := tx.Commit(); err != nil {
		e.TradeID = ""
		return fmt.Errorf("failed to commit execution of strategy %s: %w: %w", e.ExitStrategyID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Exit strategy execution recorded with trade", map[string]interface{}{
		"strategyID": e.ExitStrategyID,
		"gain":       e.StepGainPercent,
		"tradeID":    trade.ID,
	})
	return nil
}

func insertExecution(ctx context.Context, db execer, e *domain.ExitStrategyExecution) error {
	const query = `
	INSERT INTO exit_strategy_executions (id, exit_strategy_id, step_gain_percent, step_key, target_price_usd,
	                                      executed_price_usd, quantity_sold, proceeds_usd, realized_profit_usd,
	                                      executed_at, trade_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		e.ID, e.ExitStrategyID, e.StepGainPercent, stepKey(e.StepGainPercent), e.TargetPriceUSD,
		e.ExecutedPriceUSD, e.QuantitySold, e.ProceedsUSD, e.RealizedProfitUSD, e.ExecutedAt.UTC(), e.TradeID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("step %.2f%% of strategy %s already executed: %w", e.StepGainPercent, e.ExitStrategyID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert execution for strategy %s: %w: %w", e.ExitStrategyID, ports.ErrQueryFailed, err)
	}
	return nil
}

// ListExecutions returns a strategy's executions in step order.
func (r *Repository) ListExecutions(ctx context.Context, exitStrategyID string) ([]domain.ExitStrategyExecution, error) {
	const query = `
	SELECT id, exit_strategy_id, trade_id, step_gain_percent, target_price_usd, executed_price_usd,
	       quantity_sold, proceeds_usd, realized_profit_usd, executed_at
	FROM exit_strategy_executions
	WHERE exit_strategy_id = ?
	ORDER BY step_key ASC`

	rows, err := r.db.QueryContext(ctx, query, exitStrategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make([]domain.ExitStrategyExecution, 0)
	for rows.Next() {
		var e domain.ExitStrategyExecution
		if err := rows.Scan(&e.ID, &e.ExitStrategyID, &e.TradeID, &e.StepGainPercent, &e.TargetPriceUSD, &e.ExecutedPriceUSD,
			&e.QuantitySold, &e.ProceedsUSD, &e.RealizedProfitUSD, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w: %w", ports.ErrQueryFailed, err)
		}
		out = append(out, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return out, nil
}

// --- PriceSnapshotRepository Implementation ---

// SavePrice stores a successfully fetched live price.
func (r *Repository) SavePrice(ctx context.Context, symbol string, priceUSD float64, source domain.PriceSource, fetchedAt time.Time) error {
	const query = `INSERT INTO price_snapshots (symbol, price_usd, source, fetched_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, domain.NormalizeSymbol(symbol), priceUSD, string(source), fetchedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save price snapshot for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	return nil
}

// LatestPrice returns the most recent snapshot; ErrNotFound when none exists.
func (r *Repository) LatestPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	const query = `
	SELECT price_usd, fetched_at FROM price_snapshots
	WHERE symbol = ?
	ORDER BY fetched_at DESC, id DESC
	LIMIT 1`

	var price float64
	var fetchedAt time.Time
	err := r.db.QueryRowContext(ctx, query, domain.NormalizeSymbol(symbol)).Scan(&price, &fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, fmt.Errorf("no price snapshot for %s: %w", symbol, ports.ErrNotFound)
		}
		return 0, time.Time{}, fmt.Errorf("failed to query price snapshot for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	return price, fetchedAt, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (domain.Trade, error) {
	var t domain.Trade
	var kind, spotSide, futuresSide string
	err := s.Scan(
		&t.ID, &t.AccountID, &t.Symbol, &kind, &spotSide, &futuresSide, &t.Quantity, &t.PriceUSD,
		&t.FeeUSD, &t.ExecutedAt, &t.Note, &t.CreatedAt)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Kind = domain.TradeKind(kind)
	t.SpotSide = domain.OrderSide(spotSide)
	t.FuturesSide = domain.FuturesSide(futuresSide)
	return t, nil
}

func scanExitStrategy(s scanner) (domain.ExitStrategy, error) {
	var es domain.ExitStrategy
	err := s.Scan(&es.ID, &es.AccountID, &es.CoinSymbol, &es.SellPercent, &es.GainPercent,
		&es.IsActive, &es.CreatedAt, &es.UpdatedAt)
	return es, err
}

// stepKey identifies a step by its gain at cent precision.
func stepKey(gainPercent float64) int64 {
	return int64(math.Round(gainPercent * 100))
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
