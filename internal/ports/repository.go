package ports

import (
	"context"
	"time"

	"cryptoJournal/internal/domain"
)

// TradeRepository stores the append-only trade log.
type TradeRepository interface {
	// CreateTrade saves a new trade record.
	CreateTrade(ctx context.Context, trade *domain.Trade) error
	// ListTrades returns every trade of an account in insertion order.
	ListTrades(ctx context.Context, accountID string) ([]domain.Trade, error)
	// ListTradesBySymbol returns the trades of one account and symbol in insertion order.
	ListTradesBySymbol(ctx context.Context, accountID, symbol string) ([]domain.Trade, error)
	// DeleteTrade removes a trade. Returns ErrNotFound when nothing matched.
	DeleteTrade(ctx context.Context, accountID, tradeID string) error
}

// ExitStrategyRepository stores exit strategy configuration and executions.
type ExitStrategyRepository interface {
	// UpsertExitStrategy inserts or replaces the strategy for (account, coin).
	UpsertExitStrategy(ctx context.Context, strategy *domain.ExitStrategy) error
	// FindExitStrategy returns nil, nil when no strategy exists.
	FindExitStrategy(ctx context.Context, accountID, symbol string) (*domain.ExitStrategy, error)
	// ListExitStrategies returns all strategies of an account ordered by coin.
	ListExitStrategies(ctx context.Context, accountID string) ([]domain.ExitStrategy, error)
	// DeleteExitStrategy removes a strategy and its executions.
	DeleteExitStrategy(ctx context.Context, accountID, symbol string) error
	// CreateExecution appends an execution. Returns ErrDuplicateEntry when the
	// step was already executed.
	CreateExecution(ctx context.Context, exec *domain.ExitStrategyExecution) error
	// CreateExecutionWithTrade stores the execution and its sell trade
	// atomically; neither is kept when either insert fails.
	CreateExecutionWithTrade(ctx context.Context, exec *domain.ExitStrategyExecution, trade *domain.Trade) error
	// ListExecutions returns the executions of a strategy ordered by step.
	ListExecutions(ctx context.Context, exitStrategyID string) ([]domain.ExitStrategyExecution, error)
}

// PriceSnapshotRepository keeps the last known price per symbol.
type PriceSnapshotRepository interface {
	SavePrice(ctx context.Context, symbol string, priceUSD float64, source domain.PriceSource, fetchedAt time.Time) error
	// LatestPrice returns ErrNotFound when the symbol was never priced.
	LatestPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}
