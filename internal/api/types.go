package api

import (
	"context"

	"cryptoJournal/internal/app"
	"cryptoJournal/internal/domain"
)

// Journal is the application surface served over HTTP.
type Journal interface {
	RecordTrade(ctx context.Context, accountID string, in app.TradeInput) (*domain.Trade, error)
	ListTrades(ctx context.Context, accountID, symbol string) ([]domain.Trade, error)
	DeleteTrade(ctx context.Context, accountID, tradeID string) error
	PortfolioSummary(ctx context.Context, accountID string) (*domain.PortfolioSummary, error)
	AssetDetail(ctx context.Context, accountID, symbol string) (*app.AssetDetail, error)
	AssetLedger(ctx context.Context, accountID, symbol string) (*app.LedgerView, error)
	OpenSpotHolding(ctx context.Context, accountID, symbol string) (domain.Holding, error)
	SaveExitStrategy(ctx context.Context, accountID, symbol string, in app.ExitStrategyInput) (*domain.ExitStrategy, error)
	ListExitStrategies(ctx context.Context, accountID string) ([]domain.ExitStrategy, error)
	DeleteExitStrategy(ctx context.Context, accountID, symbol string) error
	ExitStrategyPlan(ctx context.Context, accountID, symbol string, maxSteps int) (*domain.ExitPlan, error)
	SimulateExitStrategy(ctx context.Context, accountID string, in app.SimulationInput) (*domain.ExitPlan, error)
	RecordExecution(ctx context.Context, accountID, symbol string, in app.ExecutionInput) (*app.ExecutionResult, error)
}

var _ Journal = (*app.JournalService)(nil)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// TradesResponse wraps a trade listing.
type TradesResponse struct {
	Trades []domain.Trade `json:"trades"`
	Count  int            `json:"count"`
}

// ExitStrategiesResponse wraps a strategy listing.
type ExitStrategiesResponse struct {
	ExitStrategies []domain.ExitStrategy `json:"exitStrategies"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
