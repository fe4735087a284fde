package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoJournal/internal/domain"
	"cryptoJournal/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockTradeRepo struct {
	trades    []domain.Trade
	err       error
	createErr error
}

func (m *mockTradeRepo) CreateTrade(ctx context.Context, t *domain.Trade) error {
	if m.err != nil {
		return m.err
	}
	if m.createErr != nil {
		return m.createErr
	}
	m.trades = append(m.trades, *t)
	return nil
}

func (m *mockTradeRepo) ListTrades(ctx context.Context, accountID string) ([]domain.Trade, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Trade, 0)
	for _, t := range m.trades {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTradeRepo) ListTradesBySymbol(ctx context.Context, accountID, symbol string) ([]domain.Trade, error) {
	all, err := m.ListTrades(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Trade, 0)
	for _, t := range all {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTradeRepo) DeleteTrade(ctx context.Context, accountID, tradeID string) error {
	for i, t := range m.trades {
		if t.AccountID == accountID && t.ID == tradeID {
			m.trades = append(m.trades[:i], m.trades[i+1:]...)
			return nil
		}
	}
	return ports.ErrNotFound
}

type mockStrategyRepo struct {
	strategies map[string]*domain.ExitStrategy // account|symbol
	executions map[string][]domain.ExitStrategyExecution
	trades     *mockTradeRepo // Receives the trades of CreateExecutionWithTrade
}

func newMockStrategyRepo(trades *mockTradeRepo) *mockStrategyRepo {
	return &mockStrategyRepo{
		strategies: make(map[string]*domain.ExitStrategy),
		executions: make(map[string][]domain.ExitStrategyExecution),
		trades:     trades,
	}
}

func (m *mockStrategyRepo) UpsertExitStrategy(ctx context.Context, s *domain.ExitStrategy) error {
	key := s.AccountID + "|" + s.CoinSymbol
	if existing, ok := m.strategies[key]; ok {
		existing.SellPercent, existing.GainPercent, existing.IsActive = s.SellPercent, s.GainPercent, s.IsActive
		*s = *existing
		return nil
	}
	stored := *s
	m.strategies[key] = &stored
	return nil
}

func (m *mockStrategyRepo) FindExitStrategy(ctx context.Context, accountID, symbol string) (*domain.ExitStrategy, error) {
	s, ok := m.strategies[accountID+"|"+symbol]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockStrategyRepo) ListExitStrategies(ctx context.Context, accountID string) ([]domain.ExitStrategy, error) {
	out := make([]domain.ExitStrategy, 0)
	for _, s := range m.strategies {
		if s.AccountID == accountID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoinSymbol < out[j].CoinSymbol })
	return out, nil
}

func (m *mockStrategyRepo) DeleteExitStrategy(ctx context.Context, accountID, symbol string) error {
	key := accountID + "|" + symbol
	s, ok := m.strategies[key]
	if !ok {
		return ports.ErrNotFound
	}
	delete(m.executions, s.ID)
	delete(m.strategies, key)
	return nil
}

func (m *mockStrategyRepo) CreateExecution(ctx context.Context, e *domain.ExitStrategyExecution) error {
	if err := m.checkStep(e); err != nil {
		return err
	}
	m.executions[e.ExitStrategyID] = append(m.executions[e.ExitStrategyID], *e)
	return nil
}

func (m *mockStrategyRepo) CreateExecutionWithTrade(ctx context.Context, e *domain.ExitStrategyExecution, t *domain.Trade) error {
	if err := m.checkStep(e); err != nil {
		return err
	}
	if err := m.trades.CreateTrade(ctx, t); err != nil {
		return err
	}
	e.TradeID = t.ID
	m.executions[e.ExitStrategyID] = append(m.executions[e.ExitStrategyID], *e)
	return nil
}

func (m *mockStrategyRepo) checkStep(e *domain.ExitStrategyExecution) error {
	for _, existing := range m.executions[e.ExitStrategyID] {
		if math.Round(existing.StepGainPercent*100) == math.Round(e.StepGainPercent*100) {
			return fmt.Errorf("step exists: %w", ports.ErrDuplicateEntry)
		}
	}
	return nil
}

func (m *mockStrategyRepo) ListExecutions(ctx context.Context, id string) ([]domain.ExitStrategyExecution, error) {
	return m.executions[id], nil
}

type mockPrices struct {
	prices map[string]float64
	calls  int
}

func (m *mockPrices) Resolve(ctx context.Context, symbol string, fallback float64) domain.PriceQuote {
	m.calls++
	if p, ok := m.prices[symbol]; ok {
		return domain.PriceQuote{PriceUSD: p, Source: domain.SourceBinance}
	}
	return domain.PriceQuote{PriceUSD: fallback, Source: domain.SourceAvgEntry, IsEstimated: true}
}

type fixture struct {
	svc        *JournalService
	trades     *mockTradeRepo
	strategies *mockStrategyRepo
	prices     *mockPrices
	logger     *mockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	trades := &mockTradeRepo{}
	f := &fixture{
		trades:     trades,
		strategies: newMockStrategyRepo(trades),
		prices:     &mockPrices{prices: map[string]float64{}},
		logger:     &mockLogger{},
	}
	seq := 0
	svc, err := NewJournalService(Config{
		Trades:     f.trades,
		Strategies: f.strategies,
		Prices:     f.prices,
		Logger:     f.logger,
		Now:        func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func (f *fixture) record(t *testing.T, symbol, side string, qty, price, fee float64, day int) {
	t.Helper()
	_, err := f.svc.RecordTrade(context.Background(), "acc", TradeInput{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		PriceUSD:   price,
		FeeUSD:     fee,
		ExecutedAt: t0.AddDate(0, 0, day),
	})
	require.NoError(t, err)
}

func TestNewJournalService_Validation(t *testing.T) {
	_, err := NewJournalService(Config{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	f := newFixture(t)
	_, err = NewJournalService(Config{
		Trades: f.trades, Strategies: f.strategies, Prices: f.prices, Logger: f.logger,
		DefaultMaxSteps: 51,
	})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestRecordTrade_Validation(t *testing.T) {
	tests := []struct {
		name      string
		in        TradeInput
		wantField string
	}{
		{"missing symbol", TradeInput{Side: "BUY", Quantity: 1, PriceUSD: 1}, "symbol"},
		{"cash", TradeInput{Symbol: "cash", Side: "BUY", Quantity: 1, PriceUSD: 1}, "symbol"},
		{"zero quantity", TradeInput{Symbol: "BTC", Side: "BUY", PriceUSD: 1}, "quantity"},
		{"nan price", TradeInput{Symbol: "BTC", Side: "BUY", Quantity: 1, PriceUSD: math.NaN()}, "priceUsd"},
		{"negative fee", TradeInput{Symbol: "BTC", Side: "BUY", Quantity: 1, PriceUSD: 1, FeeUSD: -1}, "feeUsd"},
		{"spot with futures side", TradeInput{Symbol: "BTC", Side: "LONG", Quantity: 1, PriceUSD: 1}, "side"},
		{"futures with spot side", TradeInput{Symbol: "BTC", Kind: "futures", Side: "BUY", Quantity: 1, PriceUSD: 1}, "side"},
		{"unknown kind", TradeInput{Symbol: "BTC", Kind: "margin", Side: "BUY", Quantity: 1, PriceUSD: 1}, "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.RecordTrade(context.Background(), "acc", tt.in)
			require.ErrorIs(t, err, ports.ErrInvalidRequest)
			var verr *ports.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.wantField)
			assert.Empty(t, f.trades.trades)
		})
	}
}

func TestRecordTrade_Normalizes(t *testing.T) {
	f := newFixture(t)
	tr, err := f.svc.RecordTrade(context.Background(), "acc", TradeInput{
		Symbol: " eth ", Kind: "FUTURES", Side: "short", Quantity: 2, PriceUSD: 3000, Note: " hedge ",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", tr.ID)
	assert.Equal(t, "ETH", tr.Symbol)
	assert.Equal(t, domain.KindFutures, tr.Kind)
	assert.Equal(t, domain.Short, tr.FuturesSide)
	assert.Equal(t, "hedge", tr.Note)
	assert.Equal(t, tr.CreatedAt, tr.ExecutedAt, "missing execution time defaults to now")
	assert.Contains(t, f.logger.infoMsgs, "Trade recorded")
}

func TestPortfolioSummary(t *testing.T) {
	f := newFixture(t)
	f.record(t, "BTC", "BUY", 1, 100, 0, 0)
	f.record(t, "BTC", "BUY", 1, 200, 0, 1)
	f.record(t, "BTC", "SELL", 1, 300, 0, 2)
	f.record(t, "ETH", "BUY", 10, 10, 0, 0)
	f.record(t, "ADA", "BUY", 100, 1, 0, 0)
	f.record(t, "ADA", "SELL", 100, 2, 0, 1)
	_, err := f.svc.RecordTrade(context.Background(), "acc", TradeInput{Symbol: "BTC", Kind: "futures", Side: "LONG", Quantity: 5, PriceUSD: 1})
	require.NoError(t, err)
	f.prices.prices["BTC"] = 400

	sum, err := f.svc.PortfolioSummary(context.Background(), "acc")
	require.NoError(t, err)

	// BTC: avg 150, realized 150, unrealized 250. ETH: priced at entry.
	// ADA: flat after a 100 profit; invested reset on full exit.
	assert.InDelta(t, 500, sum.CurrentBalanceUSD, 1e-9)
	assert.InDelta(t, 400, sum.TotalInvestedUSD, 1e-9)
	assert.InDelta(t, 250, sum.RealizedProfitUSD, 1e-9)
	assert.InDelta(t, 250, sum.UnrealizedProfitUSD, 1e-9)
	require.Len(t, sum.Assets, 3)
	assert.Equal(t, "BTC", sum.Assets[0].Symbol)
	assert.Equal(t, domain.SourceAvgEntry, sum.Assets[1].PriceSource)
	assert.True(t, sum.Assets[1].IsEstimated)
	require.NotNil(t, sum.TopPerformer)
	assert.Equal(t, "BTC", sum.TopPerformer.Symbol)
	assert.Equal(t, 2, f.prices.calls, "only open positions are priced")
}

func TestAssetDetailAndLedger(t *testing.T) {
	f := newFixture(t)
	f.record(t, "BTC", "BUY", 1, 100, 0, 0)
	f.record(t, "BTC", "SELL", 1, 150, 0, 1)
	f.record(t, "BTC", "BUY", 2, 200, 0, 2)

	detail, err := f.svc.AssetDetail(context.Background(), "acc", "btc")
	require.NoError(t, err)
	assert.Len(t, detail.Ledger, 3)
	assert.InDelta(t, 500, detail.Summary.TotalInvestedUSD, 1e-9, "detail view keeps invested capital across a full exit")
	assert.Equal(t, 1, detail.Performance.TotalSells)
	assert.InDelta(t, 50, detail.Performance.RealizedProfitUSD, 1e-9)

	view, err := f.svc.AssetLedger(context.Background(), "acc", "BTC")
	require.NoError(t, err)
	assert.InDelta(t, 400, view.Position.TotalInvestedUSD, 1e-9)
	assert.InDelta(t, 2, view.Position.QuantityHeld, 1e-12)

	_, err = f.svc.AssetDetail(context.Background(), "acc", "DOGE")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestOpenSpotHolding(t *testing.T) {
	f := newFixture(t)
	f.record(t, "SOL", "BUY", 4, 10, 0, 0)
	f.record(t, "SOL", "BUY", 4, 20, 0, 1)
	f.record(t, "SOL", "SELL", 2, 30, 0, 2)

	h, err := f.svc.OpenSpotHolding(context.Background(), "acc", "sol")
	require.NoError(t, err)
	assert.InDelta(t, 6, h.Quantity, 1e-12)
	assert.InDelta(t, 15, h.AvgEntryPriceUSD, 1e-9)

	h, err = f.svc.OpenSpotHolding(context.Background(), "acc", "XRP")
	require.NoError(t, err)
	assert.Zero(t, h.Quantity)
	assert.Zero(t, h.AvgEntryPriceUSD)
}

func TestExitStrategyLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "BTC", "BUY", 10, 100, 0, 0)
	f.prices.prices["BTC"] = 135

	_, err := f.svc.SaveExitStrategy(ctx, "acc", "BTC", ExitStrategyInput{SellPercent: 0, GainPercent: -1})
	var verr *ports.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "sellPercent")
	assert.Contains(t, verr.Fields, "gainPercent")

	s, err := f.svc.SaveExitStrategy(ctx, "acc", "btc", ExitStrategyInput{SellPercent: 25, GainPercent: 30})
	require.NoError(t, err)
	assert.True(t, s.IsActive)
	assert.Equal(t, 30.0, s.NextGainPercent)

	plan, err := f.svc.ExitStrategyPlan(ctx, "acc", "BTC", 3)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, domain.StepReady, plan.Status)
	assert.Equal(t, 130.0, plan.NextTargetUSD)

	res, err := f.svc.RecordExecution(ctx, "acc", "BTC", ExecutionInput{
		StepGainPercent: 30, ExecutedPriceUSD: 135, QuantitySold: 2.5, RecordAsTrade: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 130.0, res.Execution.TargetPriceUSD)
	assert.Equal(t, 337.5, res.Execution.ProceedsUSD)
	assert.Equal(t, 12.5, res.Execution.RealizedProfitUSD)
	require.NotNil(t, res.Trade)
	assert.Equal(t, domain.Sell, res.Trade.SpotSide)
	assert.Equal(t, res.Trade.ID, res.Execution.TradeID)

	_, err = f.svc.RecordExecution(ctx, "acc", "BTC", ExecutionInput{StepGainPercent: 30, ExecutedPriceUSD: 140, QuantitySold: 1})
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)

	_, err = f.svc.RecordExecution(ctx, "acc", "BTC", ExecutionInput{StepGainPercent: 45, ExecutedPriceUSD: 140, QuantitySold: 1})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest, "not a multiple of the strategy gain")

	list, err := f.svc.ListExitStrategies(ctx, "acc")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 60.0, list[0].NextGainPercent)

	plan, err = f.svc.ExitStrategyPlan(ctx, "acc", "BTC", 0)
	require.NoError(t, err)
	assert.True(t, plan.Steps[0].IsExecuted)
	assert.InDelta(t, 10, plan.QtyOpen, 1e-9, "the sell written with the execution is not counted twice")
	assert.Equal(t, 10.0, plan.Steps[0].RemainingQtyBefore)
	assert.Equal(t, 7.5, plan.Steps[0].RemainingQtyAfter)
	assert.Equal(t, 7.5, plan.Steps[1].RemainingQtyBefore)
	assert.Equal(t, 1.875, plan.Steps[1].PlannedQtyToSell)
	assert.Equal(t, domain.StepPending, plan.Status)
	assert.Equal(t, 60.0, plan.NextGainPercent)

	require.NoError(t, f.svc.DeleteExitStrategy(ctx, "acc", "BTC"))
	_, err = f.svc.ExitStrategyPlan(ctx, "acc", "BTC", 3)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRecordExecution_OversellRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "ETH", "BUY", 1, 100, 0, 0)
	_, err := f.svc.SaveExitStrategy(ctx, "acc", "ETH", ExitStrategyInput{SellPercent: 50, GainPercent: 10})
	require.NoError(t, err)

	_, err = f.svc.RecordExecution(ctx, "acc", "ETH", ExecutionInput{
		StepGainPercent: 10, ExecutedPriceUSD: 110, QuantitySold: 2, RecordAsTrade: true,
	})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	assert.Empty(t, f.strategies.executions)
}

func TestExitStrategyPlan_ExecutionsWithoutTradesReduceHolding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "BTC", "BUY", 10, 100, 0, 0)
	_, err := f.svc.SaveExitStrategy(ctx, "acc", "BTC", ExitStrategyInput{SellPercent: 25, GainPercent: 30})
	require.NoError(t, err)

	// Sold elsewhere and logged only as an execution.
	_, err = f.svc.RecordExecution(ctx, "acc", "BTC", ExecutionInput{StepGainPercent: 30, ExecutedPriceUSD: 135, QuantitySold: 2.5})
	require.NoError(t, err)

	plan, err := f.svc.ExitStrategyPlan(ctx, "acc", "BTC", 3)
	require.NoError(t, err)
	assert.Equal(t, 10.0, plan.QtyOpen)
	assert.Equal(t, 7.5, plan.Steps[1].RemainingQtyBefore)
	assert.Equal(t, 1.875, plan.Steps[1].PlannedQtyToSell)
}

func TestExitStrategyPlan_DeletedSellTradeNotAddedBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "BTC", "BUY", 10, 100, 0, 0)
	_, err := f.svc.SaveExitStrategy(ctx, "acc", "BTC", ExitStrategyInput{SellPercent: 25, GainPercent: 30})
	require.NoError(t, err)
	res, err := f.svc.RecordExecution(ctx, "acc", "BTC", ExecutionInput{
		StepGainPercent: 30, ExecutedPriceUSD: 135, QuantitySold: 2.5, RecordAsTrade: true,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteTrade(ctx, "acc", res.Trade.ID))

	plan, err := f.svc.ExitStrategyPlan(ctx, "acc", "BTC", 3)
	require.NoError(t, err)
	assert.Equal(t, 10.0, plan.QtyOpen)
	assert.Equal(t, 7.5, plan.Steps[1].RemainingQtyBefore)
}

func TestRecordExecution_TradeFailureKeepsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "BTC", "BUY", 10, 100, 0, 0)
	_, err := f.svc.SaveExitStrategy(ctx, "acc", "BTC", ExitStrategyInput{SellPercent: 25, GainPercent: 30})
	require.NoError(t, err)

	in := ExecutionInput{StepGainPercent: 30, ExecutedPriceUSD: 135, QuantitySold: 2.5, RecordAsTrade: true}
	f.trades.createErr = fmt.Errorf("disk full: %w", ports.ErrQueryFailed)
	_, err = f.svc.RecordExecution(ctx, "acc", "BTC", in)
	require.ErrorIs(t, err, ports.ErrQueryFailed)
	for _, execs := range f.strategies.executions {
		assert.Empty(t, execs)
	}
	assert.Len(t, f.trades.trades, 1)
	assert.Contains(t, f.logger.errorMsgs, "Failed to record execution")

	// The same fill can be recorded once the store recovers.
	f.trades.createErr = nil
	res, err := f.svc.RecordExecution(ctx, "acc", "BTC", in)
	require.NoError(t, err)
	require.NotNil(t, res.Trade)
	assert.Len(t, f.trades.trades, 2)
}

func TestSaveExitStrategy_GainChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "BTC", "BUY", 10, 100, 0, 0)
	_, err := f.svc.SaveExitStrategy(ctx, "acc", "BTC", ExitStrategyInput{SellPercent: 25, GainPercent: 30})
	require.NoError(t, err)

	// No executions yet: any change is allowed.
	_, err = f.svc.SaveExitStrategy(ctx, "acc", "BTC", ExitStrategyInput{SellPercent: 25, GainPercent: 20})
	require.NoError(t, err)

	_, err = f.svc.RecordExecution(ctx, "acc", "BTC", ExecutionInput{StepGainPercent: 20, ExecutedPriceUSD: 120, QuantitySold: 2.5})
	require.NoError(t, err)

	_, err = f.svc.SaveExitStrategy(ctx, "acc", "BTC", ExitStrategyInput{SellPercent: 25, GainPercent: 30})
	var verr *ports.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "gainPercent")

	s, err := f.svc.SaveExitStrategy(ctx, "acc", "BTC", ExitStrategyInput{SellPercent: 50, GainPercent: 20})
	require.NoError(t, err, "sell percent may still change")
	assert.Equal(t, 50.0, s.SellPercent)
	assert.Equal(t, 40.0, s.NextGainPercent)
}

func TestSimulateExitStrategy(t *testing.T) {
	f := newFixture(t)
	entry, qty, current := 100.0, 10.0, 120.0

	plan, err := f.svc.SimulateExitStrategy(context.Background(), "acc", SimulationInput{
		Symbol: "BTC", SellPercent: 25, GainPercent: 30, MaxSteps: 3,
		EntryPriceUSD: &entry, QtyOpen: &qty, CurrentPriceUSD: &current,
	})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	want := []struct{ target, planned, remaining float64 }{
		{130, 2.5, 7.5},
		{160, 1.875, 5.625},
		{190, 1.40625, 4.21875},
	}
	for i, w := range want {
		assert.Equal(t, w.target, plan.Steps[i].TargetPriceUSD)
		assert.Equal(t, w.planned, plan.Steps[i].PlannedQtyToSell)
		assert.Equal(t, w.remaining, plan.Steps[i].RemainingQtyAfter)
	}
	assert.Equal(t, 0, f.prices.calls, "explicit price skips resolution")

	_, err = f.svc.SimulateExitStrategy(context.Background(), "acc", SimulationInput{Symbol: "BTC", SellPercent: 10, GainPercent: 10, MaxSteps: 51})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestStepMultiple(t *testing.T) {
	tests := []struct {
		strategyGain, gain float64
		want               float64
		ok                 bool
	}{
		{30, 30, 30, true},
		{30, 90.001, 90, true},
		{12.5, 37.5, 37.5, true},
		{30, 45, 0, false},
		{30, 0, 0, false},
		{10, 510, 0, false},
	}
	for _, tt := range tests {
		got, ok := stepMultiple(tt.strategyGain, tt.gain)
		assert.Equal(t, tt.ok, ok, "%v/%v", tt.gain, tt.strategyGain)
		assert.Equal(t, tt.want, got)
	}
}
