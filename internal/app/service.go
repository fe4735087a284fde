package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"cryptoJournal/internal/analytics"
	"cryptoJournal/internal/domain"
	"cryptoJournal/internal/ledger"
	"cryptoJournal/internal/metrics"
	"cryptoJournal/internal/ports"
)

// batchResolver is implemented by resolvers able to price several symbols at once.
type batchResolver interface {
	ResolveAll(ctx context.Context, fallbacks map[string]float64) map[string]domain.PriceQuote
}

// JournalService exposes the position ledger over an account's trade log.
type JournalService struct {
	trades       ports.TradeRepository
	strategies   ports.ExitStrategyRepository
	prices       ports.PriceResolver
	metrics      *metrics.Metrics
	logger       ports.Logger
	defaultSteps int
	now          func() time.Time
	newID        func() string
}

// Config holds the dependencies of JournalService.
type Config struct {
	Trades          ports.TradeRepository
	Strategies      ports.ExitStrategyRepository
	Prices          ports.PriceResolver
	Metrics         *metrics.Metrics // Optional
	Logger          ports.Logger
	DefaultMaxSteps int              // Plan length when a request does not ask for one
	Now             func() time.Time // Defaults to time.Now
	NewID           func() string    // Defaults to uuid.NewString
}

// NewJournalService creates a new application service instance.
func NewJournalService(cfg Config) (*JournalService, error) {
	if cfg.Trades == nil || cfg.Strategies == nil || cfg.Prices == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for JournalService: %w", ports.ErrConfigurationError)
	}
	steps := cfg.DefaultMaxSteps
	if steps == 0 {
		steps = ledger.DefaultMaxSteps
	}
	if steps < 1 || steps > ledger.MaxStepsCap {
		return nil, fmt.Errorf("default max steps %d outside 1..%d: %w", steps, ledger.MaxStepsCap, ports.ErrConfigurationError)
	}

	s := &JournalService{
		trades:       cfg.Trades,
		strategies:   cfg.Strategies,
		prices:       cfg.Prices,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		defaultSteps: steps,
		now:          cfg.Now,
		newID:        cfg.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// --- Trades ---

// TradeInput is a trade as submitted by a client. Side is BUY/SELL for spot
// trades and LONG/SHORT for futures trades.
type TradeInput struct {
	Symbol     string    `json:"symbol"`
	Kind       string    `json:"kind"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	PriceUSD   float64   `json:"priceUsd"`
	FeeUSD     float64   `json:"feeUsd"`
	ExecutedAt time.Time `json:"executedAt"`
	Note       string    `json:"note"`
}

func validateAccount(v *ports.ValidationError, accountID string) {
	if strings.TrimSpace(accountID) == "" {
		v.Add("accountId", "is required")
	}
}

func validateSymbol(v *ports.ValidationError, field, symbol string) {
	sym := domain.NormalizeSymbol(symbol)
	switch {
	case sym == "":
		v.Add(field, "is required")
	case sym == domain.CashSymbol:
		v.Add(field, "CASH is not a tradable asset")
	}
}

func positiveFinite(v *ports.ValidationError, field string, x float64) {
	if !ledger.IsPositiveFinite(x) {
		v.Add(field, "must be a positive number")
	}
}

// BuildTrade validates in and turns it into a trade owned by accountID.
func (s *JournalService) BuildTrade(accountID string, in TradeInput) (domain.Trade, error) {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	validateSymbol(v, "symbol", in.Symbol)
	positiveFinite(v, "quantity", in.Quantity)
	positiveFinite(v, "priceUsd", in.PriceUSD)
	if math.IsNaN(in.FeeUSD) || math.IsInf(in.FeeUSD, 0) || in.FeeUSD < 0 {
		v.Add("feeUsd", "must be zero or a positive number")
	}

	t := domain.Trade{
		ID:         s.newID(),
		AccountID:  accountID,
		Symbol:     domain.NormalizeSymbol(in.Symbol),
		Quantity:   in.Quantity,
		PriceUSD:   in.PriceUSD,
		FeeUSD:     in.FeeUSD,
		ExecutedAt: in.ExecutedAt.UTC(),
		Note:       strings.TrimSpace(in.Note),
		CreatedAt:  s.now().UTC(),
	}
	if in.ExecutedAt.IsZero() {
		t.ExecutedAt = t.CreatedAt
	}

	side := strings.ToUpper(strings.TrimSpace(in.Side))
	switch domain.TradeKind(strings.ToLower(strings.TrimSpace(in.Kind))) {
	case domain.KindSpot, "":
		t.Kind = domain.KindSpot
		t.SpotSide = domain.OrderSide(side)
		if t.SpotSide != domain.Buy && t.SpotSide != domain.Sell {
			v.Add("side", "must be BUY or SELL for spot trades")
		}
	case domain.KindFutures:
		t.Kind = domain.KindFutures
		t.FuturesSide = domain.FuturesSide(side)
		if t.FuturesSide != domain.Long && t.FuturesSide != domain.Short {
			v.Add("side", "must be LONG or SHORT for futures trades")
		}
	default:
		v.Add("kind", "must be spot or futures")
	}

	if err := v.OrNil(); err != nil {
		return domain.Trade{}, err
	}
	return t, nil
}

// RecordTrade validates and appends a trade to the account's log.
func (s *JournalService) RecordTrade(ctx context.Context, accountID string, in TradeInput) (*domain.Trade, error) {
	t, err := s.BuildTrade(accountID, in)
	if err != nil {
		return nil, err
	}
	if err := s.trades.CreateTrade(ctx, &t); err != nil {
		s.logger.Error(ctx, err, "Failed to record trade", map[string]interface{}{"accountID": accountID, "symbol": t.Symbol})
		return nil, err
	}
	s.metrics.TradeRecorded()
	s.logger.Info(ctx, "Trade recorded", map[string]interface{}{
		"accountID": accountID,
		"tradeID":   t.ID,
		"symbol":    t.Symbol,
		"kind":      t.Kind,
	})
	return &t, nil
}

// ListTrades returns the account's trades, optionally limited to one symbol.
func (s *JournalService) ListTrades(ctx context.Context, accountID, symbol string) ([]domain.Trade, error) {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(symbol) == "" {
		return s.trades.ListTrades(ctx, accountID)
	}
	return s.trades.ListTradesBySymbol(ctx, accountID, domain.NormalizeSymbol(symbol))
}

// DeleteTrade removes one trade from the account's log.
func (s *JournalService) DeleteTrade(ctx context.Context, accountID, tradeID string) error {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	if strings.TrimSpace(tradeID) == "" {
		v.Add("tradeId", "is required")
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	if err := s.trades.DeleteTrade(ctx, accountID, tradeID); err != nil {
		return err
	}
	s.logger.Info(ctx, "Trade deleted", map[string]interface{}{"accountID": accountID, "tradeID": tradeID})
	return nil
}

// --- Positions ---

// PortfolioSummary folds every spot symbol of the account and prices the
// open positions.
func (s *JournalService) PortfolioSummary(ctx context.Context, accountID string) (*domain.PortfolioSummary, error) {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	trades, err := s.trades.ListTrades(ctx, accountID)
	if err != nil {
		return nil, err
	}
	symbols, groups := ledger.GroupBySymbol(trades)

	states := make([]domain.PositionState, 0, len(symbols))
	fallbacks := make(map[string]float64)
	for _, sym := range symbols {
		state, _ := ledger.Fold(sym, groups[sym], ledger.AggregatePolicy)
		states = append(states, state)
		if state.IsOpen() {
			fallbacks[sym] = state.AverageEntryPrice()
		}
	}

	quotes := s.resolveAll(ctx, fallbacks)
	assets := make([]domain.AssetSummary, 0, len(states))
	for _, state := range states {
		assets = append(assets, ledger.Value(state, quotes[state.Symbol]))
	}

	summary := ledger.Aggregate(accountID, assets, s.now().UTC())
	return &summary, nil
}

func (s *JournalService) resolveAll(ctx context.Context, fallbacks map[string]float64) map[string]domain.PriceQuote {
	if b, ok := s.prices.(batchResolver); ok {
		return b.ResolveAll(ctx, fallbacks)
	}
	out := make(map[string]domain.PriceQuote, len(fallbacks))
	for sym, avg := range fallbacks {
		out[sym] = s.prices.Resolve(ctx, sym, avg)
	}
	return out
}

// AssetDetail is the single-asset view: valued position, annotated ledger and
// statistics over its sells.
type AssetDetail struct {
	Summary     domain.AssetSummary            `json:"summary"`
	Ledger      []domain.LedgerRow             `json:"ledger"`
	Performance *analytics.RealizedPerformance `json:"performance"`
}

// AssetDetail returns the detail view of one symbol. ErrNotFound when the
// account holds no spot trades of it.
func (s *JournalService) AssetDetail(ctx context.Context, accountID, symbol string) (*AssetDetail, error) {
	sym, trades, err := s.symbolTrades(ctx, accountID, symbol)
	if err != nil {
		return nil, err
	}
	events := ledger.Normalize(trades, sym)
	if len(events) == 0 {
		return nil, fmt.Errorf("no spot trades for %s: %w", sym, ports.ErrNotFound)
	}

	state, rows := ledger.Fold(sym, events, ledger.DetailPolicy)
	var quote domain.PriceQuote
	if state.IsOpen() {
		quote = s.prices.Resolve(ctx, sym, state.AverageEntryPrice())
	}
	return &AssetDetail{
		Summary:     ledger.Value(state, quote),
		Ledger:      rows,
		Performance: analytics.AnalyzeRealized(rows),
	}, nil
}

// LedgerView is the per-symbol ledger with proportional reduction of the
// invested capital on every sell.
type LedgerView struct {
	Symbol   string               `json:"symbol"`
	Position domain.PositionState `json:"position"`
	Rows     []domain.LedgerRow   `json:"rows"`
}

// AssetLedger returns the annotated ledger of one symbol.
func (s *JournalService) AssetLedger(ctx context.Context, accountID, symbol string) (*LedgerView, error) {
	sym, trades, err := s.symbolTrades(ctx, accountID, symbol)
	if err != nil {
		return nil, err
	}
	state, rows := ledger.FoldTrades(trades, sym, ledger.LedgerPolicy)
	return &LedgerView{Symbol: sym, Position: state, Rows: rows}, nil
}

// OpenSpotHolding returns the open quantity and average entry of symbol,
// zero when it was never traded.
func (s *JournalService) OpenSpotHolding(ctx context.Context, accountID, symbol string) (domain.Holding, error) {
	sym, trades, err := s.symbolTrades(ctx, accountID, symbol)
	if err != nil {
		return domain.Holding{}, err
	}
	return ledger.OpenHolding(trades, sym), nil
}

func (s *JournalService) symbolTrades(ctx context.Context, accountID, symbol string) (string, []domain.Trade, error) {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	validateSymbol(v, "symbol", symbol)
	if err := v.OrNil(); err != nil {
		return "", nil, err
	}
	sym := domain.NormalizeSymbol(symbol)
	trades, err := s.trades.ListTradesBySymbol(ctx, accountID, sym)
	if err != nil {
		return "", nil, err
	}
	return sym, trades, nil
}

// --- Exit strategies ---

// ExitStrategyInput carries the parameters of a strategy.
type ExitStrategyInput struct {
	SellPercent float64 `json:"sellPercent"`
	GainPercent float64 `json:"gainPercent"`
	IsActive    *bool   `json:"isActive"` // Defaults to true
}

func validateStrategyParams(v *ports.ValidationError, sellPercent, gainPercent float64) {
	if !ledger.IsPositiveFinite(sellPercent) || sellPercent > 100 {
		v.Add("sellPercent", "must be in (0, 100]")
	}
	if !ledger.IsPositiveFinite(gainPercent) {
		v.Add("gainPercent", "must be greater than 0")
	}
}

// SaveExitStrategy creates or replaces the account's strategy for symbol.
func (s *JournalService) SaveExitStrategy(ctx context.Context, accountID, symbol string, in ExitStrategyInput) (*domain.ExitStrategy, error) {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	validateSymbol(v, "coinSymbol", symbol)
	validateStrategyParams(v, in.SellPercent, in.GainPercent)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	// Executions are keyed by multiples of the gain; they would be orphaned.
	existing, err := s.strategies.FindExitStrategy(ctx, accountID, domain.NormalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	if existing != nil && ledger.RoundMoney(existing.GainPercent) != ledger.RoundMoney(in.GainPercent) {
		execs, err := s.strategies.ListExecutions(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		if len(execs) > 0 {
			v.Add("gainPercent", fmt.Sprintf("cannot change from %v while %d steps are executed; delete the strategy to start over", existing.GainPercent, len(execs)))
			return nil, v
		}
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	strategy := &domain.ExitStrategy{
		ID:          s.newID(),
		AccountID:   accountID,
		CoinSymbol:  domain.NormalizeSymbol(symbol),
		SellPercent: in.SellPercent,
		GainPercent: in.GainPercent,
		IsActive:    active,
	}
	if err := s.strategies.UpsertExitStrategy(ctx, strategy); err != nil {
		s.logger.Error(ctx, err, "Failed to save exit strategy", map[string]interface{}{"accountID": accountID, "symbol": strategy.CoinSymbol})
		return nil, err
	}
	if err := s.withNextGain(ctx, strategy); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "Exit strategy saved", map[string]interface{}{
		"accountID":   accountID,
		"symbol":      strategy.CoinSymbol,
		"sellPercent": strategy.SellPercent,
		"gainPercent": strategy.GainPercent,
	})
	return strategy, nil
}

// ListExitStrategies returns the account's strategies with their next step.
func (s *JournalService) ListExitStrategies(ctx context.Context, accountID string) ([]domain.ExitStrategy, error) {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	strategies, err := s.strategies.ListExitStrategies(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := range strategies {
		if err := s.withNextGain(ctx, &strategies[i]); err != nil {
			return nil, err
		}
	}
	return strategies, nil
}

func (s *JournalService) withNextGain(ctx context.Context, strategy *domain.ExitStrategy) error {
	execs, err := s.strategies.ListExecutions(ctx, strategy.ID)
	if err != nil {
		return err
	}
	strategy.NextGainPercent = ledger.NextGainPercent(strategy.GainPercent, execs)
	return nil
}

// DeleteExitStrategy removes the strategy for symbol and its executions.
func (s *JournalService) DeleteExitStrategy(ctx context.Context, accountID, symbol string) error {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	validateSymbol(v, "coinSymbol", symbol)
	if err := v.OrNil(); err != nil {
		return err
	}
	if err := s.strategies.DeleteExitStrategy(ctx, accountID, domain.NormalizeSymbol(symbol)); err != nil {
		return err
	}
	s.logger.Info(ctx, "Exit strategy deleted", map[string]interface{}{"accountID": accountID, "symbol": domain.NormalizeSymbol(symbol)})
	return nil
}

func (s *JournalService) findStrategy(ctx context.Context, accountID, symbol string) (*domain.ExitStrategy, error) {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	validateSymbol(v, "coinSymbol", symbol)
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	strategy, err := s.strategies.FindExitStrategy(ctx, accountID, domain.NormalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, fmt.Errorf("exit strategy for %s: %w", domain.NormalizeSymbol(symbol), ports.ErrNotFound)
	}
	return strategy, nil
}

func (s *JournalService) resolveSteps(maxSteps int) (int, error) {
	if maxSteps == 0 {
		return s.defaultSteps, nil
	}
	if maxSteps < 1 || maxSteps > ledger.MaxStepsCap {
		v := ports.NewValidationError()
		v.Add("maxSteps", fmt.Sprintf("must be between 1 and %d", ledger.MaxStepsCap))
		return 0, v
	}
	return maxSteps, nil
}

// ExitStrategyPlan projects the saved strategy over the open holding and
// reconciles it with the recorded executions. Sells written with an execution
// are added back, so the plan starts from the quantity held before step one.
func (s *JournalService) ExitStrategyPlan(ctx context.Context, accountID, symbol string, maxSteps int) (*domain.ExitPlan, error) {
	steps, err := s.resolveSteps(maxSteps)
	if err != nil {
		return nil, err
	}
	strategy, err := s.findStrategy(ctx, accountID, symbol)
	if err != nil {
		return nil, err
	}
	sym, trades, err := s.symbolTrades(ctx, accountID, strategy.CoinSymbol)
	if err != nil {
		return nil, err
	}
	holding := ledger.OpenHolding(trades, sym)
	execs, err := s.strategies.ListExecutions(ctx, strategy.ID)
	if err != nil {
		return nil, err
	}

	quote := s.prices.Resolve(ctx, strategy.CoinSymbol, holding.AvgEntryPriceUSD)
	plan := ledger.Plan(ledger.PlanInput{
		Symbol:          strategy.CoinSymbol,
		EntryPriceUSD:   holding.AvgEntryPriceUSD,
		QtyOpen:         qtyBeforeExecutions(holding.Quantity, trades, execs),
		SellPercent:     strategy.SellPercent,
		GainPercent:     strategy.GainPercent,
		MaxSteps:        steps,
		CurrentPriceUSD: quote.PriceUSD,
		Executions:      execs,
	})
	return &plan, nil
}

// qtyBeforeExecutions undoes the sells already reflected in held: those of
// executions whose backing trade is still in the log.
func qtyBeforeExecutions(held float64, trades []domain.Trade, execs []domain.ExitStrategyExecution) float64 {
	if len(execs) == 0 {
		return held
	}
	logged := make(map[string]bool, len(trades))
	for _, t := range trades {
		logged[t.ID] = true
	}
	qty := held
	for _, e := range execs {
		if e.TradeID != "" && logged[e.TradeID] {
			qty += ledger.ToFiniteOrZero(e.QuantitySold)
		}
	}
	return ledger.RoundQty(qty)
}

// SimulationInput describes a what-if plan. Entry, quantity and current price
// default to the open holding and its resolved price.
type SimulationInput struct {
	Symbol          string   `json:"symbol"`
	SellPercent     float64  `json:"sellPercent"`
	GainPercent     float64  `json:"gainPercent"`
	MaxSteps        int      `json:"maxSteps"`
	EntryPriceUSD   *float64 `json:"entryPriceUsd"`
	QtyOpen         *float64 `json:"qtyOpen"`
	CurrentPriceUSD *float64 `json:"currentPriceUsd"`
}

// SimulateExitStrategy projects a plan without touching stored executions.
func (s *JournalService) SimulateExitStrategy(ctx context.Context, accountID string, in SimulationInput) (*domain.ExitPlan, error) {
	v := ports.NewValidationError()
	validateAccount(v, accountID)
	validateSymbol(v, "symbol", in.Symbol)
	validateStrategyParams(v, in.SellPercent, in.GainPercent)
	if in.EntryPriceUSD != nil && !ledger.IsPositiveFinite(*in.EntryPriceUSD) {
		v.Add("entryPriceUsd", "must be a positive number")
	}
	if in.QtyOpen != nil && (math.IsNaN(*in.QtyOpen) || math.IsInf(*in.QtyOpen, 0) || *in.QtyOpen < 0) {
		v.Add("qtyOpen", "must be zero or a positive number")
	}
	if in.CurrentPriceUSD != nil && !ledger.IsPositiveFinite(*in.CurrentPriceUSD) {
		v.Add("currentPriceUsd", "must be a positive number")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	steps, err := s.resolveSteps(in.MaxSteps)
	if err != nil {
		return nil, err
	}

	sym := domain.NormalizeSymbol(in.Symbol)
	entry, qty := 0.0, 0.0
	if in.EntryPriceUSD == nil || in.QtyOpen == nil {
		holding, err := s.OpenSpotHolding(ctx, accountID, sym)
		if err != nil {
			return nil, err
		}
		entry, qty = holding.AvgEntryPriceUSD, holding.Quantity
	}
	if in.EntryPriceUSD != nil {
		entry = *in.EntryPriceUSD
	}
	if in.QtyOpen != nil {
		qty = *in.QtyOpen
	}

	var current float64
	if in.CurrentPriceUSD != nil {
		current = *in.CurrentPriceUSD
	} else {
		current = s.prices.Resolve(ctx, sym, entry).PriceUSD
	}

	plan := ledger.Plan(ledger.PlanInput{
		Symbol:          sym,
		EntryPriceUSD:   entry,
		QtyOpen:         qty,
		SellPercent:     in.SellPercent,
		GainPercent:     in.GainPercent,
		MaxSteps:        steps,
		CurrentPriceUSD: current,
	})
	return &plan, nil
}

// ExecutionInput is a fill reported against one step of a strategy.
// With RecordAsTrade the matching spot sell is appended to the trade log.
type ExecutionInput struct {
	StepGainPercent  float64   `json:"stepGainPercent"`
	ExecutedPriceUSD float64   `json:"executedPriceUsd"`
	QuantitySold     float64   `json:"quantitySold"`
	FeeUSD           float64   `json:"feeUsd"`
	ExecutedAt       time.Time `json:"executedAt"`
	RecordAsTrade    bool      `json:"recordAsTrade"`
}

// ExecutionResult is the stored execution and, when requested, the sell trade.
type ExecutionResult struct {
	Execution domain.ExitStrategyExecution `json:"execution"`
	Trade     *domain.Trade                `json:"trade,omitempty"`
}

// RecordExecution records a fill of one step of the strategy for symbol.
// Target price, proceeds and realized profit are fixed at write time.
func (s *JournalService) RecordExecution(ctx context.Context, accountID, symbol string, in ExecutionInput) (*ExecutionResult, error) {
	strategy, err := s.findStrategy(ctx, accountID, symbol)
	if err != nil {
		return nil, err
	}

	v := ports.NewValidationError()
	positiveFinite(v, "executedPriceUsd", in.ExecutedPriceUSD)
	positiveFinite(v, "quantitySold", in.QuantitySold)
	if in.FeeUSD < 0 || math.IsNaN(in.FeeUSD) || math.IsInf(in.FeeUSD, 0) {
		v.Add("feeUsd", "must be zero or a positive number")
	}
	stepGain, ok := stepMultiple(strategy.GainPercent, in.StepGainPercent)
	if !ok {
		v.Add("stepGainPercent", fmt.Sprintf("must be a multiple of %v between 1 and %d steps", strategy.GainPercent, ledger.MaxStepsCap))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	holding, err := s.OpenSpotHolding(ctx, accountID, strategy.CoinSymbol)
	if err != nil {
		return nil, err
	}
	if in.RecordAsTrade && in.QuantitySold > holding.Quantity+ledger.Epsilon {
		v.Add("quantitySold", fmt.Sprintf("exceeds the open holding of %v", holding.Quantity))
		return nil, v
	}

	executedAt := in.ExecutedAt.UTC()
	if in.ExecutedAt.IsZero() {
		executedAt = s.now().UTC()
	}
	target := ledger.RoundMoney(ledger.TargetPrice(holding.AvgEntryPriceUSD, stepGain))
	exec := domain.ExitStrategyExecution{
		ID:                s.newID(),
		ExitStrategyID:    strategy.ID,
		StepGainPercent:   stepGain,
		TargetPriceUSD:    target,
		ExecutedPriceUSD:  in.ExecutedPriceUSD,
		QuantitySold:      in.QuantitySold,
		ProceedsUSD:       ledger.RoundMoney(in.QuantitySold * in.ExecutedPriceUSD),
		RealizedProfitUSD: ledger.RoundMoney(in.QuantitySold * (in.ExecutedPriceUSD - target)),
		ExecutedAt:        executedAt,
	}
	result := &ExecutionResult{Execution: exec}
	if in.RecordAsTrade {
		t, err := s.BuildTrade(accountID, TradeInput{
			Symbol:     strategy.CoinSymbol,
			Kind:       string(domain.KindSpot),
			Side:       string(domain.Sell),
			Quantity:   in.QuantitySold,
			PriceUSD:   in.ExecutedPriceUSD,
			FeeUSD:     in.FeeUSD,
			ExecutedAt: executedAt,
			Note:       fmt.Sprintf("exit strategy step +%v%%", stepGain),
		})
		if err != nil {
			return nil, err
		}
		err = s.strategies.CreateExecutionWithTrade(ctx, &exec, &t)
		if err != nil {
			return nil, s.executionFailed(ctx, err, accountID, strategy.CoinSymbol)
		}
		s.metrics.TradeRecorded()
		result.Execution = exec
		result.Trade = &t
	} else if err := s.strategies.CreateExecution(ctx, &exec); err != nil {
		return nil, s.executionFailed(ctx, err, accountID, strategy.CoinSymbol)
	}
	s.metrics.ExecutionRecorded()

	s.logger.Info(ctx, "Exit strategy execution recorded", map[string]interface{}{
		"accountID": accountID,
		"symbol":    strategy.CoinSymbol,
		"step":      stepGain,
		"quantity":  in.QuantitySold,
		"price":     in.ExecutedPriceUSD,
	})
	return result, nil
}

func (s *JournalService) executionFailed(ctx context.Context, err error, accountID, symbol string) error {
	if !errors.Is(err, ports.ErrDuplicateEntry) {
		s.logger.Error(ctx, err, "Failed to record execution", map[string]interface{}{"accountID": accountID, "symbol": symbol})
	}
	return err
}

// stepMultiple checks that gain is i*strategyGain for some i in 1..cap, at
// cent precision, and returns the canonical step gain.
func stepMultiple(strategyGain, gain float64) (float64, bool) {
	if !ledger.IsPositiveFinite(strategyGain) || !ledger.IsPositiveFinite(gain) {
		return 0, false
	}
	i := math.Round(gain / strategyGain)
	if i < 1 || i > ledger.MaxStepsCap {
		return 0, false
	}
	canonical := ledger.RoundMoney(strategyGain * i)
	if math.Abs(canonical-ledger.RoundMoney(gain)) > 0.005 {
		return 0, false
	}
	return canonical, true
}
