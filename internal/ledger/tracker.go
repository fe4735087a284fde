package ledger

import (
	"math"

	"cryptoJournal/internal/domain"
)

// Policy selects how invested capital reacts to sells. The three call sites
// (portfolio summary, asset detail, per-symbol ledger) differ only here.
type Policy struct {
	// ResetInvestedOnFullExit zeroes TotalInvestedUSD when a sell flattens
	// the position.
	ResetInvestedOnFullExit bool
	// ReduceInvestedOnSell lowers TotalInvestedUSD by the fraction of the
	// held quantity each sell closes.
	ReduceInvestedOnSell bool
}

var (
	// AggregatePolicy is used for the portfolio summary.
	AggregatePolicy = Policy{ResetInvestedOnFullExit: true}
	// DetailPolicy is used for single asset detail and holding lookups.
	DetailPolicy = Policy{}
	// LedgerPolicy is used for the per-symbol transaction ledger.
	LedgerPolicy = Policy{ReduceInvestedOnSell: true}
)

// Tracker folds spot events into a weighted-average cost position.
// The zero value is not usable; create one with NewTracker.
type Tracker struct {
	policy Policy
	state  domain.PositionState
}

// NewTracker returns a flat tracker for symbol.
func NewTracker(symbol string, policy Policy) *Tracker {
	return &Tracker{
		policy: policy,
		state:  domain.PositionState{Symbol: domain.NormalizeSymbol(symbol)},
	}
}

// Apply folds one event and returns its annotated ledger row.
func (t *Tracker) Apply(ev domain.SpotEvent) domain.LedgerRow {
	switch ev.Side {
	case domain.Buy:
		return t.buy(ev)
	default:
		return t.sell(ev)
	}
}

// State returns the current position with non-finite figures zeroed.
func (t *Tracker) State() domain.PositionState {
	s := t.state
	s.QuantityHeld = ToFiniteOrZero(s.QuantityHeld)
	s.CostBasisUSD = ToFiniteOrZero(s.CostBasisUSD)
	s.TotalInvestedUSD = ToFiniteOrZero(s.TotalInvestedUSD)
	s.RealizedProfitUSD = ToFiniteOrZero(s.RealizedProfitUSD)
	return s
}

func (t *Tracker) buy(ev domain.SpotEvent) domain.LedgerRow {
	total := ev.Quantity * ev.PriceUSD
	t.state.QuantityHeld += ev.Quantity
	t.state.CostBasisUSD += total + ev.FeeUSD
	t.state.TotalInvestedUSD += total + ev.FeeUSD
	return t.row(ev, total+ev.FeeUSD, nil, nil)
}

func (t *Tracker) sell(ev domain.SpotEvent) domain.LedgerRow {
	s := &t.state
	avg := 0.0
	if s.QuantityHeld > 0 {
		avg = s.CostBasisUSD / s.QuantityHeld
	}

	gainLoss := (ev.PriceUSD-avg)*ev.Quantity - ev.FeeUSD
	var gainLossPct *float64
	if avg > 0 {
		gainLossPct = finitePtr((ev.PriceUSD - avg) / avg * 100)
	}
	if !math.IsNaN(gainLoss) && !math.IsInf(gainLoss, 0) {
		s.RealizedProfitUSD += gainLoss
	}

	qtyBefore := s.QuantityHeld
	reduce := math.Min(ev.Quantity, s.QuantityHeld)
	s.QuantityHeld -= reduce
	s.CostBasisUSD -= reduce * avg
	if s.CostBasisUSD < 0 {
		s.CostBasisUSD = 0
	}
	if t.policy.ReduceInvestedOnSell && qtyBefore > 0 {
		s.TotalInvestedUSD -= s.TotalInvestedUSD * (reduce / qtyBefore)
	}

	if s.QuantityHeld < Epsilon {
		s.QuantityHeld = 0
		s.CostBasisUSD = 0
		if t.policy.ResetInvestedOnFullExit || t.policy.ReduceInvestedOnSell {
			s.TotalInvestedUSD = 0
		}
	}

	return t.row(ev, ev.Quantity*ev.PriceUSD-ev.FeeUSD, finitePtr(gainLoss), gainLossPct)
}

func (t *Tracker) row(ev domain.SpotEvent, totalUSD float64, gainLoss, gainLossPct *float64) domain.LedgerRow {
	return domain.LedgerRow{
		TradeID:          ev.TradeID,
		Side:             ev.Side,
		Quantity:         ev.Quantity,
		PriceUSD:         ev.PriceUSD,
		TotalUSD:         ToFiniteOrZero(totalUSD),
		FeeUSD:           ev.FeeUSD,
		GainLossUSD:      gainLoss,
		GainLossPct:      gainLossPct,
		ExecutedAt:       ev.ExecutedAt,
		QuantityAfter:    ToFiniteOrZero(t.state.QuantityHeld),
		AvgPriceAfterUSD: ToFiniteOrZero(t.state.AverageEntryPrice()),
	}
}

// Fold replays events in order and returns the final position together with
// the annotated ledger. Replaying the same events always yields the same
// result.
func Fold(symbol string, events []domain.SpotEvent, policy Policy) (domain.PositionState, []domain.LedgerRow) {
	t := NewTracker(symbol, policy)
	rows := make([]domain.LedgerRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, t.Apply(ev))
	}
	return t.State(), rows
}

// FoldTrades normalizes raw trades for symbol and folds them.
func FoldTrades(trades []domain.Trade, symbol string, policy Policy) (domain.PositionState, []domain.LedgerRow) {
	return Fold(symbol, Normalize(trades, symbol), policy)
}

// OpenHolding returns the open quantity and average entry price of symbol.
// A symbol that was never bought yields a zero holding.
func OpenHolding(trades []domain.Trade, symbol string) domain.Holding {
	state, _ := FoldTrades(trades, symbol, DetailPolicy)
	return domain.Holding{
		Symbol:           domain.NormalizeSymbol(symbol),
		Quantity:         state.QuantityHeld,
		AvgEntryPriceUSD: ToFiniteOrZero(state.AverageEntryPrice()),
	}
}
