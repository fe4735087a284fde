package domain

import "time"

// Trade is one persisted row of the append-only trade log.
// Exactly one of SpotSide / FuturesSide is meaningful, selected by Kind.
type Trade struct {
	ID          string      `json:"id"`
	AccountID   string      `json:"accountId"`
	Symbol      string      `json:"symbol"` // Upper-case ticker, e.g. "BTC"
	Kind        TradeKind   `json:"kind"`
	SpotSide    OrderSide   `json:"spotSide,omitempty"`
	FuturesSide FuturesSide `json:"futuresSide,omitempty"`
	Quantity    float64     `json:"quantity"`
	PriceUSD    float64     `json:"priceUsd"`
	FeeUSD      float64     `json:"feeUsd"` // Charged on the side it was incurred
	ExecutedAt  time.Time   `json:"executedAt"`
	Note        string      `json:"note,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// SpotEvent is a spot buy or sell ready to be folded into a position.
// It can only be obtained from a Trade through Spot, which keeps futures
// rows out of the cost tracker.
type SpotEvent struct {
	TradeID    string
	Symbol     string
	Side       OrderSide
	Quantity   float64
	PriceUSD   float64
	FeeUSD     float64
	ExecutedAt time.Time
}

// Spot returns the spot view of the trade, or false for futures rows.
func (t Trade) Spot() (SpotEvent, bool) {
	if t.Kind != KindSpot {
		return SpotEvent{}, false
	}
	if t.SpotSide != Buy && t.SpotSide != Sell {
		return SpotEvent{}, false
	}
	return SpotEvent{
		TradeID:    t.ID,
		Symbol:     NormalizeSymbol(t.Symbol),
		Side:       t.SpotSide,
		Quantity:   t.Quantity,
		PriceUSD:   t.PriceUSD,
		FeeUSD:     t.FeeUSD,
		ExecutedAt: t.ExecutedAt,
	}, true
}
