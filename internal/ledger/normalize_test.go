package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoJournal/internal/domain"
)

func spotTrade(id, symbol string, side domain.OrderSide, qty, price float64, at time.Time) domain.Trade {
	return domain.Trade{
		ID:         id,
		Symbol:     symbol,
		Kind:       domain.KindSpot,
		SpotSide:   side,
		Quantity:   qty,
		PriceUSD:   price,
		ExecutedAt: at,
	}
}

func ids(events []domain.SpotEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.TradeID)
	}
	return out
}

func TestNormalize_FiltersNoise(t *testing.T) {
	trades := []domain.Trade{
		spotTrade("ok", "btc", domain.Buy, 1, 100, t0),
		spotTrade("cash", "CASH", domain.Buy, 100, 1, t0),
		spotTrade("zero-qty", "BTC", domain.Buy, 0, 100, t0),
		spotTrade("neg-price", "BTC", domain.Buy, 1, -5, t0),
		spotTrade("nan", "BTC", domain.Buy, math.NaN(), 100, t0),
		spotTrade("inf", "BTC", domain.Sell, 1, math.Inf(1), t0),
		spotTrade("other", "ETH", domain.Buy, 1, 100, t0),
		{ID: "futures", Symbol: "BTC", Kind: domain.KindFutures, FuturesSide: domain.Short, Quantity: 1, PriceUSD: 100, ExecutedAt: t0},
		{ID: "no-side", Symbol: "BTC", Kind: domain.KindSpot, Quantity: 1, PriceUSD: 100, ExecutedAt: t0},
	}

	events := Normalize(trades, "BTC")
	assert.Equal(t, []string{"ok"}, ids(events))
	assert.Equal(t, "BTC", events[0].Symbol)
}

func TestNormalize_NegativeOrNaNFeeBecomesZero(t *testing.T) {
	a := spotTrade("a", "BTC", domain.Buy, 1, 100, t0)
	a.FeeUSD = -3
	b := spotTrade("b", "BTC", domain.Buy, 1, 100, t0.Add(time.Second))
	b.FeeUSD = math.NaN()

	events := Normalize([]domain.Trade{a, b}, "BTC")
	require.Len(t, events, 2)
	assert.Equal(t, 0.0, events[0].FeeUSD)
	assert.Equal(t, 0.0, events[1].FeeUSD)
}

func TestNormalize_SortsStably(t *testing.T) {
	trades := []domain.Trade{
		spotTrade("late", "BTC", domain.Sell, 1, 100, t0.Add(2*time.Hour)),
		spotTrade("tie-1", "BTC", domain.Buy, 1, 100, t0.Add(time.Hour)),
		spotTrade("early", "BTC", domain.Buy, 1, 100, t0),
		spotTrade("tie-2", "BTC", domain.Buy, 1, 100, t0.Add(time.Hour)),
	}

	events := Normalize(trades, "BTC")
	assert.Equal(t, []string{"early", "tie-1", "tie-2", "late"}, ids(events))
}

func TestGroupBySymbol(t *testing.T) {
	trades := []domain.Trade{
		spotTrade("e2", "eth", domain.Buy, 1, 10, t0.Add(time.Minute)),
		spotTrade("b1", "BTC", domain.Buy, 1, 100, t0),
		spotTrade("e1", "ETH", domain.Buy, 1, 10, t0),
		spotTrade("c1", "CASH", domain.Buy, 1, 1, t0),
	}

	symbols, groups := GroupBySymbol(trades)
	assert.Equal(t, []string{"BTC", "ETH"}, symbols)
	assert.Equal(t, []string{"b1"}, ids(groups["BTC"]))
	assert.Equal(t, []string{"e1", "e2"}, ids(groups["ETH"]))
	_, hasCash := groups["CASH"]
	assert.False(t, hasCash)
}

func TestRound(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		fn   func(float64) float64
		want float64
	}{
		{name: "money half up", in: 1.005, fn: RoundMoney, want: 1.01},
		{name: "money negative", in: -2.345, fn: RoundMoney, want: -2.35},
		{name: "qty 8 places", in: 1.123456789, fn: RoundQty, want: 1.12345679},
		{name: "nan to zero", in: math.NaN(), fn: RoundMoney, want: 0},
		{name: "inf to zero", in: math.Inf(-1), fn: RoundQty, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}
