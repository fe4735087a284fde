package domain

import "strings"

// CashSymbol is the pseudo-asset used for fiat deposits and withdrawals.
// It never takes part in position computation.
const CashSymbol = "CASH"

// TradeKind tags which ledger a trade belongs to.
type TradeKind string

const (
	KindSpot    TradeKind = "spot"
	KindFutures TradeKind = "futures"
)

// OrderSide represents the side of a spot trade (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// FuturesSide represents the direction of a leveraged trade.
type FuturesSide string

const (
	Long  FuturesSide = "LONG"
	Short FuturesSide = "SHORT"
)

// PriceSource names where a current price came from.
type PriceSource string

const (
	SourceBinance   PriceSource = "binance"
	SourceCoinGecko PriceSource = "coingecko"
	SourceDBCache   PriceSource = "db_cache"
	SourceAvgEntry  PriceSource = "avg_entry"
)

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
