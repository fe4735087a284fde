package domain

import "time"

// PositionState is the running result of folding spot events for one symbol.
type PositionState struct {
	Symbol            string  `json:"symbol"`
	QuantityHeld      float64 `json:"quantityHeld"`
	CostBasisUSD      float64 `json:"costBasisUsd"`
	TotalInvestedUSD  float64 `json:"totalInvestedUsd"`
	RealizedProfitUSD float64 `json:"realizedProfitUsd"`
}

// AverageEntryPrice returns the blended cost per unit held, 0 when flat.
func (p PositionState) AverageEntryPrice() float64 {
	if p.QuantityHeld <= 0 {
		return 0
	}
	return p.CostBasisUSD / p.QuantityHeld
}

// IsOpen reports whether any quantity is still held.
func (p PositionState) IsOpen() bool {
	return p.QuantityHeld > 0
}

// LedgerRow is one annotated transaction of the per-symbol trail.
// GainLoss fields are nil for buys.
type LedgerRow struct {
	TradeID          string    `json:"tradeId"`
	Side             OrderSide `json:"side"`
	Quantity         float64   `json:"qty"`
	PriceUSD         float64   `json:"priceUsd"`
	TotalUSD         float64   `json:"totalUsd"`
	FeeUSD           float64   `json:"feeUsd"`
	GainLossUSD      *float64  `json:"gainLossUsd"`
	GainLossPct      *float64  `json:"gainLossPct"`
	ExecutedAt       time.Time `json:"executedAt"`
	QuantityAfter    float64   `json:"qtyHeldAfter"`
	AvgPriceAfterUSD float64   `json:"avgPriceAfterUsd"`
}

// PriceQuote is a resolved current price.
type PriceQuote struct {
	PriceUSD    float64     `json:"priceUsd"`
	Source      PriceSource `json:"source"`
	IsEstimated bool        `json:"isEstimated"`
}

// AssetSummary is a valued position for one symbol.
type AssetSummary struct {
	Symbol               string      `json:"symbol"`
	QuantityHeld         float64     `json:"quantityHeld"`
	AverageEntryPriceUSD float64     `json:"averageEntryPriceUsd"`
	CostBasisUSD         float64     `json:"costBasisUsd"`
	TotalInvestedUSD     float64     `json:"totalInvestedUsd"`
	CurrentPriceUSD      float64     `json:"currentPriceUsd"`
	PriceSource          PriceSource `json:"priceSource"`
	IsEstimated          bool        `json:"isEstimated"`
	HoldingsValueUSD     float64     `json:"holdingsValueUsd"`
	RealizedProfitUSD    float64     `json:"realizedProfitUsd"`
	UnrealizedProfitUSD  float64     `json:"unrealizedProfitUsd"`
	TotalProfitUSD       float64     `json:"totalProfitUsd"`
	TotalProfitPct       float64     `json:"totalProfitPct"`
	CurrentProfitUSD     float64     `json:"currentProfitUsd"`
	CurrentProfitPct     *float64    `json:"currentProfitPct"`
}

// PortfolioSummary aggregates every asset of one account.
type PortfolioSummary struct {
	AccountID           string         `json:"accountId"`
	CurrentBalanceUSD   float64        `json:"currentBalanceUsd"`
	TotalInvestedUSD    float64        `json:"totalInvestedUsd"`
	RealizedProfitUSD   float64        `json:"realizedProfitUsd"`
	UnrealizedProfitUSD float64        `json:"unrealizedProfitUsd"`
	TotalProfitUSD      float64        `json:"totalProfitUsd"`
	TotalProfitPct      float64        `json:"totalProfitPct"`
	Assets              []AssetSummary `json:"assets"`
	TopPerformer        *AssetSummary  `json:"topPerformer"`
	GeneratedAt         time.Time      `json:"generatedAt"`
}

// Holding is the open spot quantity and its average entry price.
type Holding struct {
	Symbol           string  `json:"symbol"`
	Quantity         float64 `json:"qty"`
	AvgEntryPriceUSD float64 `json:"avgEntryPriceUsd"`
}
