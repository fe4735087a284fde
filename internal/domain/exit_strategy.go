package domain

import "time"

// ExitStrategy is a per-coin scale-out configuration: sell SellPercent of the
// remaining quantity every GainPercent price gain above entry.
type ExitStrategy struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"accountId"`
	CoinSymbol      string    `json:"coinSymbol"`
	SellPercent     float64   `json:"sellPercent"`
	GainPercent     float64   `json:"gainPercent"`
	IsActive        bool      `json:"isActive"`
	NextGainPercent float64   `json:"nextGainPercent"` // Derived, never stored
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ExitStrategyExecution is a recorded fill against one step of a strategy.
// TradeID names the spot sell written with it, if any.
type ExitStrategyExecution struct {
	ID                string    `json:"id"`
	ExitStrategyID    string    `json:"exitStrategyId"`
	TradeID           string    `json:"tradeId,omitempty"`
	StepGainPercent   float64   `json:"stepGainPercent"`
	TargetPriceUSD    float64   `json:"targetPriceUsd"`
	ExecutedPriceUSD  float64   `json:"executedPriceUsd"`
	QuantitySold      float64   `json:"quantitySold"`
	ProceedsUSD       float64   `json:"proceedsUsd"`
	RealizedProfitUSD float64   `json:"realizedProfitUsd"`
	ExecutedAt        time.Time `json:"executedAt"`
}

// StepStatus describes where a plan step stands against the current price.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepReady    StepStatus = "ready"
	StepExecuted StepStatus = "executed"
)

// ExitStrategyStep is one projected (or executed) row of a scale-out plan.
type ExitStrategyStep struct {
	Step                        int        `json:"step"`
	GainPercent                 float64    `json:"gainPercent"`
	TargetPriceUSD              float64    `json:"targetPriceUsd"`
	RemainingQtyBefore          float64    `json:"remainingQtyBefore"`
	PlannedQtyToSell            float64    `json:"plannedQtyToSell"`
	ExecutedQtyToSell           *float64   `json:"executedQtyToSell"`
	ExecutedPriceUSD            *float64   `json:"executedPriceUsd"`
	ProceedsUSD                 float64    `json:"proceedsUsd"`
	RealizedProfitUSD           float64    `json:"realizedProfitUsd"`
	CumulativeRealizedProfitUSD float64    `json:"cumulativeRealizedProfitUsd"`
	RemainingQtyAfter           float64    `json:"remainingQtyAfter"`
	IsExecuted                  bool       `json:"isExecuted"`
	Status                      StepStatus `json:"status"`
	DistanceToTargetPercent     float64    `json:"distanceToTargetPercent"`
}

// ExitPlan is the full projection returned to callers.
type ExitPlan struct {
	Symbol          string             `json:"symbol"`
	EntryPriceUSD   float64            `json:"entryPriceUsd"`
	QtyOpen         float64            `json:"qtyOpen"`
	SellPercent     float64            `json:"sellPercent"`
	GainPercent     float64            `json:"gainPercent"`
	CurrentPriceUSD float64            `json:"currentPriceUsd"`
	Status          StepStatus         `json:"status"`
	NextGainPercent float64            `json:"nextGainPercent"`
	NextTargetUSD   float64            `json:"nextTargetPriceUsd"`
	Steps           []ExitStrategyStep `json:"steps"`
}
