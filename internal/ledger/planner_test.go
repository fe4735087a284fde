package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoJournal/internal/domain"
)

func TestPlan_SimulationScenario(t *testing.T) {
	plan := Plan(PlanInput{
		Symbol:        "btc",
		EntryPriceUSD: 100,
		QtyOpen:       10,
		SellPercent:   25,
		GainPercent:   30,
		MaxSteps:      3,
	})

	require.Len(t, plan.Steps, 3)
	assert.Equal(t, "BTC", plan.Symbol)

	want := []struct {
		gain, target, planned, remaining float64
	}{
		{30, 130, 2.5, 7.5},
		{60, 160, 1.875, 5.625},
		{90, 190, 1.40625, 4.21875},
	}
	cumulative := 0.0
	for i, w := range want {
		step := plan.Steps[i]
		assert.Equal(t, i+1, step.Step)
		assert.Equal(t, w.gain, step.GainPercent)
		assert.Equal(t, w.target, step.TargetPriceUSD)
		assert.Equal(t, w.planned, step.PlannedQtyToSell)
		assert.Equal(t, w.remaining, step.RemainingQtyAfter)
		assert.False(t, step.IsExecuted)
		assert.Nil(t, step.ExecutedQtyToSell)
		assert.Equal(t, domain.StepPending, step.Status)

		profit := w.planned * (w.target - 100)
		cumulative += profit
		assert.InDelta(t, RoundMoney(w.planned*w.target), step.ProceedsUSD, 1e-9)
		assert.InDelta(t, RoundMoney(profit), step.RealizedProfitUSD, 1e-9)
		assert.InDelta(t, RoundMoney(cumulative), step.CumulativeRealizedProfitUSD, 1e-9)
	}
	assert.Equal(t, domain.StepPending, plan.Status)
	assert.Equal(t, 30.0, plan.NextGainPercent)
	assert.Equal(t, 130.0, plan.NextTargetUSD)
}

func TestPlan_FlatHoldingIsDegenerate(t *testing.T) {
	plan := Plan(PlanInput{Symbol: "DOGE", SellPercent: 25, GainPercent: 30})

	require.Len(t, plan.Steps, 1)
	step := plan.Steps[0]
	assert.Equal(t, 0.0, step.PlannedQtyToSell)
	assert.Equal(t, 0.0, step.TargetPriceUSD)
	assert.Equal(t, 0.0, step.ProceedsUSD)
	assert.Equal(t, 0.0, step.RealizedProfitUSD)
	assert.Equal(t, 0.0, step.RemainingQtyAfter)
	assert.Equal(t, domain.StepPending, plan.Status)
}

func TestPlan_StepBounds(t *testing.T) {
	tests := []struct {
		name     string
		maxSteps int
		sellPct  float64
		want     int
	}{
		{name: "default", maxSteps: 0, sellPct: 10, want: DefaultMaxSteps},
		{name: "cap", maxSteps: 500, sellPct: 1, want: MaxStepsCap},
		{name: "explicit", maxSteps: 4, sellPct: 10, want: 4},
		{name: "sell everything stops after first step", maxSteps: 10, sellPct: 100, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan(PlanInput{EntryPriceUSD: 10, QtyOpen: 5, SellPercent: tt.sellPct, GainPercent: 5, MaxSteps: tt.maxSteps})
			assert.Len(t, plan.Steps, tt.want)
			assert.LessOrEqual(t, len(plan.Steps), ClampSteps(tt.maxSteps))
		})
	}
}

func TestPlan_ReconcilesExecutions(t *testing.T) {
	execs := []domain.ExitStrategyExecution{
		{StepGainPercent: 30, TargetPriceUSD: 130, ExecutedPriceUSD: 135, QuantitySold: 3},
	}
	plan := Plan(PlanInput{
		EntryPriceUSD:   100,
		QtyOpen:         10,
		SellPercent:     25,
		GainPercent:     30,
		MaxSteps:        2,
		CurrentPriceUSD: 160,
		Executions:      execs,
	})

	require.Len(t, plan.Steps, 2)
	first := plan.Steps[0]
	assert.True(t, first.IsExecuted)
	assert.Equal(t, domain.StepExecuted, first.Status)
	require.NotNil(t, first.ExecutedQtyToSell)
	assert.Equal(t, 3.0, *first.ExecutedQtyToSell)
	require.NotNil(t, first.ExecutedPriceUSD)
	assert.Equal(t, 135.0, *first.ExecutedPriceUSD)
	assert.Equal(t, 2.5, first.PlannedQtyToSell)
	assert.Equal(t, 405.0, first.ProceedsUSD)
	assert.Equal(t, 105.0, first.RealizedProfitUSD)
	assert.Equal(t, 7.0, first.RemainingQtyAfter)

	second := plan.Steps[1]
	assert.False(t, second.IsExecuted)
	assert.Equal(t, 1.75, second.PlannedQtyToSell)
	assert.Equal(t, 160.0, second.TargetPriceUSD)
	// Price exactly at target counts as ready.
	assert.Equal(t, domain.StepReady, second.Status)
	assert.Equal(t, 0.0, second.DistanceToTargetPercent)
	assert.Equal(t, 105.0+1.75*60, second.CumulativeRealizedProfitUSD)

	assert.Equal(t, domain.StepReady, plan.Status)
	assert.Equal(t, 60.0, plan.NextGainPercent)
}

func TestPlan_ExecutionOversellStops(t *testing.T) {
	plan := Plan(PlanInput{
		EntryPriceUSD: 100,
		QtyOpen:       2,
		SellPercent:   10,
		GainPercent:   10,
		MaxSteps:      10,
		Executions:    []domain.ExitStrategyExecution{{StepGainPercent: 10, ExecutedPriceUSD: 110, QuantitySold: 5}},
	})

	require.Len(t, plan.Steps, 1)
	assert.Equal(t, 0.0, plan.Steps[0].RemainingQtyAfter)
}

func TestNextGainPercent(t *testing.T) {
	tests := []struct {
		name  string
		gain  float64
		execs []float64
		want  float64
	}{
		{name: "nothing executed", gain: 30, want: 30},
		{name: "first executed", gain: 30, execs: []float64{30}, want: 60},
		{name: "gap", gain: 30, execs: []float64{30, 90}, want: 60},
		{name: "fractional gain rounding", gain: 33.333, execs: []float64{33.33}, want: 66.67},
		{name: "invalid gain", gain: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var execs []domain.ExitStrategyExecution
			for _, g := range tt.execs {
				execs = append(execs, domain.ExitStrategyExecution{StepGainPercent: g})
			}
			assert.Equal(t, tt.want, NextGainPercent(tt.gain, execs))
		})
	}

	all := make([]domain.ExitStrategyExecution, 0, MaxStepsCap)
	for i := 1; i <= MaxStepsCap; i++ {
		all = append(all, domain.ExitStrategyExecution{StepGainPercent: float64(i) * 10})
	}
	assert.Equal(t, 510.0, NextGainPercent(10, all))
}

func TestDistanceToTarget(t *testing.T) {
	assert.Equal(t, 25.0, DistanceToTarget(100, 125))
	assert.Equal(t, 0.0, DistanceToTarget(150, 125))
	assert.Equal(t, 0.0, DistanceToTarget(0, 125))
	assert.True(t, IsReady(125, 125))
	assert.False(t, IsReady(124.99, 125))
	assert.False(t, IsReady(10, 0))
}
