package ledger

import (
	"math"

	"cryptoJournal/internal/domain"
)

const (
	// DefaultMaxSteps is used when a caller does not bound the plan.
	DefaultMaxSteps = 10
	// MaxStepsCap is the hard upper bound on projected steps.
	MaxStepsCap = 50
)

// PlanInput describes one scale-out projection. SellPercent and GainPercent
// are expected to be validated already: SellPercent in (0,100], GainPercent > 0.
type PlanInput struct {
	Symbol          string
	EntryPriceUSD   float64
	QtyOpen         float64
	SellPercent     float64
	GainPercent     float64
	MaxSteps        int
	CurrentPriceUSD float64
	Executions      []domain.ExitStrategyExecution
}

// ClampSteps applies the default and the hard cap to a requested step count.
func ClampSteps(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxSteps
	case n > MaxStepsCap:
		return MaxStepsCap
	default:
		return n
	}
}

// stepKey identifies a gain level at cent precision.
func stepKey(gain float64) int64 {
	return int64(math.Round(ToFiniteOrZero(gain) * 100))
}

func executionsByStep(execs []domain.ExitStrategyExecution) map[int64]domain.ExitStrategyExecution {
	out := make(map[int64]domain.ExitStrategyExecution, len(execs))
	for _, e := range execs {
		k := stepKey(e.StepGainPercent)
		if _, dup := out[k]; !dup {
			out[k] = e
		}
	}
	return out
}

// TargetPrice returns the price at which a step of gain percent triggers.
func TargetPrice(entryPriceUSD, gainPercent float64) float64 {
	if entryPriceUSD <= 0 {
		return 0
	}
	return ToFiniteOrZero(entryPriceUSD * (1 + gainPercent/100))
}

// IsReady reports whether current has reached target. The comparison is
// inclusive: a price exactly at target is ready.
func IsReady(currentPriceUSD, targetPriceUSD float64) bool {
	return targetPriceUSD > 0 && currentPriceUSD >= targetPriceUSD
}

// DistanceToTarget is how far (in percent of current) the price still has to
// rise to reach target, clamped at 0 once it is reached.
func DistanceToTarget(currentPriceUSD, targetPriceUSD float64) float64 {
	if currentPriceUSD <= 0 || targetPriceUSD <= 0 {
		return 0
	}
	return math.Max(ToFiniteOrZero((targetPriceUSD-currentPriceUSD)/currentPriceUSD*100), 0)
}

// NextGainPercent returns the smallest multiple of gainPercent (up to the
// step cap) without a recorded execution. When every step up to the cap is
// executed it returns the multiple just past the cap.
func NextGainPercent(gainPercent float64, execs []domain.ExitStrategyExecution) float64 {
	if gainPercent <= 0 {
		return 0
	}
	done := executionsByStep(execs)
	for i := 1; i <= MaxStepsCap; i++ {
		gain := RoundMoney(gainPercent * float64(i))
		if _, ok := done[stepKey(gain)]; !ok {
			return gain
		}
	}
	return RoundMoney(gainPercent * float64(MaxStepsCap+1))
}

// Plan projects the scale-out schedule and reconciles it with recorded
// executions. It never fails; a flat holding yields a single all-zero step.
func Plan(in PlanInput) domain.ExitPlan {
	maxSteps := ClampSteps(in.MaxSteps)
	entry := ToFiniteOrZero(in.EntryPriceUSD)
	current := ToFiniteOrZero(in.CurrentPriceUSD)
	done := executionsByStep(in.Executions)

	plan := domain.ExitPlan{
		Symbol:          domain.NormalizeSymbol(in.Symbol),
		EntryPriceUSD:   RoundMoney(entry),
		QtyOpen:         RoundQty(in.QtyOpen),
		SellPercent:     in.SellPercent,
		GainPercent:     in.GainPercent,
		CurrentPriceUSD: RoundMoney(current),
		Status:          domain.StepPending,
		NextGainPercent: NextGainPercent(in.GainPercent, in.Executions),
		Steps:           make([]domain.ExitStrategyStep, 0, maxSteps),
	}

	remaining := math.Max(ToFiniteOrZero(in.QtyOpen), 0)
	cumulative := 0.0
	nextPendingSeen := false

	for i := 1; i <= maxSteps; i++ {
		gain := RoundMoney(in.GainPercent * float64(i))
		target := TargetPrice(entry, gain)
		before := remaining
		planned := before * (in.SellPercent / 100)

		step := domain.ExitStrategyStep{
			Step:               i,
			GainPercent:        gain,
			TargetPriceUSD:     RoundMoney(target),
			RemainingQtyBefore: RoundQty(before),
			PlannedQtyToSell:   RoundQty(planned),
		}

		sold, sellPrice := planned, target
		if exec, ok := done[stepKey(gain)]; ok {
			sold = ToFiniteOrZero(exec.QuantitySold)
			sellPrice = ToFiniteOrZero(exec.ExecutedPriceUSD)
			step.IsExecuted = true
			step.ExecutedQtyToSell = finitePtr(RoundQty(sold))
			step.ExecutedPriceUSD = finitePtr(RoundMoney(sellPrice))
			step.Status = domain.StepExecuted
		} else {
			// Readiness is judged against the cent-rounded target that callers see.
			step.DistanceToTargetPercent = RoundMoney(DistanceToTarget(current, step.TargetPriceUSD))
			if IsReady(current, step.TargetPriceUSD) {
				step.Status = domain.StepReady
			} else {
				step.Status = domain.StepPending
			}
			if !nextPendingSeen {
				nextPendingSeen = true
				plan.Status = step.Status
				plan.NextTargetUSD = step.TargetPriceUSD
			}
		}

		remaining = math.Max(before-sold, 0)
		profit := sold * (sellPrice - entry)
		cumulative += ToFiniteOrZero(profit)

		step.ProceedsUSD = RoundMoney(sold * sellPrice)
		step.RealizedProfitUSD = RoundMoney(profit)
		step.CumulativeRealizedProfitUSD = RoundMoney(cumulative)
		step.RemainingQtyAfter = RoundQty(remaining)
		plan.Steps = append(plan.Steps, step)

		if remaining <= 0 {
			break
		}
	}
	return plan
}
