package ledger

import (
	"sort"
	"time"

	"cryptoJournal/internal/domain"
)

// Value prices a folded position. A quote without a usable price degrades to
// the average entry price and is flagged as estimated.
func Value(state domain.PositionState, quote domain.PriceQuote) domain.AssetSummary {
	avg := ToFiniteOrZero(state.AverageEntryPrice())
	if !IsPositiveFinite(quote.PriceUSD) {
		quote = domain.PriceQuote{PriceUSD: avg, Source: domain.SourceAvgEntry, IsEstimated: true}
	}

	holdings := state.QuantityHeld * quote.PriceUSD
	unrealized := holdings - state.CostBasisUSD
	total := state.RealizedProfitUSD + unrealized
	totalPct := 0.0
	if state.TotalInvestedUSD > 0 {
		totalPct = total / state.TotalInvestedUSD * 100
	}
	var currentPct *float64
	if state.CostBasisUSD > 0 {
		currentPct = finitePtr(unrealized / state.CostBasisUSD * 100)
	}

	return domain.AssetSummary{
		Symbol:               state.Symbol,
		QuantityHeld:         ToFiniteOrZero(state.QuantityHeld),
		AverageEntryPriceUSD: avg,
		CostBasisUSD:         ToFiniteOrZero(state.CostBasisUSD),
		TotalInvestedUSD:     ToFiniteOrZero(state.TotalInvestedUSD),
		CurrentPriceUSD:      ToFiniteOrZero(quote.PriceUSD),
		PriceSource:          quote.Source,
		IsEstimated:          quote.IsEstimated,
		HoldingsValueUSD:     ToFiniteOrZero(holdings),
		RealizedProfitUSD:    ToFiniteOrZero(state.RealizedProfitUSD),
		UnrealizedProfitUSD:  ToFiniteOrZero(unrealized),
		TotalProfitUSD:       ToFiniteOrZero(total),
		TotalProfitPct:       ToFiniteOrZero(totalPct),
		CurrentProfitUSD:     ToFiniteOrZero(unrealized),
		CurrentProfitPct:     currentPct,
	}
}

// Aggregate sums per-asset summaries into the account view. Assets are listed
// by holdings value, largest first.
func Aggregate(accountID string, assets []domain.AssetSummary, now time.Time) domain.PortfolioSummary {
	out := domain.PortfolioSummary{
		AccountID:   accountID,
		Assets:      make([]domain.AssetSummary, len(assets)),
		GeneratedAt: now,
	}
	copy(out.Assets, assets)

	for _, a := range out.Assets {
		out.CurrentBalanceUSD += a.HoldingsValueUSD
		out.TotalInvestedUSD += a.TotalInvestedUSD
		out.RealizedProfitUSD += a.RealizedProfitUSD
		out.UnrealizedProfitUSD += a.UnrealizedProfitUSD
	}
	out.CurrentBalanceUSD = ToFiniteOrZero(out.CurrentBalanceUSD)
	out.TotalInvestedUSD = ToFiniteOrZero(out.TotalInvestedUSD)
	out.RealizedProfitUSD = ToFiniteOrZero(out.RealizedProfitUSD)
	out.UnrealizedProfitUSD = ToFiniteOrZero(out.UnrealizedProfitUSD)
	out.TotalProfitUSD = ToFiniteOrZero(out.RealizedProfitUSD + out.UnrealizedProfitUSD)
	if out.TotalInvestedUSD > 0 {
		out.TotalProfitPct = ToFiniteOrZero(out.TotalProfitUSD / out.TotalInvestedUSD * 100)
	}

	sort.SliceStable(out.Assets, func(i, j int) bool {
		if out.Assets[i].HoldingsValueUSD != out.Assets[j].HoldingsValueUSD {
			return out.Assets[i].HoldingsValueUSD > out.Assets[j].HoldingsValueUSD
		}
		return out.Assets[i].Symbol < out.Assets[j].Symbol
	})

	if top, ok := TopPerformer(out.Assets); ok {
		out.TopPerformer = &top
	}
	return out
}

// TopPerformer picks the asset with the highest current profit percentage.
// Assets without a percentage rank last; ties go to the larger USD profit.
func TopPerformer(assets []domain.AssetSummary) (domain.AssetSummary, bool) {
	if len(assets) == 0 {
		return domain.AssetSummary{}, false
	}
	best := assets[0]
	for _, a := range assets[1:] {
		if outperforms(a, best) {
			best = a
		}
	}
	return best, true
}

func outperforms(a, b domain.AssetSummary) bool {
	switch {
	case a.CurrentProfitPct == nil && b.CurrentProfitPct == nil:
		return a.CurrentProfitUSD > b.CurrentProfitUSD
	case a.CurrentProfitPct == nil:
		return false
	case b.CurrentProfitPct == nil:
		return true
	case *a.CurrentProfitPct != *b.CurrentProfitPct:
		return *a.CurrentProfitPct > *b.CurrentProfitPct
	default:
		return a.CurrentProfitUSD > b.CurrentProfitUSD
	}
}
