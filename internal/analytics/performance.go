package analytics

import (
	"math"
	"sort"
	"time"

	"cryptoJournal/internal/domain"
	"cryptoJournal/internal/ledger"
)

// RealizedPerformance summarizes the closed (sold) part of a position.
type RealizedPerformance struct {
	// Basic Metrics
	TotalSells        int     `json:"totalSells"`
	WinningSells      int     `json:"winningSells"`
	LosingSells       int     `json:"losingSells"`
	WinRate           float64 `json:"winRate"`
	RealizedProfitUSD float64 `json:"realizedProfitUsd"`
	AverageWinUSD     float64 `json:"averageWinUsd"`
	AverageLossUSD    float64 `json:"averageLossUsd"`
	ProfitFactor      float64 `json:"profitFactor"`
	Expectancy        float64 `json:"expectancyUsd"`

	// Streaks and drawdown of the realized equity curve
	MaxConsecutiveWins   int                `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int                `json:"maxConsecutiveLosses"`
	MaxDrawdownUSD       float64            `json:"maxDrawdownUsd"`
	MonthlyRealized      map[string]float64 `json:"monthlyRealizedUsd"`
	EquityCurve          []EquityPoint      `json:"equityCurve"`
}

// EquityPoint is cumulative realized profit after one sell.
type EquityPoint struct {
	Time        time.Time `json:"time"`
	Value       float64   `json:"value"`
	DrawdownUSD float64   `json:"drawdownUsd"`
}

// MonthlyReturn is realized profit booked in one calendar month.
type MonthlyReturn struct {
	Month  time.Time `json:"month"`
	Return float64   `json:"realizedUsd"`
}

// AnalyzeRealized computes statistics over the sell rows of an annotated
// ledger. Buy rows are ignored; rows must be in execution order.
func AnalyzeRealized(rows []domain.LedgerRow) *RealizedPerformance {
	perf := &RealizedPerformance{
		MonthlyRealized: make(map[string]float64),
		EquityCurve:     make([]EquityPoint, 0),
	}

	var grossWin, grossLoss float64
	var equity, peak float64
	var consecutiveWins, consecutiveLosses int

	for _, row := range rows {
		if row.Side != domain.Sell || row.GainLossUSD == nil {
			continue
		}
		pnl := ledger.ToFiniteOrZero(*row.GainLossUSD)
		perf.TotalSells++

		if pnl > 0 {
			perf.WinningSells++
			grossWin += pnl
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			perf.LosingSells++
			grossLoss += pnl
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > perf.MaxConsecutiveWins {
			perf.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > perf.MaxConsecutiveLosses {
			perf.MaxConsecutiveLosses = consecutiveLosses
		}

		equity += pnl
		if equity > peak {
			peak = equity
		}
		drawdown := peak - equity
		perf.MaxDrawdownUSD = math.Max(perf.MaxDrawdownUSD, drawdown)
		perf.MonthlyRealized[row.ExecutedAt.UTC().Format("2006-01")] += pnl
		perf.EquityCurve = append(perf.EquityCurve, EquityPoint{
			Time:        row.ExecutedAt,
			Value:       ledger.RoundMoney(equity),
			DrawdownUSD: ledger.RoundMoney(drawdown),
		})
	}

	if perf.TotalSells == 0 {
		return perf
	}

	perf.RealizedProfitUSD = ledger.RoundMoney(equity)
	perf.WinRate = float64(perf.WinningSells) / float64(perf.TotalSells)
	if perf.WinningSells > 0 {
		perf.AverageWinUSD = ledger.RoundMoney(grossWin / float64(perf.WinningSells))
	}
	if perf.LosingSells > 0 {
		perf.AverageLossUSD = ledger.RoundMoney(grossLoss / float64(perf.LosingSells))
	}
	if grossLoss != 0 {
		perf.ProfitFactor = ledger.Round(grossWin/-grossLoss, 4)
	}
	perf.Expectancy = ledger.RoundMoney(equity / float64(perf.TotalSells))
	perf.MaxDrawdownUSD = ledger.RoundMoney(perf.MaxDrawdownUSD)
	for k, v := range perf.MonthlyRealized {
		perf.MonthlyRealized[k] = ledger.RoundMoney(v)
	}
	return perf
}

// Months returns the monthly realized profit as a sorted slice.
func (p *RealizedPerformance) Months() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(p.MonthlyRealized))
	for month, profit := range p.MonthlyRealized {
		date, err := time.Parse("2006-01", month)
		if err != nil {
			continue
		}
		returns = append(returns, MonthlyReturn{Month: date, Return: profit})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}
