// Package signal blends Monte Carlo ensemble statistics with market
// fundamentals into a single position signal and the derived display
// estimates.
package signal

import (
	"math"

	"market-forecast-lab/internal/domain"
)

// Decision thresholds for the blended score.
const (
	buyThreshold  = 0.12
	sellThreshold = -0.12
)

// neutralMoveThreshold is the relative move below which a trial forecast
// counts as neutral when no direction was taken.
const neutralMoveThreshold = 0.001

// FundamentalMultiplier folds a fundamentals snapshot into a trust factor
// in [0.8, 1.2]. Missing fundamentals are worth exactly 1.0, so the
// multiplier never punishes an asset for lacking metadata.
func FundamentalMultiplier(f *domain.Fundamentals) float64 {
	if f == nil {
		return 1.0
	}

	var change float64
	if f.Change24hPct != nil {
		change = *f.Change24hPct
	}
	if change > 20 {
		change = 20
	}
	if change < -20 {
		change = -20
	}
	changeScore := 1 + (change/100)*0.5

	volScore := 1.0
	if f.Volume24h != nil && *f.Volume24h > 0 {
		volScore = 1 + math.Min(1, math.Log10(*f.Volume24h+1)/10)*0.02
	}

	rankScore := 1.0
	if f.MarketCapRank != nil && *f.MarketCapRank <= 10 {
		rankScore = 1.01
	}

	mult := changeScore * volScore * rankScore
	if mult < 0.8 {
		mult = 0.8
	}
	if mult > 1.2 {
		mult = 1.2
	}
	return mult
}

// Blend combines ensemble statistics and fundamentals into a position
// signal. A nil stats input falls back to the agnostic defaults: up
// probability 0.5, accuracy 0.5, median = last price, std = 1% of the last
// price. The score is rounded to three decimals.
func Blend(stats *domain.EnsembleStats, f *domain.Fundamentals, lastPrice float64) domain.PositionSignal {
	upProb := 0.5
	acc := 0.5
	median := lastPrice
	std := math.Abs(lastPrice * 0.01)
	if stats != nil {
		upProb = stats.PercentUp
		acc = stats.AvgAccuracy / 100
		median = stats.Median
		std = stats.Std
	}

	mult := FundamentalMultiplier(f)
	score := (upProb - 0.5) * 2 * acc * mult
	score = math.Round(score*1000) / 1000

	sig := domain.PositionSignal{
		Action:     domain.ActionNeutral,
		Score:      score,
		Multiplier: mult,
	}

	switch {
	case score > buyThreshold:
		sig.Action = domain.ActionBuy
		tp := median + std*1.5
		sl := lastPrice - std*1.5
		sig.TP, sig.SL = &tp, &sl
	case score < sellThreshold:
		sig.Action = domain.ActionSell
		tp := median - std*1.5
		sl := lastPrice + std*1.5
		sig.TP, sig.SL = &tp, &sl
	}

	return sig
}

// AdjustForecast scales each forecast value by the fundamentals multiplier
// and, when a historical mean is known, blends 60% of the adjusted value
// with 40% of it. The blend applies to display values only, never to the
// position decision.
func AdjustForecast(preds []float64, mult float64, histMean *float64) []float64 {
	out := make([]float64, len(preds))
	for i, p := range preds {
		v := p * mult
		if histMean != nil {
			v = v*0.6 + *histMean*0.4
		}
		out[i] = v
	}
	return out
}

// FinalEstimate is the headline next-value estimate: the ensemble mean,
// 60/40-blended with the historical mean when present.
func FinalEstimate(mean float64, histMean *float64) float64 {
	if histMean == nil {
		return mean
	}
	return mean*0.6 + *histMean*0.4
}

// LabelTrialOutcomes classifies up to maxTrials per-trial forecasts as
// profit, loss, or neutral relative to the taken action. With a Buy the
// forecast profits above the last price; with a Sell below it; with no
// position only relative moves beyond the neutral threshold count at all.
func LabelTrialOutcomes(samples []float64, action domain.Action, lastPrice float64, maxTrials int) (outcomes []domain.TrialOutcome, profit, loss int) {
	n := len(samples)
	if n > maxTrials {
		n = maxTrials
	}
	outcomes = make([]domain.TrialOutcome, 0, n)
	for _, p := range samples[:n] {
		outcome := domain.TrialOutcomeNeutral
		switch action {
		case domain.ActionBuy:
			if p > lastPrice {
				outcome = domain.TrialOutcomeProfit
			} else if p < lastPrice {
				outcome = domain.TrialOutcomeLoss
			}
		case domain.ActionSell:
			if p < lastPrice {
				outcome = domain.TrialOutcomeProfit
			} else if p > lastPrice {
				outcome = domain.TrialOutcomeLoss
			}
		default:
			if lastPrice != 0 && math.Abs(p-lastPrice)/lastPrice > neutralMoveThreshold {
				if p > lastPrice {
					outcome = domain.TrialOutcomeProfit
				} else {
					outcome = domain.TrialOutcomeLoss
				}
			}
		}
		switch outcome {
		case domain.TrialOutcomeProfit:
			profit++
		case domain.TrialOutcomeLoss:
			loss++
		}
		outcomes = append(outcomes, domain.TrialOutcome{Forecast: p, Outcome: outcome})
	}
	return outcomes, profit, loss
}

// BasePercent derives the confidence base for a run: the rounded average
// accuracy when trials ran, else the rounded up-percentage, else 50.
func BasePercent(stats *domain.EnsembleStats) int {
	if stats == nil {
		return 50
	}
	if len(stats.Accuracies) > 0 {
		return int(math.Round(stats.AvgAccuracy))
	}
	if len(stats.Samples) > 0 {
		return int(math.Round(stats.PercentUp * 100))
	}
	return 50
}

// AdjustedPercent shifts the base by the profit/loss tally and clamps to
// [0,100].
func AdjustedPercent(base, profit, loss int) int {
	adj := base + profit - loss
	if adj < 0 {
		adj = 0
	}
	if adj > 100 {
		adj = 100
	}
	return adj
}
