package signal

import (
	"math"
	"testing"

	"market-forecast-lab/internal/domain"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestFundamentalMultiplier_NilIsNeutral(t *testing.T) {
	if got := FundamentalMultiplier(nil); got != 1.0 {
		t.Errorf("nil fundamentals must multiply by 1.0, got %f", got)
	}
	if got := FundamentalMultiplier(&domain.Fundamentals{}); got != 1.0 {
		t.Errorf("empty fundamentals must multiply by 1.0, got %f", got)
	}
}

func TestFundamentalMultiplier_ChangeClamped(t *testing.T) {
	up := FundamentalMultiplier(&domain.Fundamentals{Change24hPct: fptr(50)})
	capped := FundamentalMultiplier(&domain.Fundamentals{Change24hPct: fptr(20)})
	if up != capped {
		t.Errorf("change beyond +20 must saturate: %f != %f", up, capped)
	}
	if math.Abs(capped-1.1) > 1e-9 {
		t.Errorf("+20%% change must score 1.1, got %f", capped)
	}

	down := FundamentalMultiplier(&domain.Fundamentals{Change24hPct: fptr(-20)})
	if math.Abs(down-0.9) > 1e-9 {
		t.Errorf("-20%% change must score 0.9, got %f", down)
	}
}

func TestFundamentalMultiplier_VolumeAndRank(t *testing.T) {
	f := &domain.Fundamentals{
		Volume24h:     fptr(1e9),
		MarketCapRank: iptr(3),
	}
	got := FundamentalMultiplier(f)
	want := (1 + math.Min(1, math.Log10(1e9+1)/10)*0.02) * 1.01
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("volume+rank multiplier: got %f, want %f", got, want)
	}

	// Rank 11 gets no bonus.
	noBonus := FundamentalMultiplier(&domain.Fundamentals{MarketCapRank: iptr(11)})
	if noBonus != 1.0 {
		t.Errorf("rank 11 must not score a bonus, got %f", noBonus)
	}
}

func TestFundamentalMultiplier_Bounds(t *testing.T) {
	cases := []*domain.Fundamentals{
		{Change24hPct: fptr(100), Volume24h: fptr(1e12), MarketCapRank: iptr(1)},
		{Change24hPct: fptr(-100)},
		{Volume24h: fptr(0)},
	}
	for i, f := range cases {
		got := FundamentalMultiplier(f)
		if got < 0.8 || got > 1.2 {
			t.Errorf("case %d: multiplier %f outside [0.8,1.2]", i, got)
		}
	}
}

func TestBlend_BullishEnsemble(t *testing.T) {
	stats := &domain.EnsembleStats{
		PercentUp:   0.7,
		AvgAccuracy: 80,
		Median:      105,
		Std:         2,
	}

	sig := Blend(stats, nil, 100)

	// (0.7-0.5)*2 * 0.8 * 1.0 = 0.32
	if sig.Score != 0.32 {
		t.Errorf("expected score 0.32, got %f", sig.Score)
	}
	if sig.Action != domain.ActionBuy {
		t.Errorf("expected Buy, got %s", sig.Action)
	}
	if sig.TP == nil || *sig.TP != 105+3 {
		t.Errorf("expected tp 108, got %v", sig.TP)
	}
	if sig.SL == nil || *sig.SL != 100-3 {
		t.Errorf("expected sl 97, got %v", sig.SL)
	}
}

func TestBlend_BearishEnsemble(t *testing.T) {
	stats := &domain.EnsembleStats{
		PercentUp:   0.2,
		AvgAccuracy: 90,
		Median:      95,
		Std:         2,
	}

	sig := Blend(stats, nil, 100)

	if sig.Action != domain.ActionSell {
		t.Errorf("expected Sell, got %s", sig.Action)
	}
	if sig.TP == nil || *sig.TP != 95-3 {
		t.Errorf("expected tp 92, got %v", sig.TP)
	}
	if sig.SL == nil || *sig.SL != 100+3 {
		t.Errorf("expected sl 103, got %v", sig.SL)
	}
}

func TestBlend_BalancedEnsembleIsNeutral(t *testing.T) {
	stats := &domain.EnsembleStats{PercentUp: 0.5, AvgAccuracy: 100}

	sig := Blend(stats, nil, 100)

	if sig.Score != 0 {
		t.Errorf("balanced ensemble must score 0, got %f", sig.Score)
	}
	if sig.Action != domain.ActionNeutral {
		t.Errorf("expected Neutral, got %s", sig.Action)
	}
	if sig.TP != nil || sig.SL != nil {
		t.Error("Neutral signal must not carry tp/sl")
	}
}

func TestBlend_NilStatsDefaults(t *testing.T) {
	sig := Blend(nil, nil, 100)
	if sig.Action != domain.ActionNeutral || sig.Score != 0 {
		t.Errorf("nil stats must decay to a zero Neutral signal, got %s %f", sig.Action, sig.Score)
	}
}

func TestBlend_ThresholdIsExclusive(t *testing.T) {
	// percentUp 0.56, accuracy 100 gives exactly 0.12, which must not buy.
	stats := &domain.EnsembleStats{PercentUp: 0.56, AvgAccuracy: 100}
	sig := Blend(stats, nil, 100)
	if sig.Action != domain.ActionNeutral {
		t.Errorf("score at the threshold must stay Neutral, got %s", sig.Action)
	}
}

func TestBlend_ScoreMonotonicInPercentUp(t *testing.T) {
	prev := math.Inf(-1)
	for _, up := range []float64{0, 0.25, 0.5, 0.75, 1} {
		stats := &domain.EnsembleStats{PercentUp: up, AvgAccuracy: 80}
		score := Blend(stats, nil, 100).Score
		if score < prev {
			t.Fatalf("score must not decrease with percentUp: %f after %f", score, prev)
		}
		prev = score
	}
}

func TestBlend_MultiplierScalesScore(t *testing.T) {
	stats := &domain.EnsembleStats{PercentUp: 0.8, AvgAccuracy: 50}
	bullFund := &domain.Fundamentals{Change24hPct: fptr(20)}

	plain := Blend(stats, nil, 100)
	boosted := Blend(stats, bullFund, 100)

	if boosted.Score <= plain.Score {
		t.Errorf("bullish fundamentals must raise a positive score: %f vs %f", boosted.Score, plain.Score)
	}
	if boosted.Multiplier <= 1.0 {
		t.Errorf("expected multiplier above 1, got %f", boosted.Multiplier)
	}
}

func TestAdjustForecast(t *testing.T) {
	preds := []float64{100, 110}

	plain := AdjustForecast(preds, 1.1, nil)
	if math.Abs(plain[0]-110) > 1e-9 || math.Abs(plain[1]-121) > 1e-9 {
		t.Errorf("multiplier-only adjustment wrong: %v", plain)
	}

	blended := AdjustForecast(preds, 1.0, fptr(200))
	if blended[0] != 100*0.6+200*0.4 {
		t.Errorf("60/40 blend wrong: %v", blended)
	}
}

func TestFinalEstimate(t *testing.T) {
	if got := FinalEstimate(100, nil); got != 100 {
		t.Errorf("no history: estimate must be the mean, got %f", got)
	}
	if got := FinalEstimate(100, fptr(150)); got != 100*0.6+150*0.4 {
		t.Errorf("60/40 estimate wrong: %f", got)
	}
}

func TestLabelTrialOutcomes_Buy(t *testing.T) {
	samples := []float64{105, 95, 100, 110}

	outcomes, profit, loss := LabelTrialOutcomes(samples, domain.ActionBuy, 100, 10)

	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	want := []string{
		domain.TrialOutcomeProfit,
		domain.TrialOutcomeLoss,
		domain.TrialOutcomeNeutral,
		domain.TrialOutcomeProfit,
	}
	for i, w := range want {
		if outcomes[i].Outcome != w {
			t.Errorf("outcome %d: got %s, want %s", i, outcomes[i].Outcome, w)
		}
	}
	if profit != 2 || loss != 1 {
		t.Errorf("expected 2 profits and 1 loss, got %d/%d", profit, loss)
	}
}

func TestLabelTrialOutcomes_SellInverts(t *testing.T) {
	outcomes, profit, loss := LabelTrialOutcomes([]float64{95, 105}, domain.ActionSell, 100, 10)

	if outcomes[0].Outcome != domain.TrialOutcomeProfit || outcomes[1].Outcome != domain.TrialOutcomeLoss {
		t.Errorf("sell outcomes inverted wrong: %v", outcomes)
	}
	if profit != 1 || loss != 1 {
		t.Errorf("tally wrong: %d/%d", profit, loss)
	}
}

func TestLabelTrialOutcomes_NeutralThreshold(t *testing.T) {
	// Within 0.1% of the last price a no-position trial stays neutral.
	outcomes, profit, loss := LabelTrialOutcomes([]float64{100.05, 100.2, 99.8}, domain.ActionNeutral, 100, 10)

	if outcomes[0].Outcome != domain.TrialOutcomeNeutral {
		t.Errorf("tiny move must stay neutral, got %s", outcomes[0].Outcome)
	}
	if outcomes[1].Outcome != domain.TrialOutcomeProfit || outcomes[2].Outcome != domain.TrialOutcomeLoss {
		t.Errorf("moves beyond the threshold must count: %v", outcomes)
	}
	if profit != 1 || loss != 1 {
		t.Errorf("tally wrong: %d/%d", profit, loss)
	}
}

func TestLabelTrialOutcomes_CapsAtMaxTrials(t *testing.T) {
	samples := make([]float64, 50)
	outcomes, _, _ := LabelTrialOutcomes(samples, domain.ActionNeutral, 100, 10)
	if len(outcomes) != 10 {
		t.Errorf("expected 10 labelled trials, got %d", len(outcomes))
	}
}

func TestBasePercent(t *testing.T) {
	if got := BasePercent(nil); got != 50 {
		t.Errorf("nil stats base must be 50, got %d", got)
	}
	withAcc := &domain.EnsembleStats{Accuracies: []float64{60, 70}, AvgAccuracy: 65.4}
	if got := BasePercent(withAcc); got != 65 {
		t.Errorf("expected rounded accuracy 65, got %d", got)
	}
	samplesOnly := &domain.EnsembleStats{Samples: []float64{1, 2}, PercentUp: 0.75}
	if got := BasePercent(samplesOnly); got != 75 {
		t.Errorf("expected percentUp base 75, got %d", got)
	}
}

func TestAdjustedPercent_Clamped(t *testing.T) {
	if got := AdjustedPercent(50, 3, 1); got != 52 {
		t.Errorf("expected 52, got %d", got)
	}
	if got := AdjustedPercent(99, 10, 0); got != 100 {
		t.Errorf("expected clamp to 100, got %d", got)
	}
	if got := AdjustedPercent(2, 0, 10); got != 0 {
		t.Errorf("expected clamp to 0, got %d", got)
	}
}
