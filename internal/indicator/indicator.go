// Package indicator computes technical indicators over ordered price series.
//
// All functions are total over numeric input of length >= 1 and never panic.
// Undefined points are represented explicitly as math.NaN() so every output
// slice stays index-aligned with its input.
package indicator

import "math"

// Default indicator periods.
const (
	DefaultSMAPeriod = 50
	DefaultEMAPeriod = 20
	DefaultRSIPeriod = 14
	MACDShortPeriod  = 12
	MACDLongPeriod   = 26
	MACDSignalPeriod = 9
)

// Defined reports whether an output point carries a value.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// undefined fills a slice with NaN.
func undefined(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA computes the simple moving average with a rolling sum.
// out[i] is defined for i >= period-1.
func SMA(values []float64, period int) []float64 {
	out := undefined(len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average seeded with the first value.
// Defined at every index.
func EMA(values []float64, period int) []float64 {
	out := undefined(len(values))
	if len(values) == 0 || period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

// RSI computes Wilder's smoothed relative strength index.
// out[i] is defined for i >= period. When the average loss is zero the
// relative strength is treated as 100.
func RSI(values []float64, period int) []float64 {
	out := undefined(len(values))
	if period <= 0 {
		return out
	}
	var gains, losses float64
	for i := 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		if i <= period {
			if change > 0 {
				gains += change
			} else {
				losses += math.Abs(change)
			}
			if i == period {
				avgG := gains / float64(period)
				avgL := losses / float64(period)
				rs := 100.0
				if avgL != 0 {
					rs = avgG / avgL
				}
				out[i] = 100 - 100/(1+rs)
				gains = avgG
				losses = avgL
			}
			continue
		}
		gain := math.Max(0, change)
		loss := math.Max(0, -change)
		gains = (gains*float64(period-1) + gain) / float64(period)
		losses = (losses*float64(period-1) + loss) / float64(period)
		rs := 100.0
		if losses != 0 {
			rs = gains / losses
		}
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDResult holds the MACD line, its signal line, and the histogram.
type MACDResult struct {
	MACD       []float64
	SignalLine []float64
	Histogram  []float64
}

// MACD computes macd = EMA(short) - EMA(long), a signal line as EMA(signal)
// of the macd series (undefined entries smoothed as 0, matching the display
// convention), and histogram = macd - signal where both are defined.
func MACD(values []float64, short, long, signal int) MACDResult {
	emaShort := EMA(values, short)
	emaLong := EMA(values, long)

	macd := undefined(len(values))
	for i := range values {
		if Defined(emaShort[i]) && Defined(emaLong[i]) {
			macd[i] = emaShort[i] - emaLong[i]
		}
	}

	zeroed := make([]float64, len(macd))
	for i, v := range macd {
		if Defined(v) {
			zeroed[i] = v
		}
	}
	signalLine := EMA(zeroed, signal)

	hist := undefined(len(values))
	for i := range values {
		if Defined(macd[i]) && Defined(signalLine[i]) {
			hist[i] = macd[i] - signalLine[i]
		}
	}

	return MACDResult{MACD: macd, SignalLine: signalLine, Histogram: hist}
}

// Bundle holds the standard dashboard indicator set.
type Bundle struct {
	SMA  []float64 // SMA(50)
	EMA  []float64 // EMA(20)
	RSI  []float64 // RSI(14)
	MACD MACDResult
}

// Compute returns the standard indicator bundle for a price series.
func Compute(values []float64) Bundle {
	return Bundle{
		SMA:  SMA(values, DefaultSMAPeriod),
		EMA:  EMA(values, DefaultEMAPeriod),
		RSI:  RSI(values, DefaultRSIPeriod),
		MACD: MACD(values, MACDShortPeriod, MACDLongPeriod, MACDSignalPeriod),
	}
}
