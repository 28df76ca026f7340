package forecast

// BuildWindows slices a series into stride-1 sliding windows of length
// lookback with the immediately following value as the label. The number of
// windows is len(series)-lookback; a series shorter than lookback+1 yields
// none.
func BuildWindows(series []float64, lookback int) (windows [][]float64, labels []float64) {
	if lookback <= 0 {
		return nil, nil
	}
	for i := 0; i+lookback < len(series); i++ {
		w := make([]float64, lookback)
		copy(w, series[i:i+lookback])
		windows = append(windows, w)
		labels = append(labels, series[i+lookback])
	}
	return windows, labels
}

// SplitForward splits windows chronologically at floor(0.8*n). The split is
// never shuffled: the test segment is always the most recent windows.
func SplitForward(windows [][]float64, labels []float64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	split := len(windows) * 8 / 10
	return windows[:split], labels[:split], windows[split:], labels[split:]
}

// Horizon picks the forecast horizon for a series of n points: n/6 clamped
// to [3,12]. Short histories get short horizons.
func Horizon(n int) int {
	steps := n / 6
	if steps < 3 {
		steps = 3
	}
	if steps > 12 {
		steps = 12
	}
	return steps
}
