package domain

// PricePoint is one observation of an asset price.
// Sequences are ordered ascending by timestamp with no duplicate timestamps.
type PricePoint struct {
	TimestampMs int64   // Unix timestamp in milliseconds
	Price       float64 // price in quote currency (USD)
}

// Closes extracts the price column from a point sequence.
func Closes(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}

// LastPrice returns the most recent price, or 0 for an empty sequence.
func LastPrice(points []PricePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	return points[len(points)-1].Price
}

// StepMs estimates the sampling interval from the last two points.
// Falls back to one day when fewer than two points are available or the
// interval is zero.
func StepMs(points []PricePoint) int64 {
	const dayMs = 86400000
	if len(points) < 2 {
		return dayMs
	}
	step := points[len(points)-1].TimestampMs - points[len(points)-2].TimestampMs
	if step == 0 {
		return dayMs
	}
	return step
}
