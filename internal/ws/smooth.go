package ws

// smoothSeries applies a trailing moving average. The first window-1 points
// average everything seen so far, so the output keeps the input's length and
// alignment.
func smoothSeries(values []int, window int) []float64 {
	if len(values) == 0 {
		return []float64{}
	}
	smoothed := make([]float64, 0, len(values))
	running := 0.0
	for i, v := range values {
		running += float64(v)
		if i >= window {
			running -= float64(values[i-window])
			smoothed = append(smoothed, running/float64(window))
		} else {
			smoothed = append(smoothed, running/float64(i+1))
		}
	}
	return smoothed
}
