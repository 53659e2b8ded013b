// Package latency keeps a running estimate of provider round-trip time,
// used to size debounce delays between keystroke and dispatch.
package latency

import "time"

// Estimator smooths observed round-trip samples. The first warmup samples
// are averaged arithmetically to avoid early skew; after that updates use
// exponential smoothing with factor 2/(window+1).
//
// It never rejects requests; the only consumer is debounce sizing.
type Estimator struct {
	window   int
	warmup   int
	count    int
	estimate float64 // milliseconds
}

// NewEstimator creates an estimator with the given smoothing window and
// warm-up sample count.
func NewEstimator(window, warmup int) *Estimator {
	if window < 1 {
		window = 1
	}
	return &Estimator{window: window, warmup: warmup}
}

// Observe records one completed round trip and returns the updated
// estimate.
func (e *Estimator) Observe(sample time.Duration) time.Duration {
	ms := float64(sample) / float64(time.Millisecond)
	e.count++
	if e.count <= e.warmup {
		e.estimate += (ms - e.estimate) / float64(e.count)
	} else {
		f := 2.0 / float64(e.window+1)
		e.estimate = ms*f + e.estimate*(1-f)
	}
	return e.Estimate()
}

// Estimate returns the current round-trip estimate.
func (e *Estimator) Estimate() time.Duration {
	return time.Duration(e.estimate * float64(time.Millisecond))
}

// Debounce returns how long to wait before the next dispatch given the
// time elapsed since the previous one: max(0, estimate - sinceLast).
func (e *Estimator) Debounce(sinceLast time.Duration) time.Duration {
	d := e.Estimate() - sinceLast
	if d < 0 {
		return 0
	}
	return d
}
