package core

import "time"

const (
	defaultRetryInitialBackoff = 250 * time.Millisecond
	defaultRetryMaxBackoff     = 5 * time.Second
)

// RetryBackoff yields the delay before retry number attempt, starting at 1.
type RetryBackoff interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles Initial per attempt and caps the result at Max.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := b.Initial
	if initial <= 0 {
		initial = defaultRetryInitialBackoff
	}
	max := b.Max
	if max <= 0 {
		max = defaultRetryMaxBackoff
	}
	if initial >= max {
		return max
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}

var _ RetryBackoff = ExponentialBackoff{}
