package retry

import "time"

// Backoff is exponential in the attempt number and capped at Max. The delay
// before attempt 2 is Base, before attempt 3 is 2*Base, and so on.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	if attempt <= 2 {
		return b.cap(base)
	}
	d := base
	for i := 2; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	return b.cap(d)
}

func (b Backoff) cap(d time.Duration) time.Duration {
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
