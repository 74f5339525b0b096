package realtime

import "time"

// reconnectDelay doubles base per attempt: base, 2*base, 4*base ... capped at 60s.
func reconnectDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	const maxDelay = 60 * time.Second
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}
