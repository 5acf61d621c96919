package events

import "time"

const maxBackoff = 30 * time.Second

// Backoff returns the wait before retry number attempt: 1s, 2s, 4s, ...
// capped at 30s. Transports use it for reconnects and handler retries.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
