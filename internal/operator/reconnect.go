package operator

import "time"

// backoff implements the reconnection delay policy: a fixed starting delay
// doubled on every failed attempt up to a ceiling, with a hard cap on the
// number of attempts before the session is declared dead.
type backoff struct {
	initial     time.Duration
	ceiling     time.Duration
	maxAttempts int

	attempts int
}

func newBackoff(initial, ceiling time.Duration, maxAttempts int) *backoff {
	if initial <= 0 {
		initial = 5 * time.Second
	}
	if ceiling < initial {
		ceiling = initial
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &backoff{initial: initial, ceiling: ceiling, maxAttempts: maxAttempts}
}

// next returns the delay before the upcoming attempt, or false when the
// attempt budget is exhausted.
func (b *backoff) next() (time.Duration, bool) {
	if b.attempts >= b.maxAttempts {
		return 0, false
	}
	d := b.initial << b.attempts
	if d > b.ceiling {
		d = b.ceiling
	}
	b.attempts++
	return d, true
}

// reset clears the attempt counter after a successful connection.
func (b *backoff) reset() {
	b.attempts = 0
}
