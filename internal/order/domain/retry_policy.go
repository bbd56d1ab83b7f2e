package domain

import "time"

// RetryPolicy computes retry schedules with exponential backoff. It is a
// pure function of the attempt number so scheduling decisions can be unit
// tested without a clock.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy mirrors the production defaults: three attempts,
// 5 minutes doubling up to a 24 hour cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 5 * time.Minute,
		Multiplier:   2.0,
		MaxDelay:     24 * time.Hour,
	}
}

// Delay returns the backoff delay for the n-th attempt (n >= 1):
// initial * multiplier^(n-1), capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}

	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Retryable reports whether a failure of this classification may be
// scheduled for automatic retry. Validation and permanent failures go to
// the dead letter queue without another attempt.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTypeValidation, ErrorTypePermanent:
		return false
	}
	return true
}
