// Package retry holds the delay schedules used by the sync poller and the
// send pipeline.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Linear waits Base × n before the n-th retry.
type Linear struct {
	Base    time.Duration
	attempt int
}

// NextBackOff implements backoff.BackOff.
func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	return l.Base * time.Duration(l.attempt)
}

// Reset implements backoff.BackOff.
func (l *Linear) Reset() {
	l.attempt = 0
}

// SyncPolicy allows at most attempts tries in total, delayed linearly by base.
func SyncPolicy(base time.Duration, attempts int) backoff.BackOff {
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(&Linear{Base: base}, uint64(attempts-1))
}

// SendPolicy allows retries additional tries after the first, each delayed by delay.
func SendPolicy(delay time.Duration, retries int) backoff.BackOff {
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(retries))
}

// Schedule drains b and returns the delays it would produce before stopping.
func Schedule(b backoff.BackOff) []time.Duration {
	b.Reset()
	var out []time.Duration
	for {
		next := b.NextBackOff()
		if next == backoff.Stop {
			return out
		}
		out = append(out, next)
	}
}
