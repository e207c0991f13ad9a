package discovery

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// NewPollRetryBackoff creates an API Machinery backoff parameter set for retrying
// failed watch polls. Delays grow exponentially from 250ms and never exceed maxDelay.
func NewPollRetryBackoff(maxDelay time.Duration) wait.Backoff {
	initial := 250 * time.Millisecond
	if maxDelay > 0 && maxDelay < initial {
		initial = maxDelay
	}
	// Jitter is added as a random fraction of the duration multiplied by the jitter factor.
	return wait.Backoff{
		Duration: initial,
		Factor:   1.5,
		Steps:    20,
		Jitter:   0.1,
		Cap:      maxDelay,
	}
}

// sleepWithContext blocks for d. It immediately returns if the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
