package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded retry policy: MaxAttempts total attempts with a
// fixed Delay between them. The zero Delay is allowed (retry immediately).
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Timer overrides how the delay is waited out. Tests inject a timer
	// that fires immediately; production leaves it nil for real sleeps.
	Timer backoff.Timer
}

// Do runs op until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. The last error is returned when the budget runs out. Wrapping
// an error in backoff.Permanent stops the loop at once.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	// BackOff implementations are stateful; always build a fresh one.
	var bo backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	bo = backoff.WithMaxRetries(bo, uint64(attempts-1))
	bo = backoff.WithContext(bo, ctx)

	return backoff.RetryNotifyWithTimer(op, bo, nil, p.Timer)
}
