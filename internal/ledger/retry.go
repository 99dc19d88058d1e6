package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds how often a unit of work is retried after ErrVersionConflict.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // base delay, doubled per attempt with full jitter
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 5 * time.Millisecond}
}

// Do runs fn until it succeeds, fails with anything other than ErrVersionConflict,
// or MaxAttempts conflicts happened, in which case ErrContention is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := max(p.MaxAttempts, 1)

	var err error

	for attempt := range attempts {
		err = fn()
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}

		if attempt == attempts-1 {
			break
		}

		if werr := sleep(ctx, jitter(p.Backoff, attempt)); werr != nil {
			return werr
		}
	}

	return fmt.Errorf("%w: %d attempts: %v", ErrContention, attempts, err)
}

func jitter(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	ceiling := base << min(attempt, 10)

	return time.Duration(rand.Int64N(int64(ceiling)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting to retry: %w", ctx.Err())
	}
}
