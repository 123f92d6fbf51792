package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// rateLimited shapes the call rate of a single provider.
type rateLimited struct {
	next    Provider
	limiter *rate.Limiter
	maxWait time.Duration
}

// RateLimited wraps p so each Send first waits for a token from limiter. When no
// token can be granted within maxWait, or before ctx ends, the call is not made and
// the outcome is a rate_limited failure. A non-positive maxWait leaves the wait
// bounded by ctx alone. A nil limiter returns p unchanged.
func RateLimited(p Provider, limiter *rate.Limiter, maxWait time.Duration) Provider {
	if limiter == nil {
		return p
	}
	return &rateLimited{next: p, limiter: limiter, maxWait: maxWait}
}

func (r *rateLimited) Name() string {
	return r.next.Name()
}

func (r *rateLimited) Send(ctx context.Context, msg domain.Message) domain.Outcome {
	waitCtx := ctx
	if r.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.maxWait)
		defer cancel()
	}
	if err := r.limiter.Wait(waitCtx); err != nil {
		return domain.Failedf(r.next.Name(), domain.ErrorClassRateLimited, "rate limit wait: %v", err)
	}
	return r.next.Send(ctx, msg)
}
