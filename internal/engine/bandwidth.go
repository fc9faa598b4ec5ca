package engine

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// burstMultiplier sizes the token bucket burst relative to the per-second
// rate, so short savings can be spent without raising sustained throughput.
const burstMultiplier = 2

func newBandwidthLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)*burstMultiplier)
}

// rateLimitedReader throttles reads against a shared token bucket. All
// concurrent transfers share one limiter, bounding aggregate bandwidth.
type rateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if waitErr := waitN(r.ctx, r.limiter, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

// waitN splits a large token request into burst-sized pieces, since
// rate.Limiter.WaitN rejects requests above the burst size.
func waitN(ctx context.Context, limiter *rate.Limiter, n int) error {
	burst := limiter.Burst()
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := limiter.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}
