package channel

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Throttled bounds the send rate and the duration of every call to the wrapped channel.
// Relays such as WhatsApp flag accounts that burst, so the limiter waits instead of failing.
type Throttled struct {
	next    Channel
	limiter *rate.Limiter
	timeout time.Duration
}

// NewThrottled wraps next. perMinute <= 0 disables rate limiting; timeout <= 0 disables the deadline.
func NewThrottled(next Channel, perMinute int, timeout time.Duration) *Throttled {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	}
	return &Throttled{next: next, limiter: limiter, timeout: timeout}
}

func (t *Throttled) Send(ctx context.Context, leadID uuid.UUID, templateName, text string) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return Unavailable(err)
	}
	if err := t.next.Send(ctx, leadID, templateName, text); err != nil {
		return Unavailable(err)
	}
	return nil
}
