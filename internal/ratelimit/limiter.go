package ratelimit

import (
	"context"
	"time"
)

// Limiter is the throttling capability used by the contact reveal and
// WhatsApp verification flows. All three checks are check-and-consume: an
// allowed call counts against the budget, a denied call does not.
//
// The API middleware's per-client token buckets are a separate concern; this
// interface covers the per-user business limits that must survive whichever
// backing store the deployment uses.
type Limiter interface {
	// AllowMinInterval reports whether at least interval has elapsed since
	// the last allowed call for key. The boundary is inclusive: a call at
	// exactly interval after the previous one is allowed.
	AllowMinInterval(ctx context.Context, key string, interval time.Duration) (bool, error)

	// AllowSliding reports whether fewer than limit calls were allowed for
	// key within the trailing window.
	AllowSliding(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// AllowFixed reports whether fewer than limit calls were allowed for key
	// within the current fixed window. Windows are aligned to multiples of
	// window since the Unix epoch (UTC), so a 24h window is a UTC calendar
	// day.
	AllowFixed(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
