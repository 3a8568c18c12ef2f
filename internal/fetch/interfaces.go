package fetch

import (
	"context"
	"time"
)

// HTTPClient performs a single GET. A non-2xx status is a Response, not an error;
// errors are reserved for requests that never completed.
type HTTPClient interface {
	Get(ctx context.Context, url string) (Response, error)
}

// Clock returns the current time and sleeps between attempts.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Limiter gates outbound requests, typically per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// FailureRecorder persists failed URLs for later inspection.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, runID string, failure Failure) error
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
