package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetryStatusCodes(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()
	for _, code := range []int{429, 500, 502, 503, 599} {
		require.Truef(t, policy.ShouldRetry(code, nil), "status %d should be retried", code)
	}
	for _, code := range []int{0, 200, 301, 400, 401, 403, 404, 418, 600} {
		require.Falsef(t, policy.ShouldRetry(code, nil), "status %d should not be retried", code)
	}
}

func TestShouldRetryTransportFailures(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()
	failures := []error{
		ErrTransport,
		fmt.Errorf("%w: dial tcp: connection refused", ErrTransport),
		context.DeadlineExceeded,
		&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
		&net.DNSError{Err: "no such host", Name: "nowhere.test"},
		timeoutErr{},
	}
	for _, failure := range failures {
		for _, code := range []int{0, 200, 404, 500} {
			require.Truef(t, policy.ShouldRetry(code, failure), "transport failure %v with status %d", failure, code)
		}
	}
}

func TestShouldRetryNonTransportErrorWithoutStatus(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()
	require.False(t, policy.ShouldRetry(0, ErrMalformedURL))
	require.False(t, policy.ShouldRetry(0, errors.New("boom")))
}

func TestShouldRetryIsPure(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()
	inputs := []struct {
		status int
		err    error
	}{
		{429, nil}, {404, nil}, {0, ErrTransport}, {0, nil}, {503, errors.New("x")},
	}
	for _, in := range inputs {
		first := policy.ShouldRetry(in.status, in.err)
		second := policy.ShouldRetry(in.status, in.err)
		require.Equal(t, first, second)
	}
}

func TestBackoffExponential(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(5, time.Second, 0)
	for k := 1; k <= policy.MaxAttempts()-1; k++ {
		want := time.Duration(1<<(k-1)) * time.Second
		require.Equalf(t, want, policy.Backoff(k), "attempt %d", k)
	}
}

func TestBackoffCap(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(10, time.Second, 5*time.Second)
	require.Equal(t, time.Second, policy.Backoff(1))
	require.Equal(t, 4*time.Second, policy.Backoff(3))
	require.Equal(t, 5*time.Second, policy.Backoff(4))
	require.Equal(t, 5*time.Second, policy.Backoff(9))

	uncapped := NewRetryPolicy(200, time.Second, 0)
	require.Positive(t, uncapped.Backoff(200), "uncapped backoff must not overflow")
}

func TestNewRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	policy := NewRetryPolicy(0, 0, 0)
	require.Equal(t, DefaultMaxAttempts, policy.MaxAttempts())
	require.Equal(t, DefaultBaseDelay, policy.Backoff(1))
}
