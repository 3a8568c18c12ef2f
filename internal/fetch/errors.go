package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTransport marks failures where the request never completed
	// (connection refused, DNS, timeout).
	ErrTransport = errors.New("transport failure")
	// ErrMalformedURL marks URLs that cannot be requested at all.
	ErrMalformedURL = errors.New("malformed url")
)

// FailureKind classifies why a fetch did not produce a result.
type FailureKind string

// Failure kinds.
const (
	KindTransport    FailureKind = "transport"
	KindHTTPStatus   FailureKind = "http_status"
	KindMalformedURL FailureKind = "malformed_url"
	KindDecode       FailureKind = "decode"
	KindUnclassified FailureKind = "unclassified"
	KindCanceled     FailureKind = "canceled"
)

// Failure describes the last failed attempt for a URL.
type Failure struct {
	Kind       FailureKind
	URL        string
	StatusCode int
	Attempt    int
	Err        error
}

func (f *Failure) Error() string {
	switch {
	case f.Err != nil:
		return fmt.Sprintf("%s: %s (attempt %d): %v", f.Kind, f.URL, f.Attempt, f.Err)
	case f.StatusCode != 0:
		return fmt.Sprintf("%s: %s (attempt %d): status %d", f.Kind, f.URL, f.Attempt, f.StatusCode)
	default:
		return fmt.Sprintf("%s: %s (attempt %d)", f.Kind, f.URL, f.Attempt)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsTransportFailure reports whether err is a request that never completed.
func IsTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransport) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify maps a client error onto a FailureKind.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrMalformedURL):
		return KindMalformedURL
	case IsTransportFailure(err):
		return KindTransport
	default:
		return KindUnclassified
	}
}
