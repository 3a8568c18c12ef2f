package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveHelpers(t *testing.T) {
	before := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("retryable"))
	ObserveAttempt("retryable")
	if got := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("retryable")); got != before+1 {
		t.Errorf("expected retryable attempts to be %f, got %f", before+1, got)
	}

	beforeBytes := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("metrics.test"))
	ObserveFetch("https://metrics.test/a", "succeeded", 7)
	if got := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("metrics.test")); got != beforeBytes+7 {
		t.Errorf("expected %f content bytes, got %f", beforeBytes+7, got)
	}

	beforeWorkers := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if got := testutil.ToFloat64(activeWorkers); got != beforeWorkers+1 {
		t.Errorf("expected active workers %f, got %f", beforeWorkers+1, got)
	}

	ObserveHTTPRequest("GET", "/healthz", 200, 5*time.Millisecond)
	if n := testutil.CollectAndCount(httpRequestDuration); n < 1 {
		t.Errorf("expected at least one request series, got %d", n)
	}

	ObserveBackoff(2 * time.Second)
	if n := testutil.CollectAndCount(backoffSeconds); n != 1 {
		t.Errorf("expected one backoff histogram series, got %d", n)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
