package fetch

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

// Response is what an HTTPClient returns for a completed GET, whatever the status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the declared Content-Type header value.
func (r Response) ContentType() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// IsJSON reports whether the response declares a JSON media type.
func (r Response) IsJSON() bool {
	raw := r.ContentType()
	if raw == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(raw, ";", 2)[0])
	}
	mediaType = strings.ToLower(mediaType)
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// Success reports whether the status code is in the 2xx class.
func (r Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Record is one line of pipeline output.
type Record interface {
	RecordURL() string
}

// Result is emitted for every successfully fetched URL. Content is nil when the
// body was not JSON or failed to decode, and is encoded as null.
type Result struct {
	URL     string          `json:"url"`
	Content json.RawMessage `json:"content"`
}

// RecordURL implements Record.
func (r Result) RecordURL() string { return r.URL }

// StatusRecord is the status-only output line.
type StatusRecord struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
}

// RecordURL implements Record.
func (r StatusRecord) RecordURL() string { return r.URL }

// FailureRecord is written for failed URLs when failure records are enabled.
type FailureRecord struct {
	URL   string       `json:"url"`
	Error FailureEntry `json:"error"`
}

// FailureEntry describes why a URL produced no result.
type FailureEntry struct {
	Kind       FailureKind `json:"kind"`
	StatusCode int         `json:"status_code,omitempty"`
	Attempts   int         `json:"attempts"`
	Message    string      `json:"message"`
}

// RecordURL implements Record.
func (r FailureRecord) RecordURL() string { return r.URL }

// Report summarises one logical fetch. Exactly one of Result and Failure is set.
type Report struct {
	URL        string
	Attempts   int
	StatusCode int
	Result     *Result
	Failure    *Failure
}

// OK reports whether the fetch produced a Result.
func (r Report) OK() bool {
	return r.Result != nil
}
