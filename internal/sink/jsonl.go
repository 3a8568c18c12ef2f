// Package sink encodes pipeline records as JSON lines.
package sink

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/JakeFAU/fetchpipe/internal/fetch"
)

// JSONLWriter appends one JSON object per line to an underlying writer.
// It is not safe for concurrent use; the pipeline has a single writer.
type JSONLWriter struct {
	buf    *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
	lines  int
}

// NewJSONLWriter wraps w. If w is an io.Closer it is closed by Close.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	out := &JSONLWriter{buf: buf, enc: enc}
	if c, ok := w.(io.Closer); ok {
		out.closer = c
	}
	return out
}

// Write encodes rec followed by a newline.
func (w *JSONLWriter) Write(rec fetch.Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record for %s: %w", rec.RecordURL(), err)
	}
	w.lines++
	return nil
}

// Lines returns the number of records written so far.
func (w *JSONLWriter) Lines() int {
	return w.lines
}

// Flush pushes buffered lines to the underlying writer.
func (w *JSONLWriter) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush sink: %w", err)
	}
	return nil
}

// Close flushes and releases the underlying writer.
func (w *JSONLWriter) Close() error {
	flushErr := w.Flush()
	if w.closer == nil {
		return flushErr
	}
	if err := w.closer.Close(); err != nil {
		return errors.Join(flushErr, fmt.Errorf("close sink: %w", err))
	}
	return flushErr
}

// DecodeResult parses one content-mode line back into a Result.
func DecodeResult(line []byte) (fetch.Result, error) {
	var raw struct {
		URL     *string         `json:"url"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return fetch.Result{}, fmt.Errorf("decode result line: %w", err)
	}
	if raw.URL == nil {
		return fetch.Result{}, errors.New("decode result line: missing url")
	}
	result := fetch.Result{URL: *raw.URL}
	if len(raw.Content) > 0 && string(raw.Content) != "null" {
		result.Content = raw.Content
	}
	return result, nil
}
