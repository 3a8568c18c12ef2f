package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/fetchpipe/internal/fetch"
)

type closingBuffer struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (b *closingBuffer) Close() error {
	b.closed = true
	return b.closeErr
}

func TestJSONLWriterFormats(t *testing.T) {
	t.Parallel()

	out := &closingBuffer{}
	w := NewJSONLWriter(out)
	require.NoError(t, w.Write(fetch.Result{URL: "https://ok.test/json", Content: json.RawMessage(`{"x":1}`)}))
	require.NoError(t, w.Write(fetch.Result{URL: "https://ok.test/html"}))
	require.NoError(t, w.Write(fetch.StatusRecord{URL: "https://ok.test/s", StatusCode: 404}))
	require.NoError(t, w.Write(fetch.FailureRecord{
		URL: "https://down.test/",
		Error: fetch.FailureEntry{
			Kind:       fetch.KindHTTPStatus,
			StatusCode: 500,
			Attempts:   5,
			Message:    "status 500",
		},
	}))
	require.NoError(t, w.Close())
	require.True(t, out.closed)
	require.Equal(t, 4, w.Lines())

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Equal(t, []string{
		`{"url":"https://ok.test/json","content":{"x":1}}`,
		`{"url":"https://ok.test/html","content":null}`,
		`{"url":"https://ok.test/s","status_code":404}`,
		`{"url":"https://down.test/","error":{"kind":"http_status","status_code":500,"attempts":5,"message":"status 500"}}`,
	}, lines)
}

func TestJSONLWriterDoesNotEscapeHTML(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	w := NewJSONLWriter(&out)
	require.NoError(t, w.Write(fetch.Result{URL: "https://ok.test/?a=1&b=<2>"}))
	require.NoError(t, w.Close())
	assert.Contains(t, out.String(), `?a=1&b=<2>`)
}

func TestJSONLWriterCloseError(t *testing.T) {
	t.Parallel()

	out := &closingBuffer{closeErr: errors.New("disk gone")}
	w := NewJSONLWriter(out)
	err := w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close sink: disk gone")
}

func TestResultRoundTrip(t *testing.T) {
	t.Parallel()

	results := []fetch.Result{
		{URL: "https://ok.test/json", Content: json.RawMessage(`{"x":1}`)},
		{URL: "https://ok.test/list", Content: json.RawMessage(`[1,"two",{"three":3.5},null,true]`)},
		{URL: "https://ok.test/str", Content: json.RawMessage(`"héllo <world>"`)},
		{URL: "https://ok.test/none"},
	}
	for _, want := range results {
		var out bytes.Buffer
		w := NewJSONLWriter(&out)
		require.NoError(t, w.Write(want))
		require.NoError(t, w.Close())

		got, err := DecodeResult(bytes.TrimSuffix(out.Bytes(), []byte("\n")))
		require.NoError(t, err)
		require.Equal(t, want.URL, got.URL)
		require.Equal(t, string(want.Content), string(got.Content))
	}
}

func TestDecodeResultRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeResult([]byte(`not json`))
	require.Error(t, err)
	_, err = DecodeResult([]byte(`{"content":1}`))
	require.Error(t, err)
}
