// Package collyfetcher implements fetch.HTTPClient using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/fetchpipe/internal/fetch"
)

const defaultMaxBodySize = 10 << 20

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
}

// Client performs single GETs through a Colly collector. Every status code is
// returned as a response; only requests that never completed are errors.
type Client struct {
	cfg           Config
	transport     *http.Transport
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	transport := newHTTPTransport()
	c.WithTransport(transport)
	// Clones share the backend, so the client timeout is set once here.
	c.SetRequestTimeout(cfg.Timeout)

	return &Client{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Get implements fetch.HTTPClient.
func (c *Client) Get(ctx context.Context, rawURL string) (fetch.Response, error) {
	if err := validateURL(rawURL); err != nil {
		return fetch.Response{}, err
	}
	var (
		result   fetch.Response
		gotResp  bool
		fetchErr error
	)
	collector := c.baseCollector.Clone()
	collector.Context = ctx
	configureCollectorHooks(collector, &result, &gotResp, &fetchErr)

	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return fetch.Response{}, err
	}
	if !gotResp {
		return fetch.Response{}, fmt.Errorf("%w: no response for %s", fetch.ErrTransport, rawURL)
	}
	return result, nil
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

func configureCollectorHooks(hooks collectorHooks, result *fetch.Response, gotResp *bool, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		var header http.Header
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		*result = fetch.Response{
			StatusCode: r.StatusCode,
			Header:     header,
			Body:       append([]byte(nil), r.Body...),
		}
		*gotResp = true
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err == nil {
			err = *fetchErr
		}
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("colly fetch canceled: %w", ctxErr)
		}
		return fmt.Errorf("%w: %w", fetch.ErrTransport, err)
	}
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", fetch.ErrMalformedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", fetch.ErrMalformedURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", fetch.ErrMalformedURL, rawURL)
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}
