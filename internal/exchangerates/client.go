package exchangerates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

const (
	// DefaultSourceURL is the Czech National Bank daily fixing in plain text.
	DefaultSourceURL = "https://www.cnb.cz/cs/financni-trhy/devizovy-trh/kurzy-devizoveho-trhu/kurzy-devizoveho-trhu/denni_kurz.txt"
	// DefaultFetchTimeout bounds a single request to the rate source.
	DefaultFetchTimeout = 10 * time.Second

	maxPayloadBytes = 1 << 20
	instrumentation = "github.com/Shelia5K/FAPI-order-service/internal/exchangerates"
)

var tracer = otel.Tracer(instrumentation)

// Client downloads the daily rate list.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	now     func() time.Time
	tracer  trace.Tracer
}

// ClientOption customises Client behaviour.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client. Its Timeout is replaced by the fetch timeout.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			copied := *client
			c.http = &copied
		}
	}
}

// WithFetchTimeout sets the hard deadline of one fetch.
func WithFetchTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClientClock injects the time source stamped on fetched tables.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient validates sourceURL and constructs a Client.
func NewClient(sourceURL string, opts ...ClientOption) (*Client, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("exchangerates: invalid source url %q", sourceURL)
	}

	client := &Client{
		url:     sourceURL,
		http:    &http.Client{},
		timeout: DefaultFetchTimeout,
		now:     time.Now,
		tracer:  tracer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	client.http.Timeout = client.timeout
	return client, nil
}

// URL reports the configured source.
func (c *Client) URL() string { return c.url }

// FetchRates issues one GET against the source. Every failure is returned as *FetchError.
func (c *Client) FetchRates(ctx context.Context) (domain.RateTable, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "exchangerates.Fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.url", c.url))

	table, err := c.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Reason(err))
		return domain.RateTable{}, err
	}
	span.SetAttributes(attribute.Int("exchangerates.currencies", len(table.Rates)))
	return table, nil
}

func (c *Client) fetch(ctx context.Context) (domain.RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.RateTable{}, &FetchError{Kind: FetchErrorNetwork, Reason: "could not build rate request", Err: err}
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RateTable{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return domain.RateTable{}, &FetchError{
			Kind:   FetchErrorStatus,
			Reason: fmt.Sprintf("rate source responded with status %d", resp.StatusCode),
		}
	}

	rates, err := ParseTable(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		if isTimeout(err) {
			return domain.RateTable{}, &FetchError{Kind: FetchErrorTimeout, Reason: "rate source timed out", Err: err}
		}
		return domain.RateTable{}, &FetchError{Kind: FetchErrorParse, Reason: "rate source returned an unreadable payload", Err: err}
	}

	return domain.RateTable{
		Rates:     rates,
		FetchedAt: c.now().UTC(),
		Source:    c.url,
	}, nil
}

func classifyTransportError(err error) *FetchError {
	if isTimeout(err) {
		return &FetchError{Kind: FetchErrorTimeout, Reason: "rate source timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &FetchError{Kind: FetchErrorNetwork, Reason: "rate request was canceled", Err: err}
	}
	return &FetchError{Kind: FetchErrorNetwork, Reason: "rate source is unreachable", Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
