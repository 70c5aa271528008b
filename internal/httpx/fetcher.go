// Package httpx holds the outbound HTTP transports used to reach statistics APIs.
package httpx

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	TransportPolite = "polite"
	TransportColly  = "colly"

	defaultUserAgent = "econ-indicators/1.0"
)

// Fetcher retrieves a URL and returns the response body and status code.
// Non-2xx responses and transport failures are reported as *FetchError.
type Fetcher interface {
	FetchBytes(ctx context.Context, rawURL string) ([]byte, int, error)
}

type Options struct {
	UserAgent     string
	Timeout       time.Duration
	Every         time.Duration // one request per Every, per host
	Burst         int
	RespectRobots bool
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Every <= 0 {
		o.Every = time.Second
	}
	if o.Burst <= 0 {
		o.Burst = 2
	}
	return o
}

// New returns the transport named by kind.
func New(kind string, opts Options) (Fetcher, error) {
	switch strings.ToLower(kind) {
	case "", TransportPolite:
		return NewPoliteClient(opts), nil
	case TransportColly:
		return NewCollyFetcher(opts), nil
	default:
		return nil, fmt.Errorf("unknown http transport %q", kind)
	}
}

type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
