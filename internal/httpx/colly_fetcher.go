package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

const collyAttempts = 3

// CollyFetcher fetches API documents through a fresh Colly collector per
// call, sharing one rate limiter per host across calls.
type CollyFetcher struct {
	opts     Options
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// retryDelay is the first backoff after a 429 or 5xx; it doubles per attempt.
	retryDelay time.Duration
}

func NewCollyFetcher(opts Options) *CollyFetcher {
	return &CollyFetcher{
		opts:       opts.withDefaults(),
		limiters:   make(map[string]*rate.Limiter),
		retryDelay: 500 * time.Millisecond,
	}
}

func (f *CollyFetcher) FetchBytes(ctx context.Context, rawURL string) ([]byte, int, error) {
	if rawURL == "" {
		return nil, 0, &FetchError{Err: errors.New("empty url")}
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, &FetchError{Err: err}
	}
	if target.Scheme == "" {
		target.Scheme = "https"
	}
	limiter := f.limiterFor(strings.ToLower(target.Hostname()))

	var (
		body   []byte
		status int
	)
	for attempt := 0; attempt < collyAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
		body, status, err = f.get(ctx, target.String())
		if err == nil {
			return body, status, nil
		}
		if ctx.Err() != nil {
			return nil, status, ctx.Err()
		}
		if !retryable(status) || attempt == collyAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, f.retryDelay<<attempt); err != nil {
			return nil, status, err
		}
	}
	return body, status, &FetchError{Status: status, Err: err}
}

// get performs one request. Colly reports non-2xx responses through OnError.
func (f *CollyFetcher) get(ctx context.Context, target string) ([]byte, int, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.IgnoreRobotsTxt = !f.opts.RespectRobots
	c.SetRequestTimeout(f.opts.Timeout)

	var (
		body   []byte
		status int
		reqErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	hdr := http.Header{}
	hdr.Set("Accept", "application/json")
	if err := c.Request(http.MethodGet, target, nil, nil, hdr); err != nil {
		if errors.Is(err, colly.ErrRobotsTxtBlocked) {
			return nil, http.StatusForbidden, err
		}
		return nil, status, err
	}
	if reqErr != nil {
		return nil, status, reqErr
	}
	if status < 200 || status > 299 {
		return nil, status, fmt.Errorf("status %d", status)
	}
	return body, status, nil
}

func (f *CollyFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(f.opts.Every), f.opts.Burst)
	f.limiters[host] = l
	return l
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
